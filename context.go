package websec

import "context"

type ctxKey string

const ctxKeySubject ctxKey = "websec_subject"

// WithSubject stores the resolved subject in the context.
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// SubjectFromContext extracts the resolved subject from the context, or nil
// if no subject has been attached.
func SubjectFromContext(ctx context.Context) *Subject {
	v, _ := ctx.Value(ctxKeySubject).(*Subject)
	return v
}
