// Package basicauth parses the "basic(user1,user2,...)" rule-configuration
// expression into an immutable set of encoded authorization tokens.
//
// The expression is a configuration-time mini-language: parsed once at
// startup, read-only afterwards. A malformed expression is a fatal
// configuration failure, never a per-request condition.
package basicauth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	exprPrefix = "basic("
	exprSuffix = ")"
)

// BasicAuth is the permission set derived from one expression. Membership is
// exact-match against the encoded form; apply Encode to a candidate before
// calling Contains.
type BasicAuth struct {
	ordered []string
	members map[string]struct{}
}

// Parse validates and parses an expression of the shape "basic(u1,u2)".
// Whitespace is stripped before the grammar check. Anything that is not
// exactly prefix, comma-separated non-empty entries, and suffix is rejected.
func Parse(expression string) (*BasicAuth, error) {
	expr := strings.ReplaceAll(expression, " ", "")

	if !strings.HasPrefix(expr, exprPrefix) {
		return nil, fmt.Errorf("basicauth: expression %q: missing %q prefix", expression, exprPrefix)
	}
	if !strings.HasSuffix(expr, exprSuffix) {
		return nil, fmt.Errorf("basicauth: expression %q: unterminated, expected %q suffix", expression, exprSuffix)
	}

	body := expr[len(exprPrefix) : len(expr)-len(exprSuffix)]
	if body == "" {
		return nil, fmt.Errorf("basicauth: expression %q: no users declared", expression)
	}

	users := strings.Split(body, ",")
	ba := &BasicAuth{
		ordered: make([]string, 0, len(users)),
		members: make(map[string]struct{}, len(users)),
	}
	for _, user := range users {
		if user == "" {
			return nil, fmt.Errorf("basicauth: expression %q: empty user entry", expression)
		}
		authorization := Encode(user)
		if _, ok := ba.members[authorization]; ok {
			continue
		}
		ba.ordered = append(ba.ordered, authorization)
		ba.members[authorization] = struct{}{}
	}
	return ba, nil
}

// Encode transforms raw credential material into its stored authorization
// form: standard base64 over the UTF-8 bytes.
func Encode(user string) string {
	return base64.StdEncoding.EncodeToString([]byte(user))
}

// Decode recovers the raw credential material from an encoded authorization.
func Decode(authorization string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(authorization)
	if err != nil {
		return "", fmt.Errorf("basicauth: decode authorization: %w", err)
	}
	return string(b), nil
}

// Contains reports whether the encoded authorization is in the set.
func (b *BasicAuth) Contains(authorization string) bool {
	_, ok := b.members[authorization]
	return ok
}

// Authorizations returns the encoded tokens in declaration order.
func (b *BasicAuth) Authorizations() []string {
	return append([]string(nil), b.ordered...)
}

func (b *BasicAuth) String() string {
	return "[" + strings.Join(b.ordered, " ") + "]"
}
