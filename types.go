package websec

import (
	"fmt"
	"time"
)

// CredentialKind identifies the variant of a presented credential.
// Exactly one realm may be registered per kind.
type CredentialKind string

const (
	// KindBasic is an HTTP Basic authorization token matched against the
	// configured permission set.
	KindBasic CredentialKind = "basic"

	// KindRemote is a third-party access token validated by a remote
	// identity provider.
	KindRemote CredentialKind = "remote"

	// KindBearer is a locally verifiable bearer token (JWT).
	KindBearer CredentialKind = "bearer"
)

// Credential is raw authentication material extracted from a request.
// Credentials are immutable once parsed.
type Credential interface {
	Kind() CredentialKind
}

// Platform identifies a third-party identity provider.
type Platform int

const (
	PlatformQQ     Platform = 1
	PlatformWeChat Platform = 2
	PlatformWeibo  Platform = 3
)

// PlatformFromCode maps a wire-level platform code to a Platform.
func PlatformFromCode(code int) (Platform, bool) {
	switch Platform(code) {
	case PlatformQQ, PlatformWeChat, PlatformWeibo:
		return Platform(code), true
	}
	return 0, false
}

func (p Platform) String() string {
	switch p {
	case PlatformQQ:
		return "qq"
	case PlatformWeChat:
		return "wechat"
	case PlatformWeibo:
		return "weibo"
	}
	return fmt.Sprintf("platform(%d)", int(p))
}

// RemoteToken is an access token issued by a third-party platform.
// No validation happens here; that is the remote realm's job.
type RemoteToken struct {
	platform    Platform
	accessToken string
}

// NewRemoteToken creates an immutable third-party login token.
func NewRemoteToken(platform Platform, accessToken string) RemoteToken {
	return RemoteToken{platform: platform, accessToken: accessToken}
}

func (t RemoteToken) Kind() CredentialKind { return KindRemote }

// Platform returns the issuing platform.
func (t RemoteToken) Platform() Platform { return t.platform }

// AccessToken returns the opaque token string.
func (t RemoteToken) AccessToken() string { return t.accessToken }

// BasicCredential carries the encoded authorization from an HTTP Basic
// header, already matched against the configured permission set.
type BasicCredential struct {
	authorization string
}

// NewBasicCredential wraps an encoded Basic authorization token.
func NewBasicCredential(authorization string) BasicCredential {
	return BasicCredential{authorization: authorization}
}

func (c BasicCredential) Kind() CredentialKind { return KindBasic }

// Authorization returns the encoded token as presented.
func (c BasicCredential) Authorization() string { return c.authorization }

// BearerCredential carries a bearer token verified locally by a realm.
type BearerCredential struct {
	token string
}

// NewBearerCredential wraps a raw bearer token string.
func NewBearerCredential(token string) BearerCredential {
	return BearerCredential{token: token}
}

func (c BearerCredential) Kind() CredentialKind { return KindBearer }

// Token returns the raw token string.
func (c BearerCredential) Token() string { return c.token }

// Principal is the stable identity a realm assigns to an authenticated
// subject. Only realms produce principals.
type Principal struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Subject is the resolved identity and authorization state carried through
// one request. It is immutable after construction; re-authentication builds
// a new Subject rather than mutating in place.
type Subject struct {
	Principal     *Principal `json:"principal,omitempty"`
	Authenticated bool       `json:"authenticated"`
	Roles         []string   `json:"roles,omitempty"`
	SessionID     string     `json:"session_id,omitempty"`
}

// NewSubject builds an authenticated Subject. A nil principal is rejected:
// an authenticated subject always has one.
func NewSubject(principal *Principal, roles []string, sessionID string) (*Subject, error) {
	if principal == nil {
		return nil, fmt.Errorf("websec: authenticated subject requires a principal")
	}
	return &Subject{
		Principal:     principal,
		Authenticated: true,
		Roles:         append([]string(nil), roles...),
		SessionID:     sessionID,
	}, nil
}

// AnonymousSubject returns the unauthenticated subject. This is the normal
// outcome for requests presenting no usable credential, not an error.
func AnonymousSubject() *Subject {
	return &Subject{}
}

// HasRole reports whether the subject holds the given role.
func (s *Subject) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the subject holds at least one of the roles.
// An empty requirement is satisfied by any subject.
func (s *Subject) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// AuthInfo is what a realm returns on successful authentication.
type AuthInfo struct {
	Principal *Principal
	Roles     []string
}

// SessionRecord binds a session id to a stored subject with expiry.
// Records are owned by the session store; the coordinator re-creates and
// re-stores rather than mutating one.
type SessionRecord struct {
	ID        string    `json:"id"`
	Subject   *Subject  `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is expired at the given instant.
// The boundary is inclusive: a record whose ExpiresAt equals now is expired.
func (r *SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
