// Package ginmw adapts the security filter chain to Gin.
//
// The middleware extracts identity hints from the request (session cookie
// or header, Basic authorization, remote token headers, bearer token),
// drives the chain, and converts Deny decisions to HTTP statuses. The core
// never sees Gin types.
package ginmw

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	websec "github.com/halcyonsec/websec-go"
	"github.com/halcyonsec/websec-go/filter"
)

// KeySubject is the gin context key holding the resolved subject.
const KeySubject = "websec_subject"

// Wire-level headers for identity material the cookie cannot carry.
const (
	HeaderSessionID      = "X-Session-Id"
	HeaderRemotePlatform = "X-Remote-Platform"
	HeaderRemoteToken    = "X-Remote-Token"
)

// Guard returns Gin middleware that runs every request through the filter
// chain. Allowed requests continue with the subject attached to both the
// gin context and the request context; denied requests are rejected with
// 401, 403 or 503 depending on the deny reason.
//
// When a request authenticates freshly, the new session id is written back
// as a cookie using the manager's cookie configuration.
func Guard(mgr *websec.Manager, chain *filter.Chain) gin.HandlerFunc {
	cookieCfg := mgr.Config().Cookie

	return func(c *gin.Context) {
		hints := extractHints(c, cookieCfg.Name)

		req := &filter.Request{
			Path:  c.Request.URL.Path,
			Hints: hints,
		}

		decision := chain.Apply(c.Request.Context(), req)
		if decision.Denied() {
			status, msg := denyStatus(decision.Reason())
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		if req.Subject != nil {
			c.Set(KeySubject, req.Subject)
			c.Request = c.Request.WithContext(websec.WithSubject(c.Request.Context(), req.Subject))

			if sid := req.Subject.SessionID; sid != "" && sid != hints.SessionID {
				c.SetCookie(cookieCfg.Name, sid, cookieCfg.MaxAge, cookieCfg.Path, cookieCfg.Domain, cookieCfg.Secure, cookieCfg.HTTPOnly)
			}
		}

		c.Next()
	}
}

// Logout returns a Gin handler that invalidates the current session and
// clears the session cookie.
func Logout(mgr *websec.Manager) gin.HandlerFunc {
	cookieCfg := mgr.Config().Cookie

	return func(c *gin.Context) {
		subject := GetSubject(c)
		if subject == nil {
			if sid := sessionID(c, cookieCfg.Name); sid != "" {
				subject = &websec.Subject{SessionID: sid}
			}
		}
		if subject != nil {
			if err := mgr.Logout(c.Request.Context(), subject); err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
				return
			}
		}
		c.SetCookie(cookieCfg.Name, "", -1, cookieCfg.Path, cookieCfg.Domain, cookieCfg.Secure, cookieCfg.HTTPOnly)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	}
}

// GetSubject returns the resolved subject from the Gin context, or nil.
func GetSubject(c *gin.Context) *websec.Subject {
	v, _ := c.Get(KeySubject)
	s, _ := v.(*websec.Subject)
	return s
}

// --- internal helpers ---

func extractHints(c *gin.Context, cookieName string) websec.Hints {
	hints := websec.Hints{
		SessionID: sessionID(c, cookieName),
	}

	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 {
			switch {
			case strings.EqualFold(parts[0], "Basic"):
				hints.BasicAuthorization = parts[1]
			case strings.EqualFold(parts[0], "Bearer"):
				hints.BearerToken = parts[1]
			}
		}
	}

	if tok := c.GetHeader(HeaderRemoteToken); tok != "" {
		if code, err := strconv.Atoi(c.GetHeader(HeaderRemotePlatform)); err == nil {
			if platform, ok := websec.PlatformFromCode(code); ok {
				t := websec.NewRemoteToken(platform, tok)
				hints.RemoteToken = &t
			}
		}
	}

	return hints
}

func sessionID(c *gin.Context, cookieName string) string {
	if sid, err := c.Cookie(cookieName); err == nil && sid != "" {
		return sid
	}
	return c.GetHeader(HeaderSessionID)
}

func denyStatus(reason filter.DenyReason) (int, string) {
	switch reason {
	case filter.ReasonForbidden:
		return http.StatusForbidden, "forbidden"
	case filter.ReasonUnavailable:
		return http.StatusServiceUnavailable, "authentication backend unavailable"
	default:
		return http.StatusUnauthorized, "authentication required"
	}
}
