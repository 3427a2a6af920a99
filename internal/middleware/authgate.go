package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rifaclub/edge-gateway/internal/routes"
)

// Session cookies. The gateway reads them and never issues or mutates them.
const (
	AuthTokenCookie = "auth_token"
	UserRoleCookie  = "user_role"
)

// Recognized roles, compared case-insensitively
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Credential is the session credential carried in cookies. The gateway
// checks presence and role only; token authenticity is validated by the
// upstream service the token is eventually presented to.
type Credential struct {
	Token string
	Role  string
}

// CredentialFromRequest reads the session cookies. The role is normalized to
// lower case; a missing role cookie yields "no role", which fails every
// role-gated check.
func CredentialFromRequest(r *http.Request) Credential {
	var cred Credential
	if c, err := r.Cookie(AuthTokenCookie); err == nil {
		cred.Token = c.Value
	}
	if c, err := r.Cookie(UserRoleCookie); err == nil {
		cred.Role = strings.ToLower(strings.TrimSpace(c.Value))
	}
	return cred
}

// Authorize applies the gating policy for a classified path. Public and
// auth-sensitive paths are always reachable; role-gated paths need a token
// and a sufficient role; every other path, including unmatched ones, needs
// a token.
func Authorize(class routes.Class, cred Credential) bool {
	switch class {
	case routes.ClassPublic, routes.ClassAuthSensitive:
		return true
	case routes.ClassAdmin:
		return cred.Token != "" && (cred.Role == RoleAdmin || cred.Role == RoleSuperAdmin)
	case routes.ClassSuperAdmin:
		return cred.Token != "" && cred.Role == RoleSuperAdmin
	default:
		return cred.Token != ""
	}
}

// LoginRedirectURL builds the login redirect target, carrying the original
// path and query so the client can be sent back after authenticating.
func LoginRedirectURL(r *http.Request) string {
	from := r.URL.Path
	if r.URL.RawQuery != "" {
		from += "?" + r.URL.RawQuery
	}
	return "/login?from=" + url.QueryEscape(from)
}
