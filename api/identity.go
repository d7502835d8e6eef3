/*
identity.go - Caller identity from the fronting SSO proxy

PURPOSE:
  The service does not authenticate users itself. It trusts the reverse
  proxy (App Service auth, oauth2-proxy, nginx auth_request) to put the
  signed-in user's email in a header, and maps that email to a
  directory.User for every request.

RESOLUTION ORDER (first hit wins):
  1. X-User-Email
  2. X-MS-Client-Principal-Name
  3. X-Forwarded-User
  4. Remote-User
  5. X-Auth-User
  6. X-MS-Client-Principal (base64 JSON: userDetails, then email claims)
  7. Configured test identity (local development only)

  Header values without an "@" are ignored.

SEE ALSO:
  - directory/directory.go: BuildUser maps email -> User
*/
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/warp/leave-tracker/directory"
)

// UnknownEmployeeID identifies callers with no resolvable email.
const UnknownEmployeeID = "unknown"

var identityHeaders = []string{
	"X-User-Email",
	"X-MS-Client-Principal-Name",
	"X-Forwarded-User",
	"Remote-User",
	"X-Auth-User",
}

const principalHeader = "X-MS-Client-Principal"

type userKey struct{}

// IdentityResolver maps request headers to a directory user.
type IdentityResolver struct {
	Directory     *directory.Directory
	TestUserEmail string
}

// Resolve returns the caller. Authenticated is false when no email was found.
func (ir *IdentityResolver) Resolve(r *http.Request) (user directory.User, authenticated bool) {
	email, name := emailFromHeaders(r.Header)
	if email == "" {
		email = strings.TrimSpace(ir.TestUserEmail)
	}
	if email == "" {
		return directory.User{
			EmployeeID:  UnknownEmployeeID,
			DisplayName: "Unknown",
			Role:        ir.Directory.DefaultRole(),
		}, false
	}
	return ir.Directory.BuildUser(email, name), true
}

// Middleware stores the resolved user on the request context.
func (ir *IdentityResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := ir.Resolve(r)
		ctx := context.WithValue(r.Context(), userKey{}, identity{User: user, Authenticated: ok})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type identity struct {
	User          directory.User
	Authenticated bool
}

// CurrentUser returns the user resolved for this request.
func CurrentUser(ctx context.Context) (directory.User, bool) {
	id, ok := ctx.Value(userKey{}).(identity)
	if !ok {
		return directory.User{EmployeeID: UnknownEmployeeID, DisplayName: "Unknown"}, false
	}
	return id.User, id.Authenticated
}

func emailFromHeaders(h http.Header) (email, name string) {
	for _, key := range identityHeaders {
		if v := strings.TrimSpace(h.Get(key)); strings.Contains(v, "@") {
			return v, ""
		}
	}
	if raw := strings.TrimSpace(h.Get(principalHeader)); raw != "" {
		return decodePrincipal(raw)
	}
	return "", ""
}

type clientPrincipal struct {
	UserDetails string `json:"userDetails"`
	Claims      []struct {
		Typ string `json:"typ"`
		Val string `json:"val"`
	} `json:"claims"`
}

// decodePrincipal reads the base64 JSON principal App Service injects.
func decodePrincipal(raw string) (email, name string) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ""
	}
	var p clientPrincipal
	if err := json.Unmarshal(data, &p); err != nil {
		return "", ""
	}

	for _, c := range p.Claims {
		if c.Typ == "name" {
			name = strings.TrimSpace(c.Val)
		}
	}

	if strings.Contains(p.UserDetails, "@") {
		return strings.TrimSpace(p.UserDetails), name
	}
	for _, c := range p.Claims {
		typ := strings.ToLower(c.Typ)
		if typ == "preferred_username" || typ == "email" || strings.HasSuffix(typ, "/emailaddress") {
			if v := strings.TrimSpace(c.Val); strings.Contains(v, "@") {
				return v, name
			}
		}
	}
	return "", name
}
