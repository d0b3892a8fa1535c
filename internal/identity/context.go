package identity

import (
	"context"
	"strings"
)

// User is the signed-in identity as seen by the rest of the service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type userContextKey struct{}
type tokenContextKey struct{}

// ContextWithUser attaches the authenticated user to the context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, &user)
}

// UserFromContext extracts the authenticated user from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	v, ok := ctx.Value(userContextKey{}).(*User)
	if !ok || v == nil {
		return User{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// AuthStatus is the tri-state the wizard keys off while the session is being
// established.
type AuthStatus int

const (
	AuthLoading AuthStatus = iota
	AuthAnonymous
	AuthSignedIn
)

func (s AuthStatus) String() string {
	switch s {
	case AuthAnonymous:
		return "anonymous"
	case AuthSignedIn:
		return "signed_in"
	default:
		return "loading"
	}
}

// AdminDomains lists the email domains whose users get the review console.
var AdminDomains = []string{"thearcstudio.com", "boldxenterprises.com"}

// IsAdminEmail reports whether the address belongs to an admin domain.
func IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range AdminDomains {
		if domain == d {
			return true
		}
	}
	return false
}
