package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/users"
)

const (
	CookieName     = "jwt"
	loggedOutValue = "loggedout"

	msgNotLoggedIn    = "You are not logged in! Please login to get access"
	msgInvalidToken   = "Invalid token. Please log in again!"
	msgExpiredToken   = "Your token has expired! Please log in again."
	msgUserGone       = "The user belonging to this token no longer exists."
	msgPasswordChange = "User recently changed password! Please login again."
)

// Gate resolves the caller of a request from its session token.
type Gate struct {
	tokens *Tokens
	users  users.Store
}

func NewGate(tokens *Tokens, store users.Store) *Gate {
	return &Gate{tokens: tokens, users: store}
}

// Authenticate extracts, verifies and resolves the token, then checks it was
// issued after the last password change. Store failures other than a missing
// user are returned as they are.
func (g *Gate) Authenticate(r *http.Request) (*users.User, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, apperr.NotAuthenticated(msgNotLoggedIn)
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.ErrNotAuthenticated, msgExpiredToken, err)
		}
		return nil, apperr.Wrap(apperr.ErrNotAuthenticated, msgInvalidToken, err)
	}

	u, err := g.users.FindByID(r.Context(), claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, apperr.NotAuthenticated(msgUserGone)
	}
	if err != nil {
		return nil, err
	}

	if u.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, apperr.NotAuthenticated(msgPasswordChange)
	}
	return u, nil
}

// Identify runs the same checks as Authenticate but treats every failure as
// an anonymous caller.
func (g *Gate) Identify(r *http.Request) *users.User {
	u, err := g.Authenticate(r)
	if err != nil {
		return nil
	}
	return u
}

// TokenFromRequest prefers an Authorization bearer header and falls back to
// the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != loggedOutValue {
		return c.Value
	}
	return ""
}
