package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey    = "principal"
	accessTokenName = "access_token"
)

// PrincipalLoader rebuilds the request principal from the stored user
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (auth.Principal, error)
}

// Authenticator verifies access tokens and resolves them to principals
type Authenticator struct {
	tokens        *auth.TokenManager
	loader        PrincipalLoader
	secureCookies bool
}

// NewAuthenticator creates the auth middleware. secureCookies switches the token cookie to
// Secure + SameSite=None for cross-origin deployments.
func NewAuthenticator(tokens *auth.TokenManager, loader PrincipalLoader, secureCookies bool) *Authenticator {
	return &Authenticator{tokens: tokens, loader: loader, secureCookies: secureCookies}
}

// Principal verifies a raw token and loads the user behind it
func (a *Authenticator) Principal(ctx context.Context, token string) (auth.Principal, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return auth.Principal{}, apperror.Unauthorized("token has expired")
		}
		return auth.Principal{}, apperror.Unauthorized("invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return auth.Principal{}, apperror.Unauthorized("invalid token subject")
	}
	return a.loader.LoadPrincipal(ctx, userID)
}

// Authenticate requires a valid token in the access_token cookie or the Authorization header
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie(accessTokenName)
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				abort(c, apperror.Unauthorized("authorization is missing"))
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				abort(c, apperror.Unauthorized("invalid authorization format, expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		p, err := a.Principal(c.Request.Context(), tokenString)
		if err != nil {
			abort(c, err)
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// SetPrincipal stores p on the request the way Authenticate does
func SetPrincipal(c *gin.Context, p auth.Principal) {
	c.Set(principalKey, p)
	c.Set("userID", p.ID.String())
	c.Set("userRole", string(p.Role))
}

// RequireRole lets the request through only when the principal holds one of roles.
// It must run after Authenticate.
func RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, apperror.Unauthorized("authentication required"))
			return
		}
		if !p.HasRole(roles...) {
			abort(c, apperror.AccessDenied("access denied: insufficient role"))
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Authenticate
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// TokenTTL is the lifetime of issued access tokens
func (a *Authenticator) TokenTTL() time.Duration {
	return a.tokens.ExpiresIn()
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func (a *Authenticator) SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessTokenName, token, int(ttl.Seconds()), "/", "", a.secureCookies, true)
}

// ClearTokenCookie removes the access token cookie
func (a *Authenticator) ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessTokenName, "", -1, "/", "", a.secureCookies, true)
}

func (a *Authenticator) sameSite() http.SameSite {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	if a.secureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func abort(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	status := kind.HTTPStatus()
	message := "internal server error"
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(status, response.ErrorWithCode(status, string(kind), message, nil))
}
