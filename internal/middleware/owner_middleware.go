package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/storefront-cart/internal/errors"
	"github.com/ikkim/storefront-cart/pkg/util"
)

// Context keys set by ResolveOwner.
const (
	CartOwnerKey = "cart_owner"
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
)

const (
	SessionHeader = "X-Cart-Session"
	SessionCookie = "cart_session"

	sessionCookieMaxAge = 30 * 24 * 60 * 60
)

// OwnerMiddleware decides whose cart a request operates on: a signed-in
// user ("user:<id>") or an anonymous browser session ("session:<uuid>").
type OwnerMiddleware struct {
	jwtSecret    string
	secureCookie bool
}

func NewOwnerMiddleware(jwtSecret string, secureCookie bool) *OwnerMiddleware {
	return &OwnerMiddleware{
		jwtSecret:    jwtSecret,
		secureCookie: secureCookie,
	}
}

// ResolveOwner sets CartOwnerKey on every request. A present but invalid
// bearer token is rejected rather than silently downgraded to a guest cart.
func (m *OwnerMiddleware) ResolveOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, hasToken, ok := bearerToken(c)
		if !ok {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Malformed authorization header")
			c.Abort()
			return
		}

		if hasToken {
			claims, err := util.ValidateToken(token, m.jwtSecret)
			if err != nil {
				log.Warn("Token validation failed", map[string]interface{}{
					"path":  c.Request.URL.Path,
					"error": err.Error(),
				})
				if err == util.ErrExpiredToken {
					errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "Your session has expired")
				} else {
					errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid authentication token")
				}
				c.Abort()
				return
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(CartOwnerKey, fmt.Sprintf("user:%d", claims.UserID))
			log.Debug("Cart owner resolved from token", map[string]interface{}{
				"user_id": claims.UserID,
			})
			c.Next()
			return
		}

		sessionID, fresh := m.sessionID(c)
		if fresh {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, sessionCookieMaxAge, "/", "", m.secureCookie, true)
			log.Debug("Issued new cart session", map[string]interface{}{
				"session_id": sessionID,
			})
		}
		c.Header(SessionHeader, sessionID)
		c.Set(SessionIDKey, sessionID)
		c.Set(CartOwnerKey, "session:"+sessionID)
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header, or from the
// "token" query parameter for websocket upgrades. ok is false for a
// malformed header.
func bearerToken(c *gin.Context) (token string, present bool, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token = c.Query("token")
		return token, token != "", true
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false, false
	}
	return parts[1], true, true
}

// sessionID returns the caller's session id, minting one when none or an
// unparseable one was sent.
func (m *OwnerMiddleware) sessionID(c *gin.Context) (string, bool) {
	candidates := []string{c.GetHeader(SessionHeader), c.Query("session")}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		candidates = append(candidates, cookie)
	}
	for _, candidate := range candidates {
		if id, err := uuid.Parse(strings.TrimSpace(candidate)); err == nil {
			return id.String(), false
		}
	}
	return uuid.NewString(), true
}

// GetCartOwner extracts the owner set by ResolveOwner.
func GetCartOwner(c *gin.Context) (string, bool) {
	owner := c.GetString(CartOwnerKey)
	return owner, owner != ""
}

// GetUserID extracts the signed-in user id, if any.
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}
