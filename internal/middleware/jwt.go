package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/division-console/internal/models"
	"github.com/noah-isme/division-console/pkg/credentials"
	appErrors "github.com/noah-isme/division-console/pkg/errors"
	"github.com/noah-isme/division-console/pkg/response"
)

// ContextClaimsKey is the gin context key storing verified token claims.
const ContextClaimsKey = "sessionClaims"

type tokenVerifier interface {
	Verify(token string) (*models.SessionClaims, error)
}

// Bearer requires an access token and attaches it to the request context so gateway calls
// made on behalf of the caller, now or later by the deletion worker, carry it upstream.
// allowQuery accepts ?token= for clients that cannot set headers, such as browser websockets.
func Bearer(verifier tokenVerifier, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c, allowQuery)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if claims != nil {
			c.Set(ContextClaimsKey, claims)
		}
		c.Request = c.Request.WithContext(credentials.WithBearer(c.Request.Context(), token))
		c.Next()
	}
}

// ClaimsFromContext returns verified claims, or nil when tokens are opaque.
func ClaimsFromContext(c *gin.Context) *models.SessionClaims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.SessionClaims)
	return claims
}

func extractToken(c *gin.Context, allowQuery bool) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if allowQuery {
			if token := strings.TrimSpace(c.Query("token")); token != "" {
				return token, nil
			}
		}
		return "", appErrors.ErrUnauthorized
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
