package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/refundengine/internal/infrastructure/auth"
)

const (
	jwtClaimsKey = "jwt_claims"
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireApproverAuth validates the bearer token on approver-facing routes
// and stores the resulting claims in the gin context, mirroring the
// teacher's JWTAuthMiddleware skip-path/bearer-extraction shape but without
// the tenant/blacklist machinery this domain has no use for.
func RequireApproverAuth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "ERR_UNAUTHORIZED", "message": "missing bearer token"}})
			return
		}
		tokenString := strings.TrimPrefix(header, bearerPrefix)
		claims, err := svc.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "ERR_UNAUTHORIZED", "message": err.Error()}})
			return
		}
		c.Set(jwtClaimsKey, claims)
		c.Next()
	}
}

// GetApproverClaims returns the claims set by RequireApproverAuth, or nil.
func GetApproverClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(jwtClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
