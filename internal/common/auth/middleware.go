// internal/common/auth/middleware.go
package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "placement-backend/internal/common/errors"
)

const (
	ContextUserID    = "userId"
	ContextCompanyID = "companyId"
	ContextRole      = "role"
)

// Middleware validates the bearer token and stores the acting user's id,
// role, and company association in the request context.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"code": "UNAUTHORIZED", "message": "missing authorization header"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, gin.H{"code": "UNAUTHORIZED", "message": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"code": "UNAUTHORIZED", "message": "invalid claims"})
			return
		}

		if userID, ok := claims["userId"].(float64); ok {
			c.Set(ContextUserID, int64(userID))
		}
		if companyID, ok := claims["companyId"].(float64); ok {
			c.Set(ContextCompanyID, int64(companyID))
		}
		if role, ok := claims["role"].(string); ok {
			c.Set(ContextRole, role)
		}

		c.Next()
	}
}

// CompanyID returns the acting user's company association, or a Forbidden
// error when the token carries none. Company-scoped endpoints call this
// before touching the ledger or search.
func CompanyID(c *gin.Context) (int64, error) {
	v, exists := c.Get(ContextCompanyID)
	if !exists {
		return 0, apperrors.NewForbiddenError("token carries no company association")
	}
	companyID, ok := v.(int64)
	if !ok || companyID == 0 {
		return 0, apperrors.NewForbiddenError("token carries no company association")
	}
	return companyID, nil
}
