package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/LenPushai/erha-ops/backend/workflow-service/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware validates JWT tokens
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Authorization header required",
				Message: "Please provide a valid authorization token",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid authorization format",
				Message: "Authorization header must be in format 'Bearer <token>'",
			})
			c.Abort()
			return
		}

		tokenString := tokenParts[1]

		// Parse and validate token
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Server not configured",
				Message: "JWT secret missing",
			})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Invalid token",
				Message: "The provided token is invalid or expired",
			})
			c.Abort()
			return
		}

		// Extract claims
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("user_id", claims["user_id"])
			c.Set("email", claims["email"])
			if name, ok := claims["name"].(string); ok {
				c.Set("name", name)
			}
			if r, ok := claims["role"].(string); ok {
				c.Set("role", r)
			}
		}

		c.Next()
	}
}

// CallerIdentity extracts the staff identity recorded on every mutating
// operation: the display name when the token carries one, the email otherwise.
func CallerIdentity(c *gin.Context) (string, bool) {
	if name, exists := c.Get("name"); exists {
		if s, ok := name.(string); ok && s != "" {
			return s, true
		}
	}
	email, exists := c.Get("email")
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok && s != ""
}

// ManagerMiddleware ensures the user has the Manager role for approval endpoints
func ManagerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		role, _ := roleVal.(string)
		if !exists || role != "Manager" {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "Manager access required",
				Message: "Manager role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
