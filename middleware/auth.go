package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/services"
	"research-showcase-api/utils"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextActor  = "actor"
)

type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for user valid for ttl.
func GenerateToken(user *models.User, secret string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	claims := Claims{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "research-showcase-api",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// AuthMiddleware validates the bearer token and resolves the acting user.
// The role comes from the stored user, not from the token, so a demotion
// takes effect immediately.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithCode(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortWithCode(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid authorization header format")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortWithCode(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			abortWithCode(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid token claims")
			return
		}

		var user models.User
		if err := config.DB.WithContext(c.Request.Context()).Where("user_id = ?", claims.UserID).First(&user).Error; err != nil {
			abortWithCode(c, http.StatusUnauthorized, utils.CodeUnauthorized, "User not found")
			return
		}

		c.Set(ContextUserID, user.UserID)
		c.Set(ContextRole, user.Role)
		c.Set(ContextActor, services.ActorFromUser(user))
		c.Next()
	}
}

// RequireRole rejects requests whose user role is not in roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ContextRole)
		role, ok := v.(models.Role)
		if !exists || !ok {
			abortWithCode(c, http.StatusForbidden, utils.CodeForbidden, "Role not found")
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		abortWithCode(c, http.StatusForbidden, utils.CodeForbidden, "Insufficient permissions")
	}
}

// ActorFrom returns the actor resolved by AuthMiddleware.
func ActorFrom(c *gin.Context) (services.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return services.Actor{}, false
	}
	actor, ok := v.(services.Actor)
	return actor, ok
}

func abortWithCode(c *gin.Context, status int, code utils.Code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}
