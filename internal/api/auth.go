package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the bearer token claims issued to renters and operators.
type Claims struct {
	UserId string          `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// IssueToken signs an HS256 access token for user.
func IssueToken(cfg models.AuthConfig, user models.User, now time.Time) (string, error) {
	if cfg.JwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	claims := Claims{
		UserId: user.Id,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Id,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JwtSecret))
}

func ParseToken(cfg models.AuthConfig, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JwtSecret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserId == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthRequired validates the bearer token and attaches the caller as the
// request actor.
func AuthRequired(cfg models.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "invalid authorization format")
			return
		}
		claims, err := ParseToken(cfg, parts[1])
		if err != nil {
			abortWithStatus(c, http.StatusUnauthorized, store.KindAuth, "invalid or expired token")
			return
		}

		actor := models.ActorFromContext(c.Request.Context())
		actor.UserId = claims.UserId
		actor.Role = claims.Role
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), actor))
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireRole lets the request through only for the allowed roles.
func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.ActorFromContext(c.Request.Context()).Role
		for _, a := range allowed {
			if role == a {
				c.Next()
				return
			}
		}
		abortWithStatus(c, http.StatusForbidden, store.KindAuth, "forbidden")
	}
}

func currentUserId(c *gin.Context) string {
	return models.ActorFromContext(c.Request.Context()).UserId
}
