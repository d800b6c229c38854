package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mybuddy/internal/config"
	"mybuddy/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret []byte
	appEnv    string
)

// InitMiddleware initializes the authentication and rate limiting middleware with the given config.
func InitMiddleware(c *config.Config) {
	jwtSecret = []byte(c.JWTSecret)
	appEnv = c.Env
}

// GenerateToken signs an HS256 token whose subject is userID.
func GenerateToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates tokenString and returns the user ID carried in its subject.
func ParseToken(secret []byte, tokenString string) (uint, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return 0, errors.New("missing subject")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, errors.New("invalid user ID in token")
	}
	return uint(userID), nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("Invalid authorization header format")
	}
	return parts[1], nil
}

func authenticate(c *fiber.Ctx, token string) error {
	userID, err := ParseToken(jwtSecret, token)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired token"))
	}
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
	return c.Next()
}

// AuthRequired enforces a valid bearer token and stores the user ID in c.Locals("userID").
func AuthRequired(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
	}
	return authenticate(c, token)
}

// WebSocketAuthRequired accepts the token from the "token" query parameter
// before falling back to the Authorization header, since browsers cannot set
// headers on a WebSocket upgrade.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var err error
		if token, err = bearerToken(c); err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Token required"))
		}
	}
	return authenticate(c, token)
}
