package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const (
	UserSessionKey = "user"
	claimUserID    = "uid"
	claimEmail     = "email"
)

var ErrNoSecret = errors.New("token secret not configured")

// IssueToken signs an HS256 token for the user, valid for ttl
func IssueToken(secret string, userID int64, email string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       strconv.FormatInt(userID, 10),
		claimUserID: strconv.FormatInt(userID, 10),
		claimEmail:  email,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies a signed token and returns it
func ParseToken(secret, raw string) (*jwt.Token, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

func jwtConfig(secret string, optional bool) echojwt.Config {
	return echojwt.Config{
		ContextKey: UserSessionKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ParseToken(secret, auth)
		},
		ContinueOnIgnoredError: optional,
		ErrorHandler: func(c echo.Context, err error) error {
			if optional {
				return nil
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		},
	}
}

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(secret, false))
}

// OptionalAuth identifies the caller when a valid token is present
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(secret, true))
}

// CurrentUserID returns the authenticated user id, 0 for anonymous requests
func CurrentUserID(c echo.Context) int64 {
	token, ok := c.Get(UserSessionKey).(*jwt.Token)
	if !ok || token == nil {
		return 0
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0
	}
	uid, _ := claims[claimUserID].(string)
	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CurrentUserEmail returns the email claim of the authenticated user
func CurrentUserEmail(c echo.Context) string {
	token, ok := c.Get(UserSessionKey).(*jwt.Token)
	if !ok || token == nil {
		return ""
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	email, _ := claims[claimEmail].(string)
	return email
}
