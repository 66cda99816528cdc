package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// contextKey is a custom type for echo context keys to avoid collisions.
type contextKey string

const authenticatedOwnerIDKey contextKey = "authenticated_owner_id"

var (
	// ErrMissingToken is returned when the Authorization header has no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoOwnerClaim is returned when a valid token names no owner.
	ErrNoOwnerClaim = errors.New("token has no id or sub claim")
)

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for secret. An empty secret returns nil,
// which selects local mode in Middleware.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// OwnerFromToken verifies raw and returns its owner id: the `id` claim, or
// `sub` when `id` is absent.
func (v *Verifier) OwnerFromToken(raw string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if id := claimString(claims, "id"); id != "" {
		return id, nil
	}
	if sub := claimString(claims, "sub"); sub != "" {
		return sub, nil
	}
	return "", ErrNoOwnerClaim
}

// Sign issues an HS256 token carrying owner as the `id` claim. Used by
// tests and by `reporover token`.
func (v *Verifier) Sign(owner string, extra jwt.MapClaims) (string, error) {
	claims := jwt.MapClaims{"id": owner}
	for k, val := range extra {
		claims[k] = val
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// claimString reads a claim that may be a string or a JSON number.
func claimString(claims jwt.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// Middleware authenticates every request and stores the owner id in the echo
// context.
//
// With a nil verifier every request belongs to LocalOwnerID. Otherwise the
// request must carry `Authorization: Bearer <token>`; failures return 401
// with a JSON {"message": ...} body.
func Middleware(v *Verifier) echo.MiddlewareFunc {
	local := ""
	if v == nil {
		local = LocalOwnerID()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if v == nil {
				c.Set(string(authenticatedOwnerIDKey), local)
				return next(c)
			}

			raw, err := bearerToken(c.Request())
			if err != nil {
				return unauthorized(c, "No token provided or invalid format.")
			}
			owner, err := v.OwnerFromToken(raw)
			if err != nil {
				c.Logger().Debugf("rejecting token: %v", err)
				return unauthorized(c, "Invalid Token or Session Expired.")
			}

			c.Set(string(authenticatedOwnerIDKey), owner)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"message": msg})
}

// OwnerID returns the owner set by Middleware, or "" when the request was
// not authenticated.
func OwnerID(c echo.Context) string {
	owner, _ := c.Get(string(authenticatedOwnerIDKey)).(string)
	return owner
}
