package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cohortly/lms/core"
	"github.com/cohortly/lms/core/enrollment"
)

const (
	contextClaimsKey = "claims"
	bearerPrefix     = "Bearer "
)

var nowFunc = time.Now // mockable

// Claims are the auth provider's access token claims we rely on.
// The role lives in app_metadata, which only the provider (or a service key) can write.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

func (c Claims) Identity() core.Identity {
	role := c.AppMetadata.Role
	if role == "" {
		role = enrollment.RoleStudent
	}
	return core.Identity{ID: c.Subject, Email: c.Email, Role: role}
}

func isAdmin(id core.Identity) bool {
	return id.Role == enrollment.RoleAdmin
}

// NewClaims builds the claims of a token for id, valid for ttl. Used by tests and local tooling.
func NewClaims(conf *core.Config, id core.Identity, ttl time.Duration) *Claims {
	now := nowFunc()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:       id.Email,
		AppMetadata: AppMetadata{Role: id.Role},
	}
	if conf.Auth.Issuer != "" {
		claims.Issuer = conf.Auth.Issuer
	}
	if conf.Auth.Audience != "" {
		claims.Audience = jwt.ClaimStrings{conf.Auth.Audience}
	}
	return claims
}

// GenerateToken signs claims with the shared HS256 secret.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.Auth.JWTSecret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(nowFunc),
	}
	if conf.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(conf.Auth.Issuer))
	}
	if conf.Auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(conf.Auth.Audience))
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.Auth.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// jwtMiddleware authenticates the request with the provider access token in the Authorization header.
func jwtMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) || len(auth) == len(bearerPrefix) {
				return errMissingToken
			}
			claims, err := parseToken(conf, auth[len(bearerPrefix):])
			if err != nil {
				return &echo.HTTPError{Code: http.StatusUnauthorized, Message: errInvalidToken.Message, Internal: err}
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextIdentity(ctx echo.Context) (core.Identity, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Identity{}, err
	}
	return claims.Identity(), nil
}
