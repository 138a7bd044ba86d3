package middleware

import (
	"context"
	"fmt"
	"strings"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/logger"
	"creator-playbook/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const userContextKey = "user"

// SupabaseClaims is the payload of an access token issued by the hosted
// auth platform.
type SupabaseClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
}

// User is the signed-in visitor as seen by handlers. Role comes from the
// stored profile, never from the token.
type User struct {
	ID    string
	Email string
	Role  model.Role
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == model.RoleAdmin
}

// ProfileResolver loads (creating on first sight) the profile behind a token.
type ProfileResolver interface {
	EnsureProfile(ctx context.Context, userID, email string) (*model.Profile, error)
}

type Authenticator struct {
	secret   []byte
	issuer   string
	profiles ProfileResolver
}

func NewAuthenticator(jwtSecret, supabaseURL string, profiles ProfileResolver) *Authenticator {
	issuer := ""
	if supabaseURL != "" {
		issuer = strings.TrimRight(supabaseURL, "/") + "/auth/v1"
	}
	return &Authenticator{
		secret:   []byte(jwtSecret),
		issuer:   issuer,
		profiles: profiles,
	}
}

func (a *Authenticator) parse(tokenString string) (*SupabaseClaims, error) {
	claims := &SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, fmt.Errorf("invalid token issuer %q", claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func (a *Authenticator) authenticate(c echo.Context, tokenString string) error {
	claims, err := a.parse(tokenString)
	if err != nil {
		return err
	}

	profile, err := a.profiles.EnsureProfile(c.Request().Context(), claims.Subject, claims.Email)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}

	c.Set(userContextKey, &User{
		ID:    profile.ID,
		Email: profile.Email,
		Role:  profile.Role,
	})
	return nil
}

// OptionalAuth attaches the user when a valid bearer token is present and
// otherwise lets the request through as anonymous.
func (a *Authenticator) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := extractToken(c)
			if tokenString == "" {
				return next(c)
			}
			if err := a.authenticate(c, tokenString); err != nil {
				if _, ok := apperr.As(err); ok {
					return err
				}
				logger.Get().Debug("ignoring invalid token on public route", zap.Error(err))
			}
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous requests with AuthenticationRequired.
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := extractToken(c)
			if tokenString == "" {
				return apperr.AuthenticationRequired("sign in to continue")
			}
			if err := a.authenticate(c, tokenString); err != nil {
				if _, ok := apperr.As(err); ok {
					return err
				}
				logger.Get().Info("rejected token", zap.Error(err))
				return apperr.AuthenticationRequired("session expired, sign in again")
			}
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return apperr.AuthenticationRequired("sign in to continue")
			}
			if !user.IsAdmin() {
				return apperr.AuthorizationDenied("admin access required")
			}
			return next(c)
		}
	}
}

// CurrentUser returns the signed-in user, if any.
func CurrentUser(c echo.Context) (*User, bool) {
	user, ok := c.Get(userContextKey).(*User)
	return user, ok && user != nil
}

func extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
