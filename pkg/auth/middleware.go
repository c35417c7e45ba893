package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate resolves the session cookie into a user and stores it on the
// context under "user". Requests without a valid session get a 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := m.resolve(c)
		if user == nil {
			return errcodes.Unauthorized()
		}
		c.Set("user", user)
		return next(c)
	}
}

// AuthenticateOptional stores the user when a valid session is present and
// lets anonymous requests through.
func (m *Middleware) AuthenticateOptional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if user := m.resolve(c); user != nil {
			c.Set("user", user)
		}
		return next(c)
	}
}

func (m *Middleware) resolve(c echo.Context) *models.User {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := m.authService.ValidateToken(cookie.Value)
	if err != nil {
		return nil
	}

	// The account may have been deleted since the token was issued.
	user, err := m.authService.GetUserByID(c.Request().Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return user
}
