package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "taletunes_session"
	// CookieMaxAge is how long the cookie is valid.
	CookieMaxAge = 7 * 24 * time.Hour // 7 days

	stateCookieName   = "taletunes_oauth_state"
	stateCookieMaxAge = 10 * time.Minute
)

type handler struct {
	authService *Service
	google      *GoogleProvider
	frontendURL string
}

func (h *handler) register(c echo.Context) error {
	ctx := c.Request().Context()

	params := RegisterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Register(ctx, RegisterOptions{
		Name:     params.Name,
		Username: params.Username,
		Email:    params.Email,
		Password: params.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, user.Account()))
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Login, params.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, user.Account()))
}

func (h *handler) logout(c echo.Context) error {
	c.SetCookie(newCookie(c, CookieName, "", -1))
	return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"}))
}

// me returns the signed-in user's own account.
func (h *handler) me(c echo.Context) error {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errcodes.Unauthorized()
	}
	return errors.WithStack(c.JSON(http.StatusOK, user.Account()))
}

func (h *handler) googleRedirect(c echo.Context) error {
	if h.google == nil {
		return errcodes.NotFound("Google sign-in")
	}

	state, err := newState()
	if err != nil {
		return err
	}
	c.SetCookie(newCookie(c, stateCookieName, state, int(stateCookieMaxAge.Seconds())))

	return errors.WithStack(c.Redirect(http.StatusFound, h.google.AuthCodeURL(state)))
}

// googleCallback finishes the Google flow. Failures send the browser back to
// the login page instead of rendering an API error.
func (h *handler) googleCallback(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	if h.google == nil {
		return errcodes.NotFound("Google sign-in")
	}

	fail := func(err error) error {
		log.Err(err).Error("google authentication failed")
		return errors.WithStack(c.Redirect(http.StatusFound, h.frontendURL+"/login?error=google_auth_failed"))
	}

	cookie, err := c.Cookie(stateCookieName)
	c.SetCookie(newCookie(c, stateCookieName, "", -1))
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		return fail(errors.New("invalid state parameter"))
	}

	code := c.QueryParam("code")
	if code == "" {
		return fail(errors.Errorf("authorization failed: %s", c.QueryParam("error")))
	}

	profile, err := h.google.Profile(ctx, code)
	if err != nil {
		return fail(err)
	}

	user, err := h.authService.UpsertGoogleUser(ctx, profile)
	if err != nil {
		return fail(err)
	}
	log.Info("google sign-in", logger.Data{"user_id": user.ID, "username": user.Username})

	if err := h.startSession(c, user); err != nil {
		return fail(err)
	}

	return errors.WithStack(c.Redirect(http.StatusFound, h.frontendURL+"/dashboard"))
}

func (h *handler) startSession(c echo.Context, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}
	c.SetCookie(newCookie(c, CookieName, token, int(CookieMaxAge.Seconds())))
	return nil
}

// newCookie builds an HTTP-only cookie. A negative maxAge clears it.
func newCookie(c echo.Context, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
}
