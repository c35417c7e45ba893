package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/internal/testgen"
	"github.com/taletunes/taletunes/pkg/binder"
	"github.com/taletunes/taletunes/pkg/errcodes"
	"github.com/taletunes/taletunes/pkg/models"
	"github.com/uptrace/bun"
	"golang.org/x/oauth2"
)

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	return e
}

func newTestContext(t *testing.T, payload, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	return newTestEcho(t).NewContext(req, rr), rr
}

func newTestHandler(db *bun.DB) *handler {
	return &handler{
		authService: NewService(db, "test-secret"),
		frontendURL: "http://frontend.test",
	}
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == CookieName {
			return cookie
		}
	}
	require.FailNow(t, "session cookie not set")
	return nil
}

func TestHandler_Register(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)

	payload := `{"name":"Ada Lovelace","username":"ada","email":" Ada@Example.com ","password":"longpassword"}`
	c, rr := newTestContext(t, payload, http.MethodPost, "/auth/register")

	err := h.register(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rr.Code)

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ada", body["username"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	claims, err := h.authService.ValidateToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, int(body["id"].(float64)), claims.UserID)
}

func TestHandler_Register_Conflicts(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	testgen.CreateUser(t, db, "taken")

	tests := []struct {
		name    string
		payload string
		message string
	}{
		{
			name:    "username",
			payload: `{"name":"A","username":"TAKEN","email":"new@example.com","password":"longpassword"}`,
			message: "The username has already been taken.",
		},
		{
			name:    "email",
			payload: `{"name":"A","username":"fresh","email":"taken@example.com","password":"longpassword"}`,
			message: "The email has already been taken.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(t, tt.payload, http.MethodPost, "/auth/register")

			err := h.register(c)
			require.Error(t, err)
			var codeErr *errcodes.Error
			require.ErrorAs(t, err, &codeErr)
			assert.Equal(t, http.StatusConflict, codeErr.HTTPCode)
			assert.Equal(t, tt.message, codeErr.Message)
		})
	}
}

func TestHandler_Register_Validation(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)

	payload := `{"name":"A","username":"ab","email":"a@example.com","password":"longpassword"}`
	c, _ := newTestContext(t, payload, http.MethodPost, "/auth/register")

	err := h.register(c)
	require.Error(t, err)
	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, http.StatusUnprocessableEntity, codeErr.HTTPCode)
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	user := testgen.CreateUser(t, db, "reader")

	tests := []struct {
		name  string
		login string
	}{
		{"username", "reader"},
		{"username case-insensitive", "READER"},
		{"email", "reader@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"login":"` + tt.login + `","password":"` + testgen.Password + `"}`
			c, rr := newTestContext(t, payload, http.MethodPost, "/auth/login")

			err := h.login(c)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rr.Code)

			claims, err := h.authService.ValidateToken(sessionCookie(t, rr).Value)
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.UserID)
		})
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	testgen.CreateUser(t, db, "reader")

	for _, payload := range []string{
		`{"login":"reader","password":"wrongpassword"}`,
		`{"login":"nobody","password":"password123"}`,
	} {
		c, rr := newTestContext(t, payload, http.MethodPost, "/auth/login")

		err := h.login(c)
		require.Error(t, err)
		var codeErr *errcodes.Error
		require.ErrorAs(t, err, &codeErr)
		assert.Equal(t, "These credentials do not match our records.", codeErr.Message)
		assert.Empty(t, rr.Result().Cookies())
	}
}

func TestHandler_Logout_ClearsCookie(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)

	c, rr := newTestContext(t, "", http.MethodPost, "/auth/logout")

	err := h.logout(c)
	require.NoError(t, err)

	cookie := sessionCookie(t, rr)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestHandler_Me(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	user := testgen.CreateUser(t, db, "reader")

	c, rr := newTestContext(t, "", http.MethodGet, "/auth/me")
	c.Set("user", user)

	err := h.me(c)
	require.NoError(t, err)
	assert.Contains(t, rr.Body.String(), `"email":"reader@example.com"`)
	assert.Contains(t, rr.Body.String(), `"has_google":false`)
}

func TestHandler_GoogleRedirect_Disabled(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)

	c, _ := newTestContext(t, "", http.MethodGet, "/auth/google/redirect")

	err := h.googleRedirect(c)
	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, http.StatusNotFound, codeErr.HTTPCode)
}

// newFakeGoogle serves the token and userinfo endpoints of the Google flow.
func newFakeGoogle(t *testing.T, profile GoogleProfile) *GoogleProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fake-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fake-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://api.test/auth/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/auth",
				TokenURL: srv.URL + "/token",
			},
		},
		userInfoURL: srv.URL + "/userinfo",
	}
}

func TestHandler_GoogleFlow(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	h.google = newFakeGoogle(t, GoogleProfile{
		ID:     "google-1",
		Email:  "jane@example.com",
		Name:   "Jane O'Doe",
		Avatar: "http://avatars.test/jane.png",
	})

	c, rr := newTestContext(t, "", http.MethodGet, "/auth/google/redirect")
	require.NoError(t, h.googleRedirect(c))
	assert.Equal(t, http.StatusFound, rr.Code)

	var state *http.Cookie
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == stateCookieName {
			state = cookie
		}
	}
	require.NotNil(t, state)
	location, err := url.Parse(rr.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, state.Value, location.Query().Get("state"))

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state="+url.QueryEscape(state.Value), nil)
	req.AddCookie(state)
	rr = httptest.NewRecorder()
	c = newTestEcho(t).NewContext(req, rr)

	require.NoError(t, h.googleCallback(c))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "http://frontend.test/dashboard", rr.Header().Get(echo.HeaderLocation))

	claims, err := h.authService.ValidateToken(sessionCookie(t, rr).Value)
	require.NoError(t, err)
	user, err := h.authService.GetUserByID(c.Request().Context(), claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, "janeodoe", user.Username)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-1", *user.GoogleID)
	assert.Nil(t, user.PasswordHash)
}

func TestHandler_GoogleCallback_StateMismatch(t *testing.T) {
	t.Parallel()
	db := testgen.NewDB(t)
	h := newTestHandler(db)
	h.google = newFakeGoogle(t, GoogleProfile{ID: "1", Email: "x@example.com", Name: "X"})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "real"})
	rr := httptest.NewRecorder()
	c := newTestEcho(t).NewContext(req, rr)

	require.NoError(t, h.googleCallback(c))
	assert.Equal(t, "http://frontend.test/login?error=google_auth_failed", rr.Header().Get(echo.HeaderLocation))

	count, err := db.NewSelect().Model((*models.User)(nil)).Count(c.Request().Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}
