package login

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	websess "github.com/dirgate/dirgate/internal/web/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open sqlite in-memory db")

	err = db.AutoMigrate(&models.User{}, &models.Group{}, &models.UserGroup{})
	require.NoError(t, err, "failed to migrate models")

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		DevMode: false,
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config, db *gorm.DB) (*fiber.App, *Service) {
	t.Helper()

	manager, err := auth.NewManagerBuilder().
		AuthenticationProvider(auth.NewLocalProvider(db)).
		Build()
	require.NoError(t, err)

	app := fiber.New()
	websess.Init()

	var s Service

	err = s.Init(app, cfg, manager, auth.NewService(db))
	require.NoError(t, err)

	return app, &s
}

func performLogin(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err, "app.Test failed")

	return resp
}

func TestPost_Success_SetsCookieAndReturnsPrincipal(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = false // Secure cookie expected

	app, _ := newTestService(t, cfg, db)

	lp := auth.NewLocalProvider(db)
	_, err := lp.CreateUser("bob", "bob@example.com", "s3cr3t", "Bob Doe")
	require.NoError(t, err, "failed to create user")

	resp := performLogin(t, app, `{"username":"bob","password":"s3cr3t"}`)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "bob", body.Username)

	setCookie := resp.Header.Get("Set-Cookie")
	assert.Contains(t, setCookie, "session=")
	assert.Contains(t, strings.ToLower(setCookie), "secure")
}

func TestPost_DevModeDisablesSecure(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = true // Secure=false expected

	app, _ := newTestService(t, cfg, db)

	lp := auth.NewLocalProvider(db)
	_, err := lp.CreateUser("carol", "carol@example.com", "pass", "Carol Doe")
	require.NoError(t, err, "failed to create user")

	resp := performLogin(t, app, `{"username":"carol","password":"pass"}`)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	setCookie := resp.Header.Get("Set-Cookie")
	assert.NotContains(t, strings.ToLower(setCookie), "secure")
}

func TestPost_WrongPassword_Unauthorized(t *testing.T) {
	db := newTestDB(t)
	app, _ := newTestService(t, newTestConfig(), db)

	lp := auth.NewLocalProvider(db)
	_, err := lp.CreateUser("alice", "alice@example.com", "secret", "Alice Doe")
	require.NoError(t, err)

	resp := performLogin(t, app, `{"username":"alice","password":"wrong"}`)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bodyBytes, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(bodyBytes), ErrInvalidCredentials.Error())
}

func TestPost_UnknownUser_Unauthorized(t *testing.T) {
	db := newTestDB(t)
	app, _ := newTestService(t, newTestConfig(), db)

	resp := performLogin(t, app, `{"username":"nobody","password":"whatever"}`)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPost_MalformedBody_BadRequest(t *testing.T) {
	db := newTestDB(t)
	app, _ := newTestService(t, newTestConfig(), db)

	resp := performLogin(t, app, `{`)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bodyBytes, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(bodyBytes), ErrInvalidFormData.Error())
}

func TestPost_MissingFields_BadRequest(t *testing.T) {
	db := newTestDB(t)
	app, _ := newTestService(t, newTestConfig(), db)

	resp := performLogin(t, app, `{"username":"alice"}`)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
