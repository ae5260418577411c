package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/middleware"
	"github.com/archaur/archaur/internal/models"
	"github.com/archaur/archaur/internal/repository"
)

type fakeUsers struct {
	byName map[string]*models.User
}

func (f *fakeUsers) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	if _, ok := f.byName[username]; ok {
		return nil, repository.ErrUsernameTaken
	}
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.byName[username] = u
	return u, nil
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func newAuthTestRouter(users *fakeUsers, auth *middleware.JWTAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewAuthHandler(users, auth, time.Hour, testLog()).RegisterRoutes(r.Group("/api/v1"))
	r.GET("/whoami", auth.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_RegisterAndToken(t *testing.T) {
	users := &fakeUsers{byName: map[string]*models.User{}}
	auth := middleware.NewJWTAuth("test-secret")
	r := newAuthTestRouter(users, auth)

	register := map[string]string{
		"username": "alice",
		"email":    "alice@example.org",
		"password": "correct horse",
	}
	if w := postJSON(t, r, "/api/v1/auth/register", register); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}
	if u := users.byName["alice"]; u == nil || u.PasswordHash == "correct horse" {
		t.Fatal("password was not hashed before storage")
	}

	t.Run("duplicate username conflicts", func(t *testing.T) {
		if w := postJSON(t, r, "/api/v1/auth/register", register); w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("issued token authenticates", func(t *testing.T) {
		w := postJSON(t, r, "/api/v1/auth/token", map[string]string{
			"username": "alice",
			"password": "correct horse",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("token status = %d, want 200 (body: %s)", w.Code, w.Body.String())
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
			t.Fatalf("bad token response: %s", w.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+resp.Token)
		got := httptest.NewRecorder()
		r.ServeHTTP(got, req)
		if got.Code != http.StatusNoContent {
			t.Errorf("whoami status = %d, want 204", got.Code)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		w := postJSON(t, r, "/api/v1/auth/token", map[string]string{
			"username": "alice",
			"password": "wrong horse",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("unknown user gets the same answer", func(t *testing.T) {
		w := postJSON(t, r, "/api/v1/auth/token", map[string]string{
			"username": "nobody",
			"password": "whatever12",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestAuth_RegisterValidation(t *testing.T) {
	users := &fakeUsers{byName: map[string]*models.User{}}
	r := newAuthTestRouter(users, middleware.NewJWTAuth("test-secret"))

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing fields", map[string]string{"username": "bob"}},
		{"bad username", map[string]string{"username": "Bob!", "email": "b@x.org", "password": "longenough"}},
		{"short password", map[string]string{"username": "bob", "email": "b@x.org", "password": "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := postJSON(t, r, "/api/v1/auth/register", tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}
