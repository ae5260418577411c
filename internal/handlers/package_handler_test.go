package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/importer"
	"github.com/archaur/archaur/internal/logger"
	"github.com/archaur/archaur/internal/middleware"
	"github.com/archaur/archaur/internal/models"
	"github.com/archaur/archaur/internal/repository"
	"github.com/archaur/archaur/internal/service"
)

type fakePackages struct {
	pkgs    map[string]*models.Package
	deleted []string
}

func (f *fakePackages) Search(ctx context.Context, filter models.PackageFilter) (*service.SearchResult, error) {
	return &service.SearchResult{}, nil
}

func (f *fakePackages) Get(ctx context.Context, name string) (*models.Package, error) {
	pkg, ok := f.pkgs[name]
	if !ok {
		return nil, repository.ErrPackageNotFound
	}
	return pkg, nil
}

func (f *fakePackages) Submit(ctx context.Context, req importer.ImportRequest) (string, error) {
	return "", nil
}

func (f *fakePackages) Delete(ctx context.Context, name string) error {
	if _, ok := f.pkgs[name]; !ok {
		return repository.ErrPackageNotFound
	}
	delete(f.pkgs, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakePackages) FlagOutdated(ctx context.Context, name string, outdated bool) error {
	return nil
}

func (f *fakePackages) Comments(ctx context.Context, name string) ([]models.Comment, error) {
	return nil, nil
}

func (f *fakePackages) Comment(ctx context.Context, name string, userID uuid.UUID, body string) (*models.Comment, error) {
	return &models.Comment{}, nil
}

func (f *fakePackages) Vote(ctx context.Context, name string, userID uuid.UUID, up bool) error {
	return nil
}

func (f *fakePackages) Subscribe(ctx context.Context, name string, userID uuid.UUID, on bool) error {
	return nil
}

func testLog() *logger.Logger {
	log := logger.New()
	log.SetOutput(io.Discard)
	return log
}

func newPackageRouter(fake *fakePackages, auth *middleware.JWTAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPackageHandler(fake, auth, middleware.NewRateLimiter(100, 100), 1<<20, testLog())
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestDelete_MaintainerOnly(t *testing.T) {
	auth := middleware.NewJWTAuth("test-secret")
	maintainer := models.User{ID: uuid.New(), Username: "alice"}
	stranger := models.User{ID: uuid.New(), Username: "mallory"}

	newFake := func() *fakePackages {
		return &fakePackages{pkgs: map[string]*models.Package{
			"demo": {Name: "demo", Maintainers: []models.User{maintainer}},
		}}
	}

	doDelete := func(r *gin.Engine, u models.User) *httptest.ResponseRecorder {
		token, err := auth.IssueToken(u, time.Hour)
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/packages/demo", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("maintainer can delete", func(t *testing.T) {
		fake := newFake()
		w := doDelete(newPackageRouter(fake, auth), maintainer)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
		}
		if len(fake.deleted) != 1 || fake.deleted[0] != "demo" {
			t.Errorf("deleted = %v, want [demo]", fake.deleted)
		}
	})

	t.Run("other users get 403", func(t *testing.T) {
		fake := newFake()
		w := doDelete(newPackageRouter(fake, auth), stranger)
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403 (body: %s)", w.Code, w.Body.String())
		}
		if len(fake.deleted) != 0 {
			t.Errorf("package was deleted by a non-maintainer: %v", fake.deleted)
		}
	})

	t.Run("anonymous requests get 401", func(t *testing.T) {
		fake := newFake()
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/packages/demo", nil)
		w := httptest.NewRecorder()
		newPackageRouter(fake, auth).ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if len(fake.deleted) != 0 {
			t.Errorf("package was deleted anonymously: %v", fake.deleted)
		}
	})

	t.Run("missing package is 404 before the maintainer check", func(t *testing.T) {
		fake := &fakePackages{pkgs: map[string]*models.Package{}}
		w := doDelete(newPackageRouter(fake, auth), maintainer)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
	})
}
