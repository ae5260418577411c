// Package handlers exposes the HTTP API with gin.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/archive"
	"github.com/archaur/archaur/internal/importer"
	"github.com/archaur/archaur/internal/logger"
	"github.com/archaur/archaur/internal/middleware"
	"github.com/archaur/archaur/internal/models"
	"github.com/archaur/archaur/internal/pkgbuild"
	"github.com/archaur/archaur/internal/service"
	"github.com/archaur/archaur/internal/validation"
)

// PackageService is the service surface the package handler depends on.
type PackageService interface {
	Search(ctx context.Context, f models.PackageFilter) (*service.SearchResult, error)
	Get(ctx context.Context, name string) (*models.Package, error)
	Submit(ctx context.Context, req importer.ImportRequest) (string, error)
	Delete(ctx context.Context, name string) error
	FlagOutdated(ctx context.Context, name string, outdated bool) error
	Comments(ctx context.Context, name string) ([]models.Comment, error)
	Comment(ctx context.Context, name string, userID uuid.UUID, body string) (*models.Comment, error)
	Vote(ctx context.Context, name string, userID uuid.UUID, up bool) error
	Subscribe(ctx context.Context, name string, userID uuid.UUID, on bool) error
}

// PackageHandler serves the package API: search, info, upload, delete,
// plus the community actions around a package.
type PackageHandler struct {
	packages      PackageService
	auth          *middleware.JWTAuth
	uploadLimiter *middleware.RateLimiter
	maxUploadSize int64
	log           *logger.Logger
}

func NewPackageHandler(
	packages PackageService,
	auth *middleware.JWTAuth,
	uploadLimiter *middleware.RateLimiter,
	maxUploadSize int64,
	log *logger.Logger,
) *PackageHandler {
	return &PackageHandler{
		packages:      packages,
		auth:          auth,
		uploadLimiter: uploadLimiter,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// RegisterRoutes mounts the package routes on the API group.
func (h *PackageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pkgs := rg.Group("/packages")
	{
		pkgs.GET("", h.Search)
		pkgs.POST("", h.auth.RequireAuth(), h.uploadLimiter.Limit(), h.Upload)
		pkgs.GET("/:name", h.Get)
		pkgs.DELETE("/:name", h.auth.RequireAuth(), h.Delete)

		pkgs.GET("/:name/comments", h.ListComments)
		pkgs.POST("/:name/comments", h.auth.RequireAuth(), h.AddComment)

		pkgs.POST("/:name/vote", h.auth.RequireAuth(), h.Vote)
		pkgs.DELETE("/:name/vote", h.auth.RequireAuth(), h.Unvote)

		pkgs.POST("/:name/flag", h.auth.RequireAuth(), h.Flag)
		pkgs.DELETE("/:name/flag", h.auth.RequireAuth(), h.Unflag)

		pkgs.PUT("/:name/subscription", h.auth.RequireAuth(), h.Subscribe)
		pkgs.DELETE("/:name/subscription", h.auth.RequireAuth(), h.Unsubscribe)
	}
}

// Search handles GET /packages.
// Query parameters: q, repo (repeatable), arch (repeatable),
// maintainer, outdated, limit, offset.
func (h *PackageHandler) Search(c *gin.Context) {
	filter := models.PackageFilter{
		Query:         c.Query("q"),
		Repositories:  c.QueryArray("repo"),
		Architectures: c.QueryArray("arch"),
		Maintainer:    c.Query("maintainer"),
	}
	if v := c.Query("outdated"); v != "" {
		outdated := v == "true" || v == "1"
		filter.Outdated = &outdated
	}
	if v := c.Query("last_update"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.LastUpdate = t
		}
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	res, err := h.packages.Search(c.Request.Context(), filter)
	if err != nil {
		h.log.Errorf("search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /packages/:name.
func (h *PackageHandler) Get(c *gin.Context) {
	pkg, err := h.packages.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		h.log.Errorf("package lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// Upload handles POST /packages. The body is either a multipart form
// with a "package" file and a "repository" field, or a raw upload with
// the repository in a query parameter.
func (h *PackageHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	data, repo, err := h.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if repo == "" {
		repo = "unsupported"
	}
	if err := validation.ValidateRepositoryName(repo); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, err := h.packages.Submit(c.Request.Context(), importer.ImportRequest{
		Upload:     data,
		Repository: repo,
		UploaderID: userID,
	})
	if err != nil {
		h.writeImportError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name})
}

func (h *PackageHandler) readUpload(c *gin.Context) ([]byte, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	if file, err := c.FormFile("package"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", errors.New("failed to open uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", errors.New("failed to read uploaded file")
		}
		return data, c.PostForm("repository"), nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, "", errors.New("failed to read upload body")
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty upload")
	}
	return data, c.Query("repository"), nil
}

// writeImportError maps the import error taxonomy onto HTTP statuses.
// Validation problems return the complete report, not just the first
// issue.
func (h *PackageHandler) writeImportError(c *gin.Context, err error) {
	var verr *importer.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errors":   verr.Result.Errors,
			"warnings": verr.Result.Warnings,
		})
		return
	}

	var perr *pkgbuild.ParseError
	switch {
	case errors.Is(err, archive.ErrMissingPKGBUILD):
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive does not contain a PKGBUILD"})
	case errors.Is(err, archive.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
	case errors.As(err, &perr):
		c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
	default:
		h.log.Errorf("import failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
	}
}

// Delete handles DELETE /packages/:name. Only a maintainer of the
// package may delete it.
func (h *PackageHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	name := c.Param("name")

	pkg, err := h.packages.Get(c.Request.Context(), name)
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		h.log.Errorf("package lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if !pkg.MaintainedBy(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only a maintainer can delete this package"})
		return
	}

	if err := h.packages.Delete(c.Request.Context(), name); err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		h.log.Errorf("delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

// ListComments handles GET /packages/:name/comments.
func (h *PackageHandler) ListComments(c *gin.Context) {
	comments, err := h.packages.Comments(c.Request.Context(), c.Param("name"))
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list comments"})
		return
	}
	c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

// AddComment handles POST /packages/:name/comments.
func (h *PackageHandler) AddComment(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment body is required"})
		return
	}
	if err := validation.ValidateCommentBody(req.Body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.packages.Comment(c.Request.Context(), c.Param("name"), userID, req.Body)
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add comment"})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *PackageHandler) vote(c *gin.Context, up bool) {
	userID, _ := middleware.UserID(c)
	if err := h.packages.Vote(c.Request.Context(), c.Param("name"), userID, up); err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update vote"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PackageHandler) Vote(c *gin.Context)   { h.vote(c, true) }
func (h *PackageHandler) Unvote(c *gin.Context) { h.vote(c, false) }

func (h *PackageHandler) flag(c *gin.Context, outdated bool) {
	if err := h.packages.FlagOutdated(c.Request.Context(), c.Param("name"), outdated); err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update flag"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Flag marks a package out of date; Unflag clears the mark.
func (h *PackageHandler) Flag(c *gin.Context)   { h.flag(c, true) }
func (h *PackageHandler) Unflag(c *gin.Context) { h.flag(c, false) }

func (h *PackageHandler) subscribe(c *gin.Context, on bool) {
	userID, _ := middleware.UserID(c)
	if err := h.packages.Subscribe(c.Request.Context(), c.Param("name"), userID, on); err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update subscription"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PackageHandler) Subscribe(c *gin.Context)   { h.subscribe(c, true) }
func (h *PackageHandler) Unsubscribe(c *gin.Context) { h.subscribe(c, false) }
