// Package service composes the repositories, importer, cache and mail
// into the operations the HTTP layer exposes.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/cache"
	"github.com/archaur/archaur/internal/importer"
	"github.com/archaur/archaur/internal/logger"
	"github.com/archaur/archaur/internal/models"
	"github.com/archaur/archaur/internal/repository"
)

// SearchResult is one page of search matches.
type SearchResult struct {
	Packages []models.Package `json:"packages"`
	Total    int              `json:"total"`
}

// BlobStore is the subset of the blob store the service needs for
// cleanup after deletes.
type BlobStore interface {
	Delete(ctx context.Context, name string) error
}

type PackageService struct {
	packages  *repository.PackageRepository
	community *repository.CommunityRepository
	importer  *importer.Importer
	blobs     BlobStore
	cache     *cache.Cache
	email     *EmailService
	cacheTTL  time.Duration
	log       *logger.Logger
}

func NewPackageService(
	packages *repository.PackageRepository,
	community *repository.CommunityRepository,
	imp *importer.Importer,
	blobs BlobStore,
	c *cache.Cache,
	email *EmailService,
	cacheTTL time.Duration,
	log *logger.Logger,
) *PackageService {
	return &PackageService{
		packages:  packages,
		community: community,
		importer:  imp,
		blobs:     blobs,
		cache:     c,
		email:     email,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

func searchKey(f models.PackageFilter) string {
	raw, _ := json.Marshal(f)
	return fmt.Sprintf("search:%x", sha256.Sum256(raw))
}

func packageKey(name string) string {
	return "package:" + name
}

// Search runs a filtered package search, served from cache when the
// same filter was queried recently.
func (s *PackageService) Search(ctx context.Context, f models.PackageFilter) (*SearchResult, error) {
	key := searchKey(f)
	if s.cache != nil {
		var cached SearchResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	pkgs, total, err := s.packages.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Packages: pkgs, Total: total}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.cacheTTL); err != nil {
			s.log.Warnf("failed to cache search result: %v", err)
		}
	}
	return res, nil
}

// Get loads one package with all related rows.
func (s *PackageService) Get(ctx context.Context, name string) (*models.Package, error) {
	if s.cache != nil {
		var cached models.Package
		if err := s.cache.Get(ctx, packageKey(name), &cached); err == nil {
			return &cached, nil
		}
	}

	pkg, err := s.packages.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, packageKey(name), pkg, s.cacheTTL); err != nil {
			s.log.Warnf("failed to cache package: %v", err)
		}
	}
	return pkg, nil
}

// Submit imports an upload, invalidates cached reads and notifies
// subscribers of the updated package.
func (s *PackageService) Submit(ctx context.Context, req importer.ImportRequest) (string, error) {
	name, err := s.importer.Import(ctx, req)
	if err != nil {
		return "", err
	}

	s.invalidate(ctx, name)

	recipients, err := s.community.SubscriberEmails(ctx, name)
	if err != nil {
		s.log.Warnf("failed to load subscribers for %s: %v", name, err)
	} else {
		pkg, err := s.packages.GetByName(ctx, name)
		version := ""
		if err == nil {
			version = pkg.FullVersion()
		}
		s.email.NotifyUpdated(name, version, recipients)
	}
	return name, nil
}

// Delete removes a package record, its stored blobs, and notifies
// subscribers.
func (s *PackageService) Delete(ctx context.Context, name string) error {
	recipients, err := s.community.SubscriberEmails(ctx, name)
	if err != nil {
		s.log.Warnf("failed to load subscribers for %s: %v", name, err)
	}

	blobs, err := s.packages.Delete(ctx, name)
	if err != nil {
		return err
	}
	for _, b := range blobs {
		if err := s.blobs.Delete(ctx, b); err != nil {
			s.log.WithField("blob", b).Warnf("failed to delete blob: %v", err)
		}
	}

	s.invalidate(ctx, name)
	s.email.NotifyDeleted(name, recipients)
	return nil
}

// FlagOutdated marks or unmarks a package as out of date.
func (s *PackageService) FlagOutdated(ctx context.Context, name string, outdated bool) error {
	if err := s.packages.SetOutdated(ctx, name, outdated); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

// Comment adds a comment to a package by name.
func (s *PackageService) Comment(ctx context.Context, name string, userID uuid.UUID, body string) (*models.Comment, error) {
	pkg, err := s.packages.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.community.AddComment(ctx, pkg.ID, userID, body)
}

// Comments lists a package's comments.
func (s *PackageService) Comments(ctx context.Context, name string) ([]models.Comment, error) {
	pkg, err := s.packages.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.community.ListComments(ctx, pkg.ID)
}

// Vote records or withdraws a user's vote.
func (s *PackageService) Vote(ctx context.Context, name string, userID uuid.UUID, up bool) error {
	pkg, err := s.packages.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if up {
		err = s.community.AddVote(ctx, pkg.ID, userID)
	} else {
		err = s.community.RemoveVote(ctx, pkg.ID, userID)
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

// Subscribe enrolls or removes a user from a package's notifications.
func (s *PackageService) Subscribe(ctx context.Context, name string, userID uuid.UUID, on bool) error {
	pkg, err := s.packages.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if on {
		return s.community.Subscribe(ctx, pkg.ID, userID)
	}
	return s.community.Unsubscribe(ctx, pkg.ID, userID)
}

// IsNotFound reports whether err means the package does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrPackageNotFound)
}

func (s *PackageService) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, packageKey(name)); err != nil {
		s.log.Warnf("failed to invalidate package cache: %v", err)
	}
	if err := s.cache.DeleteByPattern(ctx, "search:*"); err != nil {
		s.log.Warnf("failed to invalidate search cache: %v", err)
	}
}
