package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/concierge-api/internal/domain"
	"github.com/concierge-api/internal/pkg/id"
)

// Visa document categories accepted by the upload flow.
var allowedCategories = map[string]bool{
	"passport":       true,
	"photo":          true,
	"bank_statement": true,
	"itinerary":      true,
	"other":          true,
}

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	Category    string
	OwnerID     string
}

type Service interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Document, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Document, error)
	Download(ctx context.Context, documentID, requesterID string, isAdmin bool) (io.ReadCloser, *domain.Document, error)
	Delete(ctx context.Context, documentID, requesterID string, isAdmin bool) error
}

type documentStore interface {
	Put(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, documentID string) (*domain.Document, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Document, error)
	SoftDelete(ctx context.Context, documentID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	objects objectStore
	repo    documentStore
}

func NewService(objects objectStore, repo documentStore) Service {
	return &service{objects: objects, repo: repo}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	if !allowedCategories[input.Category] {
		return nil, fmt.Errorf("unknown document category %q: %w", input.Category, domain.ErrBadRequest)
	}
	safeName := sanitizeFilename(input.Filename)
	key := fmt.Sprintf("documents/%s/%s-%s", input.OwnerID, id.New(), safeName)

	hasher := sha256.New()
	tee := io.TeeReader(input.Reader, hasher)
	if _, err := s.objects.Upload(ctx, key, tee, input.ContentType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &domain.Document{
		DocumentID:  id.New(),
		Object:      key,
		Name:        safeName,
		Type:        input.ContentType,
		Size:        input.Size,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
		Category:    input.Category,
		OwnerUserID: input.OwnerID,
		Enable:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) ListByOwner(ctx context.Context, userID string) ([]domain.Document, error) {
	docs, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := docs[:0]
	for _, d := range docs {
		if d.Enable {
			active = append(active, d)
		}
	}
	return active, nil
}

func (s *service) Download(ctx context.Context, documentID, requesterID string, isAdmin bool) (io.ReadCloser, *domain.Document, error) {
	d, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if !d.Enable {
		return nil, nil, fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	if d.OwnerUserID != requesterID && !isAdmin {
		return nil, nil, fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	rc, err := s.objects.Download(ctx, d.Object)
	if err != nil {
		return nil, nil, err
	}
	return rc, d, nil
}

func (s *service) Delete(ctx context.Context, documentID, requesterID string, isAdmin bool) error {
	d, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if !d.Enable {
		return fmt.Errorf("document not found: %w", domain.ErrNotFound)
	}
	if d.OwnerUserID != requesterID && !isAdmin {
		return fmt.Errorf("access denied: %w", domain.ErrForbidden)
	}
	if err := s.objects.Delete(ctx, d.Object); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, documentID)
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) to prevent path traversal in S3 keys.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." {
		return result
	}
	return "_"
}
