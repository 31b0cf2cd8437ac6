package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/Tomlord1122/family-todo/internal/apperr"
	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/domain"
)

// sniffLen is how many leading bytes http.DetectContentType considers.
const sniffLen = 512

// AssetStore is the binary object store the asset service writes through.
type AssetStore interface {
	Put(ctx context.Context, up assets.Upload) (domain.Asset, error)
	Open(ctx context.Context, id uuid.UUID) (*assets.Object, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Unreferenced(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

var _ AssetStore = (*assets.Store)(nil)

// ImageOwner is a record that holds at most one image reference.
type ImageOwner interface {
	CurrentImage() *uuid.UUID
	SaveImage(ctx context.Context, id *uuid.UUID) error
}

// AssetService uploads, serves and garbage-collects images.
type AssetService interface {
	Upload(ctx context.Context, up assets.Upload) (domain.Asset, error)

	// ReplaceOnOwner stores up and points owner at it. The previous image is
	// deleted only once the owner references the new one; a failed delete is
	// logged and left for Sweep.
	ReplaceOnOwner(ctx context.Context, owner ImageOwner, up assets.Upload) (uuid.UUID, error)

	// Discard deletes an asset that is no longer referenced. Best-effort.
	Discard(ctx context.Context, id *uuid.UUID)

	URLFor(id *uuid.UUID) string

	Open(ctx context.Context, id uuid.UUID) (*assets.Object, error)

	// Sweep deletes unreferenced assets older than the grace period and
	// reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type assetService struct {
	store      AssetStore
	defaultURL string
	grace      time.Duration
	now        func() time.Time
}

func NewAssetService(store AssetStore, defaultURL string, grace time.Duration) AssetService {
	return &assetService{
		store:      store,
		defaultURL: defaultURL,
		grace:      grace,
		now:        time.Now,
	}
}

func (s *assetService) Upload(ctx context.Context, up assets.Upload) (domain.Asset, error) {
	if up.Body == nil {
		return domain.Asset{}, apperr.Validation("image is required")
	}

	br := bufio.NewReaderSize(up.Body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.Asset{}, uploadReadError(err)
	}
	if len(head) == 0 {
		return domain.Asset{}, apperr.Validation("image is empty")
	}

	contentType, err := imageContentType(up.ContentType, head)
	if err != nil {
		return domain.Asset{}, err
	}

	asset, err := s.store.Put(ctx, assets.Upload{
		Body:        br,
		ContentType: contentType,
		Filename:    cleanFilename(up.Filename),
	})
	if err != nil {
		if errors.Is(err, assets.ErrEmpty) {
			return domain.Asset{}, apperr.Validation("image is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Asset{}, uploadReadError(tooLarge)
		}
		log.Error("store asset", "filename", up.Filename, "err", err)
		return domain.Asset{}, apperr.Store("failed to store image", err)
	}
	return asset, nil
}

func (s *assetService) ReplaceOnOwner(ctx context.Context, owner ImageOwner, up assets.Upload) (uuid.UUID, error) {
	previous := owner.CurrentImage()

	asset, err := s.Upload(ctx, up)
	if err != nil {
		return uuid.Nil, err
	}

	id := asset.ID
	if err := owner.SaveImage(ctx, &id); err != nil {
		s.Discard(ctx, &id)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return uuid.Nil, appErr
		}
		return uuid.Nil, apperr.Store("failed to save image reference", err)
	}

	// The owner no longer points at the previous image.
	s.Discard(ctx, previous)
	return id, nil
}

func (s *assetService) Discard(ctx context.Context, id *uuid.UUID) {
	if id == nil {
		return
	}
	if err := s.store.Delete(ctx, *id); err != nil && !errors.Is(err, assets.ErrNotFound) {
		log.Warn("delete asset", "asset", *id, "err", err)
	}
}

func (s *assetService) URLFor(id *uuid.UUID) string {
	if id == nil {
		return s.defaultURL
	}
	return "/images/" + id.String()
}

func (s *assetService) Open(ctx context.Context, id uuid.UUID) (*assets.Object, error) {
	obj, err := s.store.Open(ctx, id)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			return nil, apperr.NotFound("image %s not found", id)
		}
		log.Error("open asset", "asset", id, "err", err)
		return nil, apperr.Store("failed to read image", err)
	}
	return obj, nil
}

func (s *assetService) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.Unreferenced(ctx, s.now().Add(-s.grace))
	if err != nil {
		return 0, apperr.Store("failed to list unreferenced images", err)
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		err := s.store.Delete(ctx, id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, assets.ErrNotFound):
		default:
			log.Warn("sweep asset", "asset", id, "err", err)
		}
	}
	return removed, nil
}

// scriptableImageTypes can carry markup that a browser would execute.
var scriptableImageTypes = map[string]bool{
	"image/svg+xml": true,
}

// imageContentType prefers a declared image/* type and falls back to sniffing.
func imageContentType(declared string, head []byte) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
		if scriptableImageTypes[mediaType] {
			return "", apperr.Validation("%s images are not supported", mediaType)
		}
		return mediaType, nil
	}
	sniffed := http.DetectContentType(head)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	return "", apperr.Validation("only image uploads are supported")
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("image exceeds the %d byte limit", tooLarge.Limit)
	}
	return apperr.Wrap(apperr.KindValidation, "failed to read image", err)
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
