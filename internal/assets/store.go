// Package assets stores uploaded binary objects as Postgres large objects with
// a metadata row per object. An object becomes visible only once both the
// bytes and the row are committed.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tomlord1122/family-todo/internal/domain"
)

var (
	ErrNotFound = errors.New("asset not found")
	ErrEmpty    = errors.New("asset is empty")
)

// Upload is an incoming object. Body is read to EOF exactly once.
type Upload struct {
	Body        io.Reader
	ContentType string
	Filename    string
}

// Object is an open asset. Callers must Close it to release the underlying
// transaction.
type Object struct {
	domain.Asset
	io.Reader
	close func() error
}

func (o *Object) Close() error {
	if o.close == nil {
		return nil
	}
	err := o.close()
	o.close = nil
	return err
}

// Store persists assets through a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Put streams the upload into a new large object and records its metadata.
// The returned asset id is only produced after the transaction commits.
func (s *Store) Put(ctx context.Context, up Upload) (domain.Asset, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("begin asset tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	los := tx.LargeObjects()
	oid, err := los.Create(ctx, 0)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("create large object: %w", err)
	}
	obj, err := los.Open(ctx, oid, pgx.LargeObjectModeWrite)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("open large object: %w", err)
	}

	hash := sha256.New()
	size, err := io.Copy(obj, io.TeeReader(up.Body, hash))
	if err != nil {
		_ = obj.Close()
		return domain.Asset{}, fmt.Errorf("write large object: %w", err)
	}
	if err := obj.Close(); err != nil {
		return domain.Asset{}, fmt.Errorf("close large object: %w", err)
	}
	if size == 0 {
		return domain.Asset{}, ErrEmpty
	}

	asset := domain.Asset{
		ID:          uuid.New(),
		ObjectOID:   oid,
		ContentType: up.ContentType,
		Filename:    up.Filename,
		Size:        size,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
		CreatedAt:   s.now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO assets (id, object_oid, content_type, filename, size, sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		asset.ID, asset.ObjectOID, asset.ContentType, asset.Filename, asset.Size, asset.SHA256, asset.CreatedAt)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("insert asset row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Asset{}, fmt.Errorf("commit asset: %w", err)
	}
	return asset, nil
}

// Open starts a read-only transaction and returns a reader over the object's
// bytes. The transaction lives until the Object is closed.
func (s *Store) Open(ctx context.Context, id uuid.UUID) (*Object, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin asset read tx: %w", err)
	}

	asset, err := statAsset(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	los := tx.LargeObjects()
	obj, err := los.Open(ctx, asset.ObjectOID, pgx.LargeObjectModeRead)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("open large object: %w", err)
	}

	return &Object{
		Asset:  asset,
		Reader: obj,
		close: func() error {
			closeErr := obj.Close()
			// The context may already be cancelled when the response ends;
			// rollback on a fresh one so the connection returns to the pool.
			rbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				return err
			}
			return closeErr
		},
	}, nil
}

// Delete unlinks the large object and removes its metadata row.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin asset delete tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var oid uint32
	err = tx.QueryRow(ctx, `DELETE FROM assets WHERE id = $1 RETURNING object_oid`, id).Scan(&oid)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete asset row: %w", err)
	}
	los := tx.LargeObjects()
	if err := los.Unlink(ctx, oid); err != nil {
		return fmt.Errorf("unlink large object: %w", err)
	}
	return tx.Commit(ctx)
}

// Unreferenced lists assets created before cutoff that no account or child
// points at.
func (s *Store) Unreferenced(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id FROM assets a
		WHERE a.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM accounts u WHERE u.image_id = a.id)
		  AND NOT EXISTS (SELECT 1 FROM children c WHERE c.image_id = a.id)
		ORDER BY a.created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query unreferenced assets: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan unreferenced assets: %w", err)
	}
	return ids, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func statAsset(ctx context.Context, q querier, id uuid.UUID) (domain.Asset, error) {
	var a domain.Asset
	err := q.QueryRow(ctx, `
		SELECT id, object_oid, content_type, filename, size, sha256, created_at
		FROM assets WHERE id = $1`, id).
		Scan(&a.ID, &a.ObjectOID, &a.ContentType, &a.Filename, &a.Size, &a.SHA256, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Asset{}, ErrNotFound
	}
	if err != nil {
		return domain.Asset{}, fmt.Errorf("query asset: %w", err)
	}
	return a, nil
}
