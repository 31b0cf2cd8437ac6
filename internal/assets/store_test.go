package assets_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/database/dbtest"
	"github.com/Tomlord1122/family-todo/internal/domain"
)

func TestPutThenOpenRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	store := assets.NewStore(db.Pool())
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 4096)
	asset, err := store.Put(ctx, assets.Upload{
		Body:        bytes.NewReader(payload),
		ContentType: "image/png",
		Filename:    "avatar.png",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, asset.ID)
	assert.Equal(t, int64(len(payload)), asset.Size)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), asset.SHA256)

	obj, err := store.Open(ctx, asset.ID)
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, "avatar.png", obj.Filename)
}

func TestPutRejectsEmptyBody(t *testing.T) {
	db := dbtest.New(t)
	store := assets.NewStore(db.Pool())

	_, err := store.Put(context.Background(), assets.Upload{Body: bytes.NewReader(nil), ContentType: "image/png"})
	assert.ErrorIs(t, err, assets.ErrEmpty)

	var count int64
	require.NoError(t, db.GetDB().Model(&domain.Asset{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteMakesAssetUnreachable(t *testing.T) {
	db := dbtest.New(t)
	store := assets.NewStore(db.Pool())
	ctx := context.Background()

	asset, err := store.Put(ctx, assets.Upload{Body: bytes.NewReader([]byte("gif89a")), ContentType: "image/gif"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, asset.ID))

	_, err = store.Open(ctx, asset.ID)
	assert.ErrorIs(t, err, assets.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, asset.ID), assets.ErrNotFound)
}

func TestUnreferencedSkipsOwnedAssets(t *testing.T) {
	db := dbtest.New(t)
	store := assets.NewStore(db.Pool())
	ctx := context.Background()

	owned, err := store.Put(ctx, assets.Upload{Body: bytes.NewReader([]byte("owned")), ContentType: "image/png"})
	require.NoError(t, err)
	orphan, err := store.Put(ctx, assets.Upload{Body: bytes.NewReader([]byte("orphan")), ContentType: "image/png"})
	require.NoError(t, err)

	account := &domain.Account{Email: "owner@example.com", Name: "Owner", Auth: domain.OAuthCredential("google", "1"), ImageID: &owned.ID}
	require.NoError(t, db.GetDB().Create(account).Error)

	ids, err := store.Unreferenced(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{orphan.ID}, ids)

	ids, err = store.Unreferenced(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}
