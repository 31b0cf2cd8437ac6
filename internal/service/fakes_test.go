package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Tomlord1122/family-todo/internal/assets"
	"github.com/Tomlord1122/family-todo/internal/domain"
)

type fakeAccounts struct {
	mu       sync.Mutex
	nextID   uint
	byID     map[uint]*domain.Account
	setImage error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[uint]*domain.Account{}}
}

func (f *fakeAccounts) add(email, name string) *domain.Account {
	a := &domain.Account{Email: email, Name: name, Auth: domain.OAuthCredential("test", email)}
	if err := f.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}

func (f *fakeAccounts) Create(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == a.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAccounts) FindByID(_ context.Context, id uint) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) UpdateName(ctx context.Context, id uint, name string) (*domain.Account, error) {
	f.mu.Lock()
	a, ok := f.byID[id]
	if ok {
		a.Name = name
	}
	f.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.FindByID(ctx, id)
}

func (f *fakeAccounts) SetImage(_ context.Context, id uint, imageID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setImage != nil {
		return f.setImage
	}
	a, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.ImageID = imageID
	return nil
}

func (f *fakeAccounts) ListIDs(context.Context) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type fakeTodos struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*domain.Todo
	refs   map[uint][]uint
	fail   error
}

func newFakeTodos() *fakeTodos {
	return &fakeTodos{rows: map[uint]*domain.Todo{}, refs: map[uint][]uint{}}
}

func (f *fakeTodos) CreateForOwner(_ context.Context, t *domain.Todo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.rows[t.ID] = &cp
	f.refs[t.OwnerID] = append(f.refs[t.OwnerID], t.ID)
	return nil
}

func (f *fakeTodos) FindByID(_ context.Context, id uint) (*domain.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTodos) ListByOwner(_ context.Context, ownerID uint, search string, offset, limit int) ([]domain.Todo, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, 0, f.fail
	}
	var matched []domain.Todo
	needle := strings.ToLower(strings.TrimSpace(search))
	for _, t := range f.rows {
		if t.OwnerID != ownerID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		matched = append(matched, *t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	if offset >= len(matched) {
		return []domain.Todo{}, total, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], total, nil
}

func (f *fakeTodos) Update(_ context.Context, id uint, fields map[string]any) (*domain.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if v, ok := fields["title"]; ok {
		t.Title = v.(string)
	}
	if v, ok := fields["notes"]; ok {
		t.Notes = v.(string)
	}
	if v, ok := fields["completed"]; ok {
		t.Completed = v.(bool)
	}
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (f *fakeTodos) DeleteForOwner(_ context.Context, ownerID, id uint) (*domain.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	delete(f.rows, id)
	refs := f.refs[ownerID][:0]
	for _, r := range f.refs[ownerID] {
		if r != id {
			refs = append(refs, r)
		}
	}
	f.refs[ownerID] = refs
	return t, nil
}

func (f *fakeTodos) RefIDs(_ context.Context, ownerID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.refs[ownerID]...), nil
}

func (f *fakeTodos) ReconcileRefs(_ context.Context, ownerID uint) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var added, removed int64
	kept := make([]uint, 0, len(f.refs[ownerID]))
	seen := map[uint]bool{}
	for _, id := range f.refs[ownerID] {
		if t, ok := f.rows[id]; ok && t.OwnerID == ownerID {
			kept = append(kept, id)
			seen[id] = true
		} else {
			removed++
		}
	}
	for id, t := range f.rows {
		if t.OwnerID == ownerID && !seen[id] {
			kept = append(kept, id)
			added++
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
	f.refs[ownerID] = kept
	return added, removed, nil
}

type fakeChildren struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*domain.Child
}

func newFakeChildren() *fakeChildren {
	return &fakeChildren{rows: map[uint]*domain.Child{}}
}

func (f *fakeChildren) Create(_ context.Context, c *domain.Child) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeChildren) FindByID(_ context.Context, id uint) (*domain.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Parents = append([]domain.ChildParent(nil), c.Parents...)
	return &cp, nil
}

func (f *fakeChildren) ListForAccount(_ context.Context, accountID uint) ([]domain.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Child
	for _, c := range f.rows {
		if c.CanRead(accountID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeChildren) Update(ctx context.Context, id uint, fields map[string]any) (*domain.Child, error) {
	f.mu.Lock()
	c, ok := f.rows[id]
	if ok {
		if v, ok := fields["name"]; ok {
			c.Name = v.(string)
		}
		if v, ok := fields["birthdate"]; ok {
			b := v.(time.Time)
			c.Birthdate = &b
		}
	}
	f.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return f.FindByID(ctx, id)
}

func (f *fakeChildren) SetImage(_ context.Context, id uint, imageID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.ImageID = imageID
	return nil
}

func (f *fakeChildren) LinkParent(_ context.Context, childID, accountID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[childID]
	if !ok {
		return gorm.ErrForeignKeyViolated
	}
	for _, p := range c.Parents {
		if p.AccountID == accountID {
			return nil
		}
	}
	c.Parents = append(c.Parents, domain.ChildParent{ChildID: childID, AccountID: accountID})
	return nil
}

func (f *fakeChildren) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeAssetStore struct {
	mu        sync.Mutex
	objects   map[uuid.UUID]domain.Asset
	data      map[uuid.UUID][]byte
	putErr    error
	deleteErr error
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{objects: map[uuid.UUID]domain.Asset{}, data: map[uuid.UUID][]byte{}}
}

func (f *fakeAssetStore) Put(_ context.Context, up assets.Upload) (domain.Asset, error) {
	if f.putErr != nil {
		return domain.Asset{}, f.putErr
	}
	b, err := io.ReadAll(up.Body)
	if err != nil {
		return domain.Asset{}, err
	}
	if len(b) == 0 {
		return domain.Asset{}, assets.ErrEmpty
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := domain.Asset{
		ID:          uuid.New(),
		ContentType: up.ContentType,
		Filename:    up.Filename,
		Size:        int64(len(b)),
		CreatedAt:   time.Now(),
	}
	f.objects[a.ID] = a
	f.data[a.ID] = b
	return a, nil
}

func (f *fakeAssetStore) Open(_ context.Context, id uuid.UUID) (*assets.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.objects[id]
	if !ok {
		return nil, assets.ErrNotFound
	}
	return &assets.Object{Asset: a, Reader: bytes.NewReader(f.data[id])}, nil
}

func (f *fakeAssetStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[id]; !ok {
		return assets.ErrNotFound
	}
	delete(f.objects, id)
	delete(f.data, id)
	return nil
}

func (f *fakeAssetStore) Unreferenced(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, a := range f.objects {
		if a.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeAssetStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeAssetStore) has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[id]
	return ok
}

var errBoom = errors.New("boom")

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngUpload(name string) assets.Upload {
	return assets.Upload{Body: bytes.NewReader(pngHeader), Filename: name}
}
