package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Tomlord1122/family-todo/internal/repository"
)

// Maintenance periodically repairs state that a two-step write can leave
// behind: unreferenced images and drifted todo reference collections.
type Maintenance struct {
	assets   AssetService
	accounts repository.AccountRepository
	todos    repository.TodoRepository
}

func NewMaintenance(assetSvc AssetService, accounts repository.AccountRepository, todos repository.TodoRepository) *Maintenance {
	return &Maintenance{assets: assetSvc, accounts: accounts, todos: todos}
}

// RunOnce performs a single pass.
func (m *Maintenance) RunOnce(ctx context.Context) error {
	removed, err := m.assets.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Info("asset sweep", "removed", removed)
	}

	ids, err := m.accounts.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		added, dropped, err := m.todos.ReconcileRefs(ctx, id)
		if err != nil {
			log.Warn("reconcile todo refs", "account", id, "err", err)
			continue
		}
		if added > 0 || dropped > 0 {
			log.Warn("todo refs drifted", "account", id, "added", added, "removed", dropped)
		}
	}
	return nil
}

// Run calls RunOnce every interval until ctx is done.
func (m *Maintenance) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error("maintenance pass failed", "err", err)
			}
		}
	}
}

// Start runs the loop in its own goroutine. The returned stop cancels it and
// waits for any pass in flight to return; it is safe to call more than once.
func (m *Maintenance) Start(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, interval)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
