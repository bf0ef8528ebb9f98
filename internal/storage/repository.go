package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to create a RunRepository.
//
// Edge cases:
//   - Kind must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// RunRepository stores the history of report runs.
//
// Implementations must be safe for concurrent use: performance runs insert
// from every worker.
type RunRepository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureTables creates the runs table if it does not exist. Idempotent.
	EnsureTables(ctx context.Context) error

	// InsertRun appends one run.
	InsertRun(ctx context.Context, run Run) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (RunRepository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs a RunRepository using the registered factory and ensures
// its table exists.
//
// Errors:
//   - cfg.Kind is empty or not registered.
//   - Whatever the factory or EnsureTables returns.
func New(ctx context.Context, cfg Config) (RunRepository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureTables(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
