package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/crater/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for build results.
type Store interface {
	// Build results
	AddBuildResult(ctx context.Context, result *model.BuildResult) error
	GetBuildResult(ctx context.Context, key model.BuildResultKey) (*model.BuildResult, error)
	GetResults(ctx context.Context, toolchain string) ([]*model.BuildResult, error)
	GetResultPairs(ctx context.Context, from, to string) ([]model.ResultPair, error)
	ListResultToolchains(ctx context.Context) ([]string, error)

	// Custom toolchains
	AddCustomToolchain(ctx context.Context, tc *model.CustomToolchain) error
	GetCustomToolchain(ctx context.Context, toolchain string) (*model.CustomToolchain, error)
	ListCustomToolchains(ctx context.Context) ([]*model.CustomToolchain, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
