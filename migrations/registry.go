// Package migrations exposes the embedded checkout schema per SQL dialect.
//
// Postgres files live at data/sql/migrations and the sqlite variants under
// its sqlite/ subdirectory. Both sets carry the same numbered steps.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	checkout "github.com/goliatone/go-checkout"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	sourceLabel = "go-checkout"
	rootPath    = "data/sql/migrations"
)

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

// RegisterFunc receives one dialect's migration files. A persistence client
// typically forwards fsys to RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

// WithValidationTargets limits registration to the given dialects. Unknown
// and blank names are dropped.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		var next []string
		for _, target := range targets {
			dialect := normalizeDialect(target)
			if dialect == "" || slices.Contains(next, dialect) {
				continue
			}
			next = append(next, dialect)
		}
		if len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "", "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Filesystems returns the postgres and sqlite migration sets. sources[0], when
// given, replaces the embedded filesystem; it may be rooted either at the
// repository or at the migrations directory itself.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := checkout.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, basePath, err := locateRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}
	sqlitePath := "sqlite"
	if basePath != "." {
		sqlitePath = basePath + "/sqlite"
	}

	out := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: sqlitePath, FS: sqliteFS},
	}
	for _, spec := range out {
		ups, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", spec.Path, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s set at %q is empty", spec.Dialect, spec.Path)
		}
	}
	return out, nil
}

// ForDialect returns the migration set for a single dialect.
func ForDialect(dialect string) (FilesystemSpec, error) {
	want := normalizeDialect(dialect)
	filesystems, err := Filesystems()
	if err != nil {
		return FilesystemSpec{}, err
	}
	for _, spec := range filesystems {
		if spec.Dialect == want {
			return spec, nil
		}
	}
	return FilesystemSpec{}, fmt.Errorf("migrations: unknown dialect %q", dialect)
}

// Register hands every targeted dialect's migration set to registerFn. Both
// dialects are targeted unless WithValidationTargets narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       sourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func locateRoot(root fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(root, rootPath); err == nil {
		sub, err := fs.Sub(root, rootPath)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: %w", err)
		}
		return sub, rootPath, nil
	}
	if ups, _ := fs.Glob(root, "*.up.sql"); len(ups) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", rootPath)
}

func normalizeDialect(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectPostgres:
		return DialectPostgres
	case DialectSQLite:
		return DialectSQLite
	default:
		return ""
	}
}
