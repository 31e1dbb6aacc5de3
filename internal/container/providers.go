// Package container provides dependency wiring and lifecycle management
// shared by the HTTP server and the command line.
package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/config"
	"github.com/tamima/evoucher/internal/ingest"
	"github.com/tamima/evoucher/internal/preview"
	"github.com/tamima/evoucher/internal/repository"
	"github.com/tamima/evoucher/internal/storage"
	"github.com/tamima/evoucher/internal/voucher"
	"github.com/tamima/evoucher/pkg/database"
)

// DatabaseBundle holds the run ledger components
type DatabaseBundle struct {
	DB   *database.DB
	Runs *repository.RunRepository
}

// PipelineBundle holds the voucher generation components
type PipelineBundle struct {
	Reader   *ingest.Reader
	Composer *voucher.Composer
	Packager *voucher.Packager
	Renderer *preview.Renderer
}

// StorageBundle holds output storage components
type StorageBundle struct {
	FileStorage   *storage.LocalFileStorage
	FolderManager *storage.FolderManager
}

// ProvideDatabase opens the ledger database and applies pending migrations
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Migrate(cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:   db,
		Runs: repository.NewRunRepository(db, logger),
	}, nil
}

// ProvidePipeline builds reader, composer, packager and preview renderer
// from the voucher settings. workers <= 0 uses the configured value.
func ProvidePipeline(cfg *config.VoucherConfig, workers int, logger *zap.Logger) (*PipelineBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("voucher config is required")
	}
	if workers <= 0 {
		workers = cfg.Workers
	}

	theme, err := cfg.Theme.Build()
	if err != nil {
		return nil, err
	}
	composer, err := voucher.NewComposer(voucher.ComposerOptions{Theme: theme}, logger)
	if err != nil {
		return nil, err
	}

	return &PipelineBundle{
		Reader: ingest.NewReader(ingest.Options{
			SheetName:  cfg.SheetName,
			MaxRecords: cfg.MaxRecords,
		}, logger),
		Composer: composer,
		Packager: voucher.NewPackager(composer, voucher.PackagerOptions{Workers: workers}, logger),
		Renderer: preview.NewRenderer(cfg.PreviewDPI, logger),
	}, nil
}

// ProvideStorage creates the output storage rooted at outputDir
func ProvideStorage(outputDir string, logger *zap.Logger) *StorageBundle {
	return &StorageBundle{
		FileStorage:   storage.NewLocalFileStorage(outputDir, logger),
		FolderManager: storage.NewFolderManager(outputDir, logger),
	}
}
