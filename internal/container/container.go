package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/application/port"
	"github.com/tamima/evoucher/internal/application/service"
	"github.com/tamima/evoucher/internal/config"
	"github.com/tamima/evoucher/internal/storage"
)

// Options adjusts what the container builds
type Options struct {
	// DisableLedger skips the database; batch runs are then not recorded
	DisableLedger bool
	// Workers overrides voucher.workers when positive
	Workers int
	// OutputDir overrides voucher.output_dir when set
	OutputDir string
}

// Container manages the application dependencies. Components are created
// in dependency order by Start and released in reverse order by Close.
type Container struct {
	config *config.Config
	opts   Options
	logger *zap.Logger

	database *DatabaseBundle
	pipeline *PipelineBundle
	storage  *StorageBundle
	service  *service.VoucherService

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components, call Start for that.
func NewContainer(cfg *config.Config, opts Options, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		opts:   opts,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Database and run repository, unless the ledger is disabled
// 2. Voucher pipeline
// 3. Output storage
// 4. Voucher service
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	if !c.opts.DisableLedger {
		if err := ctx.Err(); err != nil {
			return err
		}
		db, err := ProvideDatabase(&c.config.Database, c.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		c.database = db
		c.logger.Debug("Database initialized", zap.String("path", c.config.Database.Path))
	}

	pipeline, err := ProvidePipeline(&c.config.Voucher, c.opts.Workers, c.logger)
	if err != nil {
		c.release()
		return fmt.Errorf("failed to initialize voucher pipeline: %w", err)
	}
	c.pipeline = pipeline

	c.storage = ProvideStorage(c.OutputDir(), c.logger)

	c.service = service.NewVoucherService(
		pipeline.Reader,
		pipeline.Composer,
		pipeline.Packager,
		c.Runs(),
		pipeline.Renderer,
		service.Options{
			DefaultLogoPath: c.config.Voucher.DefaultLogoPath,
			ArchiveName:     c.config.Voucher.ArchiveName,
		},
		c.logger,
	)

	c.ready.Store(true)
	c.logger.Debug("Container started", zap.Bool("ledger", c.database != nil))
	return nil
}

// Close releases all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	err := c.release()
	c.closed.Store(true)
	c.ready.Store(false)
	return err
}

// release closes the database; the other components hold no resources
func (c *Container) release() error {
	c.service = nil
	c.storage = nil
	c.pipeline = nil

	if c.database == nil {
		return nil
	}
	err := c.database.DB.Close()
	c.database = nil
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns the health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch {
	case c.opts.DisableLedger:
		set("database", ComponentHealth{Healthy: true, Message: "disabled"})
	case c.database == nil:
		set("database", ComponentHealth{Message: "not initialized"})
	default:
		if err := c.database.DB.PingContext(ctx); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.service == nil {
		set("service", ComponentHealth{Message: "not initialized"})
	} else {
		set("service", ComponentHealth{Healthy: true})
	}

	return status
}

// Check reports unhealthy components as one error
func (c *Container) Check(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	var errs []error
	for _, name := range []string{"database", "service"} {
		if h := status.Components[name]; !h.Healthy {
			errs = append(errs, fmt.Errorf("%s: %s", name, h.Message))
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the container was built from
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the voucher service
func (c *Container) Service() *service.VoucherService {
	return c.service
}

// Runs returns the run repository, or nil when the ledger is disabled
func (c *Container) Runs() port.RunRepository {
	if c.database == nil {
		return nil
	}
	return c.database.Runs
}

// FileStorage returns the output file storage
func (c *Container) FileStorage() *storage.LocalFileStorage {
	return c.storage.FileStorage
}

// FolderManager returns the per-run folder manager
func (c *Container) FolderManager() *storage.FolderManager {
	return c.storage.FolderManager
}

// OutputDir returns where generated files are written
func (c *Container) OutputDir() string {
	if c.opts.OutputDir != "" {
		return c.opts.OutputDir
	}
	return c.config.Voucher.OutputDir
}
