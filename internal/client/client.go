// Package client wires configuration, storage, transport, sync and
// billing into the high-level lexsync API.
package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexohub/lexsync/internal/billing"
	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/store"
	"github.com/lexohub/lexsync/internal/sync"
	"github.com/lexohub/lexsync/internal/transport"
)

// Client provides the high-level API for offline storage and sync.
type Client struct {
	Store     store.Store
	Engine    *sync.Engine
	Scheduler *sync.Scheduler
	Billing   *billing.Factory

	config    *config.Config
	logger    *events.Logger
	transport transport.Transport
}

// New creates a fully wired client.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	if dir := filepath.Dir(cfg.Storage.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	localStore, err := store.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	tr := transport.New(&cfg.API, logger)

	engine := sync.NewEngine(localStore, tr, sync.Config{
		BatchSize:      cfg.Sync.BatchSize,
		BatchDelay:     cfg.Sync.BatchDelay,
		MaxRetries:     cfg.Sync.MaxRetries,
		ConflictPolicy: cfg.Sync.ConflictPolicy,
	}, logger)

	scheduler := sync.NewScheduler(engine, tr, cfg.Sync.AutoSyncInterval, logger)

	return &Client{
		Store:     localStore,
		Engine:    engine,
		Scheduler: scheduler,
		Billing:   billing.NewFactory(cfg.Billing),
		config:    cfg,
		logger:    logger,
		transport: tr,
	}, nil
}

// Config returns the active configuration.
func (c *Client) Config() *config.Config { return c.config }

// Close releases the local store and remote connections.
func (c *Client) Close() error {
	if err := c.transport.Close(); err != nil {
		c.logger.WithError(err).Warn("Closing transport")
	}
	return c.Store.Close()
}
