// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/database/models"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DefaultMaxConnections = 1
	metadataFileName      = "governance.sqlite"
)

// Config holds the settings used to open the database
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	DataDir        string
	MaxConnections int
	Tracing        bool
}

type Database struct {
	logger  *slog.Logger
	db      *gorm.DB
	config  *Config
	dataDir string
}

// New opens the governance database. An empty DataDir selects a private
// in-memory database, which is what the tests use.
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	d := &Database{
		logger:  cfg.Logger,
		config:  cfg,
		dataDir: cfg.DataDir,
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database")
	dsn, err := d.dsn()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db
	if err := d.init(); err != nil {
		return nil, errors.Join(err, d.Close())
	}
	return d, nil
}

func (d *Database) dsn() (string, error) {
	// Enforce foreign keys (cascade to child rows) and wait on a busy database
	// instead of failing immediately
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if d.dataDir == "" {
		// Each handle gets its own named in-memory database. cache=shared lets
		// the pooled connections of this handle see the same data.
		return fmt.Sprintf(
			"file:govd-%s?mode=memory&cache=shared&%s",
			uuid.NewString(),
			pragmas,
		), nil
	}
	// Make sure that we can read data dir, and create if it doesn't exist
	if _, err := os.Stat(d.dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&%s",
		filepath.Join(d.dataDir, metadataFileName),
		pragmas,
	), nil
}

func (d *Database) init() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	maxConns := d.config.MaxConnections
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	// An in-memory database disappears with its last connection
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
	if d.config.Tracing {
		if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return fmt.Errorf("configure tracing: %w", err)
		}
	}
	if d.config.PromRegistry != nil {
		if err := d.config.PromRegistry.Register(
			collectors.NewDBStatsCollector(sqlDB, "governance"),
		); err != nil {
			return fmt.Errorf("register database metrics: %w", err)
		}
	}
	for _, model := range models.MigrateModels {
		d.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := d.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// DB returns the underlying GORM database handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Reader returns a non-transactional handle for reads
func (d *Database) Reader(ctx context.Context) *Txn {
	return &Txn{db: d.db.WithContext(ctx), readOnly: true}
}

// Close cleans up the database connections
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}
