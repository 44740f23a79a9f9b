// Package database owns the gorm connection to the CAFEVDB database.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cafevdb/cafevdbmembers/entity"
	"github.com/cafevdb/cafevdbmembers/internal/crypto"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNoRowAccess is returned when a personalized query runs without a
// row-access token.
var ErrNoRowAccess = errors.New("missing row access token")

const (
	rowAccessTokenVariable = "cafevdb.row_access_token"
	userIDVariable         = "cafevdb.user_id"
)

// Manager wraps the gorm handle and scopes sessions to one member.
type Manager struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures the manager
type Option func(*Manager)

// WithLogger sets the logger used for SQL tracing
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Open connects to PostgreSQL using lib/pq.
func Open(dsn string, sealer *crypto.Sealer, opts ...Option) (*Manager, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	m, err := New(sqlDB, sealer, opts...)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return m, nil
}

// New builds a manager on an existing connection pool.
func New(sqlDB *sql.DB, sealer *crypto.Sealer, opts ...Option) (*Manager, error) {
	m := &Manager{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(m)
	}

	if sealer != nil {
		entity.RegisterEncryption(sealer)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(m.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	m.db = db
	return m, nil
}

// DB returns a session without row access. Only the service's own tables
// and public views are readable through it.
func (m *Manager) DB(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}

// WithRowAccess runs fn on a pinned connection carrying the member's
// row-access token. The token is cleared before the connection returns to
// the pool.
func (m *Manager) WithRowAccess(ctx context.Context, userID, token string, fn func(tx *gorm.DB) error) error {
	if token == "" {
		return ErrNoRowAccess
	}

	return m.db.WithContext(ctx).Connection(func(tx *gorm.DB) (err error) {
		if err := setRowAccess(tx, token, userID); err != nil {
			return fmt.Errorf("failed to set row access token: %w", err)
		}
		m.logger.Debug("row access token set", "user", userID)

		defer func() {
			if resetErr := setRowAccess(tx, "", ""); resetErr != nil {
				m.logger.Error("failed to reset row access token", "user", userID, "error", resetErr)
				if err == nil {
					err = fmt.Errorf("failed to reset row access token: %w", resetErr)
				}
			}
		}()

		return fn(tx)
	})
}

func setRowAccess(tx *gorm.DB, token, userID string) error {
	return tx.Exec("SELECT set_config(?, ?, false), set_config(?, ?, false)",
		rowAccessTokenVariable, token, userIDVariable, userID).Error
}

// Migrate creates or updates the tables owned by this service.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(entity.OwnTables()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	m.logger.Info("database schema migrated")
	return nil
}

// Ping checks the connection.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
