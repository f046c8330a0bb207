package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"storefront-service/internal/validation"
)

// Predefined errors for store operations
var (
	ErrCategoryNotFound   = errors.New("store: category not found")
	ErrCategorySlugExists = errors.New("store: category slug already exists")
	ErrProductNotFound    = errors.New("store: product not found")
	ErrProductSlugExists  = errors.New("store: product slug already exists")
	ErrOrderNotFound      = errors.New("store: order not found")
	ErrReturnNotFound     = errors.New("store: return request not found")
	ErrReturnExists       = errors.New("store: return already requested for order")
	ErrReviewExists       = errors.New("store: review already exists for user and product")
	ErrSettingNotFound    = errors.New("store: setting not found")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore implements every Storer interface of this package on top of
// the hosted PostgreSQL database.
type PostgresStore struct {
	db       *sql.DB
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB, log logrus.FieldLogger) *PostgresStore {
	return &PostgresStore{
		db:       db,
		validate: validation.New(),
		log:      log.WithField("component", "store"),
	}
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Info("closing database connection pool")
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("failed to close database connection pool")
		return err
	}
	return nil
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// uniqueViolation reports whether err is a unique-constraint failure whose
// constraint name or detail mentions hint.
func uniqueViolation(err error, hint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return hint == "" || strings.Contains(pqErr.Constraint, hint) || strings.Contains(pqErr.Detail, hint)
}

func foreignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
