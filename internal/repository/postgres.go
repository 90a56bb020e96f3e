// Package repository implements the read-only reference store: CIE-10 code
// descriptions, diagnostic groups, departments and municipalities. Two
// backends exist behind the same interface, PostgreSQL for deployments and
// a local SQLite snapshot for offline development.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/cie10-predict-server/internal/domain"
)

// PostgresStore serves reference data from PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
	log     *logrus.Logger
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sql.DB, queryTimeout time.Duration, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		timeout: queryTimeout,
		log:     logger,
	}
}

// OpenPostgres opens a pooled connection from configuration and verifies it
// with a ping.
func OpenPostgres(cfg *domain.DatabaseConfig, logger *logrus.Logger) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening reference database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging reference database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
	}).Info("Reference database connection established")

	return NewPostgresStore(db, cfg.QueryTimeout, logger), nil
}

// Descriptions resolves description text for a list of CIE-10 codes in one
// query. Codes absent from the store are simply missing from the result.
func (s *PostgresStore) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	if len(codes) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	placeholders := make([]string, len(codes))
	args := make([]interface{}, len(codes))
	for i, code := range codes {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = code
	}
	query := fmt.Sprintf(
		"SELECT codigo, descripcion FROM cie10 WHERE codigo IN (%s)",
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	return scanDescriptions(rows)
}

// Departments lists all residence departments.
func (s *PostgresStore) Departments(ctx context.Context) ([]domain.Department, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, nombre FROM departamentos ORDER BY nombre")
	if err != nil {
		return nil, fmt.Errorf("querying departments: %w", err)
	}
	defer rows.Close()

	return scanDepartments(rows)
}

// Municipalities lists the municipalities of one department.
func (s *PostgresStore) Municipalities(ctx context.Context, departmentID int) ([]domain.Municipality, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, departamento_id, nombre FROM municipios WHERE departamento_id = $1 ORDER BY nombre",
		departmentID)
	if err != nil {
		return nil, fmt.Errorf("querying municipalities: %w", err)
	}
	defer rows.Close()

	return scanMunicipalities(rows)
}

// CategoryGroups lists the distinct CIE-10 diagnostic groups.
func (s *PostgresStore) CategoryGroups(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT grupo_cie10 FROM cie10 WHERE grupo_cie10 IS NOT NULL AND grupo_cie10 <> '' ORDER BY grupo_cie10")
	if err != nil {
		return nil, fmt.Errorf("querying category groups: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Shared row scanners used by both backends.

func scanDescriptions(rows *sql.Rows) (map[string]string, error) {
	out := make(map[string]string)
	for rows.Next() {
		var code, desc string
		if err := rows.Scan(&code, &desc); err != nil {
			return nil, fmt.Errorf("scanning description row: %w", err)
		}
		out[code] = desc
	}
	return out, rows.Err()
}

func scanDepartments(rows *sql.Rows) ([]domain.Department, error) {
	var out []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Nombre); err != nil {
			return nil, fmt.Errorf("scanning department row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanMunicipalities(rows *sql.Rows) ([]domain.Municipality, error) {
	var out []domain.Municipality
	for rows.Next() {
		var m domain.Municipality
		if err := rows.Scan(&m.ID, &m.DepartamentoID, &m.Nombre); err != nil {
			return nil, fmt.Errorf("scanning municipality row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
