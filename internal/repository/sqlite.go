package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/cie10-predict-server/internal/domain"
)

// SQLiteStore serves reference data from a local snapshot database. Used
// for offline development and environments without PostgreSQL.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
	log     *logrus.Logger
}

// OpenSQLite opens the snapshot at path.
func OpenSQLite(path string, queryTimeout time.Duration, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite snapshot: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite snapshot: %w", err)
	}

	logger.WithField("path", path).Info("Reference snapshot opened")

	return &SQLiteStore{
		db:      db,
		timeout: queryTimeout,
		log:     logger,
	}, nil
}

// Descriptions resolves description text for a list of CIE-10 codes in one
// query.
func (s *SQLiteStore) Descriptions(ctx context.Context, codes []string) (map[string]string, error) {
	if len(codes) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(codes)), ", ")
	args := make([]interface{}, len(codes))
	for i, code := range codes {
		args[i] = code
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT codigo, descripcion FROM cie10 WHERE codigo IN (%s)", placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying descriptions: %w", err)
	}
	defer rows.Close()

	return scanDescriptions(rows)
}

// Departments lists all residence departments.
func (s *SQLiteStore) Departments(ctx context.Context) ([]domain.Department, error) {
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
func (s *SQLiteStore) Municipalities(ctx context.Context, departmentID int) ([]domain.Municipality, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, departamento_id, nombre FROM municipios WHERE departamento_id = ? ORDER BY nombre",
		departmentID)
	if err != nil {
		return nil, fmt.Errorf("querying municipalities: %w", err)
	}
	defer rows.Close()

	return scanMunicipalities(rows)
}

// CategoryGroups lists the distinct CIE-10 diagnostic groups.
func (s *SQLiteStore) CategoryGroups(ctx context.Context) ([]string, error) {
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

// Close closes the snapshot database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
