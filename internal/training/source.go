package training

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Codes excluded from the top-level model: external causes and special-use
// codes that do not represent an underlying medical cause.
const excludedCodeFilter = `
	LEFT(r.caufin, 1) NOT IN ('S', 'T', 'V', 'W', 'X', 'Y', 'Z')
	AND r.caufin NOT IN (
		'U04', 'U049',
		'U06', 'U060', 'U061', 'U062', 'U063', 'U064', 'U065', 'U066', 'U067', 'U068', 'U069',
		'U07', 'U070', 'U071', 'U072', 'U073', 'U074', 'U075', 'U076', 'U077', 'U078', 'U079',
		'U089', 'U09', 'U099', 'U129'
	)`

// Groups with dedicated clinical registries, excluded from prediction.
const excludedGroupFilter = `
	g.grupo_cie10 NOT IN ('Periodo perinatal', 'Embarazo, parto y puerperio')`

// SQLSource reads training rows from the hospital records database.
type SQLSource struct {
	pool *pgxpool.Pool
}

// NewSQLSource creates a source over an established pool.
func NewSQLSource(pool *pgxpool.Pool) *SQLSource {
	return &SQLSource{pool: pool}
}

// TopLevelRecords returns every eligible row labeled with its diagnostic group.
func (s *SQLSource) TopLevelRecords(ctx context.Context) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT r.edad, r.genero, r.ppertenencia, r.fuente, r.deptoresiden, r.muniresiden, g.grupo_cie10
		FROM registros_hospitalarios r
		JOIN cie10 g ON r.caufin = g.codigo
		WHERE %s AND %s`, excludedCodeFilter, excludedGroupFilter)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying top-level records: %w", err)
	}
	return scanRecords(rows)
}

// CategoryGroups lists the diagnostic groups eligible for per-category models.
func (s *SQLSource) CategoryGroups(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT g.grupo_cie10
		FROM cie10 g
		WHERE %s
		ORDER BY g.grupo_cie10`, excludedGroupFilter)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostic groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("scanning diagnostic group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CategoryRecords returns the rows of one group labeled with their cause code.
func (s *SQLSource) CategoryRecords(ctx context.Context, group string) ([]Record, error) {
	query := `
		SELECT r.edad, r.genero, r.ppertenencia, r.fuente, r.deptoresiden, r.muniresiden, r.caufin
		FROM registros_hospitalarios r
		JOIN cie10 g ON r.caufin = g.codigo
		WHERE g.grupo_cie10 = $1`

	rows, err := s.pool.Query(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("querying records for group %q: %w", group, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Age, &r.Gender, &r.PopulationGroup, &r.ReferralSource,
			&r.ResidenceDepartment, &r.ResidenceMunicipality, &r.Target); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
