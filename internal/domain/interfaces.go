package domain

import (
	"context"
)

// DescriptionLookup resolves CIE-10 codes to their human-readable
// description text in one batched call. Implementations may be the
// reference store itself or caching/resilience decorators around it.
type DescriptionLookup interface {
	Descriptions(ctx context.Context, codes []string) (map[string]string, error)
}

// ReferenceStore is the read-only relational reference-data collaborator.
type ReferenceStore interface {
	DescriptionLookup

	// Departments lists all residence departments.
	Departments(ctx context.Context) ([]Department, error)

	// Municipalities lists the municipalities of one department.
	Municipalities(ctx context.Context, departmentID int) ([]Municipality, error)

	// CategoryGroups lists the distinct CIE-10 diagnostic groups.
	CategoryGroups(ctx context.Context) ([]string, error)

	// Close releases the underlying connections.
	Close() error
}
