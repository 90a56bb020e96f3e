package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("cie10"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=cie10 user=testuser password=testpass sslmode=disable",
		host, port.Int())
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE cie10 (codigo TEXT PRIMARY KEY, descripcion TEXT, grupo_cie10 TEXT)`,
		`INSERT INTO cie10 VALUES
			('A09', 'Diarrea y gastroenteritis de presunto origen infeccioso', 'Enfermedades infecciosas'),
			('J18', 'Neumonía, organismo no especificado', 'Enfermedades del Sistema Respiratorio')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to prepare schema: %v", err)
		}
	}

	store := NewPostgresStore(db, 2*time.Second, testLogger())

	got, err := store.Descriptions(ctx, []string{"A09", "J18", "Z99"})
	if err != nil {
		t.Fatalf("Descriptions failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 descriptions, got %d", len(got))
	}
	if got["A09"] == "" {
		t.Error("Expected description for A09")
	}

	groups, err := store.CategoryGroups(ctx)
	if err != nil {
		t.Fatalf("CategoryGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("Expected 2 groups, got %d", len(groups))
	}
}
