package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds a migrated test database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies migrations.
// Tests are skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.Migrate(dsn))
	db, err := database.NewPostgreSQLDB(dsn)
	require.NoError(t, err, "failed to connect to test database")

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.TruncateAllTables(context.Background()))
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes every row written by the tests
func (t *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := t.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"leave_transactions",
		"leave_accounts",
		"leave_requests",
		"leave_policies",
		"employees",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func (t *TestDatabaseSetup) InsertEmployee(ctx context.Context, id, email, name, department, role string) error {
	_, err := t.DB.Exec(ctx, `
		INSERT INTO employees (id, email, full_name, department_id, role, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, id, email, name, department, role)
	return err
}

// Close closes the database connection
func (t *TestDatabaseSetup) Close() {
	t.DB.Close()
}
