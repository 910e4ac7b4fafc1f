package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImage is the stock image the fixture catalog is loaded into.
const PostgresImage = "postgres:16-alpine"

// Fixture credentials of the shared container.
const (
	TestDatabase = "discovery_test"
	TestUser     = "discovery"
	TestPassword = "test_password"
)

// FixtureSchema creates a small shop catalog with no declared foreign keys,
// so every relationship has to be inferred. customers has 50 rows, orders
// 200 (customer_id cycling over all customers) and audit_log records table
// names.
const FixtureSchema = `
CREATE TABLE customers (
	id integer PRIMARY KEY,
	email varchar(255) NOT NULL,
	full_name text NOT NULL
);
CREATE TABLE orders (
	id integer PRIMARY KEY,
	customer_id integer,
	total numeric(10,2) NOT NULL
);
CREATE TABLE audit_log (
	id bigserial PRIMARY KEY,
	table_name text NOT NULL,
	change_type text NOT NULL
);
INSERT INTO customers (id, email, full_name)
	SELECT g, 'user' || g || '@example.com', 'Customer ' || g
	FROM generate_series(1, 50) g;
INSERT INTO orders (id, customer_id, total)
	SELECT g, ((g - 1) % 50) + 1, g * 1.5
	FROM generate_series(1, 200) g;
INSERT INTO audit_log (table_name, change_type)
	VALUES ('customers', 'insert'), ('orders', 'update'), ('orders', 'delete');
ANALYZE;
`

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests,
// loaded with FixtureSchema. The container is created once and reused
// across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       TestDatabase,
			"POSTGRES_USER":     TestUser,
			"POSTGRES_PASSWORD": TestPassword,
		},
		// the server logs readiness twice: once for the init pass, once for real
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		TestUser, TestPassword, host, port.Port(), TestDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for range 10 {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	if _, err := pool.Exec(ctx, FixtureSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to load fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
	}, nil
}
