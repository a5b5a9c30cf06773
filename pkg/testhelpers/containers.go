// Package testhelpers provides a shared PostgreSQL container seeded with a
// small HR schema for integration tests.
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

// PostgresImage is the stock image used for integration tests.
const PostgresImage = "postgres:16-alpine"

const (
	testUser     = "ask"
	testPassword = "test_password"
	testDatabase = "hr"
)

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
}

// DatasourceConfig returns the tenant datasource config map for this database.
func (db *TestDB) DatasourceConfig() map[string]any {
	return map[string]any{
		"host":     db.Host,
		"port":     db.Port,
		"user":     db.User,
		"password": db.Password,
		"database": db.Database,
		"ssl_mode": "disable",
	}
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
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
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// The server logs readiness twice: once for the init run, once for real.
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
		testUser, testPassword, host, port.Port(), testDatabase)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	var pingErr error
	for i := 0; i < 10; i++ {
		if pingErr = pool.Ping(ctx); pingErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if pingErr != nil {
		return nil, fmt.Errorf("test database not reachable: %w", pingErr)
	}

	if _, err := pool.Exec(ctx, seedSQL); err != nil {
		return nil, fmt.Errorf("failed to seed test schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
		Host:      host,
		Port:      port.Int(),
		User:      testUser,
		Password:  testPassword,
		Database:  testDatabase,
	}, nil
}

// seedSQL creates the HR schema: 4 departments, 6 employees (one without a
// project), 3 projects.
const seedSQL = `
CREATE TABLE departments (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	budget NUMERIC(12,2)
);
CREATE TABLE employees (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	department TEXT,
	position TEXT,
	salary NUMERIC(10,2),
	hire_date DATE
);
CREATE TABLE projects (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	status TEXT,
	budget NUMERIC(12,2),
	start_date DATE,
	end_date DATE
);
CREATE TABLE project_assignments (
	id SERIAL PRIMARY KEY,
	employee_id INT REFERENCES employees(id),
	project_id INT REFERENCES projects(id),
	role TEXT
);

INSERT INTO departments (name, budget) VALUES
	('IT', 500000), ('HR', 120000), ('Sales', 300000), ('Finance', 200000);

INSERT INTO employees (name, email, department, position, salary, hire_date) VALUES
	('Ada Lovelace', 'ada@example.com', 'IT', 'Engineer', 120000, '2020-01-15'),
	('Alan Turing', 'alan@example.com', 'IT', 'Engineer', 115000, '2019-03-01'),
	('Grace Hopper', 'grace@example.com', 'IT', 'Manager', 140000, '2018-06-10'),
	('Katherine Johnson', 'kj@example.com', 'Finance', 'Analyst', 90000, '2021-09-20'),
	('Dorothy Vaughan', 'dv@example.com', 'HR', 'Recruiter', 70000, '2022-02-01'),
	('Mary Jackson', 'mj@example.com', 'Sales', 'Account Executive', 85000, '2023-04-12');

INSERT INTO projects (name, description, status, budget, start_date) VALUES
	('Apollo', 'Customer portal rewrite', 'active', 250000, '2024-01-01'),
	('Gemini', 'Payroll migration', 'planned', 80000, '2024-06-01'),
	('Mercury', 'Sales dashboard', 'done', 40000, '2023-01-01');

INSERT INTO project_assignments (employee_id, project_id, role) VALUES
	(1, 1, 'Lead'), (2, 1, 'Developer'), (3, 2, 'Sponsor'),
	(4, 2, 'Analyst'), (6, 3, 'Owner');
`
