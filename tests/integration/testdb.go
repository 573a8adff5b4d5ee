// Package integration runs the record stores and services against real
// PostgreSQL and Redis servers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/fieldservice/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testDBName   = "fieldservice_test"
	testUser     = "postgres"
	testPassword = "fieldservice"
)

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	DSN    string
	Config config.DatabaseConfig
}

// NewTestDB starts a PostgreSQL container and applies the embedded migrations.
// The container is terminated when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testUser),
		tcpostgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	runMigrations(t, dsn)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{
		DB:    db,
		SqlDB: sqlDB,
		DSN:   dsn,
		Config: config.DatabaseConfig{
			Driver:   "postgres",
			Host:     host,
			Port:     port.Int(),
			User:     testUser,
			Password: testPassword,
			DBName:   testDBName,
			SSLMode:  "disable",
		},
	}
}

// runMigrations applies the embedded migrations on a dedicated connection,
// the way the server does at startup
func runMigrations(t *testing.T, dsn string) {
	t.Helper()
	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer conn.Close()

	m, err := migration.New(conn, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	defer m.Close()
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// CleanTables empties the record table between subtests
func (tdb *TestDB) CleanTables(t *testing.T) {
	t.Helper()
	require.NoError(t, tdb.DB.Exec("TRUNCATE TABLE collection_records").Error)
}

// TestRedis is a Redis server in its own container
type TestRedis struct {
	Client *redis.Client
	Config config.RedisConfig
}

// NewTestRedis starts a Redis container. The container is terminated when the test ends.
func NewTestRedis(t *testing.T) *TestRedis {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	cfg := config.RedisConfig{Host: host, Port: port.Int(), KeyPrefix: "fieldservice-test"}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr()})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })

	return &TestRedis{Client: client, Config: cfg}
}
