package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldservice/backend/internal/domain/finance"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/domain/shared/valueobject"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:      config.AppConfig{Name: "fieldservice", Env: "test"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Store:    config.StoreConfig{Backend: "memory"},
		Log:      config.LogConfig{Level: "error"},
		Finance:  config.FinanceConfig{MaxForecastMonths: 12, Currency: "BRL", Locale: "pt-BR"},
		Storage:  config.StorageConfig{Backend: "none"},
		Metrics:  config.MetricsConfig{Enabled: true, Namespace: "test"},
	}
}

func TestNew_MemoryStore(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, testConfig(t), zap.NewNop(), shared.StaticConfirmer(false))
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Metrics)
	assert.Empty(t, c.Checks)
	assert.Nil(t, c.Idempotency)

	summary, err := c.Summary.AdjustBalance(ctx, valueobject.NewMoneyFromFloat(40), finance.BalanceAdd)
	require.NoError(t, err)
	assert.Equal(t, "40.00", summary.Balance.String())

	_, err = c.Backups.ExportToArchive(ctx, "nightly")
	assert.ErrorIs(t, err, shared.NewDomainError("ARCHIVE_UNAVAILABLE", ""))
}

func TestNew_SQLiteWithLocalArchive(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = "gorm"
	cfg.Database.Path = filepath.Join(t.TempDir(), "fieldservice.db")
	cfg.Storage = config.StorageConfig{Backend: "local", LocalDir: t.TempDir()}

	c, err := New(ctx, cfg, zap.NewNop(), shared.StaticConfirmer(false))
	require.NoError(t, err)
	defer c.Close()

	require.Contains(t, c.Checks, "database")
	assert.NoError(t, c.Checks["database"](ctx))

	bundle, err := c.Backups.ExportToArchive(ctx, "first")
	require.NoError(t, err)
	assert.Len(t, bundle.Checksum, 8)
	require.NoError(t, c.Backups.ImportFromArchive(ctx, "first"))
}

func TestNew_Tracing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = "gorm"
	cfg.Database.Path = filepath.Join(t.TempDir(), "fieldservice.db")
	cfg.Tracing = config.TracingConfig{Enabled: true, Endpoint: "127.0.0.1:4317", Insecure: true}

	c, err := New(ctx, cfg, zap.NewNop(), shared.StaticConfirmer(false))
	require.NoError(t, err)
	assert.True(t, c.Tracer.Enabled())

	_, err = c.Summary.AdjustBalance(ctx, valueobject.NewMoneyFromFloat(10), finance.BalanceAdd)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestNew_TracingDisabled(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), zap.NewNop(), shared.StaticConfirmer(false))
	require.NoError(t, err)
	defer c.Close()
	assert.False(t, c.Tracer.Enabled())
}

func TestNew_RejectsUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "redis"
	cfg.Redis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, err := New(context.Background(), cfg, zap.NewNop(), shared.StaticConfirmer(false))
	assert.Error(t, err)
}

func TestNew_IdempotencyStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.HTTP.IdempotencyEnabled = true

	c, err := New(ctx, cfg, zap.NewNop(), shared.StaticConfirmer(false))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Idempotency)
	claimed, err := c.Idempotency.MarkProcessed(ctx, "POST /api/v1/installments/x/pay k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = c.Idempotency.MarkProcessed(ctx, "POST /api/v1/installments/x/pay k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
}
