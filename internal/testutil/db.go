package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kjannette/pricegraph/internal/config"
)

// SetupPool returns a pool for Postgres integration tests, closed on cleanup.
//
// The DSN is TEST_DATABASE_URL when set, otherwise it is assembled from the
// DB_* variables (after loading the repo's .env) through Config.DSN, so
// credentials get the same escaping as the server. The test is skipped,
// never failed, when no database is configured or the configured one does
// not answer a ping within a few seconds. A malformed DSN is a failure.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		if os.Getenv("DB_HOST") == "" {
			t.Skip("TEST_DATABASE_URL / DB_HOST not set, skipping")
		}
		port, err := strconv.Atoi(EnvOr("DB_PORT", "5432"))
		if err != nil {
			t.Fatalf("DB_PORT: %v", err)
		}
		cfg := &config.Config{
			DBHost:     os.Getenv("DB_HOST"),
			DBPort:     port,
			DBName:     EnvOr("DB_NAME", "pricegraph"),
			DBUser:     EnvOr("DB_USER", "postgres"),
			DBPassword: os.Getenv("DB_PASSWORD"),
		}
		dsn = cfg.DSN()
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
