package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	runStoreContract(t, func(t *testing.T, clock *fakeClock) Store {
		ctx := context.Background()
		table := "sensor_readings_it"
		s, err := OpenPostgres(ctx, dsn, WithTable(table), WithPostgresClock(clock.Now))
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", table))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
