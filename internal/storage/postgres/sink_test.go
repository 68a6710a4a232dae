package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"chart-recorder/internal/domain"
	"chart-recorder/internal/storage"
)

// setupTestSink starts a PostgreSQL container and returns a Sink with the
// schema applied. The cleanup function must be called after the test.
func setupTestSink(t *testing.T) (*Sink, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	sink, err := NewSink(ctx, pool)
	require.NoError(t, err, "failed to create sink")

	cleanup := func() {
		sink.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return sink, cleanup
}

func tradeRec(t float64, chart int, px float64) domain.Trade {
	return domain.Trade{
		Header: domain.Header{T: t, Sym: "ESZ5", Type: domain.StreamTrade, Chart: chart},
		Price:  px,
		Qty:    1,
	}
}

func TestSink_AppendAndCount(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, sink.Append(ctx, tradeRec(1700000001, 3, 6502.25)))
	require.NoError(t, sink.Append(ctx, tradeRec(1700000002, 3, 6502.50)))
	require.NoError(t, sink.Append(ctx, domain.BaseData{
		Header:   domain.Header{T: 1700000000, Type: domain.StreamBaseData, Chart: 3},
		BarIndex: 0, Open: 6501, High: 6503, Low: 6500, Close: 6502, Volume: 100,
	}))

	counts, err := sink.CountByType(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 2, counts["trade"])
	require.Equal(t, 1, counts["basedata"])

	// Another chart stays empty.
	other, err := sink.CountByType(ctx, 4)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestSink_DuplicateRecordRejected(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	rec := tradeRec(1700000001, 3, 6502.25)

	require.NoError(t, sink.Append(ctx, rec))
	err := sink.Append(ctx, rec)
	require.ErrorIs(t, err, storage.ErrDuplicateEvent)

	counts, err := sink.CountByType(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 1, counts["trade"], "replayed record must not duplicate")

	// A record differing in any field is a new event.
	require.NoError(t, sink.Append(ctx, tradeRec(1700000001, 3, 6502.50)))
}

func TestSink_SchemaIsIdempotent(t *testing.T) {
	sink, cleanup := setupTestSink(t)
	defer cleanup()

	// Re-applying the embedded schema on an initialized database must not
	// fail; startup after a crash does exactly this.
	require.NoError(t, applySchema(context.Background(), sink.pool))
}
