package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/pixelboard/internal/adapter/metrics"
	"github.com/pscheid92/pixelboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testPool        *pgxpool.Pool
	testDatabaseURL string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() {
			if err := container.Terminate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
			}
		}()

		testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
			return 1
		}

		testPool, err = Connect(ctx, testDatabaseURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
			return 1
		}
		defer testPool.Close()

		if err := RunMigrationsWithLock(ctx, testPool); err != nil {
			fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	t.Cleanup(func() {
		if _, err := testPool.Exec(context.Background(), "TRUNCATE pixels, users CASCADE"); err != nil {
			t.Logf("failed to truncate tables: %v", err)
		}
	})
	return testPool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool, id string, role domain.Role) {
	t.Helper()
	require.NoError(t, NewUserRepo(pool).Upsert(context.Background(), domain.User{ID: id, Email: id + "@example.com", Role: role}))
}

func TestConnect_WithTracer(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	dbm := metrics.NewDBMetrics(prometheus.NewRegistry())

	pool, err := Connect(ctx, testDatabaseURL, dbm)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, "SELECT 1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(dbm.QueryDuration), 1)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestMigrationStatus_AtLatest(t *testing.T) {
	pool := setupTestDB(t)

	current, latest, err := MigrationStatus(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, latest, current)
	assert.Equal(t, int32(2), latest)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	require.NoError(t, RunMigrationsWithLock(context.Background(), pool))
}

func TestPixelRepo_InsertAndBoard(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPixelRepo(pool)
	ctx := context.Background()
	createTestUser(t, pool, "u1", domain.RoleUser)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertPixel(ctx, domain.NewPixel(5, 5, "#ff0000", domain.NewAuthenticatedActor("u1"), base)))
	require.NoError(t, repo.InsertPixel(ctx, domain.NewPixel(5, 5, "#00ff00", domain.NewAnonymousActor("a1"), base.Add(time.Second))))
	require.NoError(t, repo.InsertPixel(ctx, domain.NewPixel(1, 2, "#0000ff", domain.NewAuthenticatedActor("u1"), base)))

	pixels, err := repo.Board(ctx, 200, 200)
	require.NoError(t, err)
	require.Len(t, pixels, 2)

	assert.Equal(t, 1, pixels[0].X)
	assert.Equal(t, "#0000ff", pixels[0].Color)
	require.NotNil(t, pixels[0].UserID)
	assert.Equal(t, "u1", *pixels[0].UserID)

	assert.Equal(t, 5, pixels[1].X)
	assert.Equal(t, "#00ff00", pixels[1].Color)
	assert.Nil(t, pixels[1].UserID)
	require.NotNil(t, pixels[1].AnonID)
	assert.Equal(t, "a1", *pixels[1].AnonID)
	assert.True(t, base.Add(time.Second).Equal(pixels[1].PlacedAt))
}

func TestPixelRepo_BoardBounded(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPixelRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.InsertPixel(ctx, domain.NewPixel(150, 10, "#123456", domain.NewAnonymousActor("a1"), time.Now())))

	pixels, err := repo.Board(ctx, 100, 100)
	require.NoError(t, err)
	assert.Empty(t, pixels)
}

func TestPixelRepo_UnknownUserRejected(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPixelRepo(pool)

	err := repo.InsertPixel(context.Background(), domain.NewPixel(0, 0, "#ffffff", domain.NewAuthenticatedActor("ghost"), time.Now()))
	assert.Error(t, err)

	pixels, err := repo.Board(context.Background(), 200, 200)
	require.NoError(t, err)
	assert.Empty(t, pixels)
}

func TestUserRepo_Status(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()
	createTestUser(t, pool, "u1", domain.RoleAdmin)

	user, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Equal(t, "u1@example.com", user.Email)

	require.NoError(t, repo.SetStatus(ctx, "u1", domain.UserStatusBanned))
	user, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusBanned, user.Status)
}

func TestUserRepo_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.ErrorIs(t, repo.SetStatus(ctx, "missing", domain.UserStatusBanned), domain.ErrUserNotFound)
}

func TestUserRepo_UpsertUpdatesRole(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, domain.User{ID: "u1", Email: "a@example.com"}))
	require.NoError(t, repo.Upsert(ctx, domain.User{ID: "u1", Email: "b@example.com", Role: domain.RoleAdmin}))

	user, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", user.Email)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Equal(t, domain.UserStatusActive, user.Status)
}
