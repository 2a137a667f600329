package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zoomarket/shop-subscriptions/internal/migrations"
	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// setupTestStorage поднимает контейнер PostgreSQL и применяет миграции.
func setupTestStorage(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	postgresContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	require.NoError(t, migrations.Run(storage.DB, "../../../migrations"), "failed to apply migrations")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if postgresContainer != nil {
			_ = postgresContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}

func mustCreateShop(t *testing.T, s *Storage, ownerUID string) string {
	t.Helper()
	shop := models.Shop{
		ID:         uuid.New().String(),
		OwnerUID:   ownerUID,
		OwnerEmail: "owner@example.com",
		Name:       "Лапки и хвосты",
	}
	require.NoError(t, s.CreateShop(context.Background(), shop))
	return shop.ID
}

func pendingSubscription(shopID string) models.Subscription {
	return models.Subscription{
		ID:                uuid.New().String(),
		ShopID:            shopID,
		Plan:              models.PlanRetailer,
		Amount:            9999,
		Status:            models.SubscriptionPending,
		AttemptsRemaining: 3,
		PaymentSessionRef: uuid.New().String(),
		Version:           1,
	}
}

func TestStorage_CreateShopAndRead(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	shopID := mustCreateShop(t, storage, "owner-1001")

	shop, err := storage.ReadShop(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, models.ShopPendingPayment, shop.Status)
	assert.Equal(t, "owner-1001", shop.OwnerUID)
	assert.Equal(t, int64(1), shop.Version)

	_, err = storage.ReadShop(ctx, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_CreateSubscription(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	shopID := mustCreateShop(t, storage, "owner-1001")

	sub := pendingSubscription(shopID)
	require.NoError(t, storage.CreateSubscription(ctx, sub))

	got, err := storage.ReadSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, got.Status)
	assert.Equal(t, 3, got.AttemptsRemaining)
	assert.Nil(t, got.StartDate)
	assert.Nil(t, got.EndDate)

	// Вторая подписка на тот же магазин, пока первая не разрешена
	err = storage.CreateSubscription(ctx, pendingSubscription(shopID))
	assert.ErrorIs(t, err, models.ErrConflict)

	// Подписка для несуществующего магазина
	err = storage.CreateSubscription(ctx, pendingSubscription(uuid.New().String()))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_ApplyTransition(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	shopID := mustCreateShop(t, storage, "owner-1001")
	sub := pendingSubscription(shopID)
	require.NoError(t, storage.CreateSubscription(ctx, sub))

	current, err := storage.ReadSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)

	stale := *current

	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	current.Status = models.SubscriptionActive
	current.StartDate = &start
	current.EndDate = &end
	require.NoError(t, storage.ApplyTransition(ctx, current, models.ShopActive))
	assert.Equal(t, int64(2), current.Version)

	shop, err := storage.ReadShop(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, models.ShopActive, shop.Status)

	// Конкурентное обновление по устаревшей версии
	stale.Status = models.SubscriptionFailed
	err = storage.ApplyTransition(ctx, &stale, models.ShopPendingPayment)
	assert.ErrorIs(t, err, models.ErrVersionConflict)
}

func TestStorage_ApplyTransition_SuspendedShopStaysSuspended(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	shopID := mustCreateShop(t, storage, "owner-1001")
	sub := pendingSubscription(shopID)
	require.NoError(t, storage.CreateSubscription(ctx, sub))

	_, err := storage.DB.ExecContext(ctx,
		`UPDATE shops SET status = 'suspended', version = version + 1 WHERE id = $1`, shopID)
	require.NoError(t, err)

	current, err := storage.ReadSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)

	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	current.Status = models.SubscriptionActive
	current.StartDate = &start
	current.EndDate = &end
	require.NoError(t, storage.ApplyTransition(ctx, current, models.ShopActive))

	shop, err := storage.ReadShop(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, models.ShopSuspended, shop.Status)
}

func TestStorage_ReadSubscriptionBySessionRef(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	shopID := mustCreateShop(t, storage, "owner-1001")
	sub := pendingSubscription(shopID)
	require.NoError(t, storage.CreateSubscription(ctx, sub))

	got, err := storage.ReadSubscriptionBySessionRef(ctx, sub.PaymentSessionRef)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = storage.ReadSubscriptionBySessionRef(ctx, uuid.New().String())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_ListQueries(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC()
	pastStart := now.AddDate(0, -2, 0)
	pastEnd := now.AddDate(0, -1, 0)
	stalledEnd := now.AddDate(0, -3, 0)
	stalledBefore := now.AddDate(0, -2, 0)

	activate := func(shopID string, autoRenew bool, target models.SubscriptionStatus, end time.Time) *models.Subscription {
		sub := pendingSubscription(shopID)
		sub.AutoRenew = autoRenew
		require.NoError(t, storage.CreateSubscription(ctx, sub))

		current, err := storage.ReadSubscriptionByID(ctx, sub.ID)
		require.NoError(t, err)
		current.Status = target
		current.StartDate = &pastStart
		current.EndDate = &end
		require.NoError(t, storage.ApplyTransition(ctx, current, models.ShopActive))
		return current
	}

	// Истёкшая активная подписка без автопродления
	expiring := activate(mustCreateShop(t, storage, "owner-1"), false, models.SubscriptionActive, pastEnd)
	// Истёкшая активная подписка с автопродлением
	renewing := activate(mustCreateShop(t, storage, "owner-2"), true, models.SubscriptionActive, pastEnd)
	// Отменённая подписка, срок которой прошёл
	cancelled := activate(mustCreateShop(t, storage, "owner-3"), false, models.SubscriptionCancelled, pastEnd)
	// Автопродление, не начавшееся дольше порога давности
	stalled := activate(mustCreateShop(t, storage, "owner-5"), true, models.SubscriptionActive, stalledEnd)

	// Продление, не подтверждённое до крайнего срока
	graceShop := mustCreateShop(t, storage, "owner-4")
	graced := pendingSubscription(graceShop)
	require.NoError(t, storage.CreateSubscription(ctx, graced))
	current, err := storage.ReadSubscriptionByID(ctx, graced.ID)
	require.NoError(t, err)
	deadline := now.Add(-time.Hour)
	current.EndDate = &pastEnd
	current.GraceUntil = &deadline
	require.NoError(t, storage.ApplyTransition(ctx, current, models.ShopPendingPayment))

	// Отклонённое продление, не повторённое до крайнего срока
	declinedShop := mustCreateShop(t, storage, "owner-6")
	declined := pendingSubscription(declinedShop)
	require.NoError(t, storage.CreateSubscription(ctx, declined))
	current, err = storage.ReadSubscriptionByID(ctx, declined.ID)
	require.NoError(t, err)
	current.Status = models.SubscriptionFailed
	current.EndDate = &pastEnd
	current.GraceUntil = &deadline
	require.NoError(t, storage.ApplyTransition(ctx, current, models.ShopPendingPayment))

	ids := func(subs []*models.Subscription) []string {
		var out []string
		for _, s := range subs {
			out = append(out, s.ID)
		}
		return out
	}

	candidates, err := storage.ListExpiryCandidates(ctx, now, stalledBefore)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{expiring.ID, cancelled.ID, stalled.ID}, ids(candidates))

	renewals, err := storage.ListRenewalDue(ctx, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{renewing.ID, stalled.ID}, ids(renewals))

	expired, err := storage.ListGraceExpired(ctx, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{graced.ID, declined.ID}, ids(expired))
}

func TestStorage_CheckDatabaseReady(t *testing.T) {
	storage, cleanup := setupTestStorage(t)
	defer cleanup()

	assert.NoError(t, storage.CheckDatabaseReady(context.Background()))
}
