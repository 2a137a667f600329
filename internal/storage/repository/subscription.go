package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zoomarket/shop-subscriptions/internal/models"
)

const subscriptionColumns = `id, shop_id, plan, amount, status, auto_renew,
			attempts_remaining, payment_session_ref, start_date, end_date,
			grace_until, version, created_at, updated_at`

// uniqueViolation код PostgreSQL для нарушения уникального индекса.
const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var result models.Subscription
	err := row.Scan(&result.ID, &result.ShopID, &result.Plan, &result.Amount,
		&result.Status, &result.AutoRenew, &result.AttemptsRemaining,
		&result.PaymentSessionRef, &result.StartDate, &result.EndDate,
		&result.GraceUntil, &result.Version, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSubscription вставляет новую подписку магазина и переводит магазин
// в статус pending_payment в одной транзакции. Строка магазина блокируется
// на время транзакции, так что конкурентные создания сериализуются.
//
// Возвращает models.ErrConflict, если у магазина уже есть подписка
// в статусе pending или active (проверка плюс частичный уникальный
// индекс как страховка от гонки между инстансами), и models.ErrNotFound,
// если магазина не существует.
// Магазин в статусе suspended остаётся suspended.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	shop, err := lockShop(ctx, tx, sub.ShopID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions
		  WHERE shop_id = $1 AND status IN ('pending', 'active'))`,
		sub.ShopID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, models.ErrConflict)
	}

	query := `INSERT INTO subscriptions (id, shop_id, plan, amount, status, auto_renew,
				  attempts_remaining, payment_session_ref)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(ctx, query,
		sub.ID, sub.ShopID, sub.Plan, sub.Amount, sub.Status, sub.AutoRenew,
		sub.AttemptsRemaining, sub.PaymentSessionRef)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, models.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if shop.Status != models.ShopSuspended {
		if err = updateShopStatus(ctx, tx, shop.ID, models.ShopPendingPayment, shop.Version); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplyTransition записывает новое состояние подписки и проекцию статуса
// магазина в одной транзакции. Подписка обновляется с проверкой версии:
// если строка изменена конкурентной операцией, возвращается
// models.ErrVersionConflict и вызывающий обязан перечитать состояние.
// Статус suspended у магазина никогда не перезаписывается.
func (s *Storage) ApplyTransition(ctx context.Context, sub *models.Subscription, shopStatus models.ShopStatus) error {
	const op = "storage.ApplyTransition"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	shop, err := lockShop(ctx, tx, sub.ShopID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE subscriptions
			  SET status = $1, auto_renew = $2, attempts_remaining = $3,
			      payment_session_ref = $4, start_date = $5, end_date = $6,
			      grace_until = $7, version = version + 1, updated_at = now()
			  WHERE id = $8 AND version = $9`
	result, err := tx.ExecContext(ctx, query,
		sub.Status, sub.AutoRenew, sub.AttemptsRemaining,
		sub.PaymentSessionRef, sub.StartDate, sub.EndDate,
		sub.GraceUntil, sub.ID, sub.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrVersionConflict)
	}

	if shop.Status != models.ShopSuspended && shop.Status != shopStatus {
		if err = updateShopStatus(ctx, tx, shop.ID, shopStatus, shop.Version); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sub.Version++
	return nil
}

// ReadSubscriptionByID возвращает подписку по её ID.
func (s *Storage) ReadSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.ReadSubscriptionByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ReadSubscriptionByShopID возвращает текущую подписку магазина —
// последнюю созданную. Исторические записи сохраняются для аудита,
// но текущей считается одна.
func (s *Storage) ReadSubscriptionByShopID(ctx context.Context, shopID string) (*models.Subscription, error) {
	const op = "storage.ReadSubscriptionByShopID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE shop_id = $1 ORDER BY created_at DESC LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ReadSubscriptionBySessionRef возвращает подписку по ссылке платёжной
// сессии. Используется при сверке по webhook-уведомлению шлюза.
func (s *Storage) ReadSubscriptionBySessionRef(ctx context.Context, sessionRef string) (*models.Subscription, error) {
	const op = "storage.ReadSubscriptionBySessionRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE payment_session_ref = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, sessionRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ListExpiryCandidates возвращает подписки со статусом active или cancelled,
// срок которых истёк. Подписки с автопродлением попадают сюда только
// если продление не началось до stalledBefore — например, шлюз был
// недоступен несколько обходов подряд; до этого их подхватывает
// ListRenewalDue.
func (s *Storage) ListExpiryCandidates(ctx context.Context, now, stalledBefore time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListExpiryCandidates"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE (status IN ('active', 'cancelled') AND end_date < $1
			         AND NOT (status = 'active' AND auto_renew))
			     OR (status = 'active' AND auto_renew AND end_date < $2)`
	return s.listSubscriptions(ctx, op, query, now, stalledBefore)
}

// ListRenewalDue возвращает активные подписки с автопродлением,
// срок которых истёк и которым пора начинать продление.
func (s *Storage) ListRenewalDue(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListRenewalDue"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE status = 'active' AND auto_renew AND end_date < $1`
	return s.listSubscriptions(ctx, op, query, now)
}

// ListGraceExpired возвращает продления с пропущенным крайним сроком
// подтверждения: как ожидающие платёж, так и отклонённые и не повторённые.
// Отклонённые первичные платежи не имеют grace_until и сюда не попадают.
func (s *Storage) ListGraceExpired(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListGraceExpired"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
			  WHERE status IN ('pending', 'failed')
			    AND grace_until IS NOT NULL AND grace_until < $1`
	return s.listSubscriptions(ctx, op, query, now)
}

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
