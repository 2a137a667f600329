package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zoomarket/shop-subscriptions/internal/models"
)

// CreateShop вставляет новый магазин. Статус при регистрации
// всегда pending_payment: магазин скрыт до подтверждения оплаты.
func (s *Storage) CreateShop(ctx context.Context, shop models.Shop) error {
	const op = "storage.CreateShop"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO shops (id, owner_uid, owner_email, name, status)
			  VALUES ($1, $2, $3, $4, $5)`
	_, err := s.DB.ExecContext(ctx, query,
		shop.ID, shop.OwnerUID, shop.OwnerEmail, shop.Name, models.ShopPendingPayment)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadShop возвращает магазин по его ID.
// Возвращает models.ErrNotFound, если записи нет; ошибки хранилища
// сохраняют собственный тип и не смешиваются с отсутствием записи.
func (s *Storage) ReadShop(ctx context.Context, id string) (*models.Shop, error) {
	const op = "storage.ReadShop"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, owner_uid, owner_email, name, status, version, created_at, updated_at
			  FROM shops WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.Shop
	if err := row.Scan(&result.ID, &result.OwnerUID, &result.OwnerEmail, &result.Name,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// lockShop берёт построчную блокировку магазина внутри транзакции.
// Все мутации подписки магазина проходят через эту блокировку,
// что сериализует конкурентные операции на уровне базы.
func lockShop(ctx context.Context, tx *sql.Tx, shopID string) (*models.Shop, error) {
	query := `SELECT id, owner_uid, owner_email, name, status, version, created_at, updated_at
			  FROM shops WHERE id = $1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, query, shopID)

	var result models.Shop
	if err := row.Scan(&result.ID, &result.OwnerUID, &result.OwnerEmail, &result.Name,
		&result.Status, &result.Version, &result.CreatedAt, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// updateShopStatus пишет новый статус магазина внутри транзакции,
// проверяя версию строки.
func updateShopStatus(ctx context.Context, tx *sql.Tx, shopID string, status models.ShopStatus, version int64) error {
	query := `UPDATE shops
			  SET status = $1, version = version + 1, updated_at = now()
			  WHERE id = $2 AND version = $3`
	result, err := tx.ExecContext(ctx, query, status, shopID, version)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrVersionConflict
	}
	return nil
}
