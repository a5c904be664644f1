package database

import (
	"context"
	"database/sql"
	"errors"

	"storefront/models"
)

// SQLStore implements Store on top of *sql.DB.
type SQLStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Begin(ctx context.Context) (OrderTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlOrderTx{tx: tx}, nil
}

type sqlOrderTx struct {
	tx *sql.Tx
}

func (t *sqlOrderTx) ProductForUpdate(ctx context.Context, productID int64) (*models.Product, error) {
	var p models.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products
		WHERE id = ?
		FOR UPDATE
	`, productID).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *sqlOrderTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?
	`, quantity, productID, quantity)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStockConflict
	}
	return nil
}

func (t *sqlOrderTx) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, updated_at = NOW()
		WHERE id = ?
	`, quantity, productID)
	return err
}

func (t *sqlOrderTx) InsertOrder(ctx context.Context, order *models.Order) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, order.UserID, order.Total, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (t *sqlOrderTx) InsertOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES (?, ?, ?, ?, ?)
	`, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
	return err
}

func (t *sqlOrderTx) OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	var o models.Order
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE id = ?
		FOR UPDATE
	`, orderID).Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (t *sqlOrderTx) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ?
		ORDER BY product_id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (t *sqlOrderTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = NOW()
		WHERE id = ?
	`, status, orderID)
	return err
}

func (t *sqlOrderTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlOrderTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
