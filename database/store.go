package database

import (
	"context"
	"errors"

	"storefront/models"
)

var (
	// ErrNotFound is returned when a row lookup matches nothing.
	ErrNotFound = errors.New("record not found")

	// ErrStockConflict is returned when a conditional stock decrement
	// affects no rows, i.e. the remaining stock no longer covers the
	// requested quantity.
	ErrStockConflict = errors.New("stock conflict")
)

// Store opens order transactions against the relational store.
type Store interface {
	Begin(ctx context.Context) (OrderTx, error)
}

// OrderTx is a single database transaction scoped to order placement and
// order lifecycle changes. Either Commit or Rollback must be called;
// Rollback after Commit is a no-op.
type OrderTx interface {
	// ProductForUpdate fetches a product and locks its row until the
	// transaction ends. Returns ErrNotFound for unknown ids.
	ProductForUpdate(ctx context.Context, productID int64) (*models.Product, error)

	// DecrementStock atomically subtracts quantity from the product's
	// stock, failing with ErrStockConflict if stock < quantity.
	DecrementStock(ctx context.Context, productID int64, quantity int) error

	// RestoreStock adds quantity back to the product's stock.
	RestoreStock(ctx context.Context, productID int64, quantity int) error

	InsertOrder(ctx context.Context, order *models.Order) (int64, error)
	InsertOrderItem(ctx context.Context, item *models.OrderItem) error

	// OrderForUpdate fetches an order without its items and locks it.
	OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error

	Commit() error
	Rollback() error
}
