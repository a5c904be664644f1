package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"storefront/database"
	"storefront/models"

	"github.com/shopspring/decimal"
)

// OrderService is the order engine. Placement runs as a single transaction:
// every line item is validated against locked product rows before any stock
// moves, so a failing line leaves no product decremented and no order row
// behind.
type OrderService struct {
	store database.Store
}

func NewOrderService(store database.Store) *OrderService {
	return &OrderService{store: store}
}

// PlaceOrder validates and commits an order for customerID. On success the
// returned order carries its generated id, snapshot item prices and the
// computed total. On failure no stock is decremented and nothing is
// persisted.
func (s *OrderService) PlaceOrder(ctx context.Context, customerID int64, lines []models.OrderLineRequest) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &ValidationError{Field: "quantity", Reason: "quantity must be a positive integer"}
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin", Err: err}
	}

	order, err := s.placeOrder(ctx, tx, customerID, lines)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, &StorageError{Op: "commit", Err: err}
	}
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, tx database.OrderTx, customerID int64, lines []models.OrderLineRequest) (*models.Order, error) {
	// Lock product rows in ascending id order so that two concurrent
	// multi-item orders sharing products cannot deadlock. Failures are
	// still reported against the submission order below.
	ids := distinctProductIDs(lines)
	products := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		product, err := tx.ProductForUpdate(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, &StorageError{Op: "lock product", Err: err}
		}
		products[id] = product
	}

	for _, line := range lines {
		if products[line.ProductID] == nil {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}
	}

	// Validate every line before touching any stock. Quantities for the
	// same product accumulate across lines.
	needed := make(map[int64]int, len(ids))
	for _, line := range lines {
		product := products[line.ProductID]
		needed[line.ProductID] += line.Quantity
		if needed[line.ProductID] > product.Stock {
			return nil, &InsufficientStockError{ProductName: product.Name}
		}
	}

	// All lines passed; decrement in the same ascending order. The
	// decrement is conditional on remaining stock, so a conflict is
	// reported exactly like a failed pre-check.
	for _, id := range ids {
		err := tx.DecrementStock(ctx, id, needed[id])
		if errors.Is(err, database.ErrStockConflict) {
			return nil, &InsufficientStockError{ProductName: products[id].Name}
		}
		if err != nil {
			return nil, &StorageError{Op: "decrement stock", Err: err}
		}
	}

	now := time.Now()
	order := &models.Order{
		UserID:    customerID,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	total := decimal.Zero
	for _, line := range lines {
		product := products[line.ProductID]
		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
		}
		total = total.Add(item.Subtotal())
		order.Items = append(order.Items, item)
	}
	order.Total = total

	orderID, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return nil, &StorageError{Op: "insert order", Err: err}
	}
	order.ID = orderID

	for i := range order.Items {
		order.Items[i].OrderID = orderID
		if err := tx.InsertOrderItem(ctx, &order.Items[i]); err != nil {
			return nil, &StorageError{Op: "insert order item", Err: err}
		}
	}

	return order, nil
}

// UpdateStatus transitions an order to the given status. Cancelling is only
// allowed while the order is still pending and returns every item's quantity
// to product stock within the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, &StorageError{Op: "begin", Err: err}
	}

	order, err := s.updateStatus(ctx, tx, orderID, status)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, &StorageError{Op: "commit", Err: err}
	}
	return order, nil
}

func (s *OrderService) updateStatus(ctx context.Context, tx database.OrderTx, orderID int64, status string) (*models.Order, error) {
	order, err := tx.OrderForUpdate(ctx, orderID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "lock order", Err: err}
	}

	if status == models.OrderStatusCancelled {
		if order.Status != models.OrderStatusPending {
			return nil, ErrOrderNotCancellable
		}
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return nil, &StorageError{Op: "load order items", Err: err}
		}
		// Items come back in ascending product id order, matching the
		// lock order used at placement.
		for _, item := range items {
			if err := tx.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return nil, &StorageError{Op: "restore stock", Err: err}
			}
		}
		order.Items = items
	}

	if err := tx.UpdateOrderStatus(ctx, orderID, status); err != nil {
		return nil, &StorageError{Op: "update status", Err: err}
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	return order, nil
}

// CancelIfUnpaid cancels and restocks an order that is still pending, as
// part of the delayed payment check. An order already paid or cancelled is
// left alone.
func (s *OrderService) CancelIfUnpaid(ctx context.Context, orderID int64) (bool, error) {
	_, err := s.UpdateStatus(ctx, orderID, models.OrderStatusCancelled)
	if errors.Is(err, ErrOrderNotCancellable) || errors.Is(err, ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func distinctProductIDs(lines []models.OrderLineRequest) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
