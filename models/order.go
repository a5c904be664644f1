package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"customer"`
	Total     decimal.Decimal `json:"total_price"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID          int64           `json:"-"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"product"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Subtotal is the snapshot unit price times the ordered quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderRequest struct {
	Items []OrderLineRequest `json:"items" binding:"required"`
}

type OrderLineRequest struct {
	ProductID int64 `json:"product" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

type OrderEvent struct {
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Type     string          `json:"type"` // created, status_updated, payment_check
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Occurred time.Time       `json:"occurred"`
}
