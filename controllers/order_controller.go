package controllers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"storefront/database"
	"storefront/middlewares"
	"storefront/models"
	"storefront/permissions"
	"storefront/rabbitmq"
	"storefront/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var (
	rabbitMQ     *rabbitmq.RabbitMQ
	orderService *services.OrderService
)

func SetRabbitMQ(rmq *rabbitmq.RabbitMQ) {
	rabbitMQ = rmq
}

func SetOrderService(svc *services.OrderService) {
	orderService = svc
}

// CreateOrder places an order for the authenticated customer. The order
// engine validates every line against locked stock before decrementing, so
// a failure here never leaves partial stock changes behind.
func CreateOrder(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("create", status)
	}()

	userID, _, ok := middlewares.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := orderService.PlaceOrder(c.Request.Context(), userID, req.Items)
	if err != nil {
		var validationErr *services.ValidationError
		var notFoundErr *services.ProductNotFoundError
		var stockErr *services.InsufficientStockError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		case errors.As(err, &notFoundErr):
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
		case errors.As(err, &stockErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": stockErr.Error()})
		default:
			log.Printf("Order placement failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		}
		return
	}

	c.JSON(http.StatusCreated, order)

	if rabbitMQ != nil {
		priority := uint8(5)
		if order.Total.GreaterThan(decimal.NewFromInt(1000)) { // large orders first
			priority = 9
		}

		event := models.OrderEvent{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Type:     "created",
			Status:   order.Status,
			Total:    order.Total,
			Occurred: time.Now(),
		}
		if err := rabbitMQ.PublishOrderEvent(event, priority); err != nil {
			log.Printf("Failed to publish order created event: %v", err)
		}

		// Schedule the payment check that auto-cancels unpaid orders.
		event.Type = "payment_check"
		if err := rabbitMQ.PublishDelayedEvent(event, rabbitMQ.Cfg.PaymentWindow); err != nil {
			log.Printf("Failed to publish delayed payment check event: %v", err)
		}
	}
}

// GetUserOrders lists the caller's orders; admins see every order.
func GetUserOrders(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("list", status)
	}()

	userID, role, ok := middlewares.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	query := `
		SELECT o.id, o.user_id, o.total, o.status, o.created_at,
		       oi.id, oi.product_id, oi.product_name, oi.quantity, oi.price
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
	`
	args := []interface{}{}
	if role != models.RoleAdmin {
		query += " WHERE o.user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY o.created_at DESC, oi.id ASC"

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	defer rows.Close()

	ordersMap := make(map[int64]*models.Order)
	orderIDs := make([]int64, 0)
	for rows.Next() {
		var (
			order models.Order
			item  models.OrderItem
		)
		if err := rows.Scan(&order.ID, &order.UserID, &order.Total, &order.Status, &order.CreatedAt,
			&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			log.Printf("Error scanning order row: %v", err)
			continue
		}

		if _, exists := ordersMap[order.ID]; !exists {
			order.Items = []models.OrderItem{}
			ordersMap[order.ID] = &order
			orderIDs = append(orderIDs, order.ID)
		}
		ordersMap[order.ID].Items = append(ordersMap[order.ID].Items, item)
	}

	orders := make([]models.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *ordersMap[id])
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrderDetails returns one order for its owner or an admin.
func GetOrderDetails(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("details", status)
	}()

	userID, role, ok := middlewares.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var order models.Order
	err = database.DB.QueryRow(`
		SELECT id, user_id, total, status, created_at, updated_at
		FROM orders
		WHERE id = ?
	`, orderID).Scan(&order.ID, &order.UserID, &order.Total, &order.Status,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !permissions.CanViewOrder(userID, role, order.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to view this order"})
		return
	}

	rows, err := database.DB.Query(`
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get order items"})
		return
	}
	defer rows.Close()

	order.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.ProductName, &item.Quantity, &item.Price); err != nil {
			log.Printf("Error scanning order item: %v", err)
			continue
		}
		order.Items = append(order.Items, item)
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus transitions an order. Admins may set any status; the
// owner may only cancel while pending, which returns stock.
func UpdateOrderStatus(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("update_status", status)
	}()

	userID, role, ok := middlewares.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var request struct {
		Status string `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ownerID int64
	err = database.DB.QueryRow("SELECT user_id FROM orders WHERE id = ?", orderID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !permissions.CanChangeOrderStatus(userID, role, ownerID, request.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to change this order"})
		return
	}

	order, err := orderService.UpdateStatus(c.Request.Context(), orderID, request.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, services.ErrOrderNotCancellable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("Status update failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order_id": orderID, "status": order.Status})

	if rabbitMQ != nil {
		priority := uint8(5)
		if request.Status == models.OrderStatusCancelled { // cancellations first
			priority = 8
		}

		event := models.OrderEvent{
			OrderID:  order.ID,
			UserID:   order.UserID,
			Type:     "status_updated",
			Status:   order.Status,
			Total:    order.Total,
			Occurred: time.Now(),
		}
		if err := rabbitMQ.PublishOrderEvent(event, priority); err != nil {
			log.Printf("Failed to publish order updated event: %v", err)
		}
	}
}

// HandleDeadLetter accepts dead-lettered order events for inspection.
func HandleDeadLetter(c *gin.Context) {
	defer func() {
		status := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("dead_letter", status)
	}()

	var deadLetter struct {
		OrderID int64  `json:"order_id"`
		Reason  string `json:"reason"`
	}

	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("Handling dead letter for order %d: %s", deadLetter.OrderID, deadLetter.Reason)

	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
