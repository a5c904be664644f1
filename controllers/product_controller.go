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

	"github.com/gin-gonic/gin"
)

// requireCatalogWrite resolves the caller and applies the catalog write
// rule: only admins may create, update or delete products.
func requireCatalogWrite(c *gin.Context) bool {
	_, role, ok := middlewares.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return false
	}
	if !permissions.CanWriteCatalog(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admin users can modify products"})
		return false
	}
	return true
}

// ListProducts returns the whole catalog. Open to anonymous callers.
func ListProducts(c *gin.Context) {
	rows, err := database.DB.Query(`
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			log.Printf("Error scanning product: %v", err)
			continue
		}
		products = append(products, p)
	}

	c.JSON(http.StatusOK, products)
}

// GetProduct returns a single product. Open to anonymous callers.
func GetProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var p models.Product
	err = database.DB.QueryRow(`
		SELECT id, name, description, price, stock, created_at, updated_at
		FROM products
		WHERE id = ?
	`, productID).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// CreateProduct adds a catalog entry. Admin only.
func CreateProduct(c *gin.Context) {
	if !requireCatalogWrite(c) {
		return
	}

	req, ok := bindProduct(c)
	if !ok {
		return
	}

	now := time.Now()
	result, err := database.DB.Exec(`
		INSERT INTO products (name, description, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.Name, req.Description, req.Price, *req.Stock, now, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	productID, err := result.LastInsertId()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, models.Product{
		ID:          productID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       *req.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// UpdateProduct replaces a product's fields. Admin only.
func UpdateProduct(c *gin.Context) {
	if !requireCatalogWrite(c) {
		return
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	req, ok := bindProduct(c)
	if !ok {
		return
	}

	result, err := database.DB.Exec(`
		UPDATE products
		SET name = ?, description = ?, price = ?, stock = ?, updated_at = NOW()
		WHERE id = ?
	`, req.Name, req.Description, req.Price, *req.Stock, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// MySQL also reports zero affected rows for a no-op update, so
		// confirm the product really is missing.
		var exists bool
		if err := database.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)", productID).Scan(&exists); err != nil || !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product_id": productID})
}

// DeleteProduct removes a product that no order item references. Products
// with order history cannot be hard-deleted; their line items keep the
// snapshot name and price.
func DeleteProduct(c *gin.Context) {
	if !requireCatalogWrite(c) {
		return
	}

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var referenced bool
	if err := database.DB.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = ?)", productID,
	).Scan(&referenced); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if referenced {
		c.JSON(http.StatusConflict, gin.H{"error": "Product is referenced by existing orders and cannot be deleted"})
		return
	}

	result, err := database.DB.Exec("DELETE FROM products WHERE id = ?", productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "product_id": productID})
}

func bindProduct(c *gin.Context) (*models.ProductRequest, bool) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price cannot be negative"})
		return nil, false
	}
	if *req.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
		return nil, false
	}
	return &req, true
}
