package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"storefront/database"
	"storefront/models"
)

var errInduced = errors.New("induced storage failure")

// memStore is an in-memory Store for engine tests. Begin takes the store
// lock and holds it until Commit or Rollback, which serializes transactions
// the way row locks do against MySQL. Writes are staged inside the
// transaction and only applied on Commit.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]*models.Product
	orders      map[int64]*models.Order
	items       map[int64][]models.OrderItem
	nextOrderID int64
	nextItemID  int64

	// failOp makes the named transaction operation fail, for rollback
	// tests. Matches the OrderTx method name.
	failOp string
}

func newMemStore(products ...models.Product) *memStore {
	s := &memStore{
		products: make(map[int64]*models.Product),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]models.OrderItem),
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

func (s *memStore) Begin(_ context.Context) (database.OrderTx, error) {
	s.mu.Lock()
	return &memTx{
		store:         s,
		products:      make(map[int64]*models.Product),
		statusUpdates: make(map[int64]string),
	}, nil
}

// productStock reads committed stock outside any transaction.
func (s *memStore) productStock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type memTx struct {
	store         *memStore
	products      map[int64]*models.Product
	newOrders     []*models.Order
	newItems      []models.OrderItem
	statusUpdates map[int64]string
	done          bool
}

func (t *memTx) staged(id int64) (*models.Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	p, ok := t.store.products[id]
	if !ok {
		return nil, false
	}
	cp := *p
	t.products[id] = &cp
	return &cp, true
}

func (t *memTx) ProductForUpdate(_ context.Context, productID int64) (*models.Product, error) {
	if t.store.failOp == "ProductForUpdate" {
		return nil, errInduced
	}
	p, ok := t.staged(productID)
	if !ok {
		return nil, database.ErrNotFound
	}
	return p, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	if t.store.failOp == "DecrementStock" {
		return errInduced
	}
	p, ok := t.staged(productID)
	if !ok {
		return database.ErrNotFound
	}
	if p.Stock < quantity {
		return database.ErrStockConflict
	}
	p.Stock -= quantity
	return nil
}

func (t *memTx) RestoreStock(_ context.Context, productID int64, quantity int) error {
	if t.store.failOp == "RestoreStock" {
		return errInduced
	}
	p, ok := t.staged(productID)
	if !ok {
		return database.ErrNotFound
	}
	p.Stock += quantity
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) (int64, error) {
	if t.store.failOp == "InsertOrder" {
		return 0, errInduced
	}
	t.store.nextOrderID++
	cp := *order
	cp.ID = t.store.nextOrderID
	cp.Items = nil
	t.newOrders = append(t.newOrders, &cp)
	return cp.ID, nil
}

func (t *memTx) InsertOrderItem(_ context.Context, item *models.OrderItem) error {
	if t.store.failOp == "InsertOrderItem" {
		return errInduced
	}
	t.store.nextItemID++
	cp := *item
	cp.ID = t.store.nextItemID
	t.newItems = append(t.newItems, cp)
	return nil
}

func (t *memTx) OrderForUpdate(_ context.Context, orderID int64) (*models.Order, error) {
	if t.store.failOp == "OrderForUpdate" {
		return nil, errInduced
	}
	o, ok := t.store.orders[orderID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *o
	cp.Items = nil
	if status, ok := t.statusUpdates[orderID]; ok {
		cp.Status = status
	}
	return &cp, nil
}

func (t *memTx) OrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	if t.store.failOp == "OrderItems" {
		return nil, errInduced
	}
	items := append([]models.OrderItem(nil), t.store.items[orderID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, orderID int64, status string) error {
	if t.store.failOp == "UpdateOrderStatus" {
		return errInduced
	}
	if _, ok := t.store.orders[orderID]; !ok {
		return database.ErrNotFound
	}
	t.statusUpdates[orderID] = status
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	for id, p := range t.products {
		t.store.products[id] = p
	}
	for _, o := range t.newOrders {
		t.store.orders[o.ID] = o
	}
	for _, item := range t.newItems {
		t.store.items[item.OrderID] = append(t.store.items[item.OrderID], item)
	}
	for id, status := range t.statusUpdates {
		t.store.orders[id].Status = status
	}
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
