// Package memstore provides an in-memory service.Store for tests and
// local development. Transactions are modeled as copy-on-write snapshots
// under one lock, which gives the same observable semantics as the
// Postgres store: a failed transaction leaves nothing behind, and
// concurrent updates of one order or product serialize.
package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/service"
)

// Store is an in-memory implementation of service.Store.
type Store struct {
	mu   sync.Mutex
	data *data

	// Failure injection for tests. A non-nil error makes the matching
	// write fail inside the next transaction.
	FailSaveOrder   error
	FailSavePayment error
	FailEnqueueTask error
}

// Compile-time check that Store implements service.Store.
var _ service.Store = (*Store)(nil)

type data struct {
	orders      map[int64]*domain.Order
	items       map[int64][]domain.OrderItem
	payments    map[int64]*domain.Payment // keyed by order id
	products    map[int64]*domain.Product
	adjustments map[int64]*domain.StockAdjustment
	tasks       map[int64]*domain.ReconciliationTask

	nextOrderID   int64
	nextItemID    int64
	nextPaymentID int64
	nextProductID int64
	nextTaskID    int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: newData()}
}

func newData() *data {
	return &data{
		orders:      make(map[int64]*domain.Order),
		items:       make(map[int64][]domain.OrderItem),
		payments:    make(map[int64]*domain.Payment),
		products:    make(map[int64]*domain.Product),
		adjustments: make(map[int64]*domain.StockAdjustment),
		tasks:       make(map[int64]*domain.ReconciliationTask),
	}
}

func (d *data) clone() *data {
	c := newData()
	for id, o := range d.orders {
		cp := *o
		c.orders[id] = &cp
	}
	for id, items := range d.items {
		c.items[id] = append([]domain.OrderItem(nil), items...)
	}
	for id, p := range d.payments {
		cp := *p
		c.payments[id] = &cp
	}
	for id, p := range d.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, a := range d.adjustments {
		cp := *a
		c.adjustments[id] = &cp
	}
	for id, t := range d.tasks {
		cp := *t
		c.tasks[id] = &cp
	}
	c.nextOrderID = d.nextOrderID
	c.nextItemID = d.nextItemID
	c.nextPaymentID = d.nextPaymentID
	c.nextProductID = d.nextProductID
	c.nextTaskID = d.nextTaskID
	return c
}

// WithTx runs fn against a snapshot; the snapshot replaces live state
// only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&txView{data: work, parent: s}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// view returns a non-transactional view over live data. Caller holds mu.
func (s *Store) view() *txView {
	return &txView{data: s.data, parent: s}
}

func (s *Store) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOrder(ctx, orderID)
}

func (s *Store) GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOrderForUpdate(ctx, orderID)
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListOrders(ctx)
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateOrder(ctx, order)
}

func (s *Store) SaveOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveOrder(ctx, order)
}

func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOrderItems(ctx, orderID)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetPaymentByOrder(ctx, orderID)
}

func (s *Store) GetPaymentByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetPaymentByReference(ctx, gatewayRef)
}

func (s *Store) SavePayment(ctx context.Context, payment *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SavePayment(ctx, payment)
}

func (s *Store) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetProduct(ctx, productID)
}

func (s *Store) GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetProductForUpdate(ctx, productID)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListProducts(ctx)
}

func (s *Store) CreateProduct(ctx context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateProduct(ctx, product)
}

func (s *Store) SaveProduct(ctx context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveProduct(ctx, product)
}

func (s *Store) GetStockAdjustment(ctx context.Context, orderID int64) (*domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetStockAdjustment(ctx, orderID)
}

func (s *Store) SaveStockAdjustment(ctx context.Context, adj *domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveStockAdjustment(ctx, adj)
}

func (s *Store) EnqueueReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().EnqueueReconciliationTask(ctx, task)
}

func (s *Store) ClaimPendingReconciliationTask(ctx context.Context) (*domain.ReconciliationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ClaimPendingReconciliationTask(ctx)
}

func (s *Store) SaveReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().SaveReconciliationTask(ctx, task)
}

// txView operates directly on a data snapshot. It implements
// service.Store so transactional code is store-agnostic.
type txView struct {
	data   *data
	parent *Store
}

var _ service.Store = (*txView)(nil)

// WithTx on a view clones the snapshot again, mirroring the savepoint
// semantics of the Postgres store: a failed inner transaction is
// discarded without undoing the enclosing transaction's writes.
func (v *txView) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	nested := v.data.clone()
	if err := fn(&txView{data: nested, parent: v.parent}); err != nil {
		return err
	}
	*v.data = *nested
	return nil
}

func (v *txView) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, ok := v.data.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (v *txView) GetOrderForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	return v.GetOrder(ctx, orderID)
}

func (v *txView) ListOrders(ctx context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(v.data.orders))
	for _, o := range v.data.orders {
		cp := *o
		cp.Items = append([]domain.OrderItem(nil), v.data.items[o.ID]...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (v *txView) CreateOrder(ctx context.Context, order *domain.Order) error {
	v.data.nextOrderID++
	order.ID = v.data.nextOrderID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	items := make([]domain.OrderItem, len(order.Items))
	for i := range order.Items {
		v.data.nextItemID++
		order.Items[i].ID = v.data.nextItemID
		order.Items[i].OrderID = order.ID
		items[i] = order.Items[i]
	}

	cp := *order
	cp.Items = nil
	v.data.orders[order.ID] = &cp
	v.data.items[order.ID] = items
	return nil
}

func (v *txView) SaveOrder(ctx context.Context, order *domain.Order) error {
	if err := v.parent.FailSaveOrder; err != nil {
		return err
	}
	if _, ok := v.data.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	cp := *order
	cp.Items = nil
	cp.UpdatedAt = time.Now()
	v.data.orders[order.ID] = &cp
	return nil
}

func (v *txView) GetOrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return append([]domain.OrderItem(nil), v.data.items[orderID]...), nil
}

func (v *txView) GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error) {
	p, ok := v.data.payments[orderID]
	if !ok {
		return nil, domain.NotFound("payment.get", "payment for order", formatID(orderID))
	}
	cp := *p
	return &cp, nil
}

func (v *txView) GetPaymentByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error) {
	for _, p := range v.data.payments {
		if p.GatewayReference == gatewayRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.NotFound("payment.get", "payment", gatewayRef)
}

func (v *txView) SavePayment(ctx context.Context, payment *domain.Payment) error {
	if err := v.parent.FailSavePayment; err != nil {
		return err
	}
	if payment.ID == 0 {
		v.data.nextPaymentID++
		payment.ID = v.data.nextPaymentID
		payment.CreatedAt = time.Now()
	}
	cp := *payment
	cp.UpdatedAt = time.Now()
	v.data.payments[payment.OrderID] = &cp
	return nil
}

func (v *txView) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	p, ok := v.data.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (v *txView) GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	return v.GetProduct(ctx, productID)
}

func (v *txView) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(v.data.products))
	for _, p := range v.data.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *txView) CreateProduct(ctx context.Context, product *domain.Product) error {
	v.data.nextProductID++
	product.ID = v.data.nextProductID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	cp := *product
	v.data.products[product.ID] = &cp
	return nil
}

func (v *txView) SaveProduct(ctx context.Context, product *domain.Product) error {
	if _, ok := v.data.products[product.ID]; !ok {
		return domain.ErrProductNotFound
	}
	cp := *product
	cp.UpdatedAt = time.Now()
	v.data.products[product.ID] = &cp
	return nil
}

func (v *txView) GetStockAdjustment(ctx context.Context, orderID int64) (*domain.StockAdjustment, error) {
	a, ok := v.data.adjustments[orderID]
	if !ok {
		return nil, domain.NotFound("stock.adjustment", "stock adjustment", formatID(orderID))
	}
	cp := *a
	return &cp, nil
}

func (v *txView) SaveStockAdjustment(ctx context.Context, adj *domain.StockAdjustment) error {
	cp := *adj
	if _, ok := v.data.adjustments[adj.OrderID]; !ok {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	v.data.adjustments[adj.OrderID] = &cp
	return nil
}

func (v *txView) EnqueueReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	if err := v.parent.FailEnqueueTask; err != nil {
		return err
	}
	v.data.nextTaskID++
	task.ID = v.data.nextTaskID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	v.data.tasks[task.ID] = &cp
	return nil
}

func (v *txView) ClaimPendingReconciliationTask(ctx context.Context) (*domain.ReconciliationTask, error) {
	var ids []int64
	for id, t := range v.data.tasks {
		if t.Status == domain.TaskStatusPending {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cp := *v.data.tasks[ids[0]]
	return &cp, nil
}

func (v *txView) SaveReconciliationTask(ctx context.Context, task *domain.ReconciliationTask) error {
	cp := *task
	cp.UpdatedAt = time.Now()
	v.data.tasks[task.ID] = &cp
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
