package usecase_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"settlement/internal/domain/model"
	repo "settlement/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =====================
// in-memory store（Txはcloneしてcommit/rollback）
// =====================

var errInjected = errors.New("injected failure")

type memState struct {
	orders   []model.Order
	items    []model.OrderItem
	cart     []model.CartItem
	products []model.Product
	seq      int64
}

func (s memState) clone() memState {
	c := memState{seq: s.seq}
	c.orders = append([]model.Order(nil), s.orders...)
	c.items = append([]model.OrderItem(nil), s.items...)
	c.cart = append([]model.CartItem(nil), s.cart...)
	c.products = append([]model.Product(nil), s.products...)
	return c
}

type memStore struct {
	mu    sync.Mutex
	state memState
	tick  time.Time

	// CreateBulk の n 件目（1始まり）で失敗させる
	failItemAt int
	// DeleteByUserID を失敗させる
	failCartDelete error
}

func newMemStore() *memStore {
	return &memStore{tick: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// 呼ぶたびに1秒進む時計
func (s *memStore) now() time.Time {
	s.tick = s.tick.Add(time.Second)
	return s.tick
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(&memRepos{s: s, st: &staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// Tx外で使うrepo（テストは単一goroutine前提）
func (s *memStore) direct() *memRepos {
	return &memRepos{s: s, st: &s.state}
}

func (s *memStore) addProduct(name string, price string) model.Product {
	s.state.seq++
	p := model.Product{
		ID:          s.state.seq,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		ImageRef:    "/img/" + name + ".png",
		CreatedAt:   s.now(),
	}
	s.state.products = append(s.state.products, p)
	return p
}

func (s *memStore) setProductPrice(id int64, price string) {
	for i := range s.state.products {
		if s.state.products[i].ID == id {
			s.state.products[i].Price = decimal.RequireFromString(price)
		}
	}
}

func (s *memStore) ordersByRef(ref string) []model.Order {
	var out []model.Order
	for _, o := range s.state.orders {
		if o.ExternalOrderRef == ref {
			out = append(out, o)
		}
	}
	return out
}

func (s *memStore) itemsOf(orderID int64) []model.OrderItem {
	var out []model.OrderItem
	for _, it := range s.state.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

func (s *memStore) cartOf(userID int64) []model.CartItem {
	var out []model.CartItem
	for _, c := range s.state.cart {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

type memRepos struct {
	s  *memStore
	st *memState
}

func (r *memRepos) Orders() repo.OrderRepository         { return memOrders{r} }
func (r *memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r} }
func (r *memRepos) CartItems() repo.CartItemRepository   { return memCart{r} }
func (r *memRepos) Products() repo.ProductRepository     { return memProducts{r} }

func (r *memRepos) nextID() int64 {
	r.st.seq++
	return r.st.seq
}

// ---- orders ----

type memOrders struct{ r *memRepos }

func (m memOrders) Create(ctx context.Context, o model.Order) (model.Order, error) {
	for _, ex := range m.r.st.orders {
		if ex.ExternalOrderRef == o.ExternalOrderRef {
			return model.Order{}, repo.ErrDuplicate
		}
	}
	o.ID = m.r.nextID()
	o.CreatedAt = m.r.s.now()
	o.UpdatedAt = o.CreatedAt
	m.r.st.orders = append(m.r.st.orders, o)
	return o, nil
}

func (m memOrders) FindByExternalOrderRef(ctx context.Context, ref string) (model.Order, error) {
	for _, o := range m.r.st.orders {
		if o.ExternalOrderRef == ref {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m memOrders) LockByExternalOrderRef(ctx context.Context, ref string) (model.Order, error) {
	return m.FindByExternalOrderRef(ctx, ref)
}

func (m memOrders) AssignUserIfUnset(ctx context.Context, orderID int64, userID int64) (bool, error) {
	for i := range m.r.st.orders {
		o := &m.r.st.orders[i]
		if o.ID == orderID && o.UserID == nil {
			uid := userID
			o.UserID = &uid
			o.UpdatedAt = m.r.s.now()
			return true, nil
		}
	}
	return false, nil
}

func (m memOrders) CompleteIfPending(ctx context.Context, ref, paymentRef, signature string) (bool, error) {
	for i := range m.r.st.orders {
		o := &m.r.st.orders[i]
		if o.ExternalOrderRef == ref && o.Status == model.OrderStatusPending {
			pr, sig := paymentRef, signature
			o.Status = model.OrderStatusCompleted
			o.ExternalPaymentRef = &pr
			o.ExternalSignature = &sig
			o.UpdatedAt = m.r.s.now()
			return true, nil
		}
	}
	return false, nil
}

func (m memOrders) ListHistoryRows(ctx context.Context, userID int64) ([]repo.HistoryRow, error) {
	orders := make([]model.Order, 0)
	for _, o := range m.r.st.orders {
		if o.UserID != nil && *o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	rows := make([]repo.HistoryRow, 0)
	for _, o := range orders {
		for _, it := range m.r.st.items {
			if it.OrderID != o.ID {
				continue
			}
			rows = append(rows, repo.HistoryRow{
				OrderID:     o.ID,
				Amount:      o.Amount,
				Currency:    o.Currency,
				Status:      o.Status,
				CreatedAt:   o.CreatedAt,
				ProductID:   it.ProductID,
				Name:        it.Name,
				Description: it.Description,
				Price:       it.Price,
				ImageRef:    it.ImageRef,
			})
		}
	}
	return rows, nil
}

// ---- order items ----

type memOrderItems struct{ r *memRepos }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for i, it := range items {
		if m.r.s.failItemAt > 0 && i+1 == m.r.s.failItemAt {
			return errInjected
		}
		it.ID = m.r.nextID()
		it.OrderID = orderID
		it.CreatedAt = m.r.s.now()
		m.r.st.items = append(m.r.st.items, it)
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	for _, it := range m.r.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m memOrderItems) CountByOrderID(ctx context.Context, orderID int64) (int64, error) {
	items, _ := m.ListByOrderID(ctx, orderID)
	return int64(len(items)), nil
}

func (m memOrderItems) LatestCreatedAtByUserID(ctx context.Context, userID int64) (time.Time, bool, error) {
	var latest time.Time
	found := false
	for _, o := range m.r.st.orders {
		if o.UserID == nil || *o.UserID != userID {
			continue
		}
		for _, it := range m.r.st.items {
			if it.OrderID == o.ID && it.CreatedAt.After(latest) {
				latest = it.CreatedAt
				found = true
			}
		}
	}
	return latest, found, nil
}

// ---- cart ----

type memCart struct{ r *memRepos }

func (m memCart) ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, c := range m.r.st.cart {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m memCart) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	item.ID = m.r.nextID()
	item.CreatedAt = m.r.s.now()
	m.r.st.cart = append(m.r.st.cart, item)
	return item, nil
}

func (m memCart) DeleteByIDForUser(ctx context.Context, id int64, userID int64) error {
	for i, c := range m.r.st.cart {
		if c.ID == id && c.UserID == userID {
			m.r.st.cart = append(m.r.st.cart[:i:i], m.r.st.cart[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m memCart) DeleteByUserID(ctx context.Context, userID int64) (int64, error) {
	if m.r.s.failCartDelete != nil {
		return 0, m.r.s.failCartDelete
	}
	return m.deleteWhere(func(c model.CartItem) bool { return c.UserID == userID }), nil
}

func (m memCart) DeleteCreatedNotAfter(ctx context.Context, userID int64, t time.Time) (int64, error) {
	return m.deleteWhere(func(c model.CartItem) bool {
		return c.UserID == userID && !c.CreatedAt.After(t)
	}), nil
}

func (m memCart) deleteWhere(match func(model.CartItem) bool) int64 {
	kept := make([]model.CartItem, 0, len(m.r.st.cart))
	var n int64
	for _, c := range m.r.st.cart {
		if match(c) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.r.st.cart = kept
	return n
}

// ---- products ----

type memProducts struct{ r *memRepos }

func (m memProducts) List(ctx context.Context) ([]model.Product, error) {
	return append([]model.Product{}, m.r.st.products...), nil
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	for _, p := range m.r.st.products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, repo.ErrNotFound
}

// =====================
// testify mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (model.PaymentIntent, error) {
	args := m.Called(ctx, amount, currency)
	in, _ := args.Get(0).(model.PaymentIntent)
	return in, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, evt model.OrderEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

// 発行されたイベント種別
func (m *PublisherMock) types() []model.OrderEventType {
	var out []model.OrderEventType
	for _, c := range m.Calls {
		if c.Method == "Publish" {
			out = append(out, c.Arguments.Get(1).(model.OrderEvent).Type)
		}
	}
	return out
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, userID int64) ([]byte, int64, bool, error) {
	args := m.Called(ctx, userID)
	b, _ := args.Get(0).([]byte)
	v, _ := args.Get(1).(int64)
	return b, v, args.Bool(2), args.Error(3)
}

func (m *CacheMock) Set(ctx context.Context, userID int64, version int64, payload []byte) error {
	args := m.Called(ctx, userID, version, payload)
	return args.Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// =====================
// 状態を持つfake
// =====================

// redis実装と同じversion付きキャッシュ。期限切れのctxでは失敗する
type memCache struct {
	mu       sync.Mutex
	versions map[int64]int64
	data     map[int64]map[int64][]byte
}

func newMemCache() *memCache {
	return &memCache{versions: map[int64]int64{}, data: map[int64]map[int64][]byte{}}
}

func (c *memCache) Get(ctx context.Context, userID int64) ([]byte, int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.versions[userID]
	b, ok := c.data[userID][v]
	return b, v, ok, nil
}

func (c *memCache) Set(ctx context.Context, userID int64, version int64, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	if c.data[userID] == nil {
		c.data[userID] = map[int64][]byte{}
	}
	c.data[userID][version] = payload
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	return nil
}

// ブローカーに届かない時のようにctxが切れるまで返らない
type stalledPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *stalledPublisher) Publish(ctx context.Context, evt model.OrderEvent) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var (
	_ repo.TransactionManager = (*memStore)(nil)
	_ repo.TxRepos            = (*memRepos)(nil)
)
