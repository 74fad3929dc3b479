package app

import (
	"context"
	"sync"

	"github.com/pass-culture/pass-culture-api-sub002/internal/domain"
)

// fakeRepo backs the service tests. It emulates the storage layer's row
// locking with one mutex per stock, held from GetStockForUpdate until the
// enclosing WithTx returns, so concurrent Book calls interleave the same way
// they would against Postgres.
type fakeRepo struct {
	mu       sync.Mutex
	stocks   map[string]*domain.BookableStock
	bookings map[string]*domain.Booking
	payments map[string]bool
	rowLocks map[string]*sync.Mutex
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		stocks:   make(map[string]*domain.BookableStock),
		bookings: make(map[string]*domain.Booking),
		payments: make(map[string]bool),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func (f *fakeRepo) addStock(s domain.BookableStock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := s
	f.stocks[s.ID] = &cp
}

func (f *fakeRepo) addBooking(b domain.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := b
	f.bookings[b.ID] = &cp
}

func (f *fakeRepo) addPayment(bookingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[bookingID] = true
}

func (f *fakeRepo) booking(id string) domain.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bookings[id]
}

func (f *fakeRepo) stock(id string) domain.BookableStock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.stocks[id]
}

func (f *fakeRepo) bookingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

type txStateKey struct{}

type txState struct {
	unlocks []func()
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txStateKey{}) != nil {
		return fn(ctx)
	}
	st := &txState{}
	err := fn(context.WithValue(ctx, txStateKey{}, st))
	for i := len(st.unlocks) - 1; i >= 0; i-- {
		st.unlocks[i]()
	}
	return err
}

func (f *fakeRepo) GetStock(_ context.Context, stockID string) (domain.BookableStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stocks[stockID]
	if !ok {
		return domain.BookableStock{}, domain.ErrStockNotFound
	}
	return *s, nil
}

func (f *fakeRepo) GetStockForUpdate(ctx context.Context, stockID string) (domain.BookableStock, error) {
	f.mu.Lock()
	_, ok := f.stocks[stockID]
	if !ok {
		f.mu.Unlock()
		return domain.BookableStock{}, domain.ErrStockNotFound
	}
	lock, ok := f.rowLocks[stockID]
	if !ok {
		lock = &sync.Mutex{}
		f.rowLocks[stockID] = lock
	}
	f.mu.Unlock()

	if st, _ := ctx.Value(txStateKey{}).(*txState); st != nil {
		lock.Lock()
		st.unlocks = append(st.unlocks, lock.Unlock)
	}

	// Re-read after acquiring the row lock: the state is current because
	// every mutator holds the same lock.
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.stocks[stockID], nil
}

func (f *fakeRepo) GetBooking(_ context.Context, bookingID string) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return *b, nil
}

func (f *fakeRepo) GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error) {
	return f.GetBooking(ctx, bookingID)
}

func (f *fakeRepo) GetBookingByToken(_ context.Context, tok string) (domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Token == tok {
			return *b, nil
		}
	}
	return domain.Booking{}, domain.ErrBookingNotFound
}

func (f *fakeRepo) HasActiveBookingOnOffer(_ context.Context, userID, offerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.UserID == userID && b.OfferID == offerID && b.Status != domain.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) TokenExists(_ context.Context, tok string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Token == tok {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateBooking(_ context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdateBooking(_ context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.ID]; !ok {
		return domain.ErrBookingNotFound
	}
	cp := b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeRepo) ReserveStock(_ context.Context, stockID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stocks[stockID]
	if !ok {
		return domain.ErrStockNotFound
	}
	s.ReservedQuantity += quantity
	return nil
}

func (f *fakeRepo) ReleaseStock(_ context.Context, stockID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stocks[stockID]
	if !ok {
		return domain.ErrStockNotFound
	}
	s.ReservedQuantity -= quantity
	return nil
}

func (f *fakeRepo) HasPayment(_ context.Context, bookingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[bookingID], nil
}

func (f *fakeRepo) SpendItemsByUser(_ context.Context, userID string) ([]domain.SpendItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.SpendItem
	for _, b := range f.bookings {
		if b.UserID != userID || b.Status == domain.StatusCancelled {
			continue
		}
		item := domain.SpendItem{Total: b.Total()}
		if s, ok := f.stocks[b.StockID]; ok {
			item.Digital = s.Offer.IsDigital
			item.CapExempt = s.Offer.CapExempt
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *fakeRepo) SoftDeleteStock(_ context.Context, stockID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stocks[stockID]
	if !ok {
		return domain.ErrStockNotFound
	}
	s.SoftDeleted = true
	return nil
}

func (f *fakeRepo) ListOpenBookingsForUpdate(_ context.Context, stockID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []domain.Booking
	for _, b := range f.bookings {
		if b.StockID == stockID && b.Status == domain.StatusActive {
			open = append(open, *b)
		}
	}
	return open, nil
}

func (f *fakeRepo) RecomputeReservedQuantity(_ context.Context, stockID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stocks[stockID]
	if !ok {
		return domain.ErrStockNotFound
	}
	total := 0
	for _, b := range f.bookings {
		if b.StockID == stockID && b.Status != domain.StatusCancelled {
			total += b.Quantity
		}
	}
	s.ReservedQuantity = total
	return nil
}

type fakeGate struct {
	canBook     bool
	canBookFree bool
}

func (g fakeGate) CanBook(context.Context, string) (bool, error)     { return g.canBook, nil }
func (g fakeGate) CanBookFree(context.Context, string) (bool, error) { return g.canBookFree, nil }

type spyNotifier struct {
	mu        sync.Mutex
	created   []domain.Booking
	cancelled []domain.Booking
}

func (n *spyNotifier) BookingCreated(_ context.Context, b domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, b)
	return nil
}

func (n *spyNotifier) BookingCancelled(_ context.Context, b domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, b)
	return nil
}

type spyIndexer struct {
	mu     sync.Mutex
	offers []string
}

func (i *spyIndexer) EnqueueOffer(_ context.Context, offerID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.offers = append(i.offers, offerID)
	return nil
}
