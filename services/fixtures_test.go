package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
	"marketplace-server/repository"
)

type sentNotification struct {
	ReceiverID uint
	Type       models.NotificationType
	Title      string
	Message    string
	Data       map[string]interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, receiverID uint, notificationType models.NotificationType, title, message string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{receiverID, notificationType, title, message, data})
	return n.err
}

func (n *recordingNotifier) forUser(userID uint) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.ReceiverID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type recordingChat struct {
	mu    sync.Mutex
	pairs [][2]uint
	err   error
}

func (c *recordingChat) CreateConversation(ctx context.Context, userA, userB uint, bookingID *uint) (*models.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, [2]uint{userA, userB})
	if c.err != nil {
		return nil, c.err
	}
	return &models.Conversation{User1ID: userA, User2ID: userB, ServiceBookingID: bookingID}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx      context.Context
	store    *repository.MemoryStore
	notifier *recordingNotifier
	chat     *recordingChat
	clock    *fakeClock

	bookings  *BookingService
	contracts *ContractService
	payments  *PaymentService

	clientUser   *models.User
	providerUser *models.User
	strangerUser *models.User
	client       *models.Client
	provider     *models.ServiceProvider
	hourly       *models.Service
	fixed        *models.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    repository.NewMemoryStore(),
		notifier: &recordingNotifier{},
		chat:     &recordingChat{},
		clock:    newFakeClock(),
	}
	dispatcher := NewDispatcher(f.notifier, f.chat, nil)
	f.bookings = NewBookingService(f.store, dispatcher, nil).WithClock(f.clock.Now)
	f.contracts = NewContractService(f.store, dispatcher, nil)
	f.payments = NewPaymentService(f.store, dispatcher, nil).WithClock(f.clock.Now)

	f.clientUser = f.user(t, "Ana", "Lopez", "ana@example.com", models.RoleClient)
	f.providerUser = f.user(t, "Bo", "Smith", "bo@example.com", models.RoleProvider)
	f.strangerUser = f.user(t, "Cy", "Other", "cy@example.com", models.RoleClient)

	f.client = &models.Client{UserID: f.clientUser.ID}
	f.must(t, f.store.CreateClient(f.ctx, f.client))
	f.must(t, f.store.CreateClient(f.ctx, &models.Client{UserID: f.strangerUser.ID}))
	f.provider = &models.ServiceProvider{UserID: f.providerUser.ID, IsProviderVerified: true}
	f.must(t, f.store.CreateServiceProvider(f.ctx, f.provider))

	f.hourly = f.service(t, "Plumbing", "20.00", models.PricingHourly)
	f.fixed = f.service(t, "Deep Clean", "100.00", models.PricingFixed)
	return f
}

func (f *fixture) must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

func (f *fixture) user(t *testing.T, first, last, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{FirstName: first, LastName: last, Email: email, Role: role, IsActive: true}
	f.must(t, f.store.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) service(t *testing.T, title, price string, pricing models.PricingType) *models.Service {
	t.Helper()
	s := &models.Service{
		ServiceProviderID: f.provider.ID,
		Title:             title,
		Pricing:           decimal.RequireFromString(price),
		PricingType:       pricing,
		IsActive:          true,
	}
	f.must(t, f.store.CreateService(f.ctx, s))
	return s
}

// booking creates a booking for service and forces it into status.
func (f *fixture) booking(t *testing.T, service *models.Service, status models.BookingStatus) *models.ServiceBooking {
	t.Helper()
	amount := service.Pricing
	b := &models.ServiceBooking{
		ClientID:          f.client.ID,
		ServiceProviderID: f.provider.ID,
		ServiceID:         service.ID,
		StartTime:         f.clock.Now().Add(24 * time.Hour),
		Title:             service.Title,
		TotalAmount:       &amount,
	}
	f.must(t, f.store.CreateBooking(f.ctx, b))
	if status != models.BookingStatusPending {
		ok, err := f.store.UpdateBookingStatus(f.ctx, b.ID, []models.BookingStatus{models.BookingStatusPending}, repository.BookingChanges{Status: status})
		f.must(t, err)
		if !ok {
			t.Fatalf("fixture: could not force booking into %s", status)
		}
	}
	return f.reload(t, b.ID)
}

func (f *fixture) reload(t *testing.T, bookingID uint) *models.ServiceBooking {
	t.Helper()
	b, err := f.store.GetBookingDetails(f.ctx, bookingID)
	f.must(t, err)
	return b
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
