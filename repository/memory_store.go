package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
)

type memData struct {
	seq           map[string]uint
	users         map[uint]models.User
	clients       map[uint]models.Client
	providers     map[uint]models.ServiceProvider
	services      map[uint]models.Service
	bookings      map[uint]models.ServiceBooking
	timeRecords   map[uint]models.TimeRecord
	contracts     map[uint]models.Contract
	payments      map[uint]models.Payment
	notifications map[uint]models.Notification
	conversations map[uint]models.Conversation
}

func newMemData() *memData {
	return &memData{
		seq:           map[string]uint{},
		users:         map[uint]models.User{},
		clients:       map[uint]models.Client{},
		providers:     map[uint]models.ServiceProvider{},
		services:      map[uint]models.Service{},
		bookings:      map[uint]models.ServiceBooking{},
		timeRecords:   map[uint]models.TimeRecord{},
		contracts:     map[uint]models.Contract{},
		payments:      map[uint]models.Payment{},
		notifications: map[uint]models.Notification{},
		conversations: map[uint]models.Conversation{},
	}
}

func copyMap[V any](m map[uint]V) map[uint]V {
	out := make(map[uint]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table. Rows are stored by value with relations stripped, and pointer
// fields are always replaced rather than mutated, so a shallow copy is enough.
func (d *memData) clone() *memData {
	seq := make(map[string]uint, len(d.seq))
	for k, v := range d.seq {
		seq[k] = v
	}
	return &memData{
		seq:           seq,
		users:         copyMap(d.users),
		clients:       copyMap(d.clients),
		providers:     copyMap(d.providers),
		services:      copyMap(d.services),
		bookings:      copyMap(d.bookings),
		timeRecords:   copyMap(d.timeRecords),
		contracts:     copyMap(d.contracts),
		payments:      copyMap(d.payments),
		notifications: copyMap(d.notifications),
		conversations: copyMap(d.conversations),
	}
}

func (d *memData) next(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

// MemoryStore is an in-process Store used by tests and by STORE_DRIVER=memory.
// Transactions are serialized and run against a copy that replaces the live data on success.
// Every transaction copies all tables, so its cost grows with the total row count; it is meant
// for tests and demos, never for production traffic.
type MemoryStore struct {
	mu   *sync.Mutex
	root *MemoryStore
	data *memData
	inTx bool
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{mu: &sync.Mutex{}, data: newMemData(), now: time.Now}
	s.root = s
	return s
}

func (s *MemoryStore) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &MemoryStore{mu: s.mu, root: s.root, data: s.root.data.clone(), inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.root.data = tx.data
	return nil
}

// hydrate attaches the relations the gorm store preloads.
func (s *MemoryStore) hydrateUser(u models.User) *models.User {
	for _, c := range s.data.clients {
		if c.UserID == u.ID {
			c := c
			u.Client = &c
		}
	}
	for _, p := range s.data.providers {
		if p.UserID == u.ID {
			p := p
			u.ServiceProvider = &p
		}
	}
	return &u
}

func (s *MemoryStore) hydrateBooking(b models.ServiceBooking, details bool) *models.ServiceBooking {
	if c, ok := s.data.clients[b.ClientID]; ok {
		c.User = s.data.users[c.UserID]
		b.Client = &c
	}
	if p, ok := s.data.providers[b.ServiceProviderID]; ok {
		p.User = s.data.users[p.UserID]
		b.ServiceProvider = &p
	}
	if svc, ok := s.data.services[b.ServiceID]; ok {
		b.Service = &svc
	}
	if !details {
		return &b
	}

	b.TimeRecords = nil
	for _, r := range s.data.timeRecords {
		if r.ServiceBookingID == b.ID {
			b.TimeRecords = append(b.TimeRecords, r)
		}
	}
	sort.Slice(b.TimeRecords, func(i, j int) bool {
		return b.TimeRecords[i].StartTime.Before(b.TimeRecords[j].StartTime)
	})
	for _, c := range s.data.contracts {
		if c.ServiceBookingID == b.ID {
			c := c
			b.Contract = &c
		}
	}
	for _, p := range s.data.payments {
		if p.ServiceBookingID == b.ID {
			p := p
			b.Payment = &p
		}
	}
	return &b
}

func (s *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	defer s.lock()()
	u, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			return s.hydrateUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetService(ctx context.Context, id uint) (*models.Service, error) {
	defer s.lock()()
	svc, ok := s.data.services[id]
	if !ok || svc.DeletedAt.Valid {
		return nil, ErrNotFound
	}
	if p, ok := s.data.providers[svc.ServiceProviderID]; ok {
		p.User = s.data.users[p.UserID]
		svc.ServiceProvider = &p
	}
	return &svc, nil
}

func (s *MemoryStore) CreateBooking(ctx context.Context, booking *models.ServiceBooking) error {
	defer s.lock()()
	booking.ID = s.data.next("service_bookings")
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	now := s.now()
	booking.CreatedAt, booking.UpdatedAt = now, now

	row := *booking
	row.Client, row.ServiceProvider, row.Service = nil, nil, nil
	row.TimeRecords, row.Contract, row.Payment = nil, nil, nil
	s.data.bookings[row.ID] = row
	return nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	defer s.lock()()
	b, ok := s.data.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateBooking(b, false), nil
}

func (s *MemoryStore) GetBookingDetails(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	defer s.lock()()
	b, ok := s.data.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrateBooking(b, true), nil
}

func (s *MemoryStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.ServiceBooking, error) {
	defer s.lock()()
	var out []models.ServiceBooking
	for _, b := range s.data.bookings {
		if filter.ClientID != nil && b.ClientID != *filter.ClientID {
			continue
		}
		if filter.ServiceProviderID != nil && b.ServiceProviderID != *filter.ServiceProviderID {
			continue
		}
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		out = append(out, *s.hydrateBooking(b, false))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (s *MemoryStore) UpdateBookingStatus(ctx context.Context, id uint, from []models.BookingStatus, changes BookingChanges) (bool, error) {
	defer s.lock()()
	b, ok := s.data.bookings[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, st := range from {
		if b.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	b.Status = changes.Status
	if changes.Notes != nil {
		notes := *changes.Notes
		b.Notes = &notes
	}
	if changes.EndTime != nil {
		end := *changes.EndTime
		b.EndTime = &end
	}
	if changes.TotalHours != nil {
		hours := *changes.TotalHours
		b.TotalHours = &hours
	}
	if changes.TotalAmount != nil {
		amount := *changes.TotalAmount
		b.TotalAmount = &amount
	}
	b.UpdatedAt = s.now()
	s.data.bookings[id] = b
	return true, nil
}

func (s *MemoryStore) ListInProgressWithoutOpenRecord(ctx context.Context) ([]models.ServiceBooking, error) {
	defer s.lock()()
	open := map[uint]bool{}
	for _, r := range s.data.timeRecords {
		if r.EndTime == nil {
			open[r.ServiceBookingID] = true
		}
	}
	var out []models.ServiceBooking
	for _, b := range s.data.bookings {
		if b.Status == models.BookingStatusInProgress && !open[b.ID] {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateTimeRecord(ctx context.Context, record *models.TimeRecord) error {
	defer s.lock()()
	if record.EndTime == nil {
		for _, r := range s.data.timeRecords {
			if r.ServiceBookingID == record.ServiceBookingID && r.EndTime == nil {
				return ErrDuplicateKey
			}
		}
	}
	record.ID = s.data.next("time_records")
	now := s.now()
	record.CreatedAt, record.UpdatedAt = now, now
	s.data.timeRecords[record.ID] = *record
	return nil
}

func (s *MemoryStore) GetOpenTimeRecord(ctx context.Context, bookingID uint) (*models.TimeRecord, error) {
	defer s.lock()()
	var found *models.TimeRecord
	for _, r := range s.data.timeRecords {
		if r.ServiceBookingID != bookingID || r.EndTime != nil {
			continue
		}
		if found == nil || r.StartTime.After(found.StartTime) {
			r := r
			found = &r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CloseTimeRecord(ctx context.Context, id uint, endTime time.Time, duration decimal.Decimal) error {
	defer s.lock()()
	r, ok := s.data.timeRecords[id]
	if !ok || r.EndTime != nil {
		return ErrNotFound
	}
	r.EndTime = &endTime
	r.Duration = &duration
	r.UpdatedAt = s.now()
	s.data.timeRecords[id] = r
	return nil
}

func (s *MemoryStore) CreateContract(ctx context.Context, contract *models.Contract) error {
	defer s.lock()()
	for _, c := range s.data.contracts {
		if c.ServiceBookingID == contract.ServiceBookingID {
			return ErrDuplicateKey
		}
	}
	contract.ID = s.data.next("contracts")
	now := s.now()
	contract.CreatedAt, contract.UpdatedAt = now, now
	row := *contract
	row.ServiceBooking = nil
	s.data.contracts[row.ID] = row
	return nil
}

func (s *MemoryStore) GetContract(ctx context.Context, id uint) (*models.Contract, error) {
	defer s.lock()()
	c, ok := s.data.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) GetContractByBooking(ctx context.Context, bookingID uint) (*models.Contract, error) {
	defer s.lock()()
	for _, c := range s.data.contracts {
		if c.ServiceBookingID == bookingID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateContractTerms(ctx context.Context, id uint, changes ContractChanges) (bool, error) {
	defer s.lock()()
	c, ok := s.data.contracts[id]
	if !ok || c.ClientSigned {
		return false, nil
	}
	if changes.Terms != nil {
		c.Terms = *changes.Terms
	}
	if changes.PaymentAmount != nil {
		c.PaymentAmount = *changes.PaymentAmount
	}
	if changes.PaymentType != nil {
		c.PaymentType = *changes.PaymentType
	}
	c.ProviderSigned = true
	c.ClientSigned = false
	c.UpdatedAt = s.now()
	s.data.contracts[id] = c
	return true, nil
}

func (s *MemoryStore) SetContractSignature(ctx context.Context, id uint, party SignParty) (bool, error) {
	defer s.lock()()
	c, ok := s.data.contracts[id]
	if !ok {
		return false, nil
	}
	switch party {
	case SignAsProvider:
		if c.ProviderSigned {
			return false, nil
		}
		c.ProviderSigned = true
	case SignAsClient:
		if c.ClientSigned {
			return false, nil
		}
		c.ClientSigned = true
	default:
		return false, nil
	}
	c.UpdatedAt = s.now()
	s.data.contracts[id] = c
	return true, nil
}

func (s *MemoryStore) GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error) {
	defer s.lock()()
	for _, p := range s.data.payments {
		if p.ServiceBookingID == bookingID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	defer s.lock()()
	for _, p := range s.data.payments {
		if p.ServiceBookingID == payment.ServiceBookingID {
			return ErrDuplicateKey
		}
	}
	payment.ID = s.data.next("payments")
	now := s.now()
	payment.CreatedAt, payment.UpdatedAt = now, now
	s.data.payments[payment.ID] = *payment
	return nil
}

func (s *MemoryStore) UpdatePendingPayment(ctx context.Context, payment *models.Payment) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[payment.ID]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Amount = payment.Amount
	p.PaymentMethod = payment.PaymentMethod
	p.PaymentDate = payment.PaymentDate
	p.PaymentProofURL = payment.PaymentProofURL
	p.UpdatedAt = s.now()
	s.data.payments[p.ID] = p
	*payment = p
	return true, nil
}

func (s *MemoryStore) CompletePayment(ctx context.Context, id uint, paidAt time.Time) (bool, error) {
	defer s.lock()()
	p, ok := s.data.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = models.PaymentStatusCompleted
	p.PaymentDate = paidAt
	p.UpdatedAt = s.now()
	s.data.payments[id] = p
	return true, nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	defer s.lock()()
	notification.ID = s.data.next("notifications")
	now := s.now()
	notification.CreatedAt, notification.UpdatedAt = now, now
	s.data.notifications[notification.ID] = *notification
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, receiverID uint, offset, limit int) ([]models.Notification, int64, error) {
	defer s.lock()()
	var all []models.Notification
	for _, n := range s.data.notifications {
		if n.ReceiverID == receiverID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []models.Notification{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) CountUnreadNotifications(ctx context.Context, receiverID uint) (int64, error) {
	defer s.lock()()
	var count int64
	for _, n := range s.data.notifications {
		if n.ReceiverID == receiverID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, receiverID, id uint) (*models.Notification, error) {
	defer s.lock()()
	n, ok := s.data.notifications[id]
	if !ok || n.ReceiverID != receiverID {
		return nil, ErrNotFound
	}
	n.IsRead = true
	n.UpdatedAt = s.now()
	s.data.notifications[id] = n
	return &n, nil
}

func (s *MemoryStore) MarkAllNotificationsRead(ctx context.Context, receiverID uint) (int64, error) {
	defer s.lock()()
	var updated int64
	for id, n := range s.data.notifications {
		if n.ReceiverID == receiverID && !n.IsRead {
			n.IsRead = true
			s.data.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) FindConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	defer s.lock()()
	var found *models.Conversation
	for _, c := range s.data.conversations {
		if !c.Involves(userA, userB) {
			continue
		}
		if found == nil || c.ID < found.ID {
			c := c
			found = &c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	defer s.lock()()
	now := s.now()
	if conversation.ID == 0 {
		conversation.ID = s.data.next("conversations")
		conversation.CreatedAt = now
	}
	conversation.UpdatedAt = now
	s.data.conversations[conversation.ID] = *conversation
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateKey
		}
	}
	if user.Role == "" {
		user.Role = models.RoleClient
	}
	user.ID = s.data.next("users")
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	row := *user
	row.Client, row.ServiceProvider = nil, nil
	s.data.users[row.ID] = row
	return nil
}

func (s *MemoryStore) CreateClient(ctx context.Context, client *models.Client) error {
	defer s.lock()()
	for _, c := range s.data.clients {
		if c.UserID == client.UserID {
			return ErrDuplicateKey
		}
	}
	client.ID = s.data.next("clients")
	now := s.now()
	client.CreatedAt, client.UpdatedAt = now, now
	row := *client
	row.User = models.User{}
	s.data.clients[row.ID] = row
	return nil
}

func (s *MemoryStore) CreateServiceProvider(ctx context.Context, provider *models.ServiceProvider) error {
	defer s.lock()()
	for _, p := range s.data.providers {
		if p.UserID == provider.UserID {
			return ErrDuplicateKey
		}
	}
	provider.ID = s.data.next("service_providers")
	now := s.now()
	provider.CreatedAt, provider.UpdatedAt = now, now
	row := *provider
	row.User = models.User{}
	s.data.providers[row.ID] = row
	return nil
}

func (s *MemoryStore) CreateService(ctx context.Context, service *models.Service) error {
	defer s.lock()()
	service.ID = s.data.next("services")
	now := s.now()
	service.CreatedAt, service.UpdatedAt = now, now
	row := *service
	row.ServiceProvider = nil
	s.data.services[row.ID] = row
	return nil
}
