package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// BookingFilter narrows ListBookings. Nil fields are ignored.
type BookingFilter struct {
	ClientID          *uint
	ServiceProviderID *uint
	Status            *models.BookingStatus
}

// BookingChanges is applied together with a status change. Nil fields are left untouched.
type BookingChanges struct {
	Status      models.BookingStatus
	Notes       *string
	EndTime     *time.Time
	TotalHours  *decimal.Decimal
	TotalAmount *decimal.Decimal
}

// ContractChanges carries a partial contract edit.
type ContractChanges struct {
	Terms         *string
	PaymentAmount *decimal.Decimal
	PaymentType   *models.PricingType
}

// IsEmpty reports whether no field is set.
func (c ContractChanges) IsEmpty() bool {
	return c.Terms == nil && c.PaymentAmount == nil && c.PaymentType == nil
}

// SignParty selects which signature flag a signing writes.
type SignParty string

const (
	SignAsProvider SignParty = "provider"
	SignAsClient   SignParty = "client"
)

// Store is the persistence handle injected into every service. Implementations must make
// Transaction atomic: the Store passed to fn sees its own writes, and either all of them
// commit or none do.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetService(ctx context.Context, id uint) (*models.Service, error)

	CreateBooking(ctx context.Context, booking *models.ServiceBooking) error
	GetBooking(ctx context.Context, id uint) (*models.ServiceBooking, error)
	GetBookingDetails(ctx context.Context, id uint) (*models.ServiceBooking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.ServiceBooking, error)
	// UpdateBookingStatus applies changes only while the booking is in one of from.
	// It reports false when the guard did not match.
	UpdateBookingStatus(ctx context.Context, id uint, from []models.BookingStatus, changes BookingChanges) (bool, error)
	ListInProgressWithoutOpenRecord(ctx context.Context) ([]models.ServiceBooking, error)

	CreateTimeRecord(ctx context.Context, record *models.TimeRecord) error
	GetOpenTimeRecord(ctx context.Context, bookingID uint) (*models.TimeRecord, error)
	CloseTimeRecord(ctx context.Context, id uint, endTime time.Time, duration decimal.Decimal) error

	CreateContract(ctx context.Context, contract *models.Contract) error
	GetContract(ctx context.Context, id uint) (*models.Contract, error)
	GetContractByBooking(ctx context.Context, bookingID uint) (*models.Contract, error)
	// UpdateContractTerms applies changes, re-signs for the provider and clears the client
	// signature. It reports false when the client had already signed.
	UpdateContractTerms(ctx context.Context, id uint, changes ContractChanges) (bool, error)
	// SetContractSignature sets one party's flag. It reports false when already set.
	SetContractSignature(ctx context.Context, id uint, party SignParty) (bool, error)

	GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	// UpdatePendingPayment rewrites amount, method, date and proof of a payment that is still
	// PENDING. It reports false when the stored payment is no longer PENDING.
	UpdatePendingPayment(ctx context.Context, payment *models.Payment) (bool, error)
	// CompletePayment moves a PENDING payment to COMPLETED. It reports false otherwise.
	CompletePayment(ctx context.Context, id uint, paidAt time.Time) (bool, error)

	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, receiverID uint, offset, limit int) ([]models.Notification, int64, error)
	CountUnreadNotifications(ctx context.Context, receiverID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, receiverID, id uint) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, receiverID uint) (int64, error)

	FindConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conversation *models.Conversation) error
}

// Seeder creates the reference data the booking core only reads.
type Seeder interface {
	CreateUser(ctx context.Context, user *models.User) error
	CreateClient(ctx context.Context, client *models.Client) error
	CreateServiceProvider(ctx context.Context, provider *models.ServiceProvider) error
	CreateService(ctx context.Context, service *models.Service) error
}
