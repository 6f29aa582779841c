package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
	BookingStatusDisputed   BookingStatus = "DISPUTED"
)

// IsValid reports whether s is a known booking status.
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusInProgress,
		BookingStatusCompleted, BookingStatusCancelled, BookingStatusDisputed:
		return true
	}
	return false
}

// IsTerminal reports whether no lifecycle action can leave s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled || s == BookingStatusDisputed
}

// ServiceBooking is a single engagement between one client and one provider for one service.
type ServiceBooking struct {
	ID                uint             `json:"id" gorm:"primaryKey"`
	ClientID          uint             `json:"client_id" gorm:"not null;index"`
	ServiceProviderID uint             `json:"service_provider_id" gorm:"not null;index"`
	ServiceID         uint             `json:"service_id" gorm:"not null;index"`
	StartTime         time.Time        `json:"start_time" gorm:"not null"`
	EndTime           *time.Time       `json:"end_time"`
	Status            BookingStatus    `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index;check:status IN ('PENDING','CONFIRMED','IN_PROGRESS','COMPLETED','CANCELLED','DISPUTED')"`
	AddressID         *uint            `json:"address_id"`
	Notes             *string          `json:"notes" gorm:"type:text"`
	Title             string           `json:"title" gorm:"type:varchar(200);not null"`
	Description       *string          `json:"description" gorm:"type:text"`
	TotalHours        *decimal.Decimal `json:"total_hours" gorm:"type:numeric"`
	TotalAmount       *decimal.Decimal `json:"total_amount" gorm:"type:numeric"`
	CreatedAt         time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Client          *Client          `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	ServiceProvider *ServiceProvider `json:"service_provider,omitempty" gorm:"foreignKey:ServiceProviderID"`
	Service         *Service         `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
	TimeRecords     []TimeRecord     `json:"time_records,omitempty" gorm:"foreignKey:ServiceBookingID"`
	Contract        *Contract        `json:"contract,omitempty" gorm:"foreignKey:ServiceBookingID"`
	Payment         *Payment         `json:"payment,omitempty" gorm:"foreignKey:ServiceBookingID"`
}

func (ServiceBooking) TableName() string {
	return "service_bookings"
}

// ClientUserID returns the user id of the booking's client, 0 when not loaded.
func (b *ServiceBooking) ClientUserID() uint {
	if b.Client == nil {
		return 0
	}
	return b.Client.UserID
}

// ProviderUserID returns the user id of the booking's provider, 0 when not loaded.
func (b *ServiceBooking) ProviderUserID() uint {
	if b.ServiceProvider == nil {
		return 0
	}
	return b.ServiceProvider.UserID
}

// ServiceTitle falls back to the booking title when the service is not loaded.
func (b *ServiceBooking) ServiceTitle() string {
	if b.Service != nil && b.Service.Title != "" {
		return b.Service.Title
	}
	return b.Title
}

// TimeRecord is one tracked work interval of a booking.
type TimeRecord struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	ServiceBookingID uint             `json:"service_booking_id" gorm:"not null;index"`
	StartTime        time.Time        `json:"start_time" gorm:"not null"`
	EndTime          *time.Time       `json:"end_time"`
	Duration         *decimal.Decimal `json:"duration" gorm:"type:numeric"` // hours
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (TimeRecord) TableName() string {
	return "time_records"
}

// IsOpen reports whether the interval is still running.
func (r *TimeRecord) IsOpen() bool {
	return r.EndTime == nil
}
