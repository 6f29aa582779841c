package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
)

type PaymentMethod string

const PaymentMethodCash PaymentMethod = "CASH"

// Payment is the cash settlement record of a booking.
type Payment struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	ServiceBookingID uint            `json:"service_booking_id" gorm:"not null;uniqueIndex"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`
	Status           PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';check:status IN ('PENDING','COMPLETED')"`
	PaymentMethod    PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null;default:'CASH'"`
	PaymentDate      time.Time       `json:"payment_date"`
	PaymentProofURL  *string         `json:"payment_proof_url" gorm:"type:varchar(500)"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
