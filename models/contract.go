package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract is the optional dual-signature agreement attached to a booking.
type Contract struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	ServiceBookingID uint            `json:"service_booking_id" gorm:"not null;uniqueIndex"`
	ServiceBooking   *ServiceBooking `json:"service_booking,omitempty" gorm:"foreignKey:ServiceBookingID"`
	Terms            string          `json:"terms" gorm:"type:text;not null"`
	PaymentAmount    decimal.Decimal `json:"payment_amount" gorm:"type:numeric;not null"`
	PaymentType      PricingType     `json:"payment_type" gorm:"type:varchar(20);not null;check:payment_type IN ('HOURLY','FIXED','DAILY','SESSION')"`
	ProviderSigned   bool            `json:"provider_signed" gorm:"default:false"`
	ClientSigned     bool            `json:"client_signed" gorm:"default:false"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

// FullyExecuted reports whether both parties have signed.
func (c *Contract) FullyExecuted() bool {
	return c.ProviderSigned && c.ClientSigned
}
