package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingType says how a service (or a contract) is billed.
type PricingType string

const (
	PricingHourly  PricingType = "HOURLY"
	PricingFixed   PricingType = "FIXED"
	PricingDaily   PricingType = "DAILY"
	PricingSession PricingType = "SESSION"
)

// IsValid reports whether t is one of the known pricing types.
func (t PricingType) IsValid() bool {
	switch t {
	case PricingHourly, PricingFixed, PricingDaily, PricingSession:
		return true
	}
	return false
}

// Service represents a listing offered by a provider
type Service struct {
	ID                uint             `json:"id" gorm:"primaryKey"`
	ServiceProviderID uint             `json:"service_provider_id" gorm:"not null;index"`
	ServiceProvider   *ServiceProvider `json:"service_provider,omitempty" gorm:"foreignKey:ServiceProviderID"`
	Title             string           `json:"title" gorm:"type:varchar(200);not null"`
	Description       string           `json:"description" gorm:"type:text"`
	Pricing           decimal.Decimal  `json:"pricing" gorm:"type:numeric;not null"`
	PricingType       PricingType      `json:"pricing_type" gorm:"type:varchar(20);not null;default:'FIXED'"`
	IsActive          bool             `json:"is_active" gorm:"not null"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `json:"deleted_at,omitempty" gorm:"index"`
}

func (Service) TableName() string {
	return "services"
}
