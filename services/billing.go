package services

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

// FallbackWorkInterval is the length of the interval synthesized when a booking is completed
// without an open time record.
const FallbackWorkInterval = time.Hour

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// DurationHours is the wall-clock difference between start and end in fractional hours.
// A negative interval counts as zero.
func DurationHours(start, end time.Time) decimal.Decimal {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(elapsed)).Div(nanosPerHour)
}

// BillAmount prices a finished booking. HOURLY services charge the unit price per hour worked;
// every other pricing type charges the service price unchanged.
func BillAmount(service *models.Service, hours decimal.Decimal) decimal.Decimal {
	if service.PricingType == models.PricingHourly {
		return service.Pricing.Mul(hours)
	}
	return service.Pricing
}
