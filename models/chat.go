package models

import (
	"time"
)

// Conversation is the chat thread between two users, optionally tied to a booking.
type Conversation struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	User1ID          uint      `json:"user1_id" gorm:"not null;index"`
	User2ID          uint      `json:"user2_id" gorm:"not null;index"`
	ServiceBookingID *uint     `json:"service_booking_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Involves reports whether both users are the two ends of the conversation, in either order.
func (c *Conversation) Involves(a, b uint) bool {
	return (c.User1ID == a && c.User2ID == b) || (c.User1ID == b && c.User2ID == a)
}
