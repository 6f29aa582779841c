package models

import (
	"time"
)

type NotificationType string

const (
	NotificationBookingRequest   NotificationType = "BOOKING_REQUEST"
	NotificationBookingConfirmed NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled NotificationType = "BOOKING_CANCELLED"
	NotificationServiceStarted   NotificationType = "SERVICE_STARTED"
	NotificationServiceCompleted NotificationType = "SERVICE_COMPLETED"
	NotificationContractCreated  NotificationType = "CONTRACT_CREATED"
	NotificationContractUpdated  NotificationType = "CONTRACT_UPDATED"
	NotificationContractSigned   NotificationType = "CONTRACT_SIGNED"
	NotificationPaymentReceived  NotificationType = "PAYMENT_RECEIVED"
	NotificationPaymentConfirmed NotificationType = "PAYMENT_CONFIRMED"
)

type Notification struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	ReceiverID uint             `json:"receiver_id" gorm:"not null;index"`
	Type       NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Title      string           `json:"title" gorm:"not null"`
	Message    string           `json:"message" gorm:"type:text;not null"`
	Data       string           `json:"data" gorm:"type:text"` // JSON data
	IsRead     bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
