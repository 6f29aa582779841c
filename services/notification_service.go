package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// Pusher delivers a persisted notification to the receiver's live connection, if any.
type Pusher interface {
	PushNotification(receiverID uint, notification *models.Notification) bool
}

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	TotalCount    int64                 `json:"total_count"`
	HasMore       bool                  `json:"has_more"`
}

type NotificationService struct {
	store  repository.Store
	pusher Pusher
	logger *zap.Logger
}

func NewNotificationService(store repository.Store, pusher Pusher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, pusher: pusher, logger: logger}
}

// Notify persists the notification and pushes it to the receiver when connected.
func (s *NotificationService) Notify(ctx context.Context, receiverID uint, notificationType models.NotificationType, title, message string, data map[string]interface{}) error {
	if receiverID == 0 {
		return fmt.Errorf("%w: notification receiver is required", ErrValidation)
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: notification title and message are required", ErrValidation)
	}

	payload := ""
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		payload = string(raw)
	}

	notification := &models.Notification{
		ReceiverID: receiverID,
		Type:       notificationType,
		Title:      title,
		Message:    message,
		Data:       payload,
	}
	if err := s.store.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	delivered := false
	if s.pusher != nil {
		delivered = s.pusher.PushNotification(receiverID, notification)
	}
	s.logger.Debug("notification sent",
		zap.Uint("notification_id", notification.ID),
		zap.Uint("receiver_id", receiverID),
		zap.String("type", string(notificationType)),
		zap.Bool("live", delivered),
	)
	return nil
}

// List returns a page of the user's notifications, newest first. Pages start at 1.
func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	offset := (page - 1) * limit
	notifications, total, err := s.store.ListNotifications(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return &NotificationPage{
		Notifications: notifications,
		Page:          page,
		Limit:         limit,
		TotalCount:    total,
		HasMore:       int64(offset+len(notifications)) < total,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	notification, err := s.store.MarkNotificationRead(ctx, userID, notificationID)
	if err != nil {
		return nil, notFound(err, "notification %d", notificationID)
	}
	return notification, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
