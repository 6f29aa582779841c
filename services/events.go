package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketplace-server/models"
)

// Notifier is the sink for user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, receiverID uint, notificationType models.NotificationType, title, message string, data map[string]interface{}) error
}

// ConversationCreator opens the chat thread between the two parties of a booking.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, userA, userB uint, bookingID *uint) (*models.Conversation, error)
}

// Event is a side effect collected inside a transaction and run after it commits.
type Event interface {
	Dispatch(ctx context.Context, d *Dispatcher) error
	String() string
}

// NotificationEvent delivers one notification.
type NotificationEvent struct {
	ReceiverID uint
	Type       models.NotificationType
	Title      string
	Message    string
	Data       map[string]interface{}
}

func (e NotificationEvent) Dispatch(ctx context.Context, d *Dispatcher) error {
	if d.notifier == nil {
		return nil
	}
	return d.notifier.Notify(ctx, e.ReceiverID, e.Type, e.Title, e.Message, e.Data)
}

func (e NotificationEvent) String() string {
	return fmt.Sprintf("notification %s to user %d", e.Type, e.ReceiverID)
}

// ConversationEvent opens (or reuses) a conversation between two users.
type ConversationEvent struct {
	UserA     uint
	UserB     uint
	BookingID *uint
}

func (e ConversationEvent) Dispatch(ctx context.Context, d *Dispatcher) error {
	if d.chat == nil {
		return nil
	}
	_, err := d.chat.CreateConversation(ctx, e.UserA, e.UserB, e.BookingID)
	return err
}

func (e ConversationEvent) String() string {
	return fmt.Sprintf("conversation between users %d and %d", e.UserA, e.UserB)
}

// Dispatcher runs post-commit events. Failures are logged and never returned.
type Dispatcher struct {
	notifier Notifier
	chat     ConversationCreator
	logger   *zap.Logger
}

func NewDispatcher(notifier Notifier, chat ConversationCreator, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: notifier, chat: chat, logger: logger}
}

// Dispatch runs events in order on a context detached from the caller's cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) {
	if d == nil || len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		if err := event.Dispatch(ctx, d); err != nil {
			d.logger.Warn("post-commit event failed",
				zap.String("event", event.String()),
				zap.Error(err),
			)
		}
	}
}
