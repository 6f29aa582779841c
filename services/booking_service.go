package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// BookingService drives the booking lifecycle.
type BookingService struct {
	store  repository.Store
	events *Dispatcher
	logger *zap.Logger
	now    Clock
}

func NewBookingService(store repository.Store, events *Dispatcher, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{store: store, events: events, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *BookingService) WithClock(now Clock) *BookingService {
	s.now = now
	return s
}

// BookServiceInput is what a client submits to request a booking.
type BookServiceInput struct {
	ServiceID   uint
	StartTime   time.Time
	AddressID   *uint
	Notes       *string
	Title       string
	Description *string
}

// BookService creates a PENDING booking for the client and notifies the provider.
func (s *BookingService) BookService(ctx context.Context, clientUserID uint, input BookServiceInput) (*models.ServiceBooking, error) {
	if input.ServiceID == 0 {
		return nil, fmt.Errorf("%w: service id is required", ErrValidation)
	}
	if input.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrValidation)
	}

	var (
		booking *models.ServiceBooking
		events  []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		identity, err := ResolveIdentity(ctx, tx, clientUserID)
		if err != nil {
			return err
		}
		if identity.ClientID == 0 {
			return fmt.Errorf("%w: only clients can book services", ErrUnauthorized)
		}

		service, err := tx.GetService(ctx, input.ServiceID)
		if err != nil {
			return notFound(err, "service %d", input.ServiceID)
		}
		if !service.IsActive {
			return fmt.Errorf("%w: service %d is not available", ErrNotFound, service.ID)
		}
		if service.ServiceProvider == nil || !service.ServiceProvider.IsProviderVerified {
			return fmt.Errorf("%w: the provider of this service is not verified", ErrValidation)
		}

		clientID, providerID := identity.ClientID, service.ServiceProviderID
		existing, err := tx.ListBookings(ctx, repository.BookingFilter{ClientID: &clientID, ServiceProviderID: &providerID})
		if err != nil {
			return err
		}
		for _, b := range existing {
			if !b.Status.IsTerminal() && b.StartTime.Equal(input.StartTime) {
				return fmt.Errorf("%w: booking %d already holds this time slot", ErrValidation, b.ID)
			}
		}

		title := strings.TrimSpace(input.Title)
		if title == "" {
			title = service.Title
		}
		amount := service.Pricing
		booking = &models.ServiceBooking{
			ClientID:          identity.ClientID,
			ServiceProviderID: service.ServiceProviderID,
			ServiceID:         service.ID,
			StartTime:         input.StartTime,
			Status:            models.BookingStatusPending,
			AddressID:         input.AddressID,
			Notes:             input.Notes,
			Title:             title,
			Description:       input.Description,
			TotalAmount:       &amount,
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}
		booking, err = tx.GetBooking(ctx, booking.ID)
		if err != nil {
			return err
		}

		events = append(events, NotificationEvent{
			ReceiverID: booking.ProviderUserID(),
			Type:       models.NotificationBookingRequest,
			Title:      "New Booking Request",
			Message:    fmt.Sprintf("You have received a new booking request for %q from %s.", service.Title, identity.Name),
			Data:       bookingData(booking),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Uint("booking_id", booking.ID),
		zap.Uint("service_id", booking.ServiceID),
		zap.Uint("client_id", booking.ClientID),
	)
	s.events.Dispatch(ctx, events)
	return booking, nil
}

// AcceptBooking confirms a PENDING booking and opens a conversation between the parties.
func (s *BookingService) AcceptBooking(ctx context.Context, providerUserID, bookingID uint) (*models.ServiceBooking, error) {
	return s.run(ctx, providerUserID, bookingID, PartyProvider, func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error) {
		if err := s.transition(ctx, tx, booking, ActionAccept, repository.BookingChanges{}); err != nil {
			return nil, err
		}
		id := booking.ID
		return []Event{
			ConversationEvent{UserA: booking.ClientUserID(), UserB: booking.ProviderUserID(), BookingID: &id},
			NotificationEvent{
				ReceiverID: booking.ClientUserID(),
				Type:       models.NotificationBookingConfirmed,
				Title:      "Booking Confirmed",
				Message:    fmt.Sprintf("Your booking for %q has been confirmed by the provider.", booking.ServiceTitle()),
				Data:       bookingData(booking),
			},
		}, nil
	})
}

// DeclineBooking cancels a PENDING booking, appending the reason to its notes.
func (s *BookingService) DeclineBooking(ctx context.Context, providerUserID, bookingID uint, reason string) (*models.ServiceBooking, error) {
	reason = strings.TrimSpace(reason)
	return s.run(ctx, providerUserID, bookingID, PartyProvider, func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error) {
		notes := declineNotes(booking.Notes, reason)
		if err := s.transition(ctx, tx, booking, ActionDecline, repository.BookingChanges{Notes: &notes}); err != nil {
			return nil, err
		}

		message := fmt.Sprintf("Your booking for %q has been declined by the provider.", booking.ServiceTitle())
		if reason != "" {
			message = fmt.Sprintf("Your booking for %q has been declined by the provider: %s.", booking.ServiceTitle(), reason)
		}
		data := bookingData(booking)
		if reason != "" {
			data["reason"] = reason
		}
		return []Event{NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationBookingCancelled,
			Title:      "Booking Declined",
			Message:    message,
			Data:       data,
		}}, nil
	})
}

// CancelBooking lets the client withdraw a PENDING or CONFIRMED booking.
func (s *BookingService) CancelBooking(ctx context.Context, clientUserID, bookingID uint) (*models.ServiceBooking, error) {
	return s.run(ctx, clientUserID, bookingID, PartyClient, func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error) {
		if err := s.transition(ctx, tx, booking, ActionCancel, repository.BookingChanges{}); err != nil {
			return nil, err
		}
		return []Event{NotificationEvent{
			ReceiverID: booking.ProviderUserID(),
			Type:       models.NotificationBookingCancelled,
			Title:      "Booking Cancelled",
			Message:    fmt.Sprintf("Booking for %q has been cancelled by the client.", booking.ServiceTitle()),
			Data:       bookingData(booking),
		}}, nil
	})
}

// StartService moves a CONFIRMED booking to IN_PROGRESS and opens a time record.
func (s *BookingService) StartService(ctx context.Context, providerUserID, bookingID uint) (*models.ServiceBooking, error) {
	return s.run(ctx, providerUserID, bookingID, PartyProvider, func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error) {
		if err := s.transition(ctx, tx, booking, ActionStart, repository.BookingChanges{}); err != nil {
			return nil, err
		}
		record := &models.TimeRecord{ServiceBookingID: booking.ID, StartTime: s.now()}
		if err := tx.CreateTimeRecord(ctx, record); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return nil, fmt.Errorf("%w: booking %d already has an open time record", ErrInvalidTransition, booking.ID)
			}
			return nil, err
		}
		return []Event{NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationServiceStarted,
			Title:      "Service Started",
			Message:    fmt.Sprintf("Your booked service %q has been started by the provider.", booking.ServiceTitle()),
			Data:       bookingData(booking),
		}}, nil
	})
}

// CompleteService closes the open time record, bills the booking and marks it COMPLETED.
func (s *BookingService) CompleteService(ctx context.Context, providerUserID, bookingID uint) (*models.ServiceBooking, error) {
	return s.run(ctx, providerUserID, bookingID, PartyProvider, func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error) {
		if _, err := nextStatus(booking.Status, ActionComplete); err != nil {
			return nil, err
		}
		if booking.Service == nil {
			return nil, fmt.Errorf("%w: service %d for booking %d", ErrNotFound, booking.ServiceID, booking.ID)
		}

		now := s.now()
		record, err := tx.GetOpenTimeRecord(ctx, booking.ID)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("in-progress booking has no open time record, billing a fallback interval",
				zap.Uint("booking_id", booking.ID),
				zap.Duration("fallback", FallbackWorkInterval),
			)
			record = &models.TimeRecord{ServiceBookingID: booking.ID, StartTime: now.Add(-FallbackWorkInterval)}
			err = tx.CreateTimeRecord(ctx, record)
		}
		if err != nil {
			return nil, err
		}

		hours := DurationHours(record.StartTime, now)
		amount := BillAmount(booking.Service, hours)
		changes := repository.BookingChanges{EndTime: &now, TotalHours: &hours, TotalAmount: &amount}
		if err := s.transition(ctx, tx, booking, ActionComplete, changes); err != nil {
			return nil, err
		}
		if err := tx.CloseTimeRecord(ctx, record.ID, now, hours); err != nil {
			return nil, err
		}

		data := bookingData(booking)
		data["total_hours"] = hours.StringFixed(2)
		data["total_amount"] = amount.StringFixed(2)
		return []Event{NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationServiceCompleted,
			Title:      "Service Completed",
			Message: fmt.Sprintf("Your booked service %q has been completed. Total hours: %s, Total amount: $%s.",
				booking.ServiceTitle(), hours.StringFixed(2), amount.StringFixed(2)),
			Data: data,
		}}, nil
	})
}

// GetBooking returns the booking with its time records, contract and payment.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uint) (*models.ServiceBooking, error) {
	identity, err := ResolveIdentity(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	booking, err := s.store.GetBookingDetails(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking %d", bookingID)
	}
	if _, err := identity.authorize(booking, PartyEither); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListBookings returns the user's bookings on the given side, newest start first.
func (s *BookingService) ListBookings(ctx context.Context, userID uint, as Party, status *models.BookingStatus) ([]models.ServiceBooking, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *status)
	}
	identity, err := ResolveIdentity(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	filter := repository.BookingFilter{Status: status}
	switch as {
	case PartyClient:
		if identity.ClientID == 0 {
			return nil, fmt.Errorf("%w: user %d has no client profile", ErrUnauthorized, userID)
		}
		filter.ClientID = &identity.ClientID
	case PartyProvider:
		if identity.ProviderID == 0 {
			return nil, fmt.Errorf("%w: user %d has no provider profile", ErrUnauthorized, userID)
		}
		filter.ServiceProviderID = &identity.ProviderID
	default:
		return nil, fmt.Errorf("%w: unknown party %q", ErrValidation, as)
	}
	return s.store.ListBookings(ctx, filter)
}

type bookingStep func(tx repository.Store, booking *models.ServiceBooking) ([]Event, error)

// run loads and authorizes the booking inside a transaction, applies step, and dispatches the
// collected events once the transaction has committed.
func (s *BookingService) run(ctx context.Context, userID, bookingID uint, as Party, step bookingStep) (*models.ServiceBooking, error) {
	var (
		updated *models.ServiceBooking
		events  []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		booking, err := loadBooking(ctx, tx, userID, bookingID, as)
		if err != nil {
			return err
		}
		events, err = step(tx, booking)
		if err != nil {
			return err
		}
		updated, err = tx.GetBooking(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking updated",
		zap.Uint("booking_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Uint("actor_user_id", userID),
	)
	s.events.Dispatch(ctx, events)
	return updated, nil
}

// transition applies action under a guard on the status the booking was read in.
func (s *BookingService) transition(ctx context.Context, tx repository.Store, booking *models.ServiceBooking, action BookingAction, changes repository.BookingChanges) error {
	next, err := nextStatus(booking.Status, action)
	if err != nil {
		return err
	}
	changes.Status = next
	return applyStatus(ctx, tx, booking, changes)
}

func applyStatus(ctx context.Context, tx repository.Store, booking *models.ServiceBooking, changes repository.BookingChanges) error {
	ok, err := tx.UpdateBookingStatus(ctx, booking.ID, []models.BookingStatus{booking.Status}, changes)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: booking %d is no longer %s", ErrInvalidTransition, booking.ID, booking.Status)
	}
	booking.Status = changes.Status
	return nil
}

func loadBooking(ctx context.Context, tx repository.Store, userID, bookingID uint, as Party) (*models.ServiceBooking, error) {
	identity, err := ResolveIdentity(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	booking, err := tx.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking %d", bookingID)
	}
	if _, err := identity.authorize(booking, as); err != nil {
		return nil, err
	}
	return booking, nil
}

func declineNotes(existing *string, reason string) string {
	note := "Declined by provider"
	if reason != "" {
		note += ": " + reason
	}
	if existing == nil || strings.TrimSpace(*existing) == "" {
		return note
	}
	return *existing + "\n\n" + note
}

func bookingData(booking *models.ServiceBooking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id": booking.ID,
		"service_id": booking.ServiceID,
		"status":     booking.Status,
	}
}
