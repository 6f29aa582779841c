package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// PaymentService records cash payments and their confirmation by the provider.
type PaymentService struct {
	store  repository.Store
	events *Dispatcher
	logger *zap.Logger
	now    Clock
}

func NewPaymentService(store repository.Store, events *Dispatcher, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{store: store, events: events, logger: logger, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (s *PaymentService) WithClock(now Clock) *PaymentService {
	s.now = now
	return s
}

func validateProofURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	u, err := url.ParseRequestURI(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: payment proof must be an http(s) URL", ErrValidation)
	}
	return &trimmed, nil
}

// ProcessPayment records the client's cash payment intent. A PENDING booking is confirmed;
// bookings already further along keep their status.
func (s *PaymentService) ProcessPayment(ctx context.Context, clientUserID, bookingID uint, proofURL *string) (*models.Payment, error) {
	proof, err := validateProofURL(proofURL)
	if err != nil {
		return nil, err
	}

	var (
		payment *models.Payment
		events  []Event
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		booking, err := loadBooking(ctx, tx, clientUserID, bookingID, PartyClient)
		if err != nil {
			return err
		}
		if booking.Status == models.BookingStatusCancelled || booking.Status == models.BookingStatusDisputed {
			return fmt.Errorf("%w: cannot pay for a booking in status %s", ErrInvalidTransition, booking.Status)
		}

		exists := true
		payment, err = tx.GetPaymentByBooking(ctx, booking.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			exists = false
			payment = &models.Payment{ServiceBookingID: booking.ID}
		case err != nil:
			return err
		case payment.IsCompleted():
			return fmt.Errorf("%w: booking %d is already paid", ErrDuplicatePayment, booking.ID)
		}

		switch {
		case booking.TotalAmount != nil:
			payment.Amount = *booking.TotalAmount
		case booking.Service != nil:
			payment.Amount = booking.Service.Pricing
		default:
			return fmt.Errorf("%w: service %d for booking %d", ErrNotFound, booking.ServiceID, booking.ID)
		}
		payment.Status = models.PaymentStatusPending
		payment.PaymentMethod = models.PaymentMethodCash
		payment.PaymentDate = s.now()
		if proof != nil {
			payment.PaymentProofURL = proof
		}
		if exists {
			ok, err := tx.UpdatePendingPayment(ctx, payment)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: booking %d is already paid", ErrDuplicatePayment, booking.ID)
			}
		} else if err := tx.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return fmt.Errorf("%w: booking %d already has a payment", ErrDuplicatePayment, booking.ID)
			}
			return err
		}

		if CanTransition(booking.Status, ActionPaymentRecorded) {
			if err := applyStatus(ctx, tx, booking, repository.BookingChanges{Status: models.BookingStatusConfirmed}); err != nil {
				return err
			}
		}

		events = append(events, NotificationEvent{
			ReceiverID: booking.ProviderUserID(),
			Type:       models.NotificationPaymentReceived,
			Title:      "Payment Recorded",
			Message: fmt.Sprintf("The client recorded a cash payment of $%s for %q. Please confirm once received.",
				payment.Amount.StringFixed(2), booking.ServiceTitle()),
			Data: paymentData(payment),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("booking_id", bookingID),
		zap.String("amount", payment.Amount.String()),
	)
	s.events.Dispatch(ctx, events)
	return payment, nil
}

// MarkPaymentCompleted lets the provider confirm receipt of the cash. A CONFIRMED booking moves
// to IN_PROGRESS without opening a time record.
func (s *PaymentService) MarkPaymentCompleted(ctx context.Context, providerUserID, bookingID uint) (*models.Payment, error) {
	var (
		payment *models.Payment
		events  []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		booking, err := loadBooking(ctx, tx, providerUserID, bookingID, PartyProvider)
		if err != nil {
			return err
		}
		current, err := tx.GetPaymentByBooking(ctx, booking.ID)
		if err != nil {
			return notFound(err, "no payment recorded for booking %d", booking.ID)
		}
		if current.IsCompleted() {
			return fmt.Errorf("%w: payment %d is already completed", ErrDuplicatePayment, current.ID)
		}

		ok, err := tx.CompletePayment(ctx, current.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %d is already completed", ErrDuplicatePayment, current.ID)
		}

		if CanTransition(booking.Status, ActionPaymentConfirmed) {
			if err := applyStatus(ctx, tx, booking, repository.BookingChanges{Status: models.BookingStatusInProgress}); err != nil {
				return err
			}
		}

		payment, err = tx.GetPaymentByBooking(ctx, booking.ID)
		if err != nil {
			return err
		}
		events = append(events, NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationPaymentConfirmed,
			Title:      "Payment Confirmed",
			Message:    fmt.Sprintf("The provider confirmed your payment of $%s for %q.", payment.Amount.StringFixed(2), booking.ServiceTitle()),
			Data:       paymentData(payment),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment completed", zap.Uint("payment_id", payment.ID), zap.Uint("booking_id", bookingID))
	s.events.Dispatch(ctx, events)
	return payment, nil
}

// GetPayment returns the booking's payment to either party.
func (s *PaymentService) GetPayment(ctx context.Context, userID, bookingID uint) (*models.Payment, error) {
	if _, err := loadBooking(ctx, s.store, userID, bookingID, PartyEither); err != nil {
		return nil, err
	}
	payment, err := s.store.GetPaymentByBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "no payment recorded for booking %d", bookingID)
	}
	return payment, nil
}

func paymentData(payment *models.Payment) map[string]interface{} {
	return map[string]interface{}{
		"payment_id": payment.ID,
		"booking_id": payment.ServiceBookingID,
		"amount":     payment.Amount.String(),
		"status":     payment.Status,
	}
}
