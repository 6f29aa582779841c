package services

import (
	"errors"
	"testing"

	"marketplace-server/models"
)

func TestBookingTransitions(t *testing.T) {
	allStatuses := []models.BookingStatus{
		models.BookingStatusPending,
		models.BookingStatusConfirmed,
		models.BookingStatusInProgress,
		models.BookingStatusCompleted,
		models.BookingStatusCancelled,
		models.BookingStatusDisputed,
	}
	legal := map[BookingAction]map[models.BookingStatus]models.BookingStatus{
		ActionAccept:           {models.BookingStatusPending: models.BookingStatusConfirmed},
		ActionDecline:          {models.BookingStatusPending: models.BookingStatusCancelled},
		ActionCancel:           {models.BookingStatusPending: models.BookingStatusCancelled, models.BookingStatusConfirmed: models.BookingStatusCancelled},
		ActionStart:            {models.BookingStatusConfirmed: models.BookingStatusInProgress},
		ActionComplete:         {models.BookingStatusInProgress: models.BookingStatusCompleted},
		ActionContractExecuted: {models.BookingStatusPending: models.BookingStatusConfirmed, models.BookingStatusConfirmed: models.BookingStatusConfirmed},
		ActionPaymentRecorded:  {models.BookingStatusPending: models.BookingStatusConfirmed},
		ActionPaymentConfirmed: {models.BookingStatusConfirmed: models.BookingStatusInProgress},
	}

	for action, allowed := range legal {
		for _, from := range allStatuses {
			want, ok := allowed[from]
			got, err := nextStatus(from, action)
			if ok {
				if err != nil || got != want {
					t.Errorf("%s from %s: expected %s, got %s (%v)", action, from, want, got, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s from %s: expected ErrInvalidTransition, got %v", action, from, err)
			}
		}
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, status := range []models.BookingStatus{models.BookingStatusCompleted, models.BookingStatusCancelled, models.BookingStatusDisputed} {
		for action := range bookingTransitions {
			if CanTransition(status, action) {
				t.Errorf("%s should not be allowed from terminal status %s", action, status)
			}
		}
	}
}

func TestUnknownAction(t *testing.T) {
	if _, err := nextStatus(models.BookingStatusPending, BookingAction("teleport")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
