package services

import (
	"fmt"

	"marketplace-server/models"
)

// BookingAction names a lifecycle step that may move a booking between statuses.
type BookingAction string

const (
	ActionAccept           BookingAction = "accept"
	ActionDecline          BookingAction = "decline"
	ActionCancel           BookingAction = "cancel"
	ActionStart            BookingAction = "start"
	ActionComplete         BookingAction = "complete"
	ActionContractExecuted BookingAction = "contract_executed"
	ActionPaymentRecorded  BookingAction = "payment_recorded"
	ActionPaymentConfirmed BookingAction = "payment_confirmed"
)

// Party is the side of a booking a user acts for.
type Party string

const (
	PartyNone     Party = ""
	PartyClient   Party = "client"
	PartyProvider Party = "provider"
	PartyEither   Party = "either"
)

type transitionRule struct {
	From  []models.BookingStatus
	To    models.BookingStatus
	Actor Party
}

var bookingTransitions = map[BookingAction]transitionRule{
	ActionAccept: {
		From:  []models.BookingStatus{models.BookingStatusPending},
		To:    models.BookingStatusConfirmed,
		Actor: PartyProvider,
	},
	ActionDecline: {
		From:  []models.BookingStatus{models.BookingStatusPending},
		To:    models.BookingStatusCancelled,
		Actor: PartyProvider,
	},
	ActionCancel: {
		From:  []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		To:    models.BookingStatusCancelled,
		Actor: PartyClient,
	},
	ActionStart: {
		From:  []models.BookingStatus{models.BookingStatusConfirmed},
		To:    models.BookingStatusInProgress,
		Actor: PartyProvider,
	},
	ActionComplete: {
		From:  []models.BookingStatus{models.BookingStatusInProgress},
		To:    models.BookingStatusCompleted,
		Actor: PartyProvider,
	},
	ActionContractExecuted: {
		From:  []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed},
		To:    models.BookingStatusConfirmed,
		Actor: PartyEither,
	},
	ActionPaymentRecorded: {
		From:  []models.BookingStatus{models.BookingStatusPending},
		To:    models.BookingStatusConfirmed,
		Actor: PartyClient,
	},
	ActionPaymentConfirmed: {
		From:  []models.BookingStatus{models.BookingStatusConfirmed},
		To:    models.BookingStatusInProgress,
		Actor: PartyProvider,
	},
}

// CanTransition reports whether action is legal from current.
func CanTransition(current models.BookingStatus, action BookingAction) bool {
	_, err := nextStatus(current, action)
	return err == nil
}

func nextStatus(current models.BookingStatus, action BookingAction) (models.BookingStatus, error) {
	rule, ok := bookingTransitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	for _, from := range rule.From {
		if from == current {
			return rule.To, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a booking in status %s", ErrInvalidTransition, action, current)
}
