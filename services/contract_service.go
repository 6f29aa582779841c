package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// ContractService manages the dual-signature agreement attached to a booking.
type ContractService struct {
	store  repository.Store
	events *Dispatcher
	logger *zap.Logger
}

func NewContractService(store repository.Store, events *Dispatcher, logger *zap.Logger) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractService{store: store, events: events, logger: logger}
}

// ContractInput holds the terms a provider proposes.
type ContractInput struct {
	Terms         string
	PaymentAmount decimal.Decimal
	PaymentType   models.PricingType
}

func (in ContractInput) validate() error {
	if strings.TrimSpace(in.Terms) == "" {
		return fmt.Errorf("%w: contract terms are required", ErrValidation)
	}
	if !in.PaymentAmount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !in.PaymentType.IsValid() {
		return fmt.Errorf("%w: unknown payment type %q", ErrValidation, in.PaymentType)
	}
	return nil
}

func validateContractChanges(changes repository.ContractChanges) error {
	if changes.IsEmpty() {
		return fmt.Errorf("%w: at least one of terms, payment amount or payment type must be provided", ErrValidation)
	}
	if changes.Terms != nil && strings.TrimSpace(*changes.Terms) == "" {
		return fmt.Errorf("%w: contract terms cannot be empty", ErrValidation)
	}
	if changes.PaymentAmount != nil && !changes.PaymentAmount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if changes.PaymentType != nil && !changes.PaymentType.IsValid() {
		return fmt.Errorf("%w: unknown payment type %q", ErrValidation, *changes.PaymentType)
	}
	return nil
}

// CreateContract attaches a provider-signed contract to the booking.
func (s *ContractService) CreateContract(ctx context.Context, providerUserID, bookingID uint, input ContractInput) (*models.Contract, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		contract *models.Contract
		events   []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		booking, err := loadBooking(ctx, tx, providerUserID, bookingID, PartyProvider)
		if err != nil {
			return err
		}
		if booking.Status.IsTerminal() {
			return fmt.Errorf("%w: booking %d is %s", ErrInvalidTransition, booking.ID, booking.Status)
		}

		if _, err := tx.GetContractByBooking(ctx, booking.ID); err == nil {
			return fmt.Errorf("%w: booking %d already has a contract", ErrContractExists, booking.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		contract = &models.Contract{
			ServiceBookingID: booking.ID,
			Terms:            strings.TrimSpace(input.Terms),
			PaymentAmount:    input.PaymentAmount,
			PaymentType:      input.PaymentType,
			ProviderSigned:   true,
			ClientSigned:     false,
		}
		if err := tx.CreateContract(ctx, contract); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return fmt.Errorf("%w: booking %d already has a contract", ErrContractExists, booking.ID)
			}
			return err
		}

		events = append(events, NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationContractCreated,
			Title:      "New Contract",
			Message:    fmt.Sprintf("The provider has proposed a contract for %q. Please review and sign it.", booking.ServiceTitle()),
			Data:       contractData(contract),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract created", zap.Uint("contract_id", contract.ID), zap.Uint("booking_id", bookingID))
	s.events.Dispatch(ctx, events)
	return contract, nil
}

// UpdateContract edits an unsigned-by-client contract. The edit re-signs for the provider and
// asks the client to review again.
func (s *ContractService) UpdateContract(ctx context.Context, providerUserID, contractID uint, changes repository.ContractChanges) (*models.Contract, error) {
	if err := validateContractChanges(changes); err != nil {
		return nil, err
	}
	if changes.Terms != nil {
		terms := strings.TrimSpace(*changes.Terms)
		changes.Terms = &terms
	}

	var (
		contract *models.Contract
		events   []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		current, booking, _, err := loadContract(ctx, tx, providerUserID, contractID, PartyProvider)
		if err != nil {
			return err
		}
		if current.ClientSigned {
			return fmt.Errorf("%w: contract %d was signed by the client and can no longer be edited", ErrAlreadySigned, current.ID)
		}

		ok, err := tx.UpdateContractTerms(ctx, current.ID, changes)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contract %d was signed by the client and can no longer be edited", ErrAlreadySigned, current.ID)
		}
		contract, err = tx.GetContract(ctx, current.ID)
		if err != nil {
			return err
		}

		events = append(events, NotificationEvent{
			ReceiverID: booking.ClientUserID(),
			Type:       models.NotificationContractUpdated,
			Title:      "Contract Updated",
			Message:    fmt.Sprintf("The contract for %q has been updated. Please review and sign it again.", booking.ServiceTitle()),
			Data:       contractData(contract),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract updated", zap.Uint("contract_id", contract.ID))
	s.events.Dispatch(ctx, events)
	return contract, nil
}

// SignContract records the acting party's signature. Once both parties have signed, a PENDING
// or CONFIRMED booking is confirmed in the same transaction.
func (s *ContractService) SignContract(ctx context.Context, userID, contractID uint) (*models.Contract, error) {
	var (
		contract *models.Contract
		events   []Event
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		current, booking, party, err := loadContract(ctx, tx, userID, contractID, PartyEither)
		if err != nil {
			return err
		}

		signAs, receiverID, signer := repository.SignAsClient, booking.ProviderUserID(), "client"
		alreadySigned := current.ClientSigned
		if party == PartyProvider {
			signAs, receiverID, signer = repository.SignAsProvider, booking.ClientUserID(), "provider"
			alreadySigned = current.ProviderSigned
		}
		if alreadySigned {
			return fmt.Errorf("%w: the %s already signed contract %d", ErrAlreadySigned, signer, current.ID)
		}

		ok, err := tx.SetContractSignature(ctx, current.ID, signAs)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: the %s already signed contract %d", ErrAlreadySigned, signer, current.ID)
		}
		contract, err = tx.GetContract(ctx, current.ID)
		if err != nil {
			return err
		}

		if contract.FullyExecuted() {
			if CanTransition(booking.Status, ActionContractExecuted) {
				changes := repository.BookingChanges{Status: models.BookingStatusConfirmed}
				if err := applyStatus(ctx, tx, booking, changes); err != nil {
					return err
				}
			} else {
				s.logger.Warn("contract fully signed but booking status left unchanged",
					zap.Uint("contract_id", contract.ID),
					zap.Uint("booking_id", booking.ID),
					zap.String("status", string(booking.Status)),
				)
			}
		}

		data := contractData(contract)
		data["signed_by"] = signer
		events = append(events, NotificationEvent{
			ReceiverID: receiverID,
			Type:       models.NotificationContractSigned,
			Title:      "Contract Signed",
			Message:    fmt.Sprintf("The %s has signed the contract for %q.", signer, booking.ServiceTitle()),
			Data:       data,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract signed",
		zap.Uint("contract_id", contract.ID),
		zap.Bool("fully_executed", contract.FullyExecuted()),
	)
	s.events.Dispatch(ctx, events)
	return contract, nil
}

// GetContract returns the contract to either party of its booking.
func (s *ContractService) GetContract(ctx context.Context, userID, contractID uint) (*models.Contract, error) {
	contract, booking, _, err := loadContract(ctx, s.store, userID, contractID, PartyEither)
	if err != nil {
		return nil, err
	}
	contract.ServiceBooking = booking
	return contract, nil
}

func loadContract(ctx context.Context, tx repository.Store, userID, contractID uint, as Party) (*models.Contract, *models.ServiceBooking, Party, error) {
	identity, err := ResolveIdentity(ctx, tx, userID)
	if err != nil {
		return nil, nil, PartyNone, err
	}
	contract, err := tx.GetContract(ctx, contractID)
	if err != nil {
		return nil, nil, PartyNone, notFound(err, "contract %d", contractID)
	}
	booking, err := tx.GetBooking(ctx, contract.ServiceBookingID)
	if err != nil {
		return nil, nil, PartyNone, notFound(err, "contract %d", contractID)
	}
	party, err := identity.authorize(booking, as)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, PartyNone, fmt.Errorf("%w: contract %d", ErrNotFound, contractID)
		}
		return nil, nil, PartyNone, err
	}
	return contract, booking, party, nil
}

func contractData(contract *models.Contract) map[string]interface{} {
	return map[string]interface{}{
		"contract_id":     contract.ID,
		"booking_id":      contract.ServiceBookingID,
		"payment_amount":  contract.PaymentAmount.String(),
		"payment_type":    contract.PaymentType,
		"provider_signed": contract.ProviderSigned,
		"client_signed":   contract.ClientSigned,
	}
}
