package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
	"marketplace-server/repository"
)

func validContract() ContractInput {
	return ContractInput{
		Terms:         "Fix the kitchen sink and replace the trap.",
		PaymentAmount: decimal.RequireFromString("60.00"),
		PaymentType:   models.PricingFixed,
	}
}

func TestCreateContract(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	contract, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if !contract.ProviderSigned || contract.ClientSigned {
		t.Fatalf("expected a provider-signed contract, got %+v", contract)
	}
	if sent := f.notifier.forUser(f.clientUser.ID); len(sent) != 1 || sent[0].Type != models.NotificationContractCreated {
		t.Fatalf("expected CONTRACT_CREATED to the client, got %+v", sent)
	}

	_, err = f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	expectKind(t, err, ErrContractExists)
}

func TestCreateContractValidation(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	tests := []struct {
		name  string
		input func(*ContractInput)
	}{
		{"blank terms", func(in *ContractInput) { in.Terms = "   " }},
		{"zero amount", func(in *ContractInput) { in.PaymentAmount = decimal.Zero }},
		{"negative amount", func(in *ContractInput) { in.PaymentAmount = decimal.NewFromInt(-5) }},
		{"unknown payment type", func(in *ContractInput) { in.PaymentType = "WEEKLY" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validContract()
			tt.input(&input)
			_, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, input)
			expectKind(t, err, ErrValidation)
		})
	}

	_, err := f.contracts.CreateContract(f.ctx, f.clientUser.ID, booking.ID, validContract())
	expectKind(t, err, ErrUnauthorized)

	cancelled := f.booking(t, f.hourly, models.BookingStatusCancelled)
	_, err = f.contracts.CreateContract(f.ctx, f.providerUser.ID, cancelled.ID, validContract())
	expectKind(t, err, ErrInvalidTransition)
}

func TestDualSignatureConfirmsPendingBooking(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	contract, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	_, err = f.contracts.SignContract(f.ctx, f.providerUser.ID, contract.ID)
	expectKind(t, err, ErrAlreadySigned)

	f.notifier.reset()
	signed, err := f.contracts.SignContract(f.ctx, f.clientUser.ID, contract.ID)
	if err != nil {
		t.Fatalf("SignContract: %v", err)
	}
	if !signed.FullyExecuted() {
		t.Fatalf("expected both signatures, got %+v", signed)
	}
	if got := f.reload(t, booking.ID).Status; got != models.BookingStatusConfirmed {
		t.Fatalf("expected CONFIRMED after both signatures, got %s", got)
	}

	sent := f.notifier.forUser(f.providerUser.ID)
	if len(sent) != 1 || sent[0].Type != models.NotificationContractSigned || sent[0].Data["signed_by"] != "client" {
		t.Fatalf("expected CONTRACT_SIGNED from the client to the provider, got %+v", sent)
	}

	_, err = f.contracts.SignContract(f.ctx, f.clientUser.ID, contract.ID)
	expectKind(t, err, ErrAlreadySigned)
}

func TestDualSignatureLeavesInProgressBooking(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusConfirmed)

	contract, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if _, err := f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID); err != nil {
		t.Fatalf("StartService: %v", err)
	}

	if _, err := f.contracts.SignContract(f.ctx, f.clientUser.ID, contract.ID); err != nil {
		t.Fatalf("SignContract: %v", err)
	}
	if got := f.reload(t, booking.ID).Status; got != models.BookingStatusInProgress {
		t.Fatalf("expected IN_PROGRESS to be kept, got %s", got)
	}
}

func TestUpdateContract(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)
	contract, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	_, err = f.contracts.UpdateContract(f.ctx, f.providerUser.ID, contract.ID, repository.ContractChanges{})
	expectKind(t, err, ErrValidation)

	amount := decimal.RequireFromString("75.50")
	hourly := models.PricingHourly
	updated, err := f.contracts.UpdateContract(f.ctx, f.providerUser.ID, contract.ID, repository.ContractChanges{
		PaymentAmount: &amount,
		PaymentType:   &hourly,
	})
	if err != nil {
		t.Fatalf("UpdateContract: %v", err)
	}
	if !updated.PaymentAmount.Equal(amount) || updated.PaymentType != models.PricingHourly {
		t.Fatalf("changes not applied: %+v", updated)
	}
	if updated.Terms != contract.Terms {
		t.Errorf("terms should be kept, got %q", updated.Terms)
	}
	if !updated.ProviderSigned || updated.ClientSigned {
		t.Errorf("expected only the provider signature, got %+v", updated)
	}

	_, err = f.contracts.UpdateContract(f.ctx, f.clientUser.ID, contract.ID, repository.ContractChanges{PaymentAmount: &amount})
	expectKind(t, err, ErrUnauthorized)

	if _, err := f.contracts.SignContract(f.ctx, f.clientUser.ID, contract.ID); err != nil {
		t.Fatalf("SignContract: %v", err)
	}
	_, err = f.contracts.UpdateContract(f.ctx, f.providerUser.ID, contract.ID, repository.ContractChanges{PaymentAmount: &amount})
	expectKind(t, err, ErrAlreadySigned)
}

func TestGetContract(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)
	contract, err := f.contracts.CreateContract(f.ctx, f.providerUser.ID, booking.ID, validContract())
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}

	got, err := f.contracts.GetContract(f.ctx, f.clientUser.ID, contract.ID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if got.ServiceBooking == nil || got.ServiceBooking.ID != booking.ID {
		t.Fatalf("expected the booking to be attached, got %+v", got.ServiceBooking)
	}

	_, err = f.contracts.GetContract(f.ctx, f.strangerUser.ID, contract.ID)
	expectKind(t, err, ErrNotFound)

	_, err = f.contracts.GetContract(f.ctx, f.clientUser.ID, 404)
	expectKind(t, err, ErrNotFound)
}
