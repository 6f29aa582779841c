package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// Identity is what the booking core knows about an acting user.
type Identity struct {
	UserID     uint
	Role       models.UserRole
	Name       string
	ClientID   uint
	ProviderID uint
}

// ResolveIdentity loads the user and its client/provider profiles.
func ResolveIdentity(ctx context.Context, store repository.Store, userID uint) (*Identity, error) {
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", ErrUnauthorized, userID)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user %d is deactivated", ErrUnauthorized, userID)
	}

	identity := &Identity{UserID: user.ID, Role: user.Role, Name: user.FullName()}
	if user.Client != nil {
		identity.ClientID = user.Client.ID
	}
	if user.ServiceProvider != nil {
		identity.ProviderID = user.ServiceProvider.ID
	}
	return identity, nil
}

// PartyOf matches the identity against the booking's foreign keys.
func (i *Identity) PartyOf(booking *models.ServiceBooking) Party {
	switch {
	case i.ProviderID != 0 && booking.ServiceProviderID == i.ProviderID:
		return PartyProvider
	case i.ClientID != 0 && booking.ClientID == i.ClientID:
		return PartyClient
	}
	return PartyNone
}

// authorize collapses strangers into ErrNotFound and reports a party acting in the wrong role
// as ErrUnauthorized.
func (i *Identity) authorize(booking *models.ServiceBooking, want Party) (Party, error) {
	party := i.PartyOf(booking)
	switch {
	case party == PartyNone:
		return party, fmt.Errorf("%w: booking %d", ErrNotFound, booking.ID)
	case want == PartyEither, party == want:
		return party, nil
	}
	return party, fmt.Errorf("%w: only the booking's %s may do this", ErrUnauthorized, want)
}
