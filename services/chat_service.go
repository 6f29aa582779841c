package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// ChatService keeps one conversation per pair of users.
type ChatService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewChatService(store repository.Store, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{store: store, logger: logger}
}

// CreateConversation reuses the pair's conversation in either order, attaching bookingID when
// given, and creates one otherwise.
func (s *ChatService) CreateConversation(ctx context.Context, userA, userB uint, bookingID *uint) (*models.Conversation, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return nil, fmt.Errorf("%w: a conversation needs two distinct users", ErrValidation)
	}

	conversation, err := s.store.FindConversation(ctx, userA, userB)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		conversation = &models.Conversation{User1ID: userA, User2ID: userB}
	case err != nil:
		return nil, err
	}

	if bookingID != nil {
		id := *bookingID
		conversation.ServiceBookingID = &id
	}
	if err := s.store.SaveConversation(ctx, conversation); err != nil {
		return nil, err
	}

	s.logger.Debug("conversation ready",
		zap.Uint("conversation_id", conversation.ID),
		zap.Uint("user_a", userA),
		zap.Uint("user_b", userB),
	)
	return conversation, nil
}
