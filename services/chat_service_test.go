package services

import (
	"context"
	"testing"

	"marketplace-server/repository"
)

func TestCreateConversationReusesPair(t *testing.T) {
	svc := NewChatService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	first, err := svc.CreateConversation(ctx, 1, 2, nil)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if first.ServiceBookingID != nil {
		t.Fatalf("expected no booking, got %v", *first.ServiceBookingID)
	}

	bookingID := uint(42)
	second, err := svc.CreateConversation(ctx, 2, 1, &bookingID)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the pair's conversation %d to be reused, got %d", first.ID, second.ID)
	}
	if second.ServiceBookingID == nil || *second.ServiceBookingID != 42 {
		t.Fatalf("expected booking 42 attached, got %v", second.ServiceBookingID)
	}

	other, err := svc.CreateConversation(ctx, 1, 3, nil)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("a different pair needs its own conversation")
	}
}

func TestCreateConversationValidation(t *testing.T) {
	svc := NewChatService(repository.NewMemoryStore(), nil)
	ctx := context.Background()

	for _, pair := range [][2]uint{{0, 1}, {1, 0}, {5, 5}} {
		_, err := svc.CreateConversation(ctx, pair[0], pair[1], nil)
		expectKind(t, err, ErrValidation)
	}
}
