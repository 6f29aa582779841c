package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"marketplace-server/repository"
)

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	if err := seedDemoData(ctx, store, zap.NewNop()); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := seedDemoData(ctx, store, zap.NewNop()); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	provider, err := store.GetUserByEmail(ctx, "provider@demo.local")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if provider.ServiceProvider == nil || !provider.ServiceProvider.IsProviderVerified {
		t.Fatalf("expected a verified provider profile, got %+v", provider.ServiceProvider)
	}
	for id := uint(1); id <= uint(len(demoServices)); id++ {
		if _, err := store.GetService(ctx, id); err != nil {
			t.Fatalf("service %d: %v", id, err)
		}
	}
	if _, err := store.GetService(ctx, uint(len(demoServices))+1); err == nil {
		t.Fatal("second seed must not duplicate services")
	}
}
