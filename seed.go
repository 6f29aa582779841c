package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
	"marketplace-server/utils"
)

const demoPassword = "demo-password"

type demoService struct {
	Title       string
	Description string
	Price       string
	PricingType models.PricingType
}

var demoServices = []demoService{
	{
		Title:       "Plumbing",
		Description: "Leak repair, tap installation, water heater repair and drain maintenance.",
		Price:       "25.00",
		PricingType: models.PricingHourly,
	},
	{
		Title:       "Electrical work",
		Description: "Wiring, panel repair, LED lighting and preventive maintenance by certified technicians.",
		Price:       "30.00",
		PricingType: models.PricingHourly,
	},
	{
		Title:       "Deep cleaning",
		Description: "Full apartment deep clean including kitchen and bathrooms.",
		Price:       "120.00",
		PricingType: models.PricingFixed,
	},
	{
		Title:       "Interior painting",
		Description: "Surface preparation and painting of walls and ceilings, one room per day.",
		Price:       "180.00",
		PricingType: models.PricingDaily,
	},
}

// seedDemoData creates one client, one verified provider and the provider's services.
// It does nothing when the demo users already exist.
func seedDemoData(ctx context.Context, seeder repository.Seeder, logger *zap.Logger) error {
	hash, err := utils.HashPassword(demoPassword)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	clientUser := &models.User{FirstName: "Demo", LastName: "Client", Email: "client@demo.local", PasswordHash: hash, Role: models.RoleClient, IsActive: true}
	if err := seeder.CreateUser(ctx, clientUser); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			logger.Info("demo data already present, skipping seed")
			return nil
		}
		return fmt.Errorf("seed demo client: %w", err)
	}
	if err := seeder.CreateClient(ctx, &models.Client{UserID: clientUser.ID}); err != nil {
		return fmt.Errorf("seed demo client profile: %w", err)
	}

	providerUser := &models.User{FirstName: "Demo", LastName: "Provider", Email: "provider@demo.local", PasswordHash: hash, Role: models.RoleProvider, IsActive: true}
	if err := seeder.CreateUser(ctx, providerUser); err != nil {
		return fmt.Errorf("seed demo provider: %w", err)
	}
	provider := &models.ServiceProvider{UserID: providerUser.ID, IsProviderVerified: true}
	if err := seeder.CreateServiceProvider(ctx, provider); err != nil {
		return fmt.Errorf("seed demo provider profile: %w", err)
	}

	for _, s := range demoServices {
		service := &models.Service{
			ServiceProviderID: provider.ID,
			Title:             s.Title,
			Description:       s.Description,
			Pricing:           decimal.RequireFromString(s.Price),
			PricingType:       s.PricingType,
			IsActive:          true,
		}
		if err := seeder.CreateService(ctx, service); err != nil {
			return fmt.Errorf("seed service %q: %w", s.Title, err)
		}
	}

	logger.Info("demo data seeded",
		zap.String("client_email", clientUser.Email),
		zap.String("provider_email", providerUser.Email),
		zap.Int("services", len(demoServices)),
	)
	return nil
}
