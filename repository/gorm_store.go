package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marketplace-server/models"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("ServiceProvider").
		First(&user, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("ServiceProvider").
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetService(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	err := s.db.WithContext(ctx).
		Preload("ServiceProvider.User").
		First(&service, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &service, nil
}

func (s *GormStore) CreateBooking(ctx context.Context, booking *models.ServiceBooking) error {
	return translate(s.db.WithContext(ctx).Omit("Client", "ServiceProvider", "Service", "TimeRecords", "Contract", "Payment").Create(booking).Error)
}

func (s *GormStore) bookingQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Client.User").
		Preload("ServiceProvider.User").
		Preload("Service")
}

func (s *GormStore) GetBooking(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	var booking models.ServiceBooking
	if err := s.bookingQuery(ctx).First(&booking, id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (s *GormStore) GetBookingDetails(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	var booking models.ServiceBooking
	err := s.bookingQuery(ctx).
		Preload("TimeRecords", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_time ASC")
		}).
		Preload("Contract").
		Preload("Payment").
		First(&booking, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (s *GormStore) ListBookings(ctx context.Context, filter BookingFilter) ([]models.ServiceBooking, error) {
	query := s.bookingQuery(ctx)
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.ServiceProviderID != nil {
		query = query.Where("service_provider_id = ?", *filter.ServiceProviderID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var bookings []models.ServiceBooking
	if err := query.Order("start_time DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, id uint, from []models.BookingStatus, changes BookingChanges) (bool, error) {
	updates := map[string]interface{}{"status": changes.Status}
	if changes.Notes != nil {
		updates["notes"] = *changes.Notes
	}
	if changes.EndTime != nil {
		updates["end_time"] = *changes.EndTime
	}
	if changes.TotalHours != nil {
		updates["total_hours"] = *changes.TotalHours
	}
	if changes.TotalAmount != nil {
		updates["total_amount"] = *changes.TotalAmount
	}

	result := s.db.WithContext(ctx).
		Model(&models.ServiceBooking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) ListInProgressWithoutOpenRecord(ctx context.Context) ([]models.ServiceBooking, error) {
	var bookings []models.ServiceBooking
	err := s.db.WithContext(ctx).
		Where("status = ?", models.BookingStatusInProgress).
		Where("NOT EXISTS (SELECT 1 FROM time_records tr WHERE tr.service_booking_id = service_bookings.id AND tr.end_time IS NULL)").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *GormStore) CreateTimeRecord(ctx context.Context, record *models.TimeRecord) error {
	return translate(s.db.WithContext(ctx).Create(record).Error)
}

func (s *GormStore) GetOpenTimeRecord(ctx context.Context, bookingID uint) (*models.TimeRecord, error) {
	var record models.TimeRecord
	err := s.db.WithContext(ctx).
		Where("service_booking_id = ? AND end_time IS NULL", bookingID).
		Order("start_time DESC").
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (s *GormStore) CloseTimeRecord(ctx context.Context, id uint, endTime time.Time, duration decimal.Decimal) error {
	result := s.db.WithContext(ctx).
		Model(&models.TimeRecord{}).
		Where("id = ? AND end_time IS NULL", id).
		Updates(map[string]interface{}{"end_time": endTime, "duration": duration})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateContract(ctx context.Context, contract *models.Contract) error {
	return translate(s.db.WithContext(ctx).Omit("ServiceBooking").Create(contract).Error)
}

func (s *GormStore) GetContract(ctx context.Context, id uint) (*models.Contract, error) {
	var contract models.Contract
	if err := s.db.WithContext(ctx).First(&contract, id).Error; err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}

func (s *GormStore) GetContractByBooking(ctx context.Context, bookingID uint) (*models.Contract, error) {
	var contract models.Contract
	if err := s.db.WithContext(ctx).Where("service_booking_id = ?", bookingID).First(&contract).Error; err != nil {
		return nil, translate(err)
	}
	return &contract, nil
}

func (s *GormStore) UpdateContractTerms(ctx context.Context, id uint, changes ContractChanges) (bool, error) {
	updates := map[string]interface{}{
		"provider_signed": true,
		"client_signed":   false,
	}
	if changes.Terms != nil {
		updates["terms"] = *changes.Terms
	}
	if changes.PaymentAmount != nil {
		updates["payment_amount"] = *changes.PaymentAmount
	}
	if changes.PaymentType != nil {
		updates["payment_type"] = *changes.PaymentType
	}

	result := s.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND client_signed = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) SetContractSignature(ctx context.Context, id uint, party SignParty) (bool, error) {
	column := "provider_signed"
	if party == SignAsClient {
		column = "client_signed"
	}
	result := s.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND "+column+" = ?", id, false).
		Update(column, true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) GetPaymentByBooking(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("service_booking_id = ?", bookingID).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return translate(s.db.WithContext(ctx).Create(payment).Error)
}

func (s *GormStore) UpdatePendingPayment(ctx context.Context, payment *models.Payment) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"amount":            payment.Amount,
			"payment_method":    payment.PaymentMethod,
			"payment_date":      payment.PaymentDate,
			"payment_proof_url": payment.PaymentProofURL,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) CompletePayment(ctx context.Context, id uint, paidAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusCompleted,
			"payment_date": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return s.db.WithContext(ctx).Create(notification).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, receiverID uint, offset, limit int) ([]models.Notification, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("receiver_id = ?", receiverID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (s *GormStore) CountUnreadNotifications(ctx context.Context, receiverID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, receiverID, id uint) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND receiver_id = ?", id, receiverID).First(&notification).Error; err != nil {
		return nil, translate(err)
	}
	notification.IsRead = true
	if err := s.db.WithContext(ctx).Model(&notification).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, receiverID uint) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *GormStore) FindConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.db.WithContext(ctx).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		First(&conversation).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conversation, nil
}

func (s *GormStore) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	return s.db.WithContext(ctx).Save(conversation).Error
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Omit("Client", "ServiceProvider").Create(user).Error)
}

func (s *GormStore) CreateClient(ctx context.Context, client *models.Client) error {
	return s.db.WithContext(ctx).Omit("User").Create(client).Error
}

func (s *GormStore) CreateServiceProvider(ctx context.Context, provider *models.ServiceProvider) error {
	return s.db.WithContext(ctx).Omit("User").Create(provider).Error
}

func (s *GormStore) CreateService(ctx context.Context, service *models.Service) error {
	return s.db.WithContext(ctx).Omit("ServiceProvider").Create(service).Error
}
