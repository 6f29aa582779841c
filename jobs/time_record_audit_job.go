package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketplace-server/models"
	"marketplace-server/repository"
)

// TimeRecordAuditJob reports IN_PROGRESS bookings that have no open time record.
type TimeRecordAuditJob struct {
	store    repository.Store
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTimeRecordAuditJob creates the audit job
func NewTimeRecordAuditJob(store repository.Store, interval time.Duration, logger *zap.Logger) *TimeRecordAuditJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeRecordAuditJob{
		store:    store,
		interval: interval,
		logger:   logger.Named("time_record_audit"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the audit loop
func (j *TimeRecordAuditJob) Start() {
	go j.run()
	j.logger.Info("time record audit started", zap.Duration("interval", j.interval))
}

// Stop stops the audit loop and waits for it to exit
func (j *TimeRecordAuditJob) Stop() {
	j.once.Do(func() {
		close(j.stopChan)
		<-j.done
		j.logger.Info("time record audit stopped")
	})
}

func (j *TimeRecordAuditJob) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			j.RunOnce(ctx)
			cancel()
		case <-j.stopChan:
			return
		}
	}
}

// RunOnce performs one audit pass and returns the offending bookings
func (j *TimeRecordAuditJob) RunOnce(ctx context.Context) []models.ServiceBooking {
	bookings, err := j.store.ListInProgressWithoutOpenRecord(ctx)
	if err != nil {
		j.logger.Error("time record audit failed", zap.Error(err))
		return nil
	}

	for _, booking := range bookings {
		j.logger.Warn("in-progress booking has no open time record",
			zap.Uint("booking_id", booking.ID),
			zap.Uint("service_provider_id", booking.ServiceProviderID),
			zap.Time("start_time", booking.StartTime),
		)
	}
	if len(bookings) > 0 {
		j.logger.Warn("time record audit found inconsistent bookings", zap.Int("count", len(bookings)))
	}
	return bookings
}
