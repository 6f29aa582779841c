package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-server/models"
)

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t)

	booking, err := f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{
		ServiceID: f.hourly.ID,
		StartTime: f.clock.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("BookService: %v", err)
	}
	if booking.Status != models.BookingStatusPending {
		t.Fatalf("expected PENDING, got %s", booking.Status)
	}
	if booking.Title != "Plumbing" {
		t.Errorf("expected title to default to the service title, got %q", booking.Title)
	}
	if sent := f.notifier.forUser(f.providerUser.ID); len(sent) != 1 || sent[0].Type != models.NotificationBookingRequest {
		t.Fatalf("expected one BOOKING_REQUEST to the provider, got %+v", sent)
	}

	booking, err = f.bookings.AcceptBooking(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("AcceptBooking: %v", err)
	}
	if booking.Status != models.BookingStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", booking.Status)
	}
	if len(f.chat.pairs) != 1 || f.chat.pairs[0] != [2]uint{f.clientUser.ID, f.providerUser.ID} {
		t.Fatalf("expected a conversation between client and provider, got %v", f.chat.pairs)
	}

	booking, err = f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("StartService: %v", err)
	}
	if booking.Status != models.BookingStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", booking.Status)
	}

	f.notifier.reset()
	f.clock.Advance(2 * time.Hour)
	booking, err = f.bookings.CompleteService(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("CompleteService: %v", err)
	}
	if booking.Status != models.BookingStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", booking.Status)
	}
	if booking.TotalHours == nil || !booking.TotalHours.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected 2 total hours, got %v", booking.TotalHours)
	}
	if booking.TotalAmount == nil || !booking.TotalAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected total amount 40, got %v", booking.TotalAmount)
	}
	if booking.EndTime == nil || !booking.EndTime.Equal(f.clock.Now()) {
		t.Errorf("expected end time %v, got %v", f.clock.Now(), booking.EndTime)
	}

	sent := f.notifier.forUser(f.clientUser.ID)
	if len(sent) != 1 || sent[0].Type != models.NotificationServiceCompleted {
		t.Fatalf("expected one SERVICE_COMPLETED to the client, got %+v", sent)
	}
	if !strings.Contains(sent[0].Message, "Total hours: 2.00, Total amount: $40.00") {
		t.Errorf("unexpected completion message %q", sent[0].Message)
	}

	details := f.reload(t, booking.ID)
	if len(details.TimeRecords) != 1 {
		t.Fatalf("expected one time record, got %d", len(details.TimeRecords))
	}
	record := details.TimeRecords[0]
	if record.IsOpen() || record.Duration == nil || !record.Duration.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected a closed two hour record, got %+v", record)
	}
}

func TestBookServiceValidation(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(24 * time.Hour)

	_, err := f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{StartTime: start})
	expectKind(t, err, ErrValidation)

	_, err = f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{ServiceID: f.hourly.ID})
	expectKind(t, err, ErrValidation)

	_, err = f.bookings.BookService(f.ctx, f.providerUser.ID, BookServiceInput{ServiceID: f.hourly.ID, StartTime: start})
	expectKind(t, err, ErrUnauthorized)

	_, err = f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{ServiceID: 999, StartTime: start})
	expectKind(t, err, ErrNotFound)

	if _, err := f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{ServiceID: f.hourly.ID, StartTime: start}); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err = f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{ServiceID: f.fixed.ID, StartTime: start})
	expectKind(t, err, ErrValidation)
}

func TestBookServiceRequiresVerifiedProvider(t *testing.T) {
	f := newFixture(t)

	unverifiedUser := f.user(t, "Dee", "Nova", "dee@example.com", models.RoleProvider)
	provider := &models.ServiceProvider{UserID: unverifiedUser.ID}
	f.must(t, f.store.CreateServiceProvider(f.ctx, provider))
	service := &models.Service{ServiceProviderID: provider.ID, Title: "Tutoring", Pricing: decimal.NewFromInt(30), PricingType: models.PricingSession, IsActive: true}
	f.must(t, f.store.CreateService(f.ctx, service))

	_, err := f.bookings.BookService(f.ctx, f.clientUser.ID, BookServiceInput{ServiceID: service.ID, StartTime: f.clock.Now().Add(time.Hour)})
	expectKind(t, err, ErrValidation)
}

func TestDeclineBookingAppendsReason(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	updated, err := f.bookings.DeclineBooking(f.ctx, f.providerUser.ID, booking.ID, "  fully booked  ")
	if err != nil {
		t.Fatalf("DeclineBooking: %v", err)
	}
	if updated.Status != models.BookingStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", updated.Status)
	}
	if updated.Notes == nil || *updated.Notes != "Declined by provider: fully booked" {
		t.Errorf("unexpected notes %v", updated.Notes)
	}

	sent := f.notifier.forUser(f.clientUser.ID)
	if len(sent) != 1 || sent[0].Title != "Booking Declined" {
		t.Fatalf("expected a decline notification, got %+v", sent)
	}
	if !strings.Contains(sent[0].Message, "fully booked") || sent[0].Data["reason"] != "fully booked" {
		t.Errorf("expected the reason in the notification, got %+v", sent[0])
	}
}

func TestDeclineNotes(t *testing.T) {
	existing := "Bring a ladder"
	blank := "   "
	tests := []struct {
		name     string
		existing *string
		reason   string
		want     string
	}{
		{"no notes no reason", nil, "", "Declined by provider"},
		{"blank notes", &blank, "busy", "Declined by provider: busy"},
		{"existing notes", &existing, "busy", "Bring a ladder\n\nDeclined by provider: busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := declineNotes(tt.existing, tt.reason); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)

	confirmed := f.booking(t, f.fixed, models.BookingStatusConfirmed)
	updated, err := f.bookings.CancelBooking(f.ctx, f.clientUser.ID, confirmed.ID)
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if updated.Status != models.BookingStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", updated.Status)
	}
	if sent := f.notifier.forUser(f.providerUser.ID); len(sent) != 1 || sent[0].Title != "Booking Cancelled" {
		t.Fatalf("expected the provider to be told, got %+v", sent)
	}

	completed := f.booking(t, f.fixed, models.BookingStatusInProgress)
	if _, err := f.bookings.CompleteService(f.ctx, f.providerUser.ID, completed.ID); err != nil {
		t.Fatalf("CompleteService: %v", err)
	}
	_, err = f.bookings.CancelBooking(f.ctx, f.clientUser.ID, completed.ID)
	expectKind(t, err, ErrInvalidTransition)
}

func TestBookingAuthorization(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	_, err := f.bookings.AcceptBooking(f.ctx, f.strangerUser.ID, booking.ID)
	expectKind(t, err, ErrNotFound)

	_, err = f.bookings.AcceptBooking(f.ctx, f.clientUser.ID, booking.ID)
	expectKind(t, err, ErrUnauthorized)

	_, err = f.bookings.CancelBooking(f.ctx, f.providerUser.ID, booking.ID)
	expectKind(t, err, ErrUnauthorized)

	_, err = f.bookings.AcceptBooking(f.ctx, f.providerUser.ID, 999)
	expectKind(t, err, ErrNotFound)

	_, err = f.bookings.GetBooking(f.ctx, f.strangerUser.ID, booking.ID)
	expectKind(t, err, ErrNotFound)

	_, err = f.bookings.AcceptBooking(f.ctx, 999, booking.ID)
	expectKind(t, err, ErrUnauthorized)

	if got := f.reload(t, booking.ID).Status; got != models.BookingStatusPending {
		t.Fatalf("rejected calls must not change the booking, got %s", got)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("rejected calls must not notify, got %+v", f.notifier.sent)
	}
}

func TestCompleteServiceTwice(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusConfirmed)

	if _, err := f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID); err != nil {
		t.Fatalf("StartService: %v", err)
	}
	f.clock.Advance(90 * time.Minute)
	first, err := f.bookings.CompleteService(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("CompleteService: %v", err)
	}

	f.clock.Advance(time.Hour)
	_, err = f.bookings.CompleteService(f.ctx, f.providerUser.ID, booking.ID)
	expectKind(t, err, ErrInvalidTransition)

	again := f.reload(t, booking.ID)
	if !again.TotalAmount.Equal(*first.TotalAmount) || !again.TotalHours.Equal(*first.TotalHours) {
		t.Fatalf("totals changed: %v/%v -> %v/%v", first.TotalHours, first.TotalAmount, again.TotalHours, again.TotalAmount)
	}
	if !first.TotalAmount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected 1.5h at 20/h = 30, got %s", first.TotalAmount)
	}
}

func TestCompleteServiceWithoutTimeRecord(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusInProgress)

	completed, err := f.bookings.CompleteService(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("CompleteService: %v", err)
	}
	if !completed.TotalHours.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected the fallback hour, got %s", completed.TotalHours)
	}
	if !completed.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected 20, got %s", completed.TotalAmount)
	}
	details := f.reload(t, booking.ID)
	if len(details.TimeRecords) != 1 || details.TimeRecords[0].IsOpen() {
		t.Fatalf("expected one closed synthetic record, got %+v", details.TimeRecords)
	}
}

func TestCompleteFixedServiceIgnoresDuration(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.fixed, models.BookingStatusConfirmed)

	if _, err := f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID); err != nil {
		t.Fatalf("StartService: %v", err)
	}
	f.clock.Advance(5 * time.Hour)
	completed, err := f.bookings.CompleteService(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("CompleteService: %v", err)
	}
	if !completed.TotalHours.Equal(decimal.NewFromInt(5)) || !completed.TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 5h billed at the fixed 100, got %s / %s", completed.TotalHours, completed.TotalAmount)
	}
}

func TestConcurrentAcceptAndCancel(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	var (
		wg        sync.WaitGroup
		acceptErr error
		cancelErr error
		start     = make(chan struct{})
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, acceptErr = f.bookings.AcceptBooking(f.ctx, f.providerUser.ID, booking.ID)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, cancelErr = f.bookings.CancelBooking(f.ctx, f.clientUser.ID, booking.ID)
	}()
	close(start)
	wg.Wait()

	final := f.reload(t, booking.ID).Status
	switch {
	case acceptErr == nil && cancelErr == nil:
		// accept then cancel is a legal sequence
		if final != models.BookingStatusCancelled {
			t.Fatalf("expected CANCELLED after accept then cancel, got %s", final)
		}
	case acceptErr == nil:
		t.Fatalf("cancel lost after a successful accept: %v", cancelErr)
	case cancelErr == nil:
		expectKind(t, acceptErr, ErrInvalidTransition)
		if final != models.BookingStatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", final)
		}
	default:
		t.Fatalf("both calls failed: %v / %v", acceptErr, cancelErr)
	}
}

func TestConcurrentAcceptAndDecline(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.bookings.AcceptBooking(f.ctx, f.providerUser.ID, booking.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.bookings.DeclineBooking(f.ctx, f.providerUser.ID, booking.ID, "")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("push gateway down")
	f.chat.err = errors.New("chat down")
	booking := f.booking(t, f.hourly, models.BookingStatusPending)

	updated, err := f.bookings.AcceptBooking(f.ctx, f.providerUser.ID, booking.ID)
	if err != nil {
		t.Fatalf("AcceptBooking: %v", err)
	}
	if updated.Status != models.BookingStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", updated.Status)
	}
	if got := f.reload(t, booking.ID).Status; got != models.BookingStatusConfirmed {
		t.Fatalf("expected the committed status to survive, got %s", got)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected the notification to be attempted once, got %d", len(f.notifier.sent))
	}
}

func TestStartServiceRejectsSecondStart(t *testing.T) {
	f := newFixture(t)
	booking := f.booking(t, f.hourly, models.BookingStatusConfirmed)

	if _, err := f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID); err != nil {
		t.Fatalf("StartService: %v", err)
	}
	_, err := f.bookings.StartService(f.ctx, f.providerUser.ID, booking.ID)
	expectKind(t, err, ErrInvalidTransition)

	if records := f.reload(t, booking.ID).TimeRecords; len(records) != 1 {
		t.Fatalf("expected one time record, got %d", len(records))
	}
}

func TestGetAndListBookings(t *testing.T) {
	f := newFixture(t)
	pending := f.booking(t, f.hourly, models.BookingStatusPending)
	f.clock.Advance(time.Hour)
	confirmed := f.booking(t, f.fixed, models.BookingStatusConfirmed)

	got, err := f.bookings.GetBooking(f.ctx, f.clientUser.ID, pending.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if got.Service == nil || got.Service.Title != "Plumbing" {
		t.Errorf("expected the service to be loaded, got %+v", got.Service)
	}

	all, err := f.bookings.ListBookings(f.ctx, f.providerUser.ID, PartyProvider, nil)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(all))
	}

	status := models.BookingStatusConfirmed
	filtered, err := f.bookings.ListBookings(f.ctx, f.clientUser.ID, PartyClient, &status)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != confirmed.ID {
		t.Fatalf("expected only booking %d, got %+v", confirmed.ID, filtered)
	}

	_, err = f.bookings.ListBookings(f.ctx, f.clientUser.ID, PartyProvider, nil)
	expectKind(t, err, ErrUnauthorized)

	bogus := models.BookingStatus("LOST")
	_, err = f.bookings.ListBookings(f.ctx, f.clientUser.ID, PartyClient, &bogus)
	expectKind(t, err, ErrValidation)

	mine, err := f.bookings.ListBookings(f.ctx, f.strangerUser.ID, PartyClient, nil)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("stranger should see no bookings, got %d", len(mine))
	}
}
