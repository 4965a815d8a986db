package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/models"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings map[string]*models.Booking
	updated  map[string]models.BookingStatus
}

func (m *mockBookingRepo) FindByID(_ context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) ListBySubject(_ context.Context, subjectID string) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		if b.SubjectID == subjectID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, id string, status models.BookingStatus) error {
	if m.updated == nil {
		m.updated = map[string]models.BookingStatus{}
	}
	m.updated[id] = status
	m.bookings[id].Status = status
	return nil
}

func newTestBookingService(t *testing.T) (*BookingService, *mockBookingRepo, *capturingSink) {
	t.Helper()

	future := time.Now().UTC().Add(48 * time.Hour)
	repo := &mockBookingRepo{bookings: map[string]*models.Booking{
		"bk-1": {ID: "bk-1", Reference: "ALT4X9", SubjectID: "usr-1", FlightCode: "AV101", DepartureAt: future, Status: models.BookingStatusConfirmed},
		"bk-2": {ID: "bk-2", Reference: "ALT7K2", SubjectID: "usr-2", FlightCode: "AV202", DepartureAt: future, Status: models.BookingStatusConfirmed},
		"bk-3": {ID: "bk-3", Reference: "ALT9M5", SubjectID: "usr-1", FlightCode: "AV303", DepartureAt: time.Now().UTC().Add(-2 * time.Hour), Status: models.BookingStatusConfirmed},
	}}

	sink := &capturingSink{}
	auditor := audit.NewLogger(128, sink)
	t.Cleanup(auditor.Close)

	svc := NewBookingService(repo, nil, nil, zap.NewNop(), auditor)
	return svc, repo, sink
}

func TestBookingService_ListMine(t *testing.T) {
	svc, _, _ := newTestBookingService(t)

	bookings, err := svc.ListMine(context.Background(), "usr-1")
	require.NoError(t, err)
	assert.Len(t, bookings, 2)

	empty, err := svc.ListMine(context.Background(), "usr-nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBookingService_GetOwnership(t *testing.T) {
	svc, _, sink := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.Get(ctx, "usr-1", "bk-1", "198.51.100.4")
	require.NoError(t, err)
	assert.Equal(t, "ALT4X9", booking.Reference)

	// Someone else's booking is forbidden, not hidden as a 404.
	_, err = svc.Get(ctx, "usr-1", "bk-2", "198.51.100.4")
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindOwnershipViolation))

	_, err = svc.Get(ctx, "usr-1", "bk-missing", "198.51.100.4")
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	time.Sleep(50 * time.Millisecond)
	denials := sink.byType(audit.EventAuthorization)
	require.Len(t, denials, 1)
	assert.Equal(t, audit.OutcomeDenied, denials[0].Outcome)
	assert.Equal(t, "booking:bk-2", denials[0].Resource)
}

func TestBookingService_Cancel(t *testing.T) {
	svc, repo, _ := newTestBookingService(t)
	ctx := context.Background()

	booking, err := svc.Cancel(ctx, "usr-1", "bk-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Equal(t, models.BookingStatusCancelled, repo.updated["bk-1"])

	// Cancelling again is a no-op, not an error.
	again, err := svc.Cancel(ctx, "usr-1", "bk-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, again.Status)
}

func TestBookingService_CancelAfterDeparture(t *testing.T) {
	svc, _, _ := newTestBookingService(t)

	_, err := svc.Cancel(context.Background(), "usr-1", "bk-3", "")
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
}

func TestBookingService_CancelOtherSubject(t *testing.T) {
	svc, repo, _ := newTestBookingService(t)

	_, err := svc.Cancel(context.Background(), "usr-2", "bk-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindOwnershipViolation))
	assert.Empty(t, repo.updated)
}

func TestBookingService_CreatePaymentIntent(t *testing.T) {
	svc, _, _ := newTestBookingService(t)
	ctx := context.Background()
	req := models.PaymentIntentRequest{ProviderToken: "tok_provider_abc", AmountCents: 45900, Currency: "EUR"}

	intent, err := svc.CreatePaymentIntent(ctx, "usr-1", "bk-1", "", req)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.IntentID)
	assert.Equal(t, "bk-1", intent.BookingID)
	assert.Equal(t, "pending_provider", intent.Status)

	t.Run("rejects missing provider token", func(t *testing.T) {
		_, err := svc.CreatePaymentIntent(ctx, "usr-1", "bk-1", "", models.PaymentIntentRequest{AmountCents: 100, Currency: "EUR"})
		require.Error(t, err)
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
	})

	t.Run("rejects other subject's booking", func(t *testing.T) {
		_, err := svc.CreatePaymentIntent(ctx, "usr-1", "bk-2", "", req)
		require.Error(t, err)
		assert.True(t, appErrors.IsKind(err, appErrors.KindOwnershipViolation))
	})

	t.Run("rejects cancelled booking", func(t *testing.T) {
		_, err := svc.Cancel(ctx, "usr-1", "bk-1", "")
		require.NoError(t, err)
		_, err = svc.CreatePaymentIntent(ctx, "usr-1", "bk-1", "", req)
		require.Error(t, err)
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
	})
}
