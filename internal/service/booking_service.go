package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/models"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
}

type bookingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string)
}

const bookingListCacheTTL = time.Minute

// BookingService serves booking reads and writes behind the ownership check:
// a subject may only ever see or mutate their own reservations. The check is
// enforced here rather than in handlers so every access path shares it.
type BookingService struct {
	repo      bookingRepository
	cache     bookingCache
	validator *validator.Validate
	logger    *zap.Logger
	auditor   *audit.Logger
}

// NewBookingService constructs a BookingService instance. cache may be nil.
func NewBookingService(repo bookingRepository, cache bookingCache, validate *validator.Validate, logger *zap.Logger, auditor *audit.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BookingService{repo: repo, cache: cache, validator: validate, logger: logger, auditor: auditor}
}

func bookingListCacheKey(subjectID string) string {
	return "bookings:subject:" + subjectID
}

// ListMine returns every booking owned by the subject.
func (s *BookingService) ListMine(ctx context.Context, subjectID string) ([]models.Booking, error) {
	key := bookingListCacheKey(subjectID)
	if s.cache != nil {
		var cached []models.Booking
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	bookings, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, bookings, bookingListCacheTTL); err != nil {
			s.logger.Warn("failed to cache booking list", zap.Error(err))
		}
	}
	return bookings, nil
}

// Get returns a single booking after verifying ownership.
func (s *BookingService) Get(ctx context.Context, subjectID, bookingID, sourceIP string) (*models.Booking, error) {
	return s.ownedBooking(ctx, subjectID, bookingID, sourceIP, "read")
}

// Cancel moves a booking to CANCELLED. Already-cancelled bookings are left
// alone; cancelling after departure is rejected.
func (s *BookingService) Cancel(ctx context.Context, subjectID, bookingID, sourceIP string) (*models.Booking, error) {
	booking, err := s.ownedBooking(ctx, subjectID, bookingID, sourceIP, "cancel")
	if err != nil {
		return nil, err
	}

	if booking.Status == models.BookingStatusCancelled {
		return booking, nil
	}
	if time.Now().UTC().After(booking.DepartureAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking has already departed")
	}

	if err := s.repo.UpdateStatus(ctx, booking.ID, models.BookingStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	booking.Status = models.BookingStatusCancelled

	if s.cache != nil {
		s.cache.Invalidate(ctx, bookingListCacheKey(subjectID))
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.String("subject_id", subjectID),
	)
	return booking, nil
}

// CreatePaymentIntent hands the opaque provider token off for a booking the
// subject owns. Card data never transits this service; the provider token is
// the only payment credential accepted.
func (s *BookingService) CreatePaymentIntent(ctx context.Context, subjectID, bookingID, sourceIP string, req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment intent payload")
	}

	booking, err := s.ownedBooking(ctx, subjectID, bookingID, sourceIP, "payment_intent")
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot pay for a cancelled booking")
	}

	intent := &models.PaymentIntentResponse{
		IntentID:  uuid.NewString(),
		BookingID: booking.ID,
		Status:    "pending_provider",
		CreatedAt: time.Now().UTC(),
	}

	s.logger.Info("payment intent created",
		zap.String("intent_id", intent.IntentID),
		zap.String("booking_id", booking.ID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("currency", req.Currency),
	)
	return intent, nil
}

// ownedBooking loads a booking and enforces that it belongs to the subject.
// A booking owned by someone else is reported as forbidden, not as missing,
// and the denial is audited.
func (s *BookingService) ownedBooking(ctx context.Context, subjectID, bookingID, sourceIP, action string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	if booking.SubjectID != subjectID {
		s.auditor.Record(audit.Entry{
			EventType:     audit.EventAuthorization,
			SubjectID:     subjectID,
			SourceAddress: sourceIP,
			Resource:      "booking:" + bookingID,
			Action:        action,
			Outcome:       audit.OutcomeDenied,
			Details:       map[string]string{"reason": "not_owner"},
		})
		return nil, appErrors.Clone(appErrors.ErrOwnershipViolation, "")
	}

	return booking, nil
}
