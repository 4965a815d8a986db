package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/altavia-air/altavia-api/internal/audit"
	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/internal/registry"
	"github.com/altavia-air/altavia-api/internal/token"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

// Scopes granted to every passenger session. Capability narrowing (e.g.
// payment-less kiosk sessions) is driven by the client at login time later.
var defaultScopes = []string{models.ScopeBookingsRead, models.ScopeBookingsWrite, models.ScopePayments}

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// AuthService owns the token lifecycle: issuing pairs at login, rotating
// refresh tokens, and revocation. The refresh registry is the authority of
// truth for revocation; access tokens are validated purely cryptographically
// by the middleware and never touch this service.
type AuthService struct {
	repo      authUserRepository
	codec     *token.Codec
	store     registry.Store
	validator *validator.Validate
	logger    *zap.Logger
	auditor   *audit.Logger
	metrics   *MetricsService
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, codec *token.Codec, store registry.Store, validate *validator.Validate, logger *zap.Logger, auditor *audit.Logger, metrics *MetricsService) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:      repo,
		codec:     codec,
		store:     store,
		validator: validate,
		logger:    logger,
		auditor:   auditor,
		metrics:   metrics,
	}
}

// Login authenticates a passenger account and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.auditLogin(req, "", audit.OutcomeFailure, "unknown_account")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if !user.Active {
		s.auditLogin(req, user.ID, audit.OutcomeFailure, "inactive_account")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.auditLogin(req, user.ID, audit.OutcomeFailure, "bad_password")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	pair, err := s.issuePair(ctx, user.ID, req.DeviceID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.auditLogin(req, user.ID, audit.OutcomeSuccess, "")

	return &models.LoginResponse{
		AccessToken:      pair.access,
		RefreshToken:     pair.refresh,
		ExpiresIn:        int64(s.codec.AccessExpiry().Seconds()),
		RefreshExpiresIn: int64(s.codec.RefreshExpiry().Seconds()),
		TokenType:        "Bearer",
		Account: models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
		},
	}, nil
}

// Refresh rotates a refresh token: the presented record is revoked and a new
// pair is issued. Reuse of an already-rotated or revoked token is treated as
// possible theft: every live session for the subject is revoked and exactly
// one SecurityAlert is recorded.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshRequest) (*models.RefreshResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.codec.Verify(req.RefreshToken)
	if err != nil {
		s.auditRefresh(req, "", audit.OutcomeFailure, appErrors.TokenReason(appErrors.FromError(err).Kind))
		return nil, err
	}
	if claims.Kind != models.TokenKindRefresh {
		s.auditRefresh(req, claims.SubjectID(), audit.OutcomeFailure, "wrong_kind")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not a refresh token")
	}

	// Consume retires the record atomically at the store, so of N concurrent
	// presentations of one token exactly one reaches the account lookup
	// below; the rest land in the reuse path no matter how slow that lookup
	// is.
	record, err := s.store.Consume(ctx, claims.TokenID)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrRevoked):
			return nil, s.handleTokenReuse(ctx, req, claims)
		case errors.Is(err, registry.ErrExpired), errors.Is(err, registry.ErrNotFound):
			s.auditRefresh(req, claims.SubjectID(), audit.OutcomeFailure, "expired_or_unknown")
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is no longer valid")
		default:
			return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "registry lookup failed")
		}
	}

	user, err := s.repo.FindByID(ctx, record.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.auditRefresh(req, record.SubjectID, audit.OutcomeFailure, "unknown_account")
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if !user.Active {
		s.auditRefresh(req, user.ID, audit.OutcomeFailure, "inactive_account")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account is inactive")
	}

	pair, err := s.issuePair(ctx, user.ID, record.DeviceID)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTokenRotation()
	s.auditRefresh(req, user.ID, audit.OutcomeSuccess, "")

	return &models.RefreshResponse{
		AccessToken:      pair.access,
		RefreshToken:     pair.refresh,
		ExpiresIn:        int64(s.codec.AccessExpiry().Seconds()),
		RefreshExpiresIn: int64(s.codec.RefreshExpiry().Seconds()),
		TokenType:        "Bearer",
	}, nil
}

// Logout revokes the presented refresh token for the authenticated subject.
func (s *AuthService) Logout(ctx context.Context, subjectID string, req models.LogoutRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.KindValidation, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid logout payload")
	}

	claims, err := s.codec.Verify(req.RefreshToken)
	if err != nil {
		return err
	}
	if claims.Kind != models.TokenKindRefresh {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not a refresh token")
	}
	if claims.SubjectID() != subjectID {
		s.auditor.Record(audit.Entry{
			EventType:     audit.EventAuthorization,
			SubjectID:     subjectID,
			SourceAddress: req.IP,
			Resource:      "auth",
			Action:        "logout",
			Outcome:       audit.OutcomeDenied,
			Details:       map[string]string{"reason": "token_owner_mismatch"},
		})
		return appErrors.Clone(appErrors.ErrOwnershipViolation, "token does not belong to subject")
	}

	if err := s.store.Revoke(ctx, claims.TokenID); err != nil {
		return appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.metrics.ObserveRevocation(1)
	s.auditor.Record(audit.Entry{
		EventType:     audit.EventRevocation,
		SubjectID:     subjectID,
		SourceAddress: req.IP,
		Resource:      "auth",
		Action:        "logout",
		Outcome:       audit.OutcomeSuccess,
	})
	return nil
}

// LogoutEverywhere revokes every live refresh token for the subject, used on
// explicit "log out everywhere" or suspected compromise.
func (s *AuthService) LogoutEverywhere(ctx context.Context, subjectID, sourceIP string) (int, error) {
	revoked, err := s.store.RevokeAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}

	s.metrics.ObserveRevocation(revoked)
	s.auditor.Record(audit.Entry{
		EventType:     audit.EventRevocation,
		SubjectID:     subjectID,
		SourceAddress: sourceIP,
		Resource:      "auth",
		Action:        "logout_everywhere",
		Outcome:       audit.OutcomeSuccess,
		Details:       map[string]string{"revoked": strconv.Itoa(revoked)},
	})
	return revoked, nil
}

type tokenPair struct {
	access  string
	refresh string
}

func (s *AuthService) issuePair(ctx context.Context, subjectID, deviceID string) (*tokenPair, error) {
	access, _, err := s.codec.Mint(subjectID, models.TokenKindAccess, defaultScopes)
	if err != nil {
		return nil, err
	}

	refresh, refreshClaims, err := s.codec.Mint(subjectID, models.TokenKindRefresh, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &models.RefreshTokenRecord{
		TokenID:   refreshClaims.TokenID,
		SubjectID: subjectID,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
	}

	if err := s.store.Register(ctx, record); err != nil {
		if errors.Is(err, registry.ErrDuplicateID) {
			// Random IDs must never collide; treat as an integrity violation.
			s.metrics.ObserveSecurityAlert()
			s.auditor.Record(audit.Entry{
				EventType: audit.EventSecurityAlert,
				SubjectID: subjectID,
				Resource:  "auth",
				Action:    "register_refresh",
				Outcome:   audit.OutcomeFailure,
				Details:   map[string]string{"reason": "duplicate_token_id", "token_id": record.TokenID},
			})
		}
		return nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register refresh token")
	}

	return &tokenPair{access: access, refresh: refresh}, nil
}

// handleTokenReuse reacts to a refresh token presented after rotation or
// revocation: possible theft. All sessions for the subject are revoked and
// exactly one SecurityAlert entry is produced.
func (s *AuthService) handleTokenReuse(ctx context.Context, req models.RefreshRequest, claims *models.TokenClaims) error {
	revoked, err := s.store.RevokeAllForSubject(ctx, claims.SubjectID())
	if err != nil {
		s.logger.Error("failed to revoke sessions after refresh reuse", zap.Error(err), zap.String("subject_id", claims.SubjectID()))
	} else {
		s.metrics.ObserveRevocation(revoked)
	}

	s.metrics.ObserveSecurityAlert()
	s.auditor.Record(audit.Entry{
		EventType:     audit.EventSecurityAlert,
		SubjectID:     claims.SubjectID(),
		SourceAddress: req.IP,
		Resource:      "auth",
		Action:        "refresh_reuse",
		Outcome:       audit.OutcomeDenied,
		Details: map[string]string{
			"token_id":         claims.TokenID,
			"sessions_revoked": strconv.Itoa(revoked),
		},
	})

	return appErrors.Clone(appErrors.ErrTokenRevoked, "refresh token has been rotated or revoked")
}

func (s *AuthService) auditLogin(req models.LoginRequest, subjectID string, outcome audit.Outcome, reason string) {
	entry := audit.Entry{
		EventType:     audit.EventAuthentication,
		SubjectID:     subjectID,
		SourceAddress: req.IP,
		Resource:      "auth",
		Action:        "login",
		Outcome:       outcome,
	}
	if reason != "" {
		entry.Details = map[string]string{"reason": reason}
	}
	s.auditor.Record(entry)
}

func (s *AuthService) auditRefresh(req models.RefreshRequest, subjectID string, outcome audit.Outcome, reason string) {
	entry := audit.Entry{
		EventType:     audit.EventAuthentication,
		SubjectID:     subjectID,
		SourceAddress: req.IP,
		Resource:      "auth",
		Action:        "refresh",
		Outcome:       outcome,
	}
	if reason != "" {
		entry.Details = map[string]string{"reason": reason}
	}
	s.auditor.Record(entry)
}
