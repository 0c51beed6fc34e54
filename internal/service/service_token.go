package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/golang-jwt/jwt/v5"
)

// Session store key prefixes.
const (
	refreshKeyPrefix           = "refresh:"
	refreshUsedKeyPrefix       = "refresh_used:"
	userRefreshIndexPrefix     = "user_refresh:"
	challengeKeyPrefix         = "login_challenge:"
	challengeAttemptsKeyPrefix = "login_challenge_attempts:"
)

const (
	refreshTokenBytes = 32
	challengeIDBytes  = 24
)

// tokenService signs stateless access tokens and keeps refresh tokens and
// login challenges in the session store. The raw refresh token never reaches
// the store; it is keyed by its SHA-256 digest.
type tokenService struct {
	sessions store.SessionStore

	signKey         []byte
	issuer          string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	challengeTTL    time.Duration
	maxCodeAttempts int

	ids     *utils.UUIDGenerator
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewTokenService copies the signing key out of cfg once; it is never
// mutated afterwards. A nil now defaults to time.Now.
func NewTokenService(sessions store.SessionStore, cfg config.App, now func() time.Time, m *metrics.Metrics, logger *logger.Logger) TokenService {
	if now == nil {
		now = time.Now
	}
	return &tokenService{
		sessions:        sessions,
		signKey:         []byte(cfg.TokenSignKey),
		issuer:          cfg.TokenIssuer,
		accessTTL:       cfg.AccessTokenTTL,
		refreshTTL:      cfg.RefreshTokenTTL,
		challengeTTL:    cfg.ChallengeTTL,
		maxCodeAttempts: cfg.MaxCodeAttempts,
		ids:             utils.NewUUIDGenerator(),
		now:             now,
		metrics:         m,
		logger:          logger,
	}
}

// Issue signs an access token and stores a fresh refresh token record,
// indexed under the user for RevokeAll.
func (s *tokenService) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	log := logger.FromContext(ctx)
	now := s.now()

	accessToken, err := utils.SignAccessToken(s.issuer, userID, s.ids.Generate(), now, s.accessTTL, s.signKey)
	if err != nil {
		log.Err(err).Str("func", "*tokenService.Issue").Str("user_id", userID).Msg("error signing access token")
		return models.TokenPair{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	refreshToken, err := utils.RandomToken(refreshTokenBytes)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	record, err := json.Marshal(models.RefreshRecord{UserID: userID, ExpiresAt: now.Add(s.refreshTTL)})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	hash := utils.SHA256Hex(refreshToken)
	if err = s.sessions.Put(ctx, refreshKeyPrefix+hash, record, s.refreshTTL); err != nil {
		log.Err(err).Str("func", "*tokenService.Issue").Str("user_id", userID).Msg("error storing refresh token")
		return models.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	if err = s.sessions.IndexAdd(ctx, userRefreshIndexPrefix+userID, hash, s.refreshTTL); err != nil {
		log.Err(err).Str("func", "*tokenService.Issue").Str("user_id", userID).Msg("error indexing refresh token")
		return models.TokenPair{}, fmt.Errorf("index refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    models.TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// VerifyAccess checks signature, issuer and expiry only. The session store is
// not consulted, so an access token stays valid until it expires.
func (s *tokenService) VerifyAccess(ctx context.Context, accessToken string) (string, error) {
	claims, err := utils.ParseAccessToken(accessToken, s.signKey, s.issuer, s.now())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		logger.FromContext(ctx).Debug().Err(err).Str("func", "*tokenService.VerifyAccess").Msg("access token rejected")
		return "", ErrTokenInvalid
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", ErrTokenInvalid
	}
	return userID, nil
}

// Refresh rotates a refresh token. Taking the record and writing its
// consumed marker is one atomic store operation, so of two concurrent calls
// with the same token exactly one wins and the other sees
// [ErrTokenAlreadyUsed].
func (s *tokenService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	log := logger.FromContext(ctx)
	hash := utils.SHA256Hex(refreshToken)

	raw, err := s.sessions.Take(ctx, refreshKeyPrefix+hash, refreshUsedKeyPrefix+hash, s.refreshTTL)
	switch {
	case errors.Is(err, store.ErrKeyConsumed):
		log.Warn().Str("func", "*tokenService.Refresh").Msg("consumed refresh token presented again")
		s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
		return models.TokenPair{}, ErrTokenAlreadyUsed
	case errors.Is(err, store.ErrKeyNotFound):
		s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
		return models.TokenPair{}, ErrTokenUnknown
	case err != nil:
		log.Err(err).Str("func", "*tokenService.Refresh").Msg("error taking refresh token")
		return models.TokenPair{}, fmt.Errorf("take refresh token: %w", err)
	}

	var record models.RefreshRecord
	if err = json.Unmarshal(raw, &record); err != nil {
		log.Err(err).Str("func", "*tokenService.Refresh").Msg("corrupt refresh token record")
		return models.TokenPair{}, ErrTokenUnknown
	}

	if err = s.sessions.IndexRemove(ctx, userRefreshIndexPrefix+record.UserID, hash); err != nil {
		log.Warn().Err(err).Str("func", "*tokenService.Refresh").Msg("error removing refresh token from index")
	}

	if !s.now().Before(record.ExpiresAt) {
		// the stale record is gone; drop the marker too so the token reads
		// as unknown from now on
		if err = s.sessions.Delete(ctx, refreshUsedKeyPrefix+hash); err != nil {
			log.Warn().Err(err).Str("func", "*tokenService.Refresh").Msg("error deleting refresh marker")
		}
		s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
		return models.TokenPair{}, ErrTokenExpired
	}

	pair, err := s.Issue(ctx, record.UserID)
	if err != nil {
		s.restoreRefresh(ctx, hash, raw, record)
		return models.TokenPair{}, err
	}
	s.metrics.AuthEvent("refresh", metrics.OutcomeSuccess)
	return pair, nil
}

// restoreRefresh undoes a Take whose replacement pair could not be issued,
// so the client can retry with the same refresh token.
func (s *tokenService) restoreRefresh(ctx context.Context, hash string, raw []byte, record models.RefreshRecord) {
	log := logger.FromContext(ctx)

	remaining := record.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return
	}
	if err := s.sessions.Put(ctx, refreshKeyPrefix+hash, raw, remaining); err != nil {
		log.Err(err).Str("func", "*tokenService.restoreRefresh").Str("user_id", record.UserID).Msg("error restoring refresh token")
		return
	}
	if err := s.sessions.Delete(ctx, refreshUsedKeyPrefix+hash); err != nil {
		log.Warn().Err(err).Str("func", "*tokenService.restoreRefresh").Msg("error deleting refresh marker")
	}
	if err := s.sessions.IndexAdd(ctx, userRefreshIndexPrefix+record.UserID, hash, s.refreshTTL); err != nil {
		log.Warn().Err(err).Str("func", "*tokenService.restoreRefresh").Msg("error indexing restored refresh token")
	}
}

// Revoke deletes one refresh token. Unknown tokens are ignored.
func (s *tokenService) Revoke(ctx context.Context, refreshToken string) error {
	hash := utils.SHA256Hex(refreshToken)
	key := refreshKeyPrefix + hash

	raw, err := s.sessions.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load refresh token: %w", err)
	}

	if err = s.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	var record models.RefreshRecord
	if json.Unmarshal(raw, &record) == nil && record.UserID != "" {
		if err = s.sessions.IndexRemove(ctx, userRefreshIndexPrefix+record.UserID, hash); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("func", "*tokenService.Revoke").Msg("error removing refresh token from index")
		}
	}
	return nil
}

// RevokeAll deletes every refresh token indexed under userID. Tokens missing
// from the index (e.g. after a partial Issue failure) still expire through
// their own TTL.
func (s *tokenService) RevokeAll(ctx context.Context, userID string) error {
	index := userRefreshIndexPrefix + userID

	hashes, err := s.sessions.IndexMembers(ctx, index)
	if err != nil {
		return fmt.Errorf("list refresh tokens: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, refreshKeyPrefix+hash)
	}
	keys = append(keys, index)

	if err = s.sessions.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}

	logger.FromContext(ctx).Info().Str("user_id", userID).Int("revoked", len(hashes)).Msg("refresh tokens revoked")
	return nil
}

func (s *tokenService) CreateChallenge(ctx context.Context, userID string) (models.LoginChallenge, error) {
	id, err := utils.RandomToken(challengeIDBytes)
	if err != nil {
		return models.LoginChallenge{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	challenge := models.LoginChallenge{ChallengeID: id, UserID: userID, ExpiresAt: s.now().Add(s.challengeTTL)}
	raw, err := json.Marshal(challenge)
	if err != nil {
		return models.LoginChallenge{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	if err = s.sessions.Put(ctx, challengeKeyPrefix+id, raw, s.challengeTTL); err != nil {
		return models.LoginChallenge{}, fmt.Errorf("store login challenge: %w", err)
	}

	return challenge, nil
}

func (s *tokenService) PeekChallenge(ctx context.Context, challengeID string) (models.LoginChallenge, error) {
	_, challenge, err := s.loadChallenge(ctx, challengeID)
	return challenge, err
}

func (s *tokenService) ConsumeChallenge(ctx context.Context, challengeID string) (models.TokenPair, error) {
	raw, challenge, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return models.TokenPair{}, err
	}

	deleted, err := s.sessions.CompareAndDelete(ctx, challengeKeyPrefix+challengeID, raw)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("consume login challenge: %w", err)
	}
	if !deleted {
		return models.TokenPair{}, ErrChallengeExpired
	}

	if err = s.sessions.Delete(ctx, challengeAttemptsKeyPrefix+challengeID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("func", "*tokenService.ConsumeChallenge").Msg("error deleting attempt counter")
	}

	pair, err := s.Issue(ctx, challenge.UserID)
	if err != nil {
		if remaining := challenge.ExpiresAt.Sub(s.now()); remaining > 0 {
			if putErr := s.sessions.Put(ctx, challengeKeyPrefix+challengeID, raw, remaining); putErr != nil {
				logger.FromContext(ctx).Err(putErr).Str("func", "*tokenService.ConsumeChallenge").Msg("error restoring login challenge")
			}
		}
		return models.TokenPair{}, err
	}
	return pair, nil
}

// RecordChallengeFailure counts a wrong code. Once the limit is reached the
// challenge is dropped and the user has to log in again.
func (s *tokenService) RecordChallengeFailure(ctx context.Context, challengeID string) error {
	attemptsKey := challengeAttemptsKeyPrefix + challengeID

	attempts, err := s.sessions.Incr(ctx, attemptsKey, s.challengeTTL)
	if err != nil {
		return fmt.Errorf("count challenge failure: %w", err)
	}
	if attempts < int64(s.maxCodeAttempts) {
		return nil
	}

	logger.FromContext(ctx).Warn().Str("func", "*tokenService.RecordChallengeFailure").Int64("attempts", attempts).Msg("login challenge attempts exhausted")
	if err = s.sessions.Delete(ctx, challengeKeyPrefix+challengeID, attemptsKey); err != nil {
		return fmt.Errorf("drop login challenge: %w", err)
	}
	return nil
}

func (s *tokenService) loadChallenge(ctx context.Context, challengeID string) ([]byte, models.LoginChallenge, error) {
	raw, err := s.sessions.Get(ctx, challengeKeyPrefix+challengeID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, models.LoginChallenge{}, ErrChallengeExpired
	}
	if err != nil {
		return nil, models.LoginChallenge{}, fmt.Errorf("load login challenge: %w", err)
	}

	var challenge models.LoginChallenge
	if err = json.Unmarshal(raw, &challenge); err != nil {
		return nil, models.LoginChallenge{}, ErrChallengeExpired
	}
	if !s.now().Before(challenge.ExpiresAt) {
		return nil, models.LoginChallenge{}, ErrChallengeExpired
	}

	challenge.ChallengeID = challengeID
	return raw, challenge, nil
}
