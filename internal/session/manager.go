package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/shared"
)

const (
	sessionKeyPrefix = "session:"
	refreshKeyPrefix = "refresh:"
	bypassKeyPrefix  = "bypass:"
	expiredKeyPrefix = "expired:"

	// expiredMarkerTTL keeps the "session expired" marker around long enough
	// for the UI to explain the forced re-login.
	expiredMarkerTTL = 24 * time.Hour
)

// Clock abstracts time so idle-timeout logic is testable without real timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// IdentityResolver resolves subjects during refresh and verification.
type IdentityResolver interface {
	FindByID(ctx context.Context, id int64) (*identity.Identity, error)
}

// Config holds session policy knobs.
type Config struct {
	IdleTimeout time.Duration
	RefreshTTL  time.Duration
	BypassTTL   time.Duration
}

// Manager wraps provider tokens into tracked sessions backed by Redis:
// issuance, refresh, activity tracking, idle-timeout, and revocation.
type Manager struct {
	client     *redis.Client
	codec      *TokenCodec
	identities IdentityResolver
	clock      Clock
	cfg        Config
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewManager constructs a Manager. clock may be nil for the system clock,
// metrics may be nil.
func NewManager(client *redis.Client, codec *TokenCodec, identities IdentityResolver, clock Clock, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if clock == nil {
		clock = systemClock{}
	}
	return &Manager{
		client:     client,
		codec:      codec,
		identities: identities,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Credentials is what a successful login hands back to the client.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

type sessionRecord struct {
	SubjectID    int64     `json:"subject_id"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActivity time.Time `json:"last_activity"`
	RefreshHash  string    `json:"refresh_hash"`
}

// Issue mints a tracked session for a provider-verified identity.
func (m *Manager) Issue(ctx context.Context, subject *identity.Identity) (*Credentials, error) {
	sid := uuid.NewString()
	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}
	now := m.clock.Now().UTC()
	rec := sessionRecord{
		SubjectID:    subject.ID,
		IssuedAt:     now,
		LastActivity: now,
		RefreshHash:  hashToken(refresh),
	}
	if err := m.save(ctx, sid, rec, m.cfg.RefreshTTL); err != nil {
		return nil, err
	}
	if err := m.client.Set(ctx, refreshKeyPrefix+rec.RefreshHash, sid, m.cfg.RefreshTTL).Err(); err != nil {
		return nil, err
	}
	token, err := m.codec.Mint(subject.ID, sid, subject.ID, false, now)
	if err != nil {
		return nil, err
	}
	return &Credentials{AccessToken: token, RefreshToken: refresh, TokenType: "Bearer"}, nil
}

// Verify resolves the acting identity behind a bearer token. The acting
// subject is always derived from current session state, so an expired or
// reverted bypass falls back to the original subject with no extra step.
func (m *Manager) Verify(ctx context.Context, bearer string) (shared.AuthContext, error) {
	claims, err := m.codec.Parse(bearer)
	if err != nil {
		return shared.AuthContext{}, err
	}
	rec, err := m.load(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) && m.wasIdleRevoked(ctx, claims.SessionID) {
			return shared.AuthContext{}, shared.ErrSessionExpired
		}
		return shared.AuthContext{}, err
	}
	ac := shared.AuthContext{
		SessionID:         claims.SessionID,
		SubjectID:         rec.SubjectID,
		OriginalSubjectID: rec.SubjectID,
	}
	imp, err := m.Impersonation(ctx, claims.SessionID)
	if err != nil {
		return shared.AuthContext{}, err
	}
	if imp != nil {
		ac.SubjectID = imp.ActingSubjectID
		ac.OriginalSubjectID = imp.OriginalSubjectID
		ac.Bypass = true
	}
	return ac, nil
}

// Touch records qualifying user activity. Unknown sessions are ignored; the
// idle checker may already have revoked them.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	rec, err := m.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			return nil
		}
		return err
	}
	rec.LastActivity = m.clock.Now().UTC()
	return m.save(ctx, sessionID, *rec, redis.KeepTTL)
}

// Refresh mints a new access token for the session behind a refresh
// credential without re-running credential verification. It fails closed when
// the session is gone or the identity has since been deactivated.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (string, error) {
	sid, err := m.client.Get(ctx, refreshKeyPrefix+hashToken(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", shared.ErrUnauthenticated
		}
		return "", err
	}
	rec, err := m.load(ctx, sid)
	if err != nil {
		return "", err
	}
	subject, err := m.identities.FindByID(ctx, rec.SubjectID)
	if err != nil || !subject.IsActive {
		return "", shared.ErrUnauthenticated
	}
	return m.codec.Mint(rec.SubjectID, sid, rec.SubjectID, false, m.clock.Now().UTC())
}

// Revoke terminates a session and invalidates its refresh credential.
// Revoking an already-terminated session is a no-op.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	rec, err := m.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			return nil
		}
		return err
	}
	_, err = m.client.Del(ctx,
		sessionKeyPrefix+sessionID,
		refreshKeyPrefix+rec.RefreshHash,
		bypassKeyPrefix+sessionID,
	).Result()
	return err
}

// RevokeByRefresh terminates the session owning the refresh credential.
func (m *Manager) RevokeByRefresh(ctx context.Context, refreshToken string) error {
	sid, err := m.client.Get(ctx, refreshKeyPrefix+hashToken(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.ErrUnauthenticated
		}
		return err
	}
	return m.Revoke(ctx, sid)
}

// IdleSweep revokes every session whose last activity is older than the idle
// timeout. Sessions already terminated by another path are skipped, keeping
// the revoke idempotent. Returns the number of sessions revoked.
func (m *Manager) IdleSweep(ctx context.Context) (int, error) {
	now := m.clock.Now().UTC()
	revoked := 0
	iter := m.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sid := strings.TrimPrefix(iter.Val(), sessionKeyPrefix)
		rec, err := m.load(ctx, sid)
		if err != nil {
			continue
		}
		if now.Sub(rec.LastActivity) <= m.cfg.IdleTimeout {
			continue
		}
		if err := m.Revoke(ctx, sid); err != nil {
			if m.logger != nil {
				m.logger.Warn("idle revoke", slog.String("session", sid), slog.Any("error", err))
			}
			continue
		}
		// Marker lets Verify distinguish "session expired" from a plain
		// unknown token on the forced re-login.
		_ = m.client.Set(ctx, expiredKeyPrefix+sid, "1", expiredMarkerTTL).Err()
		m.metrics.ObserveIdleRevocation()
		revoked++
	}
	if err := iter.Err(); err != nil {
		return revoked, err
	}
	return revoked, nil
}

// RunIdleChecker runs IdleSweep on a fixed interval until ctx is cancelled.
func (m *Manager) RunIdleChecker(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.IdleSweep(ctx); err != nil {
				if m.logger != nil {
					m.logger.Warn("idle sweep", slog.Any("error", err))
				}
			} else if n > 0 && m.logger != nil {
				m.logger.Info("idle sweep revoked sessions", slog.Int("count", n))
			}
		}
	}
}

// Impersonation returns the session's active bypass record, or nil.
func (m *Manager) Impersonation(ctx context.Context, sessionID string) (*Impersonation, error) {
	payload, err := m.client.Get(ctx, bypassKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var imp Impersonation
	if err := json.Unmarshal(payload, &imp); err != nil {
		return nil, err
	}
	return &imp, nil
}

// attachImpersonation installs imp via compare-and-set. The SETNX guarantees
// at most one impersonation per session even under concurrent begin calls;
// the key TTL implements expiry.
func (m *Manager) attachImpersonation(ctx context.Context, sessionID string, imp Impersonation) (bool, error) {
	payload, err := json.Marshal(imp)
	if err != nil {
		return false, err
	}
	ttl := imp.ExpiresAt.Sub(m.clock.Now())
	if ttl <= 0 {
		return false, shared.ErrInvalidTarget
	}
	return m.client.SetNX(ctx, bypassKeyPrefix+sessionID, payload, ttl).Result()
}

// detachImpersonation removes the bypass record. Deleting an absent record is
// a no-op, so expiry and explicit revert cannot race into an error.
func (m *Manager) detachImpersonation(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, bypassKeyPrefix+sessionID).Err()
}

// Clock exposes the injected clock for collaborators that must agree on time.
func (m *Manager) Clock() Clock {
	return m.clock
}

// BypassTTL exposes the configured impersonation lifetime.
func (m *Manager) BypassTTL() time.Duration {
	return m.cfg.BypassTTL
}

func (m *Manager) load(ctx context.Context, sessionID string) (*sessionRecord, error) {
	payload, err := m.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Manager) save(ctx context.Context, sessionID string, rec sessionRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, sessionKeyPrefix+sessionID, payload, ttl).Err()
}

func (m *Manager) wasIdleRevoked(ctx context.Context, sessionID string) bool {
	n, err := m.client.Exists(ctx, expiredKeyPrefix+sessionID).Result()
	return err == nil && n > 0
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
