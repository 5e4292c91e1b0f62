package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/cache"
)

// Session list keys are derived from the subject's compact uuid hex.
const (
	sessionKeyPrefix  = "auth:"
	sessionLockPrefix = "auth:lock:"
	rotateLockTimeout = 15 * time.Second
)

// ErrSessionNotFound means the presented refresh token does not match any
// stored session for its subject.
var ErrSessionNotFound = errors.New("session not found")

// RefreshStore keeps one list of active sessions per user. Each entry binds
// a refresh token to the client fingerprint it was issued for, so a stolen
// token replayed from another client never matches.
type RefreshStore struct {
	cache      *cache.Redis
	tokens     TokenProvider
	refreshTTL time.Duration
}

// NewRefreshStore builds the session store. refreshTTL is both the refresh
// token lifetime and the TTL of the session list.
func NewRefreshStore(c *cache.Redis, tokens TokenProvider, refreshTTL time.Duration) *RefreshStore {
	return &RefreshStore{cache: c, tokens: tokens, refreshTTL: refreshTTL}
}

// MakeToken issues a fresh pair and records its session entry.
func (s *RefreshStore) MakeToken(ctx context.Context, userID uuid.UUID, fingerprint string) (TokenPair, error) {
	jti := compactHex(uuid.New().String())

	pair, err := s.tokens.IssuePair(userID.String(), jti)
	if err != nil {
		return TokenPair{}, err
	}

	key := sessionKeyPrefix + compactHex(userID.String())
	entry := sessionEntry(jti, fingerprint, pair.RefreshToken)
	if err := s.cache.SetList(ctx, key, s.refreshTTL, entry); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Rotate exchanges a valid refresh token for a new pair under the user's
// session lock, reusing the token's jti. A syntactically valid token whose
// entry is missing is treated as a replay: every session of the user is
// dropped before failing.
func (s *RefreshStore) Rotate(ctx context.Context, fingerprint, token string) (TokenPair, error) {
	claims, err := s.tokens.Verify(token, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	userHex := compactHex(claims.Sub)
	lock := s.cache.Lock(sessionLockPrefix+userHex, rotateLockTimeout)
	if err := lock.Acquire(ctx); err != nil {
		return TokenPair{}, err
	}
	defer func() { _ = lock.Release(ctx) }()

	key := sessionKeyPrefix + userHex
	entry := sessionEntry(claims.Jti, fingerprint, token)

	entries, err := s.cache.GetList(ctx, key)
	if err != nil {
		return TokenPair{}, err
	}
	if !slices.Contains(entries, entry) {
		_ = s.cache.Delete(ctx, key)
		return TokenPair{}, ErrSessionNotFound
	}
	if err := s.cache.Discard(ctx, key, entry); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(claims.Sub, claims.Jti)
	if err != nil {
		return TokenPair{}, err
	}
	next := sessionEntry(claims.Jti, fingerprint, pair.RefreshToken)
	if err := s.cache.SetList(ctx, key, s.refreshTTL, next); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke removes the session entry of the token. Reports whether an entry
// was actually removed. Runs without the session lock.
func (s *RefreshStore) Revoke(ctx context.Context, fingerprint, token string) (bool, error) {
	claims, err := s.tokens.Verify(token, TokenTypeRefresh)
	if err != nil {
		return false, err
	}

	key := sessionKeyPrefix + compactHex(claims.Sub)
	entry := sessionEntry(claims.Jti, fingerprint, token)

	entries, err := s.cache.GetList(ctx, key)
	if err != nil {
		return false, err
	}
	if !slices.Contains(entries, entry) {
		return false, nil
	}
	if err := s.cache.Discard(ctx, key, entry); err != nil {
		return false, err
	}
	return true, nil
}

// sessionEntry is "jti:" plus the hex sha256 of "fingerprint:token".
func sessionEntry(jti, fingerprint, token string) string {
	sum := sha256.Sum256([]byte(fingerprint + ":" + token))
	digest := hex.EncodeToString(sum[:])
	if jti == "" {
		return digest
	}
	return jti + ":" + digest
}

func compactHex(sub string) string {
	return strings.ReplaceAll(sub, "-", "")
}
