package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appverse/authapi/internal/models"
	"github.com/appverse/authapi/pkg/apperr"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisChallengeStore keeps one key per (user, kind) holding the pending
// challenge, plus a reverse key from the challenge value so Consume can find
// it. Expiry is handled by the key TTL.
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ ChallengeStore = (*RedisChallengeStore)(nil)

func NewRedisChallengeStore(client redis.UniversalClient, prefix string) *RedisChallengeStore {
	if prefix == "" {
		prefix = "authapi"
	}
	return &RedisChallengeStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisChallengeStore) slotKey(userID uuid.UUID, kind models.ChallengeKind) string {
	return fmt.Sprintf("%s:challenge:%s:%s", s.prefix, kind, userID)
}

func (s *RedisChallengeStore) valueKey(challenge string) string {
	return fmt.Sprintf("%s:challenge-value:%s", s.prefix, challenge)
}

func (s *RedisChallengeStore) Create(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind, challenge, sessionData string, ttl time.Duration) error {
	if !kind.Valid() {
		return apperr.Validation("unknown challenge kind")
	}
	now := s.now().UTC()
	row := models.WebAuthnChallenge{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Challenge:   challenge,
		SessionData: sessionData,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	payload, err := json.Marshal(redisChallenge{row, sessionData})
	if err != nil {
		return apperr.Internal("failed to encode challenge", err)
	}

	slot := s.slotKey(userID, kind)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, slot, payload, ttl)
		pipe.Set(ctx, s.valueKey(challenge), slot, ttl)
		return nil
	})
	if err != nil {
		return storageError("failed to save challenge", err)
	}
	return nil
}

func (s *RedisChallengeStore) Latest(ctx context.Context, userID uuid.UUID, kind models.ChallengeKind) (*models.WebAuthnChallenge, error) {
	row, err := s.load(ctx, s.slotKey(userID, kind))
	if err != nil {
		return nil, err
	}
	if row == nil || row.Expired(s.now()) {
		return nil, apperr.ErrChallengeNotFound
	}
	return row, nil
}

// Consume claims the challenge by deleting its reverse key. DEL is atomic, so
// exactly one caller sees a removed key.
func (s *RedisChallengeStore) Consume(ctx context.Context, challenge string) error {
	vkey := s.valueKey(challenge)
	slot, err := s.client.Get(ctx, vkey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperr.ErrChallengeUsed
		}
		return storageError("failed to consume challenge", err)
	}

	removed, err := s.client.Del(ctx, vkey).Result()
	if err != nil {
		return storageError("failed to consume challenge", err)
	}
	if removed == 0 {
		return apperr.ErrChallengeUsed
	}

	row, err := s.load(ctx, slot)
	if err != nil {
		return err
	}
	// The slot may already hold a newer challenge that replaced this one.
	if row != nil && row.Challenge == challenge {
		if err := s.client.Del(ctx, slot).Err(); err != nil {
			return storageError("failed to consume challenge", err)
		}
	}
	return nil
}

// SweepExpired is a no-op: redis evicts expired keys itself.
func (s *RedisChallengeStore) SweepExpired(context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisChallengeStore) load(ctx context.Context, key string) (*models.WebAuthnChallenge, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storageError("failed to load challenge", err)
	}
	var stored redisChallenge
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, storageError("failed to decode challenge", err)
	}
	row := stored.WebAuthnChallenge
	row.SessionData = stored.SessionData
	return &row, nil
}

// redisChallenge carries SessionData explicitly because the model hides it
// from JSON.
type redisChallenge struct {
	models.WebAuthnChallenge
	SessionData string `json:"session_data"`
}
