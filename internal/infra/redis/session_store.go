package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

var _ repository.SessionStore = (*SessionStore)(nil)

// Sealer encrypts values at rest. security.EncryptionService satisfies it.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SessionStore keeps sessions as JSON under billing_session:<id>. The idle
// timeout is the key TTL, refreshed on every write.
type SessionStore struct {
	client RedisClient
	ttl    time.Duration
	sealer Sealer
	now    func() time.Time
}

// NewSessionStore builds the store; sealer may be nil.
func NewSessionStore(client RedisClient, ttl time.Duration, sealer Sealer) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl, sealer: sealer, now: time.Now}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("billing_session:%d", userID)
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID))
	if errors.Is(err, ErrNil) {
		metrics.IncSessionLookup("redis", false)
		return model.NewSession(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	metrics.IncSessionLookup("redis", true)
	return s.decode(userID, data)
}

func (s *SessionStore) Put(ctx context.Context, userID int64, sess *model.Session) error {
	if sess == nil || sess.State == model.StateNone {
		if sess != nil && len(sess.Fields) > 0 {
			return fmt.Errorf("%w: idle session with %d field(s)", domain.ErrInvariant, len(sess.Fields))
		}
		return s.Clear(ctx, userID)
	}
	if !sess.State.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvariant, sess.State)
	}
	cp := sess.Clone()
	cp.UserID = userID
	if cp.Fields == nil {
		cp.Fields = model.Fields{}
	}
	cp.UpdatedAt = s.now().UTC()
	return s.write(ctx, cp)
}

func (s *SessionStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// MergeFields is a read-modify-write. Callers serialise turns per user, so no
// WATCH is taken here.
func (s *SessionStore) MergeFields(ctx context.Context, userID int64, partial model.Fields) (*model.Session, error) {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("%w: merge into idle session", domain.ErrInvariant)
	}
	for k, v := range partial {
		sess.Fields[k] = v
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.write(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (s *SessionStore) write(ctx context.Context, sess *model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	value := string(b)
	if s.sealer != nil {
		if value, err = s.sealer.Encrypt(value); err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
	}
	if err := s.client.Set(ctx, sessionKey(sess.UserID), value, s.ttl); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SessionStore) decode(userID int64, data string) (*model.Session, error) {
	if s.sealer != nil {
		plain, err := s.sealer.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		data = plain
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.UserID = userID
	if sess.Fields == nil {
		sess.Fields = model.Fields{}
	}
	return &sess, nil
}
