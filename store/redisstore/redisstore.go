// Package redisstore persists accounts and the security event trail in
// Redis. Account updates use WATCH-based optimistic transactions so the
// CAS contract holds across processes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/authcore"
)

const (
	accountKeyPrefix = "acct"
	emailKeyPrefix   = "acct:email"
	eventKeyPrefix   = "acct:events"

	// casRetries bounds the optimistic-transaction retry loop when a
	// concurrent writer invalidates the WATCH.
	casRetries = 8
)

// Store implements the account store on Redis.
type Store struct {
	redis redis.UniversalClient
}

func New(redisClient redis.UniversalClient) *Store {
	return &Store{redis: redisClient}
}

func accountKey(id string) string { return accountKeyPrefix + ":" + id }
func emailKey(email string) string { return emailKeyPrefix + ":" + email }

func eventsKey(accountID string) string {
	return eventKeyPrefix + ":" + accountID
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	id, err := s.redis.Get(ctx, emailKey(authcore.NormalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return s.GetAccountByID(ctx, id)
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	data, err := s.redis.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return decodeAccount(data)
}

func (s *Store) CreateAccount(ctx context.Context, account *authcore.Account) error {
	email := authcore.NormalizeEmail(account.Email)

	stored := account.Clone()
	stored.Email = email
	stored.Revision = 1

	encoded, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	// Claim the email index first; it doubles as the uniqueness guard.
	claimed, err := s.redis.SetNX(ctx, emailKey(email), stored.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if !claimed {
		return authcore.ErrDuplicateEmail
	}

	if err := s.redis.Set(ctx, accountKey(stored.ID), encoded, 0).Err(); err != nil {
		// Roll back the index claim so a retry can succeed.
		_ = s.redis.Del(ctx, emailKey(email)).Err()
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	account.Revision = stored.Revision
	return nil
}

// CASUpdateAccount re-reads the account under WATCH, applies mutate to a
// copy and commits with a bumped revision inside a MULTI/EXEC. On WATCH
// invalidation by a concurrent writer the whole cycle retries with the
// fresh state, so every committed mutation observed its predecessor.
func (s *Store) CASUpdateAccount(ctx context.Context, id string, mutate func(*authcore.Account) error) (*authcore.Account, error) {
	key := accountKey(id)

	for i := 0; i < casRetries; i++ {
		var updated *authcore.Account

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return authcore.ErrAccountNotFound
				}
				return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
			}

			current, err := decodeAccount(data)
			if err != nil {
				return err
			}

			next := current.Clone()
			if err := mutate(next); err != nil {
				return err
			}
			next.Revision = current.Revision + 1

			encoded, err := json.Marshal(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				if next.Email != current.Email {
					pipe.Del(ctx, emailKey(current.Email))
					pipe.Set(ctx, emailKey(next.Email), next.ID, 0)
				}
				return nil
			})
			if err != nil {
				return err
			}

			updated = next
			return nil
		}, key)

		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: cas retries exhausted", authcore.ErrStoreUnavailable)
}

func (s *Store) AppendSecurityEvent(ctx context.Context, event authcore.SecurityEvent) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := s.redis.RPush(ctx, eventsKey(event.AccountID), encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// Events returns the stored trail for an account in append order.
func (s *Store) Events(ctx context.Context, accountID string) ([]authcore.SecurityEvent, error) {
	raw, err := s.redis.LRange(ctx, eventsKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	events := make([]authcore.SecurityEvent, 0, len(raw))
	for _, item := range raw {
		var event authcore.SecurityEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("decode security event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func decodeAccount(data []byte) (*authcore.Account, error) {
	var account authcore.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &account, nil
}
