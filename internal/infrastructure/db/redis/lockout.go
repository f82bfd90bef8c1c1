package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 15 * time.Minute
	defaultLockoutDuration  = 5 * time.Minute
)

// LockoutConfig tunes the failed-login counter.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

// Lockout counts failed logins per user and locks the account for Duration
// once Threshold failures land within Window.
//
// Keys:
//
//	lockout:failures:<user_id>  counter, expires after Window
//	lockout:until:<user_id>     present while the account is locked
type Lockout struct {
	client *redis.Client
	cfg    LockoutConfig
}

func NewLockout(client *redis.Client, cfg LockoutConfig) *Lockout {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultLockoutThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultLockoutWindow
	}
	if cfg.Duration <= 0 {
		cfg.Duration = defaultLockoutDuration
	}
	return &Lockout{client: client, cfg: cfg}
}

// IsLockedOut reports whether userID is currently locked.
func (l *Lockout) IsLockedOut(ctx context.Context, userID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.untilKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("lockout check: %w", err)
	}
	return n > 0, nil
}

// RecordFailure bumps the failure counter and reports whether this failure
// locked the account.
func (l *Lockout) RecordFailure(ctx context.Context, userID string) (bool, error) {
	key := l.failuresKey(userID)
	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("lockout incr: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("lockout expire: %w", err)
		}
	}
	if n < int64(l.cfg.Threshold) {
		return false, nil
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, l.untilKey(userID), time.Now().Add(l.cfg.Duration).Unix(), l.cfg.Duration)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lockout set: %w", err)
	}
	return true, nil
}

// Reset clears the failure counter after a successful login.
func (l *Lockout) Reset(ctx context.Context, userID string) error {
	return l.client.Del(ctx, l.failuresKey(userID)).Err()
}

// Clear drops every lockout key of userID, e.g. when the account is deleted.
func (l *Lockout) Clear(ctx context.Context, userID string) error {
	return l.client.Del(ctx, l.failuresKey(userID), l.untilKey(userID)).Err()
}

func (l *Lockout) failuresKey(userID string) string {
	return "lockout:failures:" + userID
}

func (l *Lockout) untilKey(userID string) string {
	return "lockout:until:" + userID
}
