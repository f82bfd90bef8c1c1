package redis

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetTokenBytes      = 32
	defaultResetTokenTTL = time.Hour
)

// ErrResetTokenMismatch is returned by Consume when the token is unknown,
// expired or already used.
var ErrResetTokenMismatch = errors.New("reset token mismatch")

// consumeScript deletes the stored hash only when it matches, so two
// concurrent consumers can never both succeed.
var consumeScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored and stored == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// ResetTokens stores one pending reset token per user under
// reset:<user_id>. Only the SHA-256 of the token is kept; issuing a new
// token replaces the previous one.
type ResetTokens struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResetTokens(client *redis.Client, ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = defaultResetTokenTTL
	}
	return &ResetTokens{client: client, ttl: ttl}
}

// Issue creates a fresh token for userID and returns its plaintext.
func (t *ResetTokens) Issue(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := t.client.Set(ctx, t.key(userID), hashToken(token), t.ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// Consume atomically checks and deletes the pending token of userID.
func (t *ResetTokens) Consume(ctx context.Context, userID, token string) error {
	n, err := consumeScript.Run(ctx, t.client, []string{t.key(userID)}, hashToken(token)).Int()
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if n != 1 {
		return ErrResetTokenMismatch
	}
	return nil
}

// Revoke drops any pending token of userID.
func (t *ResetTokens) Revoke(ctx context.Context, userID string) error {
	return t.client.Del(ctx, t.key(userID)).Err()
}

func (t *ResetTokens) key(userID string) string {
	return "reset:" + userID
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
