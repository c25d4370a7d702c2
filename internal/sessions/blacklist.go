package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "havacilik:revoked:"

// Blacklist remembers access tokens revoked by logout until they would have
// expired on their own. A nil Blacklist, or one without a Redis client,
// revokes nothing.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Only a digest of the token reaches Redis.
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

func (b *Blacklist) enabled() bool { return b != nil && b.client != nil }

// Revoke blacklists token until the given expiry. Tokens that already
// expired are not stored.
func (b *Blacklist) Revoke(ctx context.Context, token string, until time.Time) error {
	if !b.enabled() {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, revokedKey(token), until.UTC().Format(time.RFC3339), ttl).Err()
}

// Revoked reports whether token was revoked and has not expired yet.
func (b *Blacklist) Revoked(ctx context.Context, token string) (bool, error) {
	if !b.enabled() {
		return false, nil
	}
	n, err := b.client.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
