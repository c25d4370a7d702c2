package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps refresh sessions in Redis. A session lives under
// "<prefix>token:<sha256(refresh)>" and expires with it; "<prefix>user:<id>"
// is a set of the token digests a user holds so they can all be dropped at once.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "havacilik:session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func digest(refresh string) string {
	sum := sha256.Sum256([]byte(refresh))
	return hex.EncodeToString(sum[:])
}

func (r *RedisRepository) tokenKey(d string) string  { return r.prefix + "token:" + d }
func (r *RedisRepository) userKey(id string) string { return r.prefix + "user:" + id }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	d := digest(s.RefreshToken)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.tokenKey(d), b, ttl)
		p.SAdd(ctx, r.userKey(s.UserID), d)
		// sessions share one TTL, so the newest one expires last
		p.Expire(ctx, r.userKey(s.UserID), ttl)
		return nil
	})
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	b, err := r.client.Get(ctx, r.tokenKey(digest(refresh))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	d := digest(refresh)
	s, err := r.GetByRefresh(ctx, refresh)
	if err != nil || s == nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.tokenKey(d))
		p.SRem(ctx, r.userKey(s.UserID), d)
		return nil
	})
	return err
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) error {
	ds, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ds)+1)
	for _, d := range ds {
		keys = append(keys, r.tokenKey(d))
	}
	keys = append(keys, r.userKey(userID))
	return r.client.Del(ctx, keys...).Err()
}
