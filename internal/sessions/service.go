package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// CreateSession stores a new refresh session and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, userID, userAgent string, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	r := hex.EncodeToString(b)
	now := s.now().UTC()
	sess := &Session{
		RefreshToken: r,
		UserID:       userID,
		UserAgent:    userAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// ValidateRefresh returns the session if refresh token is valid and not expired
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.expired(s.now().UTC()) {
		_ = s.repo.DeleteByRefresh(ctx, refresh)
		return nil, nil
	}
	return sess, nil
}

// Rotate replaces a valid refresh token with a new one. The old token stops
// working even if the new one is never used.
func (s *Service) Rotate(ctx context.Context, refresh string, ttl time.Duration) (*Session, string, error) {
	sess, err := s.ValidateRefresh(ctx, refresh)
	if err != nil || sess == nil {
		return nil, "", err
	}
	if err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
		return nil, "", err
	}
	next, err := s.CreateSession(ctx, sess.UserID, sess.UserAgent, ttl)
	if err != nil {
		return nil, "", err
	}
	return sess, next, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}

// RevokeAll ends every refresh session of a user.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}
