package sessions

import "time"

// Session is a refresh session for a back-office user.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	UserAgent    string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) expired(now time.Time) bool { return now.After(s.ExpiresAt) }
