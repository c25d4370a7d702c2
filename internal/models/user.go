package models

import "time"

const RoleAdmin = "admin"

// User is a back-office account. Local accounts carry a bcrypt hash;
// accounts mapped from Keycloak claims carry the OIDC subject instead.
type User struct {
	ID           string     `bson:"_id,omitempty" json:"id"`
	Sub          string     `bson:"sub,omitempty" json:"sub,omitempty"` // OIDC subject
	Email        string     `bson:"email" json:"email"`
	Name         string     `bson:"name" json:"name"`
	Role         string     `bson:"role" json:"role"`
	PasswordHash string     `bson:"passwordHash,omitempty" json:"-"`
	LastLoginAt  *time.Time `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
}
