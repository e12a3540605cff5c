package model

import "time"

// User is the persisted credential record.
type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Principal is the verified identity attached to a request.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Demo  bool   `json:"demo"`
}

func (p Principal) Public() PublicUser {
	return PublicUser{ID: p.ID, Name: p.Name, Email: p.Email, Demo: p.Demo}
}

type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Demo  bool   `json:"demo,omitempty"`
}

type AuthResult struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      PublicUser `json:"user"`
	Demo      bool       `json:"demo,omitempty"`
}

type PasswordReset struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Demo       bool      `json:"demo,omitempty"`
}
