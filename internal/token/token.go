// Package token issues and verifies the signed session tokens handed to clients.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-chat-vault/internal/model"
)

// DefaultTTL is the fixed session lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// DemoPrefix marks subjects minted while the credential store was unreachable.
// Such subjects must never be looked up in a store.
const DemoPrefix = "demo-"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewService(secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}

	s := &Service{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for principalID that expires after the configured TTL.
func (s *Service) Issue(principalID string) (Token, error) {
	if strings.TrimSpace(principalID) == "" {
		return Token{}, errors.New("principal id is required")
	}

	return s.sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: principalID}})
}

// IssueDemo mints a synthetic demo identity. Name and email ride in the claims
// so Verify can rebuild the principal without a store.
func (s *Service) IssueDemo(name string, email string) (Token, model.Principal, error) {
	principal := model.Principal{
		ID:    DemoPrefix + uuid.NewString(),
		Name:  strings.TrimSpace(name),
		Email: strings.ToLower(strings.TrimSpace(email)),
		Demo:  true,
	}
	if principal.Name == "" {
		principal.Name = "Demo User"
	}

	tok, err := s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: principal.ID},
		Name:             principal.Name,
		Email:            principal.Email,
	})
	if err != nil {
		return Token{}, model.Principal{}, err
	}

	return tok, principal, nil
}

// Verify checks signature and expiry. Real subjects come back with only the ID
// set; the caller resolves the remaining fields.
func (s *Service) Verify(tokenString string) (model.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Principal{}, ErrExpiredToken
		}
		return model.Principal{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return model.Principal{}, ErrInvalidToken
	}

	if IsDemoID(claims.Subject) {
		return model.Principal{ID: claims.Subject, Name: claims.Name, Email: claims.Email, Demo: true}, nil
	}

	return model.Principal{ID: claims.Subject}, nil
}

func (s *Service) sign(claims Claims) (Token, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func IsDemoID(id string) bool {
	return strings.HasPrefix(id, DemoPrefix)
}

// SubjectUnverified reads the subject without checking the signature. Clients
// use it to key their local cache when the server cannot be asked.
func SubjectUnverified(tokenString string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
