package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-chat-vault/internal/metrics"
	"go-chat-vault/internal/model"
	"go-chat-vault/internal/repository"
	"go-chat-vault/internal/token"
	"go-chat-vault/pkg/apierror"
)

const (
	DefaultBcryptCost = 10
	DefaultResetTTL   = 10 * time.Minute

	resetSecretBytes = 32
)

const invalidCredentialsMessage = "Invalid email or password"

type AuthOptions struct {
	BcryptCost int
	ResetTTL   time.Duration
	// DemoMode lets register/login/reset answer with synthetic identities
	// while the credential store is unreachable.
	DemoMode bool
	Now      func() time.Time
}

type AuthService struct {
	users    repository.UserStore
	tokens   *token.Service
	validate *validator.Validate

	bcryptCost int
	resetTTL   time.Duration
	demoMode   bool
	now        func() time.Time

	// dummyHash is compared against when the email is unknown so both login
	// failures pay the bcrypt cost.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewAuthService(users repository.UserStore, tokens *token.Service, opts AuthOptions) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}

	s := &AuthService{
		users:      users,
		tokens:     tokens,
		validate:   newValidator(),
		bcryptCost: opts.BcryptCost,
		resetTTL:   opts.ResetTTL,
		demoMode:   opts.DemoMode,
		now:        opts.Now,
		compare:    bcrypt.CompareHashAndPassword,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = DefaultBcryptCost
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", s.bcryptCost)
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	if s.now == nil {
		s.now = time.Now
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare login hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

func (s *AuthService) DemoMode() bool {
	return s.demoMode
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (model.AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)

	if err := s.validate.Struct(input); err != nil {
		metrics.RecordAuth("register", metrics.OutcomeFailure)
		return model.AuthResult{}, validationError(err)
	}

	if s.degraded(ctx) {
		return s.demoResult("register", input.Name, input.Email)
	}

	exists, err := s.users.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return model.AuthResult{}, s.storeFailure("register", err)
	}
	if exists {
		metrics.RecordAuth("register", metrics.OutcomeFailure)
		return model.AuthResult{}, duplicateEmail(input.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			metrics.RecordAuth("register", metrics.OutcomeFailure)
			return model.AuthResult{}, duplicateEmail(input.Email)
		}
		return model.AuthResult{}, s.storeFailure("register", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	metrics.RecordAuth("register", metrics.OutcomeSuccess)

	return s.issue(user)
}

// Login answers unknown emails and wrong passwords with the same error.
func (s *AuthService) Login(ctx context.Context, email string, password string) (model.AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		metrics.RecordAuth("login", metrics.OutcomeFailure)
		return model.AuthResult{}, apierror.Validation("email and password are required", "")
	}

	if s.degraded(ctx) {
		return s.demoResult("login", "", email)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = s.compare(s.dummyHash, []byte(password))
		metrics.RecordAuth("login", metrics.OutcomeFailure)
		return model.AuthResult{}, invalidCredentials()
	}
	if err != nil {
		return model.AuthResult{}, s.storeFailure("login", err)
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login rejected", "user_id", user.ID)
		metrics.RecordAuth("login", metrics.OutcomeFailure)
		return model.AuthResult{}, invalidCredentials()
	}

	metrics.RecordAuth("login", metrics.OutcomeSuccess)
	return s.issue(user)
}

// ForgotPassword stores the hash of a fresh reset secret and hands the secret
// straight back to the caller; there is no delivery channel.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (model.PasswordReset, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.PasswordReset{}, apierror.Validation("email is required", "")
	}

	secret, err := randomSecret()
	if err != nil {
		return model.PasswordReset{}, err
	}
	expiresAt := s.now().UTC().Add(s.resetTTL)

	if s.degraded(ctx) {
		metrics.RecordAuth("forgot_password", metrics.OutcomeDemo)
		return model.PasswordReset{ResetToken: secret, ExpiresAt: expiresAt, Demo: true}, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		metrics.RecordAuth("forgot_password", metrics.OutcomeFailure)
		return model.PasswordReset{}, apierror.NotFound("No account found with that email", "")
	}
	if err != nil {
		return model.PasswordReset{}, s.storeFailure("forgot_password", err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, hashSecret(secret), expiresAt); err != nil {
		return model.PasswordReset{}, s.storeFailure("forgot_password", err)
	}

	slog.Info("password reset requested", "user_id", user.ID, "expires_at", expiresAt)
	metrics.RecordAuth("forgot_password", metrics.OutcomeSuccess)

	return model.PasswordReset{ResetToken: secret, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, resetToken string, newPassword string) (model.AuthResult, error) {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		metrics.RecordAuth("reset_password", metrics.OutcomeFailure)
		return model.AuthResult{}, invalidResetToken()
	}
	if err := s.validate.Struct(passwordInput{Password: newPassword}); err != nil {
		return model.AuthResult{}, validationError(err)
	}

	if s.degraded(ctx) {
		return s.demoResult("reset_password", "", "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.ConsumeResetToken(ctx, hashSecret(resetToken), s.now().UTC(), string(hash))
	if errors.Is(err, model.ErrResetTokenNotFound) {
		metrics.RecordAuth("reset_password", metrics.OutcomeFailure)
		return model.AuthResult{}, invalidResetToken()
	}
	if err != nil {
		return model.AuthResult{}, s.storeFailure("reset_password", err)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	metrics.RecordAuth("reset_password", metrics.OutcomeSuccess)

	return s.issue(user)
}

// ChangePassword does not revoke tokens already issued to the principal.
func (s *AuthService) ChangePassword(ctx context.Context, principal model.Principal, currentPassword string, newPassword string) error {
	if currentPassword == "" {
		return apierror.Validation("current_password is required", "")
	}
	if err := s.validate.Struct(passwordInput{Password: newPassword}); err != nil {
		return validationError(err)
	}

	if principal.Demo || token.IsDemoID(principal.ID) {
		metrics.RecordAuth("change_password", metrics.OutcomeDemo)
		return nil
	}
	if s.degraded(ctx) {
		metrics.RecordAuth("change_password", metrics.OutcomeDemo)
		return nil
	}

	user, err := s.users.FindByID(ctx, principal.ID)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.Unauthorized("user not found")
	}
	if err != nil {
		return s.storeFailure("change_password", err)
	}

	if err := s.compare([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		metrics.RecordAuth("change_password", metrics.OutcomeFailure)
		return apierror.Unauthorized("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return s.storeFailure("change_password", err)
	}

	slog.Info("password changed", "user_id", user.ID)
	metrics.RecordAuth("change_password", metrics.OutcomeSuccess)
	return nil
}

// CurrentPrincipal projects the public fields of an already verified principal.
func (s *AuthService) CurrentPrincipal(_ context.Context, principal model.Principal) (model.PublicUser, error) {
	if principal.ID == "" {
		return model.PublicUser{}, apierror.Unauthorized("authentication required")
	}
	return principal.Public(), nil
}

func (s *AuthService) degraded(ctx context.Context) bool {
	return s.demoMode && !s.users.Available(ctx)
}

func (s *AuthService) issue(user model.User) (model.AuthResult, error) {
	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	return model.AuthResult{
		Token:     tok.Value,
		TokenType: "Bearer",
		ExpiresAt: tok.ExpiresAt,
		User:      user.Public(),
	}, nil
}

func (s *AuthService) demoResult(event string, name string, email string) (model.AuthResult, error) {
	tok, principal, err := s.tokens.IssueDemo(name, email)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("issue demo token: %w", err)
	}

	slog.Warn("credential store unavailable, answering in demo mode", "event", event, "principal_id", principal.ID)
	metrics.RecordAuth(event, metrics.OutcomeDemo)

	return model.AuthResult{
		Token:     tok.Value,
		TokenType: "Bearer",
		ExpiresAt: tok.ExpiresAt,
		User:      principal.Public(),
		Demo:      true,
	}, nil
}

func (s *AuthService) storeFailure(event string, err error) error {
	if errors.Is(err, model.ErrStoreUnavailable) {
		slog.Error("credential store unavailable", "event", event, "error", err)
		metrics.RecordAuth(event, metrics.OutcomeUnavailable)
		return apierror.Unavailable("credential store is unavailable")
	}
	return fmt.Errorf("%s: %w", event, err)
}

func duplicateEmail(email string) error {
	return apierror.New(apierror.CodeDuplicateEmail, "Email is already registered", email, http.StatusConflict)
}

func invalidCredentials() error {
	return apierror.New(apierror.CodeInvalidCredentials, invalidCredentialsMessage, "", http.StatusUnauthorized)
}

func invalidResetToken() error {
	return apierror.New(apierror.CodeInvalidOrExpiredToken, "Reset token is invalid or has expired", "", http.StatusBadRequest)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomSecret() (string, error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
