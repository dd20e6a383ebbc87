package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusworks/maintenance-reporter/internal/config"
	"github.com/campusworks/maintenance-reporter/internal/domain"
	"github.com/campusworks/maintenance-reporter/internal/repository"
	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

type fakeUserRepo struct {
	byID    map[int64]*domain.User
	byEmail map[string]*domain.User
	nextID  int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[int64]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	stored := *user
	f.byID[user.ID] = &stored
	f.byEmail[user.Email] = &stored
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	existing, ok := f.byID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(f.byEmail, existing.Email)
	stored := *user
	f.byID[user.ID] = &stored
	f.byEmail[user.Email] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

type fakeResetRepo struct {
	byToken map[string]*repository.PasswordResetToken
	nextID  int64
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{byToken: map[string]*repository.PasswordResetToken{}}
}

func (f *fakeResetRepo) Create(_ context.Context, token *repository.PasswordResetToken) error {
	f.nextID++
	token.ID = f.nextID
	token.CreatedAt = time.Now()
	stored := *token
	f.byToken[token.Token] = &stored
	return nil
}

func (f *fakeResetRepo) GetByToken(_ context.Context, token string) (*repository.PasswordResetToken, error) {
	stored, ok := f.byToken[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeResetRepo) MarkUsed(_ context.Context, id int64) error {
	for _, token := range f.byToken {
		if token.ID == id {
			now := time.Now()
			token.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func newTestAuthService(users *fakeUserRepo, resets *fakeResetRepo) *AuthService {
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTLMinutes = 60
	cfg.Auth.PasswordResetTTLMinutes = 30
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.AllowedEmailDomain = "campus.edu"
	cfg.Auth.MinPasswordLength = 8
	return NewAuthService(cfg, AuthDependencies{UserRepo: users, PasswordResetRepo: resets})
}

func TestRegister(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo(), newFakeResetRepo())
	ctx := context.Background()

	t.Run("happy path defaults to student", func(t *testing.T) {
		user, token, exp, err := svc.Register(ctx, "  Maya.K@Campus.edu ", "sup3r-secret", "Maya K", "")
		require.NoError(t, err)
		assert.Equal(t, "maya.k@campus.edu", user.Email)
		assert.Equal(t, domain.RoleStudent, user.Role)
		assert.NotEmpty(t, token)
		assert.True(t, exp.After(time.Now()))

		claims, err := svc.TokenManager().ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
	})

	t.Run("foreign email domain rejected", func(t *testing.T) {
		_, _, _, err := svc.Register(ctx, "someone@gmail.com", "sup3r-secret", "", "")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, _, _, err := svc.Register(ctx, "short@campus.edu", "hunter2", "", "")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, _, _, err := svc.Register(ctx, "maya.k@campus.edu", "sup3r-secret", "", "")
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "CONFLICT", domainErr.Code)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, _, _, err := svc.Register(ctx, "janitor@campus.edu", "sup3r-secret", "", domain.Role("janitor"))
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo(), newFakeResetRepo())
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "ravi@campus.edu", "sup3r-secret", "Ravi", "")
	require.NoError(t, err)

	user, token, _, err := svc.Login(ctx, "Ravi@campus.edu", "sup3r-secret")
	require.NoError(t, err)
	assert.Equal(t, "ravi@campus.edu", user.Email)
	assert.NotEmpty(t, token)

	// Wrong password and unknown account produce the same answer.
	_, _, _, err = svc.Login(ctx, "ravi@campus.edu", "wrong-password")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	_, _, _, err = svc.Login(ctx, "nobody@campus.edu", "sup3r-secret")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	users := newFakeUserRepo()
	resets := newFakeResetRepo()
	svc := newTestAuthService(users, resets)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "lena@campus.edu", "sup3r-secret", "Lena", "")
	require.NoError(t, err)

	reset, err := svc.RequestPasswordReset(ctx, "lena@campus.edu")
	require.NoError(t, err)
	assert.NotEmpty(t, reset.Token)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, reset.Token, "brand-new-pass"))

	_, _, _, err = svc.Login(ctx, "lena@campus.edu", "brand-new-pass")
	require.NoError(t, err)

	// Single use: a second confirmation with the same token fails.
	err = svc.ConfirmPasswordReset(ctx, reset.Token, "another-pass-1")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)

	// Expired tokens are rejected the same way.
	expired, err := svc.RequestPasswordReset(ctx, "lena@campus.edu")
	require.NoError(t, err)
	resets.byToken[expired.Token].ExpiresAt = time.Now().Add(-time.Minute)

	err = svc.ConfirmPasswordReset(ctx, expired.Token, "later-pass-123")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)

	_, _, _, err = svc.Login(ctx, "lena@campus.edu", "later-pass-123")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	// Unknown accounts produce neither a token nor an error.
	missing, err := svc.RequestPasswordReset(ctx, "ghost@campus.edu")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChangePassword(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo(), newFakeResetRepo())
	ctx := context.Background()

	user, _, _, err := svc.Register(ctx, "tomas@campus.edu", "sup3r-secret", "Tomas", "")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "not-the-password", "brand-new-pass")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "sup3r-secret", "brand-new-pass"))

	_, _, _, err = svc.Login(ctx, "tomas@campus.edu", "brand-new-pass")
	require.NoError(t, err)
}
