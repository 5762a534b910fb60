package auth

import (
	"context"
	"testing"
	"time"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/utils"
)

type stubUserRepo struct {
	byEmail map[string]*entity.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byEmail: make(map[string]*entity.User)}
}

func (r *stubUserRepo) Create(ctx context.Context, user *entity.User) error {
	user.ID = "u-" + user.Email
	r.byEmail[user.Email] = user
	return nil
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.byEmail[email], nil
}

func (r *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo *stubUserRepo) *Service {
	cfg := &config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "z-chat-ai",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
	}
	return NewService(repo, passthroughTx{}, utils.NewJWTManager(cfg.Secret, cfg.Issuer), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "a@example.com", "Alice", "correct horse")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if reg.Tokens.AccessToken == "" || reg.Tokens.RefreshToken == "" {
		t.Error("expected token pair issued on register")
	}
	if reg.User.PasswordHash == "correct horse" {
		t.Error("password must be hashed")
	}

	login, err := svc.Login(ctx, "a@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("expected same user, got %s and %s", login.User.ID, reg.User.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@example.com", "Alice", "password123"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err := svc.Register(ctx, "a@example.com", "Alice Again", "password123")
	if !errors.IsCode(err, errors.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(newStubUserRepo())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@example.com", "Alice", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Login(ctx, "a@example.com", "wrong"); !errors.IsCode(err, errors.CodeUnauthorized) {
		t.Errorf("expected unauthorized for wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.IsCode(err, errors.CodeUnauthorized) {
		t.Errorf("expected unauthorized for unknown user, got %v", err)
	}
}
