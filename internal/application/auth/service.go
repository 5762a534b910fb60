// Package auth 实现注册与登录用例
package auth

import (
	"context"

	"go.opentelemetry.io/otel"

	"z-chat-ai-api/internal/config"
	"z-chat-ai-api/internal/domain/entity"
	"z-chat-ai-api/internal/domain/repository"
	"z-chat-ai-api/pkg/errors"
	"z-chat-ai-api/pkg/logger"
	"z-chat-ai-api/pkg/utils"
)

var tracer = otel.Tracer("auth")

// Service 认证服务
type Service struct {
	users repository.UserRepository
	tx    repository.Transactor
	jwt   *utils.JWTManager
	cfg   *config.JWTConfig
}

// NewService 创建认证服务
func NewService(users repository.UserRepository, tx repository.Transactor, jwt *utils.JWTManager, cfg *config.JWTConfig) *Service {
	return &Service{users: users, tx: tx, jwt: jwt, cfg: cfg}
}

// Result 认证结果
type Result struct {
	User   *entity.User
	Tokens *utils.TokenPair
}

// Register 注册新用户并签发 Token
func (s *Service) Register(ctx context.Context, email, name, password string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer span.End()

	user := entity.NewUser(email, name)
	if err := user.SetPassword(password); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to hash password")
	}

	// 查重与写入放在同一事务，防止并发重复注册
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return errors.New(errors.CodeConflict, "email already registered")
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return &Result{User: user, Tokens: tokens}, nil
}

// Login 校验凭证并签发 Token
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	// 用户不存在与密码错误返回同一错误，避免账号探测
	if user == nil || !user.CheckPassword(password) {
		return nil, errors.New(errors.CodeUnauthorized, "invalid email or password")
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Result{User: user, Tokens: tokens}, nil
}

func (s *Service) issueTokens(user *entity.User) (*utils.TokenPair, error) {
	tokens, err := s.jwt.GenerateTokenPair(user.ID, user.Email, s.cfg.Expiration, s.cfg.RefreshExpiration)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to issue tokens")
	}
	return tokens, nil
}
