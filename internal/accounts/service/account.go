package service

import (
	"context"
	"errors"
	"strings"

	accountserrors "turfbook/internal/accounts/errors"
	"turfbook/internal/accounts/repository"
	"turfbook/internal/accounts/validator"
	"turfbook/pkg/auth"
	"turfbook/pkg/config"
	apperrors "turfbook/pkg/errors"
	"turfbook/pkg/model"
	"turfbook/pkg/sanitizer"
)

type AccountService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Authenticate(ctx context.Context, req *model.LoginRequest) (string, *model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type accountService struct {
	repo      repository.UserRepository
	validator *validator.AccountValidator
	hasher    *auth.PasswordHasher
	issuer    *auth.TokenIssuer
	cfg       *config.Config
}

func NewAccountService(
	repo repository.UserRepository,
	validator *validator.AccountValidator,
	hasher *auth.PasswordHasher,
	issuer *auth.TokenIssuer,
	cfg *config.Config,
) AccountService {
	return &accountService{
		repo:      repo,
		validator: validator,
		hasher:    hasher,
		issuer:    issuer,
		cfg:       cfg,
	}
}

func (s *accountService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	user := &model.User{
		Username: sanitizer.SanitizeLabel(req.Username),
		Email:    normalizeEmail(req.Email),
		Role:     req.Role,
		FullName: sanitizer.SanitizeLabel(req.FullName),
		Phone:    strings.TrimSpace(req.Phone),
	}

	if err := s.validator.ValidateRegistration(user, req.Password); err != nil {
		s.cfg.Log.Warn("Registration validation failed", "error", err)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{"error": err.Error()})
	}

	// Email is checked before username so a request failing both reports the
	// email conflict. The unique indexes remain the authority under races.
	taken, err := s.repo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to check email availability", err)
	}
	if taken {
		return nil, apperrors.DuplicateEmail()
	}

	taken, err = s.repo.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, apperrors.Internal("Failed to check username availability", err)
	}
	if taken {
		return nil, apperrors.DuplicateUsername()
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}
	user.PasswordHash = hash

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, accountserrors.ErrDuplicateEmail) {
			return nil, apperrors.DuplicateEmail()
		}
		if errors.Is(err, accountserrors.ErrDuplicateUsername) {
			return nil, apperrors.DuplicateUsername()
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return nil, apperrors.Internal("Failed to create account", err)
	}

	s.cfg.Log.Info("Account registered",
		"id", user.ID,
		"username", user.Username,
		"role", user.Role,
	)
	return user, nil
}

func (s *accountService) Authenticate(ctx context.Context, req *model.LoginRequest) (string, *model.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return "", nil, apperrors.InvalidCredentials()
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) {
			return "", nil, apperrors.InvalidCredentials()
		}
		s.cfg.Log.Error("Failed to look up user for login", "error", err)
		return "", nil, apperrors.Internal("Failed to authenticate", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return "", nil, apperrors.InvalidCredentials()
	}

	token, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		s.cfg.Log.Error("Failed to issue token", "error", err)
		return "", nil, apperrors.Internal("Failed to authenticate", err)
	}

	s.cfg.Log.Info("Login succeeded", "id", user.ID, "role", user.Role)
	return token, user, nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accountserrors.ErrNotFound) || errors.Is(err, accountserrors.ErrInvalidID) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}

	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
