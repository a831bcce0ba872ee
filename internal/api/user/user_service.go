package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/bekberov/go-user-service/app/observability/metrics"
	"github.com/bekberov/go-user-service/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService orchestrates user registration, retrieval, update and removal.
type UserService interface {
	// Register validates and persists a new user from the request payload.
	Register(ctx context.Context, req types.CreateUserRequest) (*types.User, error)

	// GetUser retrieves a single user by ID.
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// FindByEmail looks up a user by email for credential checks.
	// Returns (nil, nil) when no user carries the email.
	FindByEmail(ctx context.Context, email string) (*types.User, error)

	// ListUsers returns every stored user.
	ListUsers(ctx context.Context) ([]types.User, error)

	// SearchByBirthDateRange returns users born within [from, to].
	SearchByBirthDateRange(ctx context.Context, from, to types.Date) ([]types.User, error)

	// UpdateUser applies a partial update to the stored user. Fields left
	// nil in params keep their stored values.
	UpdateUser(ctx context.Context, userID uuid.UUID, params types.UpdateUserParams) (*types.User, error)

	// DeleteUser removes the user. Deleting an absent user succeeds.
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// UserServiceImpl provides the implementation backed by the postgres
// repository, with a short-lived read cache in front of point lookups.
type UserServiceImpl struct {
	logger    *slog.Logger
	repo      UserRepo
	validator Validator
	cache     *cache.Cache
}

func NewUserService(repo UserRepo, validator Validator, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:    logger,
		repo:      repo,
		validator: validator,
		cache:     cache.New(5*time.Minute, 10*time.Minute),
	}
}

func userCacheKey(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func (s *UserServiceImpl) Register(ctx context.Context, req types.CreateUserRequest) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("user.email", req.Email),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("email", req.Email))

	if err := s.validator.ValidateCreate(ctx, req); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			l.WarnContext(ctx, "Registration rejected", slog.Int("violations", len(verr.Violations)))
			span.SetStatus(codes.Error, "Validation failed")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Validation check failed")
		return nil, fmt.Errorf("validate registration: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := types.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BirthDate:    req.BirthDate,
		Address:      req.Address,
		PhoneNumber:  req.PhoneNumber,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Insert failed")
		return nil, asBadRequest(err)
	}

	s.cache.Set(userCacheKey(user.ID), &user, cache.DefaultExpiration)
	metrics.Get().UsersCreatedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()))
	return &user, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetUser")
	defer span.End()

	if cached, found := s.cache.Get(userCacheKey(userID)); found {
		if u, ok := cached.(*types.User); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return u, nil
		}
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Fetch failed")
		}
		return nil, err
	}

	s.cache.Set(userCacheKey(userID), u, cache.DefaultExpiration)
	return u, nil
}

func (s *UserServiceImpl) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()
	return s.repo.ListAll(ctx)
}

func (s *UserServiceImpl) SearchByBirthDateRange(ctx context.Context, from, to types.Date) ([]types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "SearchByBirthDateRange")
	defer span.End()

	users, err := s.repo.ListByBirthDateRange(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		return nil, err
	}
	return users, nil
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, userID uuid.UUID, params types.UpdateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateUser")
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateUser"), slog.String("userID", userID.String()))

	stored, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Update on non-existent user")
			return nil, err
		}
		span.RecordError(err)
		return nil, err
	}

	merged := mergeUser(*stored, params)

	if err := s.validator.ValidateUpdate(ctx, *stored, params, merged); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			l.WarnContext(ctx, "Update rejected", slog.Int("violations", len(verr.Violations)))
			span.SetStatus(codes.Error, "Validation failed")
			return nil, err
		}
		return nil, fmt.Errorf("validate update: %w", err)
	}

	if params.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Password), bcrypt.DefaultCost)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("hash password: %w", err)
		}
		merged.PasswordHash = string(hash)
	}

	merged.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, asBadRequest(err)
	}

	s.cache.Delete(userCacheKey(userID))
	l.InfoContext(ctx, "User updated")
	return &merged, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "DeleteUser")
	defer span.End()

	if err := s.repo.Delete(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		return err
	}
	s.cache.Delete(userCacheKey(userID))
	s.logger.InfoContext(ctx, "User deleted", slog.String("method", "DeleteUser"), slog.String("userID", userID.String()))
	return nil
}

// asBadRequest rewraps a persistence failure so the boundary reports it as a
// client-visible 400 with the underlying message intact. Errors already
// carrying the sentinel pass through unchanged.
func asBadRequest(err error) error {
	if errors.Is(err, types.ErrBadRequest) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrBadRequest, err)
}

// mergeUser overlays the non-nil fields of params onto the stored record.
// The password hash is left untouched here; the caller re-hashes when a
// new plaintext password is present.
func mergeUser(stored types.User, params types.UpdateUserParams) types.User {
	merged := stored
	if params.FirstName != nil {
		merged.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		merged.LastName = *params.LastName
	}
	if params.BirthDate != nil {
		merged.BirthDate = *params.BirthDate
	}
	if params.Address != nil {
		merged.Address = params.Address
	}
	if params.PhoneNumber != nil {
		merged.PhoneNumber = params.PhoneNumber
	}
	if params.Role != nil {
		merged.Role = *params.Role
	}
	return merged
}
