package database

import (
	"context"
	"fmt"
	"strings"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (q *Queries) GetUsers(ctx context.Context) ([]models.User, error) {
	rows, err := q.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Debug("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (q *Queries) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx, queryGetUserById, userId))
	if isNoRows(err) {
		return nil, store.NotFound("user %s not found", userId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx, queryGetUserByEmail, email))
	if isNoRows(err) {
		return nil, store.NotFound("no active user with email %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (q *Queries) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	if params.Id == "" {
		params.Id = uuid.New().String()
	}
	if params.Role == "" {
		params.Role = models.RoleUser
	}
	now := nowUTC()

	_, err := q.db.ExecContext(ctx, queryInsertUser, params.Id, params.Name, params.Email, string(params.Role),
		params.ProfileComplete, params.KycVerified, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, store.Conflict("user with email %s already exists", params.Email)
		}
		zap.L().Error("Failed to create user", zap.String("email", params.Email), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	zap.L().Info("User created", zap.String("id", params.Id), zap.String("email", params.Email))
	return &models.User{
		Id:              params.Id,
		Name:            params.Name,
		Email:           params.Email,
		Role:            params.Role,
		Active:          true,
		ProfileComplete: params.ProfileComplete,
		KycVerified:     params.KycVerified,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (q *Queries) HasUnpaidDues(ctx context.Context, userId string) (bool, error) {
	var exists bool
	if err := q.db.QueryRowContext(ctx, queryHasUnpaidDues, userId).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check unpaid dues: %w", err)
	}
	return exists, nil
}

// CheckRentalPrerequisites is the built-in prerequisite check backed by the
// local user table: active account, complete profile, verified KYC and no
// unpaid dues.
func (s *Service) CheckRentalPrerequisites(ctx context.Context, userId string) error {
	user, err := s.GetUserById(ctx, userId)
	if err != nil {
		return err
	}

	switch {
	case !user.Active:
		return store.InvalidState("account is not active")
	case !user.ProfileComplete:
		return store.InvalidState("profile is incomplete")
	case !user.KycVerified:
		return store.InvalidState("identity verification is pending")
	}

	dues, err := s.HasUnpaidDues(ctx, userId)
	if err != nil {
		return err
	}
	if dues {
		return store.InvalidState("outstanding rental dues must be paid first")
	}
	return nil
}
