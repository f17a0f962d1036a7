package user

import (
	"collab-docs/internal/domain"
	"collab-docs/internal/errors"
	"collab-docs/internal/utils"
	"context"
	defError "errors"
	"time"

	"gorm.io/gorm"
)

// Service is the user directory: identities are issued elsewhere and
// pushed here, this side only mirrors and queries them.
type Service interface {
	Sync(ctx context.Context, id, name, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SearchUsers(ctx context.Context, query string) ([]domain.User, error)
}

type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Sync mirrors an identity pushed by the provider. The presence color
// is derived from the user id, so it survives re-syncs unchanged.
func (s *DefaultService) Sync(ctx context.Context, id, name, email string) (*domain.User, error) {
	if id == "" {
		return nil, errors.BadRequest("User id cannot be empty", nil)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        id,
		Name:      name,
		Email:     email,
		Color:     utils.ColorFor(id),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.Upsert(ctx, user); err != nil {
		return nil, err
	}

	return s.repository.FindByID(ctx, id)
}

func (s *DefaultService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("User not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *DefaultService) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	if query == "" {
		return []domain.User{}, nil
	}
	return s.repository.Search(ctx, query, 20)
}
