package services

import (
	"context"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/repos"
	"github.com/messmate/pgmess-backend/internal/types"
)

type UserService interface {
	GetOrCreate(ctx context.Context, whatsappID, username string) (*types.User, error)
	Register(ctx context.Context, user *types.User) (*types.User, error)
	List(ctx context.Context) ([]*types.User, error)
}

type userService struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewUserService(baseLog *logger.Logger, users repos.UserRepo) UserService {
	return &userService{
		log:   baseLog.With("service", "UserService"),
		users: users,
	}
}

func (s *userService) GetOrCreate(ctx context.Context, whatsappID, username string) (*types.User, error) {
	return s.users.GetOrCreate(ctx, nil, whatsappID, username)
}

func (s *userService) Register(ctx context.Context, user *types.User) (*types.User, error) {
	return s.users.Create(ctx, nil, user)
}

func (s *userService) List(ctx context.Context) ([]*types.User, error) {
	return s.users.List(ctx, nil)
}
