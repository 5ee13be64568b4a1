package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/messmate/pgmess-backend/internal/logger"
	"github.com/messmate/pgmess-backend/internal/types"
)

type UserRepo interface {
	GetByWhatsAppID(ctx context.Context, tx *gorm.DB, whatsappID string) (*types.User, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, whatsappID string, username string) (*types.User, error)
	Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) GetByWhatsAppID(ctx context.Context, tx *gorm.DB, whatsappID string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var user types.User
	err := transaction.WithContext(ctx).
		Where("whatsapp_id = ?", whatsappID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreate registers a resident on first contact and keeps the
// stored username in sync with what the worker reports.
func (ur *userRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, whatsappID string, username string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	username = strings.TrimSpace(username)

	existing, err := ur.GetByWhatsAppID(ctx, transaction, whatsappID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if username != "" && existing.Username != username {
			if err := transaction.WithContext(ctx).
				Model(existing).
				Update("username", username).Error; err != nil {
				return nil, err
			}
			existing.Username = username
		}
		return existing, nil
	}

	if username == "" {
		username = "Unknown"
	}
	user := &types.User{
		ID:         uuid.New(),
		WhatsAppID: whatsappID,
		Username:   username,
	}
	err = transaction.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Raced with another request for the same resident.
		return ur.GetByWhatsAppID(ctx, transaction, whatsappID)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (ur *userRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = ur.db
	}

	var results []*types.User
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
