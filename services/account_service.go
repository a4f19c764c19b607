package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/utils"
)

// NewUserInput is the payload for creating an account.
type NewUserInput struct {
	Username   string
	Email      string
	FullName   string
	Department string
	Password   string
	Role       models.Role
}

// Preferences are the per-user notification opt-ins.
type Preferences struct {
	NotifyByEmailOnStatusChange bool `json:"notify_by_email_on_status_change"`
	NotifyInAppOnStatusChange   bool `json:"notify_in_app_on_status_change"`
}

// AccountService manages users, credentials and notification preferences.
type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	if db == nil {
		db = config.DB
	}
	return &AccountService{db: db}
}

// Authenticate checks credentials and records the login as activity.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil || !utils.CheckPasswordHash(password, user.Password) {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrPersistence(err, "failed to load user")
		}
		return nil, utils.NewError(utils.CodeUnauthorized, "Invalid email or password")
	}
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_activity", now).Error; err != nil {
		config.L().Warn("failed to record last activity", zap.Uint("user_id", user.UserID), zap.Error(err))
	}
	user.LastActivity = &now
	return &user, nil
}

func (s *AccountService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound("user")
	}
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load user")
	}
	return &user, nil
}

// Create adds an account on behalf of an administrator.
func (s *AccountService) Create(ctx context.Context, actor Actor, in NewUserInput) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, utils.ErrForbidden("only administrators can create accounts")
	}
	return s.create(ctx, in)
}

// Bootstrap creates an administrator without an acting user. Used by cmd/create-admin.
func (s *AccountService) Bootstrap(ctx context.Context, in NewUserInput) (*models.User, error) {
	in.Role = models.RoleAdmin
	return s.create(ctx, in)
}

func (s *AccountService) create(ctx context.Context, in NewUserInput) (*models.User, error) {
	in.Email = strings.ToLower(utils.SanitizeInput(in.Email))
	in.Username = utils.SanitizeInput(in.Username)
	if in.Username == "" {
		in.Username = strings.SplitN(in.Email, "@", 2)[0]
	}

	errs := utils.FieldErrors{}
	if !utils.ValidateEmail(in.Email) {
		errs.Add("email", "Enter a valid email address")
	}
	if ok, msg := utils.ValidatePassword(in.Password); !ok {
		errs.Add("password", msg)
	}
	if !in.Role.Valid() {
		errs.Add("role", "Role must be faculty or admin")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ? OR username = ?", in.Email, in.Username).
		Count(&count).Error; err != nil {
		return nil, utils.ErrPersistence(err, "failed to check existing users")
	}
	if count > 0 {
		return nil, utils.ErrConflict("a user with this email or username already exists")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternal, "failed to hash password")
	}
	user := models.User{
		Username:                    in.Username,
		Email:                       in.Email,
		FullName:                    utils.SanitizeInput(in.FullName),
		Department:                  utils.SanitizeInput(in.Department),
		Password:                    hash,
		Role:                        in.Role,
		NotifyByEmailOnStatusChange: true,
		NotifyInAppOnStatusChange:   true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.ErrPersistence(err, "failed to create user")
	}
	config.L().Info("user created", zap.Uint("user_id", user.UserID), zap.String("role", string(user.Role)))
	return &user, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(current, user.Password) {
		return utils.ErrValidation("current_password", "Current password is incorrect")
	}
	if ok, msg := utils.ValidatePassword(next); !ok {
		return utils.ErrValidation("new_password", msg)
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return utils.WrapError(err, utils.CodeInternal, "failed to hash password")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		return utils.ErrPersistence(err, "failed to update password")
	}
	return nil
}

// UpdatePreferences stores both opt-in flags. Explicit columns are used so false is written.
func (s *AccountService) UpdatePreferences(ctx context.Context, userID uint, p Preferences) (*models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"notify_by_email_on_status_change": p.NotifyByEmailOnStatusChange,
		"notify_in_app_on_status_change":   p.NotifyInAppOnStatusChange,
	})
	if res.Error != nil {
		return nil, utils.ErrPersistence(res.Error, "failed to update preferences")
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, userID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID)
}
