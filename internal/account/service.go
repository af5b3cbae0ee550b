// Package account owns marketplace users: sign up, sign in, passwords and
// public profiles.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/souqlab/souq/internal/domain"
	"github.com/souqlab/souq/pkg/common"
)

var (
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserDisabled       = errors.New("account disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordMismatch   = errors.New("new passwords don't match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes long")
)

// CustomerCreator creates a payment provider customer
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, email, name string) (string, error)
}

// ProfileInput carries the fields to change; nil fields keep their value
type ProfileInput struct {
	FullName  *string `json:"full_name" validate:"omitempty,max=200"`
	AvatarUrl *string `json:"avatar_url" validate:"omitempty,max=1024"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Address   *string `json:"address" validate:"omitempty,max=1000"`
}

type Service struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, validate: validator.New()}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates the user and its profile in one transaction
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*domain.AppUser, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}
	hash, err := common.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	now := time.Now()
	user := &domain.AppUser{
		ID:        common.UUIDint64(),
		Email:     email,
		Password:  hash,
		Status:    common.ENABLED,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.AppUser{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return tx.Create(&domain.UserProfile{
			ID:        user.ID,
			FullName:  strings.TrimSpace(fullName),
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, errors.Wrap(err, "sign up")
	}
	return user, nil
}

// SignIn checks the credentials and stamps last_login
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.AppUser, error) {
	var user domain.AppUser
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, errors.Wrap(err, "sign in")
	}
	if !common.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == common.DISABLED {
		return nil, ErrUserDisabled
	}
	now := time.Now()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&domain.AppUser{}).Where("id = ?", user.ID).
		Update("last_login", now).Error; err != nil {
		return nil, errors.Wrap(err, "update last login")
	}
	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.AppUser, error) {
	var user domain.AppUser
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return &user, errors.Wrap(err, "get user")
}

func checkPasswordLength(password string) error {
	switch {
	case len(password) < common.MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > common.MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword, confirm string) error {
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}
	hash, err := common.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	res := s.db.WithContext(ctx).Model(&domain.AppUser{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"password": hash, "updated_at": time.Now()})
	if res.Error != nil {
		return errors.Wrap(res.Error, "change password")
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetProfile returns nil without error when the user has no profile yet
func (s *Service) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return &p, nil
}

// UpsertProfile creates the profile or changes the given fields
func (s *Service) UpsertProfile(ctx context.Context, userID int64, in ProfileInput) (*domain.UserProfile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if p == nil {
		p = &domain.UserProfile{ID: userID, CreatedAt: now}
	}
	if in.FullName != nil {
		p.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.AvatarUrl != nil {
		p.AvatarUrl = strings.TrimSpace(*in.AvatarUrl)
	}
	if in.Phone != nil {
		p.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		p.Address = strings.TrimSpace(*in.Address)
	}
	p.UpdatedAt = now
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, errors.Wrap(err, "upsert profile")
	}
	return p, nil
}

// EnsureStripeCustomer creates the provider customer on first use
func (s *Service) EnsureStripeCustomer(ctx context.Context, userID int64, cc CustomerCreator) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerId != "" {
		return user.StripeCustomerId, nil
	}
	name := ""
	if p, _ := s.GetProfile(ctx, userID); p != nil {
		name = p.FullName
	}
	id, err := cc.CreateCustomer(ctx, user.Email, name)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&domain.AppUser{}).Where("id = ?", userID).
		Update("stripe_customer_id", id).Error; err != nil {
		return "", errors.Wrap(err, "save customer id")
	}
	return id, nil
}

// Emails resolves user ids to email addresses, unknown ids are skipped
func (s *Service) Emails(ctx context.Context, ids ...int64) (map[int64]string, error) {
	var users []domain.AppUser
	if err := s.db.WithContext(ctx).Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "lookup emails")
	}
	out := make(map[int64]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Email
	}
	return out, nil
}

// Audit appends an action to the audit trail; failures are returned, not fatal
func (s *Service) Audit(ctx context.Context, who, ip, action, desc string) error {
	return s.db.WithContext(ctx).Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   who,
		OprIp:     ip,
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}).Error
}
