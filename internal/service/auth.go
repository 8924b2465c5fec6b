package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_auction/internal/events"
	"github.com/Skotchmaster/online_auction/internal/hash"
	"github.com/Skotchmaster/online_auction/internal/logging"
	"github.com/Skotchmaster/online_auction/internal/models"
	"github.com/Skotchmaster/online_auction/internal/repo"
	"github.com/Skotchmaster/online_auction/internal/tokens"
)

const (
	minPasswordLen = 7
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
	specialChars     = `!@#$%^&*(),.?":{}|<>`
)

type AuthService struct {
	Repo          *repo.GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
	Events        events.Publisher
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	UserID       uint
	Username     string
	Role         string
}

func (r *LoginResult) IsAdmin() bool { return r.Role == models.RoleAdmin }

type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            string
}

// ValidatePassword enforces the registration policy: at least 7 characters,
// one digit and one special character, and no more than 72 bytes.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long: %w", minPasswordLen, ErrValidation)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long: %w", maxPasswordBytes, ErrValidation)
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return fmt.Errorf("password must contain at least one digit: %w", ErrValidation)
	}
	if !strings.ContainsAny(password, specialChars) {
		return fmt.Errorf("password must contain at least one special character: %w", ErrValidation)
	}
	return nil
}

func ValidRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleBuyer
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", ErrValidation)
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match: %w", ErrValidation)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("role must be %s or %s: %w", models.RoleAdmin, models.RoleBuyer, ErrValidation)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         in.Role,
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, fmt.Errorf("username %q is taken: %w", username, ErrConflict)
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserEvent{
		Type:     events.UserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		At:       time.Now().UTC(),
	})
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown user")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	res, err := s.issue(ctx, user, "")
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	return res, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked in the same transaction that stores its successor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "bad token", "error", err)
		return nil, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.Repo.FindRefreshByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if stored.Token != tokens.Sha256Hex(refreshToken) || stored.UserID != userID {
		l.Warn("refresh_failed", "status", 401, "reason", "token mismatch")
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	res, err := s.issue(ctx, user, claims.ID)
	if err != nil {
		if errors.Is(err, repo.ErrRefreshUnusable) {
			l.Warn("refresh_failed", "status", 401, "reason", "token expired or revoked")
			return nil, ErrInvalidRefreshToken
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}
	return res, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefresh(ctx, refreshToken)
}

// issue signs a token pair for user. When oldJTI is set the previous refresh
// token is rotated out, otherwise the new one is simply stored.
func (s *AuthService) issue(ctx context.Context, user *models.User, oldJTI string) (*LoginResult, error) {
	now := time.Now()
	accessExp := now.Add(tokens.AccessTTL)
	refreshExp := now.Add(tokens.RefreshTTL)

	access, err := tokens.SignAccessToken(user.ID, user.Username, user.Role, accessExp, s.JWTSecret)
	if err != nil {
		return nil, err
	}
	jti := tokens.NewJTI()
	refresh, err := tokens.SignRefreshToken(user.ID, jti, refreshExp, s.RefreshSecret)
	if err != nil {
		return nil, err
	}

	row := models.RefreshToken{
		Token:     tokens.Sha256Hex(refresh),
		JTI:       jti,
		UserID:    user.ID,
		ExpiresAt: refreshExp.Unix(),
	}
	if oldJTI == "" {
		err = s.Repo.AddRefresh(ctx, row)
	} else {
		err = s.Repo.RotateRefreshToken(ctx, oldJTI, row)
	}
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, ev events.UserEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, events.TopicUsers, strconv.FormatUint(uint64(ev.UserID), 10), ev); err != nil {
		logging.FromContext(ctx).Warn("publish_error", "topic", events.TopicUsers, "error", err)
	}
}
