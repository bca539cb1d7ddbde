package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/mail"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/security"
)

var (
	ErrMissingCredentials   = errors.New("email and password are required")
	ErrInvalidInput         = errors.New("invalid registration data")
	ErrEmailTaken           = errors.New("user already exists with this email")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrMailDelivery         = errors.New("failed to send verification email")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrBanned               = errors.New("account is banned")
	ErrVerificationRequired = errors.New("email not verified")
	ErrInvalidToken         = errors.New("invalid or expired refresh token")
)

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

type RegisterResult struct {
	User      *models.User
	EmailSent bool
}

// Session is a signed-in user with a fresh token pair.
type Session struct {
	security.TokenPair
	User *models.User
}

// Service owns registration, OTP verification and token issuance.
type Service struct {
	users    repository.UserRepository
	tokens   *security.TokenIssuer
	notifier mail.Notifier
	now      func() time.Time
}

func NewService(users repository.UserRepository, tokens *security.TokenIssuer, notifier mail.Notifier) *Service {
	return &Service{users: users, tokens: tokens, notifier: notifier, now: time.Now}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	if taken, err := s.emailTaken(email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if name := strings.TrimSpace(in.Username); name != "" {
		_, err := s.users.GetByUsername(name)
		if err == nil {
			return nil, ErrUsernameTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := models.NewUser(email, in.Password, in.FirstName, in.LastName, in.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	code, err := security.GenerateOTP()
	if err != nil {
		return nil, err
	}
	user.SetVerificationCode(code, s.now())

	if err := s.users.Create(user); err != nil {
		// lost a race on the unique index
		if taken, _ := s.emailTaken(email); taken {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	res := &RegisterResult{User: user, EmailSent: true}
	if err := s.notifier.SendVerification(ctx, user.Email, firstNameOr(user), code); err != nil {
		log.Errorf("[Account] Failed to send verification email to %s: %v", user.Email, err)
		res.EmailSent = false
	} else {
		log.Infof("[Account] Verification email sent to %s", user.Email)
	}
	return res, nil
}

// VerifyEmail consumes the OTP and signs the user in.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*Session, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return nil, ErrMissingCredentials
	}
	user, err := s.byEmail(email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if !user.IsVerificationCodeValid(code, s.now()) {
		return nil, ErrInvalidCode
	}

	user.MarkVerified()
	if err := s.users.Update(user); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}

	if err := s.notifier.SendWelcome(ctx, user.Email, firstNameOr(user)); err != nil {
		log.Errorf("[Account] Failed to send welcome email to %s: %v", user.Email, err)
	}
	return s.session(user)
}

// ResendOTP replaces the pending code; unlike Register a mail failure is reported.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingCredentials
	}
	user, err := s.byEmail(email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return err
	}
	user.SetVerificationCode(code, s.now())
	if err := s.users.Update(user); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if err := s.notifier.SendVerification(ctx, user.Email, firstNameOr(user), code); err != nil {
		log.Errorf("[Account] Failed to resend verification email to %s: %v", user.Email, err)
		return fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	user, err := s.users.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if user.IsBanned() {
		return nil, ErrBanned
	}
	if !user.IsVerified {
		return nil, ErrVerificationRequired
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.Update(user); err != nil {
		log.Warnf("[Account] Failed to stamp last login for user %d: %v", user.ID, err)
	}
	return s.session(user)
}

// Refresh trades a refresh token for a new pair carrying the user's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*security.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.Parse(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.Me(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBanned() {
		return nil, ErrBanned
	}
	return s.tokens.Issue(user.ID, user.Role)
}

func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) session(user *models.User) (*Session, error) {
	pair, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{TokenPair: *pair, User: user}, nil
}

func (s *Service) byEmail(email string) (*models.User, error) {
	user, err := s.users.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) emailTaken(email string) (bool, error) {
	_, err := s.users.GetByEmail(email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func firstNameOr(u *models.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}
