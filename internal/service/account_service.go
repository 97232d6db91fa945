package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/qcom/accounts/internal/models"
	"github.com/qcom/accounts/internal/notify"
	"github.com/qcom/accounts/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	msgPhoneTaken          = "Phone number already registered and verified"
	msgEmailTaken          = "Email already registered and verified"
	msgUserNotFound        = "User not found"
	msgPhoneVerified       = "Phone already verified"
	msgEmailVerified       = "Email already verified"
	msgNoOTP               = "No OTP found"
	msgOTPExpired          = "OTP expired"
	msgInvalidOTP          = "Invalid OTP"
	msgInvalidOrExpiredTok = "Invalid or expired token"
	msgInvalidToken        = "Invalid token"
	msgTokenExpired        = "Token expired"
	msgBadLogin            = "Invalid phone number or password"
	msgPhoneNotVerified    = "Phone number not verified"
	msgNoUserWithPhone     = "User not found with this phone number"
	msgWrongPassword       = "Current password is incorrect"
)

// CodeGenerator produces one-time codes.
type CodeGenerator interface {
	Generate() (string, error)
}

type AccountConfig struct {
	OTPExpiry time.Duration
	// VerifyURL is the public base under which /verify-email is served.
	VerifyURL string
}

type RegisterInput struct {
	FullName string
	Phone    string
	Email    string
	Password string
}

type LoginResult struct {
	Token   string
	Account models.AccountSummary
}

// AccountService runs the account lifecycle: registration, phone and email
// verification, login and password management. Every operation is a
// read-modify-write against the store with no locking of its own.
type AccountService struct {
	store    repository.AccountStore
	hasher   PasswordHasher
	codes    CodeGenerator
	tokens   *JWTService
	notifier notify.Notifier
	cfg      AccountConfig
	now      func() time.Time
	logger   *logrus.Logger
}

func NewAccountService(
	store repository.AccountStore,
	hasher PasswordHasher,
	codes CodeGenerator,
	tokens *JWTService,
	notifier notify.Notifier,
	cfg AccountConfig,
	logger *logrus.Logger,
) *AccountService {
	if cfg.OTPExpiry <= 0 {
		cfg.OTPExpiry = 5 * time.Minute
	}
	return &AccountService{
		store:    store,
		hasher:   hasher,
		codes:    codes,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source used for OTP expiry.
func (s *AccountService) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates an account, or takes over a pending one matching the phone
// or email, and sends fresh phone and email verification challenges.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (string, error) {
	existing, err := s.store.FindVerifiedByPhone(ctx, in.Phone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fail(ErrConflict, msgPhoneTaken)
	}

	existing, err = s.store.FindVerifiedByEmail(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fail(ErrConflict, msgEmailTaken)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}

	account, err := s.store.FindPending(ctx, in.Phone, in.Email)
	if err != nil {
		return "", err
	}
	if account != nil {
		account.FullName = in.FullName
		account.PasswordHash = hash
		// Contact fields that are still unverified follow the latest
		// registration so the new challenges reach the submitted addresses.
		if !account.PhoneVerified {
			account.Phone = in.Phone
		}
		if !account.EmailVerified {
			account.Email = in.Email
		}
	} else {
		account = &models.Account{
			ID:           uuid.New().String(),
			FullName:     in.FullName,
			Phone:        in.Phone,
			Email:        in.Email,
			PasswordHash: hash,
		}
	}

	// A pending record matched by email may already own a verified phone.
	var code string
	if !account.PhoneVerified {
		if code, err = s.issuePhoneOTP(account); err != nil {
			return "", err
		}
	}
	token, err := s.issueEmailToken(account, account.Email)
	if err != nil {
		return "", err
	}

	if err := s.store.Save(ctx, account); err != nil {
		return "", err
	}

	s.logger.WithField("account_id", account.ID).Info("Account registered")

	if code != "" {
		s.sendPhoneOTP(ctx, account.Phone, code)
	}
	s.sendEmailVerification(ctx, account.Email, token)

	return account.ID, nil
}

func (s *AccountService) VerifyPhone(ctx context.Context, accountID, code string) error {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if account.PhoneVerified {
		return fail(ErrAlreadyVerified, msgPhoneVerified)
	}
	if err := s.checkOTP(account.PhoneOTP, code); err != nil {
		return err
	}

	account.PhoneVerified = true
	account.PhoneOTP = nil
	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.logger.WithField("account_id", account.ID).Info("Phone verified")
	return nil
}

func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.VerifyToken(token, TokenTypeEmailVerification)
	if err != nil {
		s.logger.WithError(err).Debug("Email token rejected")
		return fail(ErrInvalid, msgInvalidOrExpiredTok)
	}

	account, err := s.load(ctx, claims.AccountID)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return fail(ErrAlreadyVerified, msgEmailVerified)
	}
	if account.EmailToken == nil || account.EmailToken.Token != token {
		return fail(ErrInvalid, msgInvalidToken)
	}
	if account.EmailToken.Expired(s.now()) {
		return fail(ErrExpired, msgTokenExpired)
	}

	account.EmailVerified = true
	account.EmailToken = nil
	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.logger.WithField("account_id", account.ID).Info("Email verified")
	return nil
}

// Login authenticates by phone and password. Only phone verification gates
// login.
func (s *AccountService) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	account, err := s.store.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if account == nil || !s.hasher.Compare(password, account.PasswordHash) {
		return nil, fail(ErrUnauthorized, msgBadLogin)
	}
	if !account.PhoneVerified {
		return nil, fail(ErrUnauthorized, msgPhoneNotVerified)
	}

	token, err := s.tokens.IssueSessionToken(account.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, Account: account.Summary()}, nil
}

func (s *AccountService) ForgotPassword(ctx context.Context, phone string) (string, error) {
	account, err := s.store.GetByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", fail(ErrNotFound, msgNoUserWithPhone)
	}
	if !account.PhoneVerified {
		return "", fail(ErrBadRequest, msgPhoneNotVerified)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}
	account.ResetOTP = &models.OTP{Code: code, ExpiresAt: s.now().Add(s.cfg.OTPExpiry)}

	if err := s.store.Save(ctx, account); err != nil {
		return "", err
	}

	s.notifier.Notify(ctx, notify.Message{
		Channel: notify.ChannelSMS,
		To:      phone,
		Body:    fmt.Sprintf("Your password reset OTP is: %s. It expires in %s.", code, humanize(s.cfg.OTPExpiry)),
	})

	return account.ID, nil
}

// ResetPassword replaces the password using a reset OTP; the old password is
// not required.
func (s *AccountService) ResetPassword(ctx context.Context, accountID, code, newPassword string) error {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.checkOTP(account.ResetOTP, code); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	account.ResetOTP = nil

	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.logger.WithField("account_id", account.ID).Info("Password reset")
	return nil
}

func (s *AccountService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fail(ErrUnauthorized, msgUserNotFound)
	}
	if !s.hasher.Compare(currentPassword, account.PasswordHash) {
		return fail(ErrUnauthorized, msgWrongPassword)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	account.PasswordHash = hash

	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.logger.WithField("account_id", account.ID).Info("Password changed")
	return nil
}

func (s *AccountService) ResendPhoneOTP(ctx context.Context, accountID string) error {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if account.PhoneVerified {
		return fail(ErrAlreadyVerified, msgPhoneVerified)
	}

	code, err := s.issuePhoneOTP(account)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.sendPhoneOTP(ctx, account.Phone, code)
	return nil
}

func (s *AccountService) ResendEmailVerification(ctx context.Context, accountID string) error {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return fail(ErrAlreadyVerified, msgEmailVerified)
	}

	token, err := s.issueEmailToken(account, account.Email)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, account); err != nil {
		return err
	}

	s.sendEmailVerification(ctx, account.Email, token)
	return nil
}

func (s *AccountService) Profile(ctx context.Context, accountID string) (*models.AccountSummary, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	summary := account.Summary()
	return &summary, nil
}

func (s *AccountService) load(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fail(ErrNotFound, msgUserNotFound)
	}
	return account, nil
}

func (s *AccountService) checkOTP(otp *models.OTP, code string) error {
	if otp == nil || otp.Code == "" {
		return fail(ErrInvalid, msgNoOTP)
	}
	if otp.Expired(s.now()) {
		return fail(ErrExpired, msgOTPExpired)
	}
	if otp.Code != code {
		return fail(ErrInvalid, msgInvalidOTP)
	}
	return nil
}

func (s *AccountService) issuePhoneOTP(account *models.Account) (string, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}
	account.PhoneOTP = &models.OTP{Code: code, ExpiresAt: s.now().Add(s.cfg.OTPExpiry)}
	return code, nil
}

func (s *AccountService) issueEmailToken(account *models.Account, email string) (string, error) {
	token, expiresAt, err := s.tokens.IssueEmailToken(account.ID, email)
	if err != nil {
		return "", err
	}
	account.EmailToken = &models.EmailToken{Token: token, ExpiresAt: expiresAt}
	return token, nil
}

func (s *AccountService) sendPhoneOTP(ctx context.Context, phone, code string) {
	s.notifier.Notify(ctx, notify.Message{
		Channel: notify.ChannelSMS,
		To:      phone,
		Body:    fmt.Sprintf("Your verification code is: %s. It expires in %s.", code, humanize(s.cfg.OTPExpiry)),
	})
}

func (s *AccountService) sendEmailVerification(ctx context.Context, email, token string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.VerifyURL, url.QueryEscape(token))
	s.notifier.Notify(ctx, notify.Message{
		Channel: notify.ChannelEmail,
		To:      email,
		Subject: "Verify your email",
		Body:    "Please verify your email by clicking on this link: " + link,
	})
}

func humanize(d time.Duration) string {
	if d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
