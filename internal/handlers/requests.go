package handlers

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)

	passwordClasses = []*regexp.Regexp{
		regexp.MustCompile(`[a-z]`),
		regexp.MustCompile(`[A-Z]`),
		regexp.MustCompile(`[0-9]`),
		regexp.MustCompile(`[!@#$%^&*]`),
	}

	errWeakPassword = errors.New("must contain at least one lowercase letter, one uppercase letter, one number, and one special character")
)

// strongPassword requires one character from each password class. Empty
// values are left to validation.Required.
func strongPassword(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	for _, class := range passwordClasses {
		if !class.MatchString(s) {
			return errWeakPassword
		}
	}
	return nil
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(12, 0),
		validation.By(strongPassword),
	}
}

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.RuneLength(2, 50)),
		validation.Field(&r.Phone, validation.Required, validation.Match(phonePattern)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, passwordRules()...),
	)
}

type VerifyPhoneRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

func (r VerifyPhoneRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.OTP, validation.Required),
	)
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required, validation.Match(phonePattern)),
		validation.Field(&r.Password, validation.Required),
	)
}

type ForgotPasswordRequest struct {
	Phone string `json:"phone"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required),
	)
}

type ResetPasswordRequest struct {
	UserID      string `json:"userId"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.OTP, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	)
}

// ResendRequest is the body of both resend endpoints.
type ResendRequest struct {
	UserID string `json:"userId"`
}

func (r ResendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
	)
}
