package models

import (
	"time"
)

// Account is the persisted user record. Only verified phone and email values
// are unique; unverified duplicates may coexist.
type Account struct {
	ID            string      `json:"id" dynamodbav:"id" bson:"_id"`
	FullName      string      `json:"fullName" dynamodbav:"full_name" bson:"fullName"`
	Phone         string      `json:"phone" dynamodbav:"phone" bson:"phone"`
	Email         string      `json:"email" dynamodbav:"email" bson:"email"`
	PasswordHash  string      `json:"-" dynamodbav:"password_hash" bson:"passwordHash"`
	PhoneVerified bool        `json:"phoneVerified" dynamodbav:"phone_verified" bson:"phoneVerified"`
	EmailVerified bool        `json:"emailVerified" dynamodbav:"email_verified" bson:"emailVerified"`
	PhoneOTP      *OTP        `json:"-" dynamodbav:"phone_otp,omitempty" bson:"phoneOtp,omitempty"`
	EmailToken    *EmailToken `json:"-" dynamodbav:"email_token,omitempty" bson:"emailToken,omitempty"`
	ResetOTP      *OTP        `json:"-" dynamodbav:"reset_otp,omitempty" bson:"resetOtp,omitempty"`
	CreatedAt     time.Time   `json:"createdAt" dynamodbav:"created_at" bson:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt" dynamodbav:"updated_at" bson:"updatedAt"`
}

func (a *Account) GetPK() string {
	return "ACCOUNT#" + a.ID
}

func (a *Account) GetSK() string {
	return "METADATA"
}

// FullyVerified reports whether both phone and email have been confirmed.
func (a *Account) FullyVerified() bool {
	return a.PhoneVerified && a.EmailVerified
}

// AccountSummary is the client-facing view of an account.
type AccountSummary struct {
	ID            string    `json:"id"`
	FullName      string    `json:"fullName"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	PhoneVerified bool      `json:"phoneVerified"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:            a.ID,
		FullName:      a.FullName,
		Phone:         a.Phone,
		Email:         a.Email,
		PhoneVerified: a.PhoneVerified,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.PhoneOTP != nil {
		otp := *a.PhoneOTP
		c.PhoneOTP = &otp
	}
	if a.EmailToken != nil {
		tok := *a.EmailToken
		c.EmailToken = &tok
	}
	if a.ResetOTP != nil {
		otp := *a.ResetOTP
		c.ResetOTP = &otp
	}
	return &c
}
