package models

import "time"

// OTP is an outstanding one-time code.
type OTP struct {
	Code      string    `json:"code" dynamodbav:"code" bson:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at" bson:"expiresAt"`
}

// Expired is true at and after ExpiresAt.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// EmailToken is an outstanding email verification token.
type EmailToken struct {
	Token     string    `json:"token" dynamodbav:"token" bson:"token"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at" bson:"expiresAt"`
}

func (t *EmailToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
