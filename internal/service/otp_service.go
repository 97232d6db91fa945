package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// OTPGenerator produces fixed-length numeric one-time codes.
type OTPGenerator struct {
	length int
}

func NewOTPGenerator(length int) *OTPGenerator {
	if length <= 0 {
		length = 6
	}
	return &OTPGenerator{length: length}
}

func (g *OTPGenerator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate OTP: %w", err)
		}
		b.WriteString(num.String())
	}
	return b.String(), nil
}
