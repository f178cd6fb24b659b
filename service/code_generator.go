package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// CodeAlphabet is the character set referral codes are drawn from
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator produces candidate referral code suffixes
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodeGenerator struct {
	length int
}

// NewCodeGenerator creates a generator of uniformly random codes of the given length
func NewCodeGenerator(length int) CodeGenerator {
	return &randomCodeGenerator{length: length}
}

// Generate draws each character uniformly from CodeAlphabet
func (g *randomCodeGenerator) Generate() (string, error) {
	alphabetSize := big.NewInt(int64(len(CodeAlphabet)))

	var sb strings.Builder
	sb.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		sb.WriteByte(CodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// IsTaken reports whether some user already holds the code
func IsTaken(ctx context.Context, users UserRepository, code string) (bool, error) {
	holder, err := users.GetByReferralCode(ctx, code)
	if err != nil {
		return false, err
	}
	return holder != nil, nil
}

// CodePrefix derives the code prefix from the first word of a display name
func CodePrefix(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// FormatCode joins a prefix and a generated suffix
func FormatCode(prefix, suffix string) string {
	return prefix + "-" + suffix
}
