package xid

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of generated item codes.
const CodeLength = 6

func New() string {
	return uuid.NewString()
}

// ItemCode returns a random uppercase alphanumeric code for labels and lookup.
func ItemCode() string {
	buf := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to uuid entropy.
			return fallbackCode()
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}

func fallbackCode() string {
	id := uuid.New()
	buf := make([]byte, CodeLength)
	for i := range buf {
		buf[i] = codeAlphabet[int(id[i])%len(codeAlphabet)]
	}
	return string(buf)
}

func ValidCode(code string) bool {
	if len(code) == 0 || len(code) > 32 {
		return false
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
