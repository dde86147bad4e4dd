package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"strings"
)

// Backup code alphabet excludes ambiguous characters (0/O, 1/I/L).
const backupAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateBackupCodes returns count single-use recovery codes of the
// given length, formatted with a hyphen in the middle for readability.
func GenerateBackupCodes(count, length int) ([]string, error) {
	if count < 1 || length < 8 {
		return nil, errors.New("invalid backup code parameters")
	}

	codes := make([]string, count)
	buf := make([]byte, length)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		chars := make([]byte, length)
		for j, b := range buf {
			chars[j] = backupAlphabet[int(b)%len(backupAlphabet)]
		}
		half := length / 2
		codes[i] = string(chars[:half]) + "-" + string(chars[half:])
	}
	return codes, nil
}

// CanonicalizeBackupCode normalizes user input before hashing: uppercase
// with separators and whitespace stripped, so "abcde-fghjk" and
// "ABCDEFGHJK" hash identically.
func CanonicalizeBackupCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		switch r {
		case '-', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HashBackupCode derives the stored digest of a canonical code, salted
// with the account id so identical codes on different accounts do not
// collide at rest.
func HashBackupCode(accountID, canonicalCode string) [32]byte {
	return sha256.Sum256([]byte(accountID + ":" + canonicalCode))
}
