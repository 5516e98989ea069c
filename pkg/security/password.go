// Package security holds the credential primitives: salted password hashing
// and the signed bearer tokens used for sessions, enrolment and password
// resets.
package security

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a salted bcrypt digest. The digest is stored, never
// returned to clients.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored digest.
func VerifyPassword(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
