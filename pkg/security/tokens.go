package security

import (
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// SessionTTL is how long a login session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

// ErrInvalidToken is the only failure a caller sees from Parse: signature,
// expiry and claim problems are deliberately indistinguishable.
var ErrInvalidToken = errors.New("security: invalid or expired token")

const purposeClaim = "purpose"

// Signer issues and verifies HMAC-signed time-boxed tokens. Session tokens
// carry only sub/iat/exp; single-use tokens add a purpose claim so an
// enrolment token can never be replayed as a password-reset token.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// IssueSession returns a 30-day bearer token for the account. The caller is
// responsible for recording it in the account's active-token set.
func (s *Signer) IssueSession(accountID string) (string, error) {
	return s.issue(accountID, "", SessionTTL)
}

// IssueSingleUse returns a short-lived token bound to purpose.
func (s *Signer) IssueSingleUse(accountID, purpose string, ttl time.Duration) (string, error) {
	return s.issue(accountID, purpose, ttl)
}

func (s *Signer) issue(accountID, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	b := jwt.NewBuilder().
		Subject(accountID).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if purpose != "" {
		b = b.Claim(purposeClaim, purpose)
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Parse verifies signature and expiry and returns the subject account id and
// the purpose claim ("" for session tokens). Every failure mode collapses to
// ErrInvalidToken.
func (s *Signer) Parse(raw string) (accountID, purpose string, err error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	sub := tok.Subject()
	if sub == "" {
		return "", "", ErrInvalidToken
	}
	if v, ok := tok.Get(purposeClaim); ok {
		purpose, _ = v.(string)
	}
	return sub, purpose, nil
}
