// Package store is the persistence boundary: a document-style repository over
// the accounts collection and the IdP resource graph (service providers,
// IdP-local users, attributes, access logs). Two implementations exist, one
// backed by PostgreSQL and one in-memory for tests and DB-less dev.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no document matches.
var ErrNotFound = errors.New("store: not found")

// TokenPurpose names the single-slot token fields on an account. Login
// tokens are a set and are handled by the *LoginToken methods instead.
type TokenPurpose string

const (
	PurposeEnrolment     TokenPurpose = "enrolment"
	PurposePasswordReset TokenPurpose = "password_reset"
)

type Account struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Subscriptions []string

	// Active bearer sessions: a set, so concurrent logins coexist and
	// logout revokes one entry.
	LoginTokens []string
	// Single-slot tokens: issuing a new one supersedes the previous.
	EnrolToken string
	ResetToken string

	CreatedAt  time.Time
	LastSeenAt time.Time
}

// IdP is owned by at most one account. An empty AccountID means the IdP is
// unclaimed and publicly manageable until someone claims it.
type IdP struct {
	ID          string
	AccountID   string
	Name        string
	Code        string
	Certificate string
	PrivateKey  string
	CreatedAt   time.Time
}

type ServiceProvider struct {
	ID                 string
	IdPID              string
	Name               string
	Kind               string
	EntityID           string
	ServiceURL         string
	CallbackURL        string
	LogoutURL          string
	LogoutCallbackURL  string
	OAuth2ClientID     string
	OAuth2ClientSecret string
	OAuth2RedirectURI  string
	CreatedAt          time.Time
}

type IdPUser struct {
	ID           string
	IdPID        string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Attributes   map[string]string
	CreatedAt    time.Time
}

type Attribute struct {
	ID           string
	IdPID        string
	Name         string
	DefaultValue string
	SAMLMapping  string
	CreatedAt    time.Time
}

// AccessLog entries are appended by the protocol engine (a separate service)
// and only read here. SPName is filled in by the SP-name join at query time
// and is never stored.
type AccessLog struct {
	ID        string
	IdPID     string
	SPID      string
	Payload   map[string]any
	CreatedAt time.Time
	SPName    string
}

type Store interface {
	// Accounts.
	CreateAccount(ctx context.Context, a *Account) error
	AccountByID(ctx context.Context, id string) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccountProfile(ctx context.Context, id, firstName, lastName, email string) error
	DeleteAccount(ctx context.Context, id string) error

	// SetPassword stores a new hash and, when clear is non-empty, unsets
	// that single-slot token in the same update (strict one-time use).
	SetPassword(ctx context.Context, id, hash string, clear TokenPurpose) error

	// Login-token set.
	AddLoginToken(ctx context.Context, id, token string) error
	RemoveLoginToken(ctx context.Context, id, token string) error
	// AccountByLoginToken requires the token to still be present in the
	// account's set, which is what makes server-side revocation work.
	AccountByLoginToken(ctx context.Context, id, token string) (*Account, error)
	TouchLastSeen(ctx context.Context, id string) error

	// Single-slot tokens.
	SetSingleUseToken(ctx context.Context, id string, purpose TokenPurpose, token string) error
	AccountBySingleUseToken(ctx context.Context, id string, purpose TokenPurpose, token string) (*Account, error)

	// IdPs.
	CreateIdP(ctx context.Context, p *IdP) error
	IdPByID(ctx context.Context, id string) (*IdP, error)
	// CodeInUse checks uniqueness of the issuer code, optionally excluding
	// one IdP (for updates).
	CodeInUse(ctx context.Context, code, excludeID string) (bool, error)
	// ListIdPs returns the union of IdPs owned by accountID (when set) and
	// unclaimed IdPs whose id is listed in includeIDs.
	ListIdPs(ctx context.Context, accountID string, includeIDs []string) ([]IdP, error)
	IdPsByAccount(ctx context.Context, accountID string) ([]IdP, error)
	UpdateIdP(ctx context.Context, id, name, code string) error
	DeleteIdP(ctx context.Context, id string) error
	DeleteIdPsByAccount(ctx context.Context, accountID string) error
	// ClaimIdPs transfers every listed IdP that is currently unclaimed to
	// accountID in one conditional bulk update; already-owned IdPs are
	// silently skipped. Returns the number of IdPs claimed.
	ClaimIdPs(ctx context.Context, ids []string, accountID string) (int64, error)

	// Service providers.
	CreateSP(ctx context.Context, sp *ServiceProvider) error
	SPByID(ctx context.Context, id string) (*ServiceProvider, error)
	SPsByIdP(ctx context.Context, idpID string) ([]ServiceProvider, error)
	// UpdateSP replaces the relying-party config fields; the client id and
	// secret are never written by updates.
	UpdateSP(ctx context.Context, sp *ServiceProvider) error
	DeleteSP(ctx context.Context, id string) error
	DeleteSPsByIdP(ctx context.Context, idpID string) error

	// IdP-local users.
	CreateIdPUser(ctx context.Context, u *IdPUser) error
	IdPUserByID(ctx context.Context, id string) (*IdPUser, error)
	IdPUsersByIdP(ctx context.Context, idpID string) ([]IdPUser, error)
	UpdateIdPUser(ctx context.Context, u *IdPUser) error
	DeleteIdPUser(ctx context.Context, id string) error
	DeleteIdPUsersByIdP(ctx context.Context, idpID string) error

	// Attributes.
	CreateAttribute(ctx context.Context, at *Attribute) error
	AttributeByID(ctx context.Context, id string) (*Attribute, error)
	AttributesByIdP(ctx context.Context, idpID string) ([]Attribute, error)
	UpdateAttribute(ctx context.Context, at *Attribute) error
	DeleteAttribute(ctx context.Context, id string) error
	DeleteAttributesByIdP(ctx context.Context, idpID string) error

	// Access logs. Inserts are the protocol engine's write surface; reads
	// return the newest entries first.
	InsertSAMLLog(ctx context.Context, l *AccessLog) error
	InsertOAuthLog(ctx context.Context, l *AccessLog) error
	SAMLLogs(ctx context.Context, idpID string, limit int) ([]AccessLog, error)
	OAuthLogs(ctx context.Context, idpID string, limit int) ([]AccessLog, error)
}
