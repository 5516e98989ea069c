// Package idp implements the IdP resource graph: identity providers and
// their nested service providers, IdP-local users, attributes and access
// logs, all gated by the ownership model.
package idp

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ssoforge/internal/certs"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedCodes are issuer codes that collide with product subdomains.
var reservedCodes = map[string]bool{
	"app": true, "my": true, "www": true, "support": true, "mail": true,
	"email": true, "dashboard": true, "ssoforge": true, "myidp": true,
}

type Service struct {
	store store.Store
	log   *zap.SugaredLogger
}

func New(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: st, log: log}
}

// CanManage is the single ownership predicate gating every IdP-scoped
// operation. An unclaimed IdP (no owning account) is manageable by anyone,
// including anonymous callers; a claimed IdP only by its owner. Nested
// resource accessors load the parent IdP and re-apply this check — trust is
// never cached or delegated.
func CanManage(caller *store.Account, p *store.IdP) bool {
	if p == nil {
		return false
	}
	if caller == nil {
		return p.AccountID == ""
	}
	return p.AccountID == "" || p.AccountID == caller.ID
}

// loadManaged fetches an IdP and applies the ownership gate, translating the
// two failure modes into NotFound/Forbidden.
func (s *Service) loadManaged(ctx context.Context, caller *store.Account, id, verb string) (*store.IdP, error) {
	p, err := s.store.IdPByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("The IdP could not be found")
	}
	if err != nil {
		return nil, err
	}
	if !CanManage(caller, p) {
		return nil, apierr.Forbidden("You can't " + verb + " this IdP")
	}
	return p, nil
}

// normalizeCode lower-cases and trims the issuer code; uniqueness is checked
// against this stored form, so codes differing only in case collide.
func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (s *Service) validateCode(ctx context.Context, code, excludeID string) error {
	if code == "" || reservedCodes[code] {
		return apierr.Validation("The issuer is invalid or is already in use")
	}
	if !codePattern.MatchString(code) {
		return apierr.Validation("The IdP issuer is invalid. Please just use letters, numbers, hyphens, and underscores.")
	}
	inUse, err := s.store.CodeInUse(ctx, code, excludeID)
	if err != nil {
		return err
	}
	if inUse {
		return apierr.Conflict("The issuer is invalid or is already in use")
	}
	return nil
}

// Create provisions an IdP with a fresh signing certificate. The caller may
// be anonymous, in which case the IdP starts unclaimed. Two sample users and
// one sample attribute are seeded so protocol testing works immediately.
func (s *Service) Create(ctx context.Context, caller *store.Account, name, code string) (*store.IdP, error) {
	if name == "" || code == "" {
		return nil, apierr.Validation("Name and issuer are required")
	}
	code = normalizeCode(code)
	if err := s.validateCode(ctx, code, ""); err != nil {
		return nil, err
	}

	certPEM, keyPEM, err := certs.SelfSigned(name)
	if err != nil {
		return nil, err
	}

	p := &store.IdP{
		ID:          uuid.NewString(),
		Name:        name,
		Code:        code,
		Certificate: certPEM,
		PrivateKey:  keyPEM,
		CreatedAt:   time.Now().UTC(),
	}
	if caller != nil {
		p.AccountID = caller.ID
	}
	if err := s.store.CreateIdP(ctx, p); err != nil {
		return nil, err
	}

	s.seed(ctx, p)
	s.log.Infow("idp created", "id", p.ID, "code", p.Code, "owned", p.AccountID != "")
	return p, nil
}

func (s *Service) seed(ctx context.Context, p *store.IdP) {
	for _, u := range []struct{ first, last, email string }{
		{"Joe", "Bloggs", "joe@example.com"},
		{"Jane", "Doe", "jane@example.com"},
	} {
		hash, err := security.HashPassword("password")
		if err != nil {
			s.log.Warnw("seed user hash", "idp", p.ID, "err", err)
			continue
		}
		err = s.store.CreateIdPUser(ctx, &store.IdPUser{
			ID:           uuid.NewString(),
			IdPID:        p.ID,
			FirstName:    u.first,
			LastName:     u.last,
			Email:        u.email,
			PasswordHash: hash,
			Attributes:   map[string]string{},
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			s.log.Warnw("seed user", "idp", p.ID, "err", err)
		}
	}
	err := s.store.CreateAttribute(ctx, &store.Attribute{
		ID:           uuid.NewString(),
		IdPID:        p.ID,
		Name:         "Group",
		DefaultValue: "staff",
		SAMLMapping:  "group",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.log.Warnw("seed attribute", "idp", p.ID, "err", err)
	}
}

// List returns the caller's IdPs plus any unclaimed IdP explicitly named in
// includeIDs; that second leg is what lets an anonymous session keep hold of
// an IdP it created before registering.
func (s *Service) List(ctx context.Context, caller *store.Account, includeIDs []string) ([]store.IdP, error) {
	accountID := ""
	if caller != nil {
		accountID = caller.ID
	}
	return s.store.ListIdPs(ctx, accountID, includeIDs)
}

// Get returns the IdP and its local users. The private key never leaves the
// store after creation.
func (s *Service) Get(ctx context.Context, caller *store.Account, id string) (*store.IdP, []store.IdPUser, error) {
	p, err := s.loadManaged(ctx, caller, id, "view")
	if err != nil {
		return nil, nil, err
	}
	users, err := s.store.IdPUsersByIdP(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, users, nil
}

type UpdateInput struct {
	Name *string
	Code *string
}

func (s *Service) Update(ctx context.Context, caller *store.Account, id string, in UpdateInput) (*store.IdP, []store.IdPUser, error) {
	p, err := s.loadManaged(ctx, caller, id, "edit")
	if err != nil {
		return nil, nil, err
	}
	name := p.Name
	if in.Name != nil && *in.Name != "" {
		name = *in.Name
	}
	code := p.Code
	if in.Code != nil {
		code = normalizeCode(*in.Code)
		if err := s.validateCode(ctx, code, p.ID); err != nil {
			return nil, nil, err
		}
	}
	if err := s.store.UpdateIdP(ctx, p.ID, name, code); err != nil {
		return nil, nil, err
	}
	return s.Get(ctx, caller, id)
}

// Delete removes the IdP record only. Children are deliberately left in
// place here; the account-deletion cascade is the one path that removes them.
func (s *Service) Delete(ctx context.Context, caller *store.Account, id string) error {
	p, err := s.loadManaged(ctx, caller, id, "delete")
	if err != nil {
		return err
	}
	return s.store.DeleteIdP(ctx, p.ID)
}

const secretChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomSecret draws n characters from [A-Z0-9] with crypto/rand.
func randomSecret(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(secretChars)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = secretChars[idx.Int64()]
	}
	return string(out), nil
}
