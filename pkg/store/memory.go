package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// memStore is a map-backed Store used by tests and DB-less dev runs. A single
// mutex stands in for the database's atomic filtered updates, so ClaimIdPs
// keeps its all-or-per-row conditional semantics.
type memStore struct {
	mu         sync.Mutex
	accounts   map[string]*Account
	idps       map[string]*IdP
	sps        map[string]*ServiceProvider
	idpUsers   map[string]*IdPUser
	attributes map[string]*Attribute
	samlLogs   []AccessLog
	oauthLogs  []AccessLog
}

func NewMemory() Store {
	return &memStore{
		accounts:   map[string]*Account{},
		idps:       map[string]*IdP{},
		sps:        map[string]*ServiceProvider{},
		idpUsers:   map[string]*IdPUser{},
		attributes: map[string]*Attribute{},
	}
}

func copyAccount(a *Account) *Account {
	c := *a
	c.Subscriptions = append([]string(nil), a.Subscriptions...)
	c.LoginTokens = append([]string(nil), a.LoginTokens...)
	return &c
}

func copyIdPUser(u *IdPUser) *IdPUser {
	c := *u
	c.Attributes = map[string]string{}
	for k, v := range u.Attributes {
		c.Attributes[k] = v
	}
	return &c
}

// ---- accounts

func (s *memStore) CreateAccount(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = copyAccount(a)
	return nil
}

func (s *memStore) AccountByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *memStore) AccountByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) UpdateAccountProfile(_ context.Context, id, firstName, lastName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.FirstName, a.LastName, a.Email = firstName, lastName, email
	return nil
}

func (s *memStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

func (s *memStore) SetPassword(_ context.Context, id, hash string, clear TokenPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	switch clear {
	case PurposeEnrolment:
		a.EnrolToken = ""
	case PurposePasswordReset:
		a.ResetToken = ""
	}
	return nil
}

func (s *memStore) AddLoginToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	for _, t := range a.LoginTokens {
		if t == token {
			return nil
		}
	}
	a.LoginTokens = append(a.LoginTokens, token)
	return nil
}

func (s *memStore) RemoveLoginToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	kept := a.LoginTokens[:0]
	for _, t := range a.LoginTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	a.LoginTokens = kept
	return nil
}

func (s *memStore) AccountByLoginToken(_ context.Context, id, token string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, t := range a.LoginTokens {
		if t == token {
			return copyAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) TouchLastSeen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.LastSeenAt = time.Now().UTC()
	}
	return nil
}

func (s *memStore) SetSingleUseToken(_ context.Context, id string, purpose TokenPurpose, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if purpose == PurposePasswordReset {
		a.ResetToken = token
	} else {
		a.EnrolToken = token
	}
	return nil
}

func (s *memStore) AccountBySingleUseToken(_ context.Context, id string, purpose TokenPurpose, token string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	slot := a.EnrolToken
	if purpose == PurposePasswordReset {
		slot = a.ResetToken
	}
	if token == "" || slot != token {
		return nil, ErrNotFound
	}
	return copyAccount(a), nil
}

// ---- idps

func (s *memStore) CreateIdP(_ context.Context, p *IdP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.idps[p.ID] = &c
	return nil
}

func (s *memStore) IdPByID(_ context.Context, id string) (*IdP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.idps[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) CodeInUse(_ context.Context, code, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.idps {
		if p.Code == code && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListIdPs(_ context.Context, accountID string, includeIDs []string) ([]IdP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	include := map[string]bool{}
	for _, id := range includeIDs {
		include[id] = true
	}
	var out []IdP
	for _, p := range s.idps {
		if (accountID != "" && p.AccountID == accountID) || (p.AccountID == "" && include[p.ID]) {
			out = append(out, *p)
		}
	}
	sortIdPs(out)
	return out, nil
}

func (s *memStore) IdPsByAccount(_ context.Context, accountID string) ([]IdP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []IdP
	for _, p := range s.idps {
		if p.AccountID == accountID && accountID != "" {
			out = append(out, *p)
		}
	}
	sortIdPs(out)
	return out, nil
}

func sortIdPs(idps []IdP) {
	sort.Slice(idps, func(i, j int) bool {
		if idps[i].CreatedAt.Equal(idps[j].CreatedAt) {
			return idps[i].ID < idps[j].ID
		}
		return idps[i].CreatedAt.Before(idps[j].CreatedAt)
	})
}

func (s *memStore) UpdateIdP(_ context.Context, id, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.idps[id]
	if !ok {
		return ErrNotFound
	}
	p.Name, p.Code = name, code
	return nil
}

func (s *memStore) DeleteIdP(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idps, id)
	return nil
}

func (s *memStore) DeleteIdPsByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.idps {
		if p.AccountID == accountID && accountID != "" {
			delete(s.idps, id)
		}
	}
	return nil
}

func (s *memStore) ClaimIdPs(_ context.Context, ids []string, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accountID == "" {
		return 0, nil
	}
	var n int64
	for _, id := range ids {
		if p, ok := s.idps[id]; ok && p.AccountID == "" {
			p.AccountID = accountID
			n++
		}
	}
	return n, nil
}

// ---- service providers

func (s *memStore) CreateSP(_ context.Context, sp *ServiceProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sp
	s.sps[sp.ID] = &c
	return nil
}

func (s *memStore) SPByID(_ context.Context, id string) (*ServiceProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sps[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sp
	return &c, nil
}

func (s *memStore) SPsByIdP(_ context.Context, idpID string) ([]ServiceProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ServiceProvider
	for _, sp := range s.sps {
		if sp.IdPID == idpID {
			out = append(out, *sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) UpdateSP(_ context.Context, sp *ServiceProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sps[sp.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = sp.Name
	cur.EntityID = sp.EntityID
	cur.ServiceURL = sp.ServiceURL
	cur.CallbackURL = sp.CallbackURL
	cur.LogoutURL = sp.LogoutURL
	cur.LogoutCallbackURL = sp.LogoutCallbackURL
	cur.OAuth2RedirectURI = sp.OAuth2RedirectURI
	return nil
}

func (s *memStore) DeleteSP(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sps, id)
	return nil
}

func (s *memStore) DeleteSPsByIdP(_ context.Context, idpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sp := range s.sps {
		if sp.IdPID == idpID {
			delete(s.sps, id)
		}
	}
	return nil
}

// ---- idp users

func (s *memStore) CreateIdPUser(_ context.Context, u *IdPUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idpUsers[u.ID] = copyIdPUser(u)
	return nil
}

func (s *memStore) IdPUserByID(_ context.Context, id string) (*IdPUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.idpUsers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIdPUser(u), nil
}

func (s *memStore) IdPUsersByIdP(_ context.Context, idpID string) ([]IdPUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []IdPUser
	for _, u := range s.idpUsers {
		if u.IdPID == idpID {
			out = append(out, *copyIdPUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) UpdateIdPUser(_ context.Context, u *IdPUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idpUsers[u.ID]; !ok {
		return ErrNotFound
	}
	s.idpUsers[u.ID] = copyIdPUser(u)
	return nil
}

func (s *memStore) DeleteIdPUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idpUsers, id)
	return nil
}

func (s *memStore) DeleteIdPUsersByIdP(_ context.Context, idpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.idpUsers {
		if u.IdPID == idpID {
			delete(s.idpUsers, id)
		}
	}
	return nil
}

// ---- attributes

func (s *memStore) CreateAttribute(_ context.Context, at *Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *at
	s.attributes[at.ID] = &c
	return nil
}

func (s *memStore) AttributeByID(_ context.Context, id string) (*Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.attributes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *at
	return &c, nil
}

func (s *memStore) AttributesByIdP(_ context.Context, idpID string) ([]Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Attribute
	for _, at := range s.attributes {
		if at.IdPID == idpID {
			out = append(out, *at)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) UpdateAttribute(_ context.Context, at *Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.attributes[at.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name, cur.DefaultValue, cur.SAMLMapping = at.Name, at.DefaultValue, at.SAMLMapping
	return nil
}

func (s *memStore) DeleteAttribute(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attributes, id)
	return nil
}

func (s *memStore) DeleteAttributesByIdP(_ context.Context, idpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.attributes {
		if at.IdPID == idpID {
			delete(s.attributes, id)
		}
	}
	return nil
}

// ---- access logs

func (s *memStore) InsertSAMLLog(_ context.Context, l *AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samlLogs = append(s.samlLogs, cloneLog(l))
	return nil
}

func (s *memStore) InsertOAuthLog(_ context.Context, l *AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthLogs = append(s.oauthLogs, cloneLog(l))
	return nil
}

func cloneLog(l *AccessLog) AccessLog {
	c := *l
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if l.Payload != nil {
		raw, _ := json.Marshal(l.Payload)
		c.Payload = nil
		_ = json.Unmarshal(raw, &c.Payload)
	}
	return c
}

func (s *memStore) SAMLLogs(_ context.Context, idpID string, limit int) ([]AccessLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterLogs(s.samlLogs, idpID, limit), nil
}

func (s *memStore) OAuthLogs(_ context.Context, idpID string, limit int) ([]AccessLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterLogs(s.oauthLogs, idpID, limit), nil
}

func filterLogs(logs []AccessLog, idpID string, limit int) []AccessLog {
	var out []AccessLog
	for _, l := range logs {
		if l.IdPID == idpID {
			out = append(out, cloneLog(&l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
