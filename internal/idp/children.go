package idp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ssoforge/pkg/apierr"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

// Every child accessor follows the same shape: load the parent IdP, re-apply
// the ownership gate, then act on the child collection. Child-scoped ops
// (update/delete by child id) resolve the parent through the child row, so a
// child can never be reached through a different IdP's URL.

// ---- service providers

type SPInput struct {
	Name              string `json:"name"`
	EntityID          string `json:"entityId"`
	ServiceURL        string `json:"serviceUrl"`
	CallbackURL       string `json:"callbackUrl"`
	LogoutURL         string `json:"logoutUrl"`
	LogoutCallbackURL string `json:"logoutCallbackUrl"`
	OAuth2RedirectURI string `json:"oauth2RedirectUri"`
}

// CreateSP mints a fresh OAuth2 client id and a 32-character secret. The
// secret is only ever returned here; updates cannot rotate it.
func (s *Service) CreateSP(ctx context.Context, caller *store.Account, idpID string, in SPInput) (*store.ServiceProvider, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	secret, err := randomSecret(32)
	if err != nil {
		return nil, err
	}
	sp := &store.ServiceProvider{
		ID:                 uuid.NewString(),
		IdPID:              p.ID,
		Name:               in.Name,
		Kind:               "saml",
		EntityID:           in.EntityID,
		ServiceURL:         in.ServiceURL,
		CallbackURL:        in.CallbackURL,
		LogoutURL:          in.LogoutURL,
		LogoutCallbackURL:  in.LogoutCallbackURL,
		OAuth2ClientID:     uuid.NewString(),
		OAuth2ClientSecret: secret,
		OAuth2RedirectURI:  in.OAuth2RedirectURI,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.CreateSP(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) ListSPs(ctx context.Context, caller *store.Account, idpID string) ([]store.ServiceProvider, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	return s.store.SPsByIdP(ctx, p.ID)
}

// UpdateSP replaces the relying-party config wholesale; absent request
// fields clear the stored value. Client id and secret are immutable.
func (s *Service) UpdateSP(ctx context.Context, caller *store.Account, idpID, spID string, in SPInput) (*store.ServiceProvider, error) {
	sp, err := s.loadSP(ctx, caller, idpID, spID)
	if err != nil {
		return nil, err
	}
	sp.Name = in.Name
	sp.EntityID = in.EntityID
	sp.ServiceURL = in.ServiceURL
	sp.CallbackURL = in.CallbackURL
	sp.LogoutURL = in.LogoutURL
	sp.LogoutCallbackURL = in.LogoutCallbackURL
	sp.OAuth2RedirectURI = in.OAuth2RedirectURI
	if err := s.store.UpdateSP(ctx, sp); err != nil {
		return nil, err
	}
	return s.store.SPByID(ctx, sp.ID)
}

func (s *Service) DeleteSP(ctx context.Context, caller *store.Account, idpID, spID string) error {
	sp, err := s.loadSP(ctx, caller, idpID, spID)
	if err != nil {
		return err
	}
	return s.store.DeleteSP(ctx, sp.ID)
}

func (s *Service) loadSP(ctx context.Context, caller *store.Account, idpID, spID string) (*store.ServiceProvider, error) {
	sp, err := s.store.SPByID(ctx, spID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("The service provider could not be found")
	}
	if err != nil {
		return nil, err
	}
	if sp.IdPID != idpID {
		return nil, apierr.NotFound("The service provider could not be found")
	}
	if _, err := s.loadManaged(ctx, caller, sp.IdPID, "manage"); err != nil {
		return nil, err
	}
	return sp, nil
}

// ---- IdP-local users

type CreateUserInput struct {
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Service) CreateUser(ctx context.Context, caller *store.Account, idpID string, in CreateUserInput) (*store.IdPUser, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	if in.Email == "" || in.Password == "" {
		return nil, apierr.Validation("Email and password are required")
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &store.IdPUser{
		ID:           uuid.NewString(),
		IdPID:        p.ID,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Attributes:   in.Attributes,
		CreatedAt:    time.Now().UTC(),
	}
	if u.Attributes == nil {
		u.Attributes = map[string]string{}
	}
	if err := s.store.CreateIdPUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, caller *store.Account, idpID string) ([]store.IdPUser, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	return s.store.IdPUsersByIdP(ctx, p.ID)
}

// UpdateUserInput carries partial updates: nil fields keep their previous
// value (merge semantics).
type UpdateUserInput struct {
	FirstName  *string           `json:"firstName"`
	LastName   *string           `json:"lastName"`
	Email      *string           `json:"email"`
	Password   *string           `json:"password"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Service) UpdateUser(ctx context.Context, caller *store.Account, idpID, userID string, in UpdateUserInput) (*store.IdPUser, error) {
	u, err := s.loadUser(ctx, caller, idpID, userID)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Attributes != nil {
		u.Attributes = in.Attributes
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := security.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.store.UpdateIdPUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, caller *store.Account, idpID, userID string) error {
	u, err := s.loadUser(ctx, caller, idpID, userID)
	if err != nil {
		return err
	}
	return s.store.DeleteIdPUser(ctx, u.ID)
}

func (s *Service) loadUser(ctx context.Context, caller *store.Account, idpID, userID string) (*store.IdPUser, error) {
	u, err := s.store.IdPUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("The user could not be found")
	}
	if err != nil {
		return nil, err
	}
	if u.IdPID != idpID {
		return nil, apierr.NotFound("The user could not be found")
	}
	if _, err := s.loadManaged(ctx, caller, u.IdPID, "manage"); err != nil {
		return nil, err
	}
	return u, nil
}

// ---- attributes

type CreateAttributeInput struct {
	Name         string `json:"name"`
	DefaultValue string `json:"defaultValue"`
	SAMLMapping  string `json:"samlMapping"`
}

func (s *Service) CreateAttribute(ctx context.Context, caller *store.Account, idpID string, in CreateAttributeInput) (*store.Attribute, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, apierr.Validation("Attribute name is required")
	}
	at := &store.Attribute{
		ID:           uuid.NewString(),
		IdPID:        p.ID,
		Name:         in.Name,
		DefaultValue: in.DefaultValue,
		SAMLMapping:  in.SAMLMapping,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAttribute(ctx, at); err != nil {
		return nil, err
	}
	return at, nil
}

func (s *Service) ListAttributes(ctx context.Context, caller *store.Account, idpID string) ([]store.Attribute, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "manage")
	if err != nil {
		return nil, err
	}
	return s.store.AttributesByIdP(ctx, p.ID)
}

type UpdateAttributeInput struct {
	Name         *string `json:"name"`
	DefaultValue *string `json:"defaultValue"`
	SAMLMapping  *string `json:"samlMapping"`
}

func (s *Service) UpdateAttribute(ctx context.Context, caller *store.Account, idpID, attrID string, in UpdateAttributeInput) (*store.Attribute, error) {
	at, err := s.loadAttribute(ctx, caller, idpID, attrID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		at.Name = *in.Name
	}
	if in.DefaultValue != nil {
		at.DefaultValue = *in.DefaultValue
	}
	if in.SAMLMapping != nil {
		at.SAMLMapping = *in.SAMLMapping
	}
	if err := s.store.UpdateAttribute(ctx, at); err != nil {
		return nil, err
	}
	return at, nil
}

func (s *Service) DeleteAttribute(ctx context.Context, caller *store.Account, idpID, attrID string) error {
	at, err := s.loadAttribute(ctx, caller, idpID, attrID)
	if err != nil {
		return err
	}
	return s.store.DeleteAttribute(ctx, at.ID)
}

func (s *Service) loadAttribute(ctx context.Context, caller *store.Account, idpID, attrID string) (*store.Attribute, error) {
	at, err := s.store.AttributeByID(ctx, attrID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("The attribute could not be found")
	}
	if err != nil {
		return nil, err
	}
	if at.IdPID != idpID {
		return nil, apierr.NotFound("The attribute could not be found")
	}
	if _, err := s.loadManaged(ctx, caller, at.IdPID, "manage"); err != nil {
		return nil, err
	}
	return at, nil
}
