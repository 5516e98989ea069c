// Package accounts implements the account lifecycle: registration, sessions,
// enrolment, password management, profile updates and cascading deletion.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ssoforge/internal/mailer"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

const resetTokenTTL = 24 * time.Hour

// Fixed messages for flows where distinguishing failure causes would let a
// caller probe which emails are registered.
const (
	msgBadCredentials = "Your email or password is incorrect."
	msgBadEnrolToken  = "Unable to enrol your account. Your token may be invalid or expired."
	msgBadResetToken  = "There was a problem updating your password. Your token may be invalid or out of date"
)

type Service struct {
	store   store.Store
	signer  *security.Signer
	mail    mailer.Sender
	log     *zap.SugaredLogger
	baseURL string
}

func New(st store.Store, signer *security.Signer, mail mailer.Sender, log *zap.SugaredLogger, baseURL string) *Service {
	return &Service{store: st, signer: signer, mail: mail, log: log, baseURL: baseURL}
}

type RegisterInput struct {
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Password    string   `json:"password"`
	IdPsToClaim []string `json:"idpsToClaim"`
}

// Register creates an account, claims any listed unclaimed IdPs for it and
// returns a session token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if len(in.Email) < 6 {
		return "", apierr.Validation("Your name or email is too short or invalid.")
	}
	if len(in.Password) < 8 {
		return "", apierr.Validation("Your password should be at least 8 characters.")
	}
	email := strings.ToLower(in.Email)

	if _, err := s.store.AccountByEmail(ctx, email); err == nil {
		return "", apierr.Conflict("An account with this email already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return "", err
	}
	a := &store.Account{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return "", err
	}
	s.claim(ctx, in.IdPsToClaim, a.ID)
	return s.openSession(ctx, a.ID)
}

// Login verifies credentials and performs the same claim batch as Register.
// A wrong password and an unknown email produce the identical error.
func (s *Service) Login(ctx context.Context, email, password string, idpsToClaim []string) (string, error) {
	a, err := s.store.AccountByEmail(ctx, strings.ToLower(email))
	if errors.Is(err, store.ErrNotFound) {
		return "", apierr.Validation(msgBadCredentials)
	}
	if err != nil {
		return "", err
	}
	if !security.VerifyPassword(password, a.PasswordHash) {
		return "", apierr.Validation(msgBadCredentials)
	}
	s.claim(ctx, idpsToClaim, a.ID)
	return s.openSession(ctx, a.ID)
}

// claim transfers the listed unclaimed IdPs in one conditional bulk update;
// IdPs already owned by someone else are silently skipped.
func (s *Service) claim(ctx context.Context, ids []string, accountID string) {
	if len(ids) == 0 {
		return
	}
	n, err := s.store.ClaimIdPs(ctx, ids, accountID)
	if err != nil {
		s.log.Errorw("idp claim batch", "account", accountID, "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("idps claimed", "account", accountID, "count", n)
	}
}

func (s *Service) openSession(ctx context.Context, accountID string) (string, error) {
	token, err := s.signer.IssueSession(accountID)
	if err != nil {
		return "", err
	}
	if err := s.store.AddLoginToken(ctx, accountID, token); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveSession turns a bearer token into an account, or nil for anything
// invalid, expired or revoked — callers decide whether anonymous is allowed.
// Resolution touches the account's last-seen timestamp.
func (s *Service) ResolveSession(ctx context.Context, raw string) *store.Account {
	if raw == "" {
		return nil
	}
	sub, purpose, err := s.signer.Parse(raw)
	if err != nil || purpose != "" {
		return nil
	}
	a, err := s.store.AccountByLoginToken(ctx, sub, raw)
	if err != nil {
		return nil
	}
	if err := s.store.TouchLastSeen(ctx, a.ID); err != nil {
		s.log.Warnw("touch last seen", "account", a.ID, "err", err)
	}
	return a
}

// Logout revokes the session token used on this request; the account's other
// sessions stay valid.
func (s *Service) Logout(ctx context.Context, caller *store.Account, currentToken string) error {
	return s.store.RemoveLoginToken(ctx, caller.ID, currentToken)
}

// Enrol sets the first password on a pre-provisioned account using a
// single-use enrolment token, then opens a session.
func (s *Service) Enrol(ctx context.Context, token, password string) (string, error) {
	if token == "" {
		return "", apierr.Validation("Invalid token")
	}
	if len(password) < 8 {
		return "", apierr.Validation("Your password should be at least 8 characters.")
	}
	sub, purpose, err := s.signer.Parse(token)
	if err != nil || purpose != string(store.PurposeEnrolment) {
		return "", apierr.Validation(msgBadEnrolToken)
	}
	a, err := s.store.AccountBySingleUseToken(ctx, sub, store.PurposeEnrolment, token)
	if err != nil {
		return "", apierr.Validation(msgBadEnrolToken)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := s.store.SetPassword(ctx, a.ID, hash, store.PurposeEnrolment); err != nil {
		return "", err
	}
	return s.openSession(ctx, a.ID)
}

// IssueEnrolmentToken provisions the single-use token mailed to accounts
// created without a password. A reissue supersedes any outstanding token.
func (s *Service) IssueEnrolmentToken(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	token, err := s.signer.IssueSingleUse(accountID, string(store.PurposeEnrolment), ttl)
	if err != nil {
		return "", err
	}
	if err := s.store.SetSingleUseToken(ctx, accountID, store.PurposeEnrolment, token); err != nil {
		return "", err
	}
	return token, nil
}

type UpdatePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
}

// UpdatePassword changes a password through exactly one of two proofs: the
// current password (authenticated callers) or a password-reset token.
func (s *Service) UpdatePassword(ctx context.Context, caller *store.Account, in UpdatePasswordInput) error {
	if in.NewPassword == "" {
		return apierr.Validation("Invalid request")
	}
	if len(in.NewPassword) < 8 {
		return apierr.Validation("New password is too short")
	}

	var target *store.Account
	switch {
	case in.CurrentPassword != "":
		if caller == nil {
			return apierr.Unauthorized("This resource requires authentication")
		}
		if !security.VerifyPassword(in.CurrentPassword, caller.PasswordHash) {
			return apierr.Validation("Incorrect password")
		}
		target = caller
	case in.Token != "":
		sub, purpose, err := s.signer.Parse(in.Token)
		if err != nil || purpose != string(store.PurposePasswordReset) {
			return apierr.Validation(msgBadResetToken)
		}
		target, err = s.store.AccountBySingleUseToken(ctx, sub, store.PurposePasswordReset, in.Token)
		if err != nil {
			return apierr.Validation(msgBadResetToken)
		}
	default:
		return apierr.Validation("Current password or reset token is required")
	}

	hash, err := security.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	return s.store.SetPassword(ctx, target.ID, hash, store.PurposePasswordReset)
}

// RequestPasswordReset always reports success so the endpoint cannot be used
// to discover registered emails. When the account exists, a 24-hour reset
// token is stored (superseding any previous one) and mailed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if len(email) < 5 {
		return apierr.Validation("Your email is too short")
	}
	a, err := s.store.AccountByEmail(ctx, strings.ToLower(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.signer.IssueSingleUse(a.ID, string(store.PurposePasswordReset), resetTokenTTL)
	if err != nil {
		return err
	}
	if err := s.store.SetSingleUseToken(ctx, a.ID, store.PurposePasswordReset, token); err != nil {
		return err
	}
	link := s.baseURL + "/password/reset?token=" + token
	s.mail.Send(mailer.Recipient(a.FirstName, a.Email), "Reset your password", fmt.Sprintf(
		"Dear %s,\n\nA password reset email was recently requested for your ssoforge account. "+
			"If this was you and you want to continue, please follow the link below:\n\n%s\n\n"+
			"This link will expire after 24 hours.\n\nIf this was not you, then someone may be "+
			"trying to gain access to your account. We recommend using a strong and unique "+
			"password for your account.", a.FirstName, link))
	return nil
}

// Delete verifies the password then cascades: children of every owned IdP,
// the IdPs themselves, finally the account record.
func (s *Service) Delete(ctx context.Context, caller *store.Account, password string) error {
	if password == "" || !security.VerifyPassword(password, caller.PasswordHash) {
		return apierr.Forbidden("Incorrect password")
	}
	owned, err := s.store.IdPsByAccount(ctx, caller.ID)
	if err != nil {
		return err
	}
	for _, p := range owned {
		if err := s.store.DeleteSPsByIdP(ctx, p.ID); err != nil {
			return err
		}
		if err := s.store.DeleteIdPUsersByIdP(ctx, p.ID); err != nil {
			return err
		}
		if err := s.store.DeleteAttributesByIdP(ctx, p.ID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteIdPsByAccount(ctx, caller.ID); err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, caller.ID); err != nil {
		return err
	}
	s.log.Infow("account deleted", "account", caller.ID, "idps", len(owned))
	return nil
}

// Get returns an account's profile; accounts can only read themselves.
func (s *Service) Get(ctx context.Context, caller *store.Account, id string) (*store.Account, error) {
	if caller.ID != id {
		return nil, apierr.Forbidden("Not allowed")
	}
	a, err := s.store.AccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("Account not found")
	}
	return a, err
}

type UpdateProfileInput struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// UpdateProfile applies partial profile changes. An email change is checked
// for uniqueness and announced to both the old and the new address.
func (s *Service) UpdateProfile(ctx context.Context, caller *store.Account, id string, in UpdateProfileInput) (*store.Account, error) {
	if caller.ID != id {
		return nil, apierr.Forbidden("Not allowed")
	}
	firstName, lastName, email := caller.FirstName, caller.LastName, caller.Email
	if in.FirstName != nil {
		firstName = *in.FirstName
	}
	if in.LastName != nil {
		lastName = *in.LastName
	}
	emailChanged := false
	if in.Email != nil && *in.Email != "" && strings.ToLower(*in.Email) != caller.Email {
		email = strings.ToLower(*in.Email)
		if existing, err := s.store.AccountByEmail(ctx, email); err == nil && existing.ID != caller.ID {
			return nil, apierr.Conflict("This new email address is already in use")
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		emailChanged = true
	}
	if err := s.store.UpdateAccountProfile(ctx, caller.ID, firstName, lastName, email); err != nil {
		return nil, err
	}
	if emailChanged {
		body := fmt.Sprintf("Dear %s,\n\nThis email is to let you know that the email address for "+
			"your ssoforge account has been changed to: %s.\n\nIf this was not you, and/or you "+
			"believe your account has been compromised, please login as soon as possible and "+
			"change your account password.", caller.FirstName, email)
		s.mail.Send(mailer.Recipient(caller.FirstName, caller.Email), "ssoforge email address changed", body)
		s.mail.Send(email, "ssoforge email address changed", body)
	}
	return s.store.AccountByID(ctx, caller.ID)
}
