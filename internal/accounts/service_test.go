package accounts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ssoforge/internal/idp"
	"ssoforge/pkg/apierr"
	"ssoforge/pkg/security"
	"ssoforge/pkg/store"
)

type capturedMail struct {
	to, subject, text string
}

type recordingSender struct {
	sent []capturedMail
}

func (r *recordingSender) Send(to, subject, text string) {
	r.sent = append(r.sent, capturedMail{to: to, subject: subject, text: text})
}

func newTestService(t *testing.T) (*Service, store.Store, *recordingSender) {
	t.Helper()
	st := store.NewMemory()
	mail := &recordingSender{}
	svc := New(st, security.NewSigner("test-secret"), mail, zap.NewNop().Sugar(), "https://app.ssoforge.test")
	return svc, st, mail
}

func register(t *testing.T, svc *Service, email string) string {
	t.Helper()
	token, err := svc.Register(context.Background(), RegisterInput{
		Email: email, FirstName: "Ada", LastName: "Lovelace", Password: "password1",
	})
	require.NoError(t, err)
	return token
}

func TestRegisterAndDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	token := register(t, svc, "ada@example.com")
	require.NotEmpty(t, token)

	caller := svc.ResolveSession(ctx, token)
	require.NotNil(t, caller)
	require.Equal(t, "ada@example.com", caller.Email)

	// Duplicates collide case-insensitively.
	_, err := svc.Register(ctx, RegisterInput{Email: "ADA@example.com", Password: "password1"})
	require.True(t, apierr.IsKind(err, apierr.KindConflict))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b", Password: "password1"})
	require.True(t, apierr.IsKind(err, apierr.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "short"})
	require.True(t, apierr.IsKind(err, apierr.KindValidation))
}

func TestLoginGenericFailure(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, "ada@example.com")

	_, badPassword := svc.Login(ctx, "ada@example.com", "wrong-password", nil)
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "password1", nil)
	require.True(t, apierr.IsKind(badPassword, apierr.KindValidation))
	require.EqualError(t, unknownEmail, badPassword.Error())
}

func TestClaimOnRegister(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	idps := idp.New(st, zap.NewNop().Sugar())

	// Created anonymously, so the IdP starts unclaimed.
	p, err := idps.Create(ctx, nil, "Demo", "demo")
	require.NoError(t, err)
	require.Empty(t, p.AccountID)

	token, err := svc.Register(ctx, RegisterInput{
		Email: "ada@example.com", Password: "password1", IdPsToClaim: []string{p.ID},
	})
	require.NoError(t, err)
	owner := svc.ResolveSession(ctx, token)
	require.NotNil(t, owner)

	claimed, err := st.IdPByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, claimed.AccountID)

	// Once claimed, anonymous management access is gone.
	_, _, err = idps.Get(ctx, nil, p.ID)
	require.True(t, apierr.IsKind(err, apierr.KindForbidden))

	// A later login naming the same IdP cannot steal it.
	_, err = svc.Register(ctx, RegisterInput{Email: "eve@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "eve@example.com", "password1", []string{p.ID})
	require.NoError(t, err)
	claimed, err = st.IdPByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, claimed.AccountID)
}

func TestLogoutRevokesOnlyCurrentSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, "ada@example.com")

	t1, err := svc.Login(ctx, "ada@example.com", "password1", nil)
	require.NoError(t, err)
	t2, err := svc.Login(ctx, "ada@example.com", "password1", nil)
	require.NoError(t, err)

	caller := svc.ResolveSession(ctx, t1)
	require.NotNil(t, caller)
	require.NoError(t, svc.Logout(ctx, caller, t1))

	require.Nil(t, svc.ResolveSession(ctx, t1))
	require.NotNil(t, svc.ResolveSession(ctx, t2))
}

func TestResolveSessionRejectsSingleUseTokens(t *testing.T) {
	ctx := context.Background()
	svc, _, mail := newTestService(t)
	register(t, svc, "ada@example.com")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	require.Len(t, mail.sent, 1)

	// A reset token is a valid JWT but must never act as a session.
	require.Nil(t, svc.ResolveSession(ctx, resetTokenFromMail(t, mail)))
}

func resetTokenFromMail(t *testing.T, mail *recordingSender) string {
	t.Helper()
	body := mail.sent[len(mail.sent)-1].text
	idx := strings.Index(body, "token=")
	require.NotEqual(t, -1, idx)
	token := body[idx+len("token="):]
	if end := strings.IndexAny(token, "\n "); end != -1 {
		token = token[:end]
	}
	return token
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, mail := newTestService(t)
	register(t, svc, "ada@example.com")

	// Unknown emails report success too.
	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	require.Empty(t, mail.sent)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	require.Len(t, mail.sent, 1)
	require.Equal(t, "Reset your password", mail.sent[0].subject)
	token := resetTokenFromMail(t, mail)

	err := svc.UpdatePassword(ctx, nil, UpdatePasswordInput{Token: token, NewPassword: "brand-new-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "password1", nil)
	require.Error(t, err)
	_, err = svc.Login(ctx, "ada@example.com", "brand-new-password", nil)
	require.NoError(t, err)

	// The token was consumed by the update.
	err = svc.UpdatePassword(ctx, nil, UpdatePasswordInput{Token: token, NewPassword: "another-password"})
	require.True(t, apierr.IsKind(err, apierr.KindValidation))
}

func TestUpdatePasswordWithCurrentPassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	token := register(t, svc, "ada@example.com")
	caller := svc.ResolveSession(ctx, token)
	require.NotNil(t, caller)

	err := svc.UpdatePassword(ctx, caller, UpdatePasswordInput{CurrentPassword: "wrong", NewPassword: "brand-new-password"})
	require.True(t, apierr.IsKind(err, apierr.KindValidation))

	err = svc.UpdatePassword(ctx, caller, UpdatePasswordInput{NewPassword: "brand-new-password"})
	require.True(t, apierr.IsKind(err, apierr.KindValidation))

	err = svc.UpdatePassword(ctx, caller, UpdatePasswordInput{CurrentPassword: "password1", NewPassword: "brand-new-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "brand-new-password", nil)
	require.NoError(t, err)
}

func TestEnrolFlow(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	// Pre-provisioned account without a password.
	require.NoError(t, st.CreateAccount(ctx, &store.Account{
		ID: "pre-1", Email: "new@example.com", CreatedAt: time.Now().UTC(),
	}))
	token, err := svc.IssueEnrolmentToken(ctx, "pre-1", time.Hour)
	require.NoError(t, err)

	_, err = svc.Enrol(ctx, token, "short")
	require.True(t, apierr.IsKind(err, apierr.KindValidation))

	session, err := svc.Enrol(ctx, token, "password1")
	require.NoError(t, err)
	require.NotNil(t, svc.ResolveSession(ctx, session))

	// Enrolment tokens are single use.
	_, err = svc.Enrol(ctx, token, "password1")
	require.True(t, apierr.IsKind(err, apierr.KindValidation))
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	idps := idp.New(st, zap.NewNop().Sugar())

	token := register(t, svc, "ada@example.com")
	caller := svc.ResolveSession(ctx, token)
	require.NotNil(t, caller)

	p, err := idps.Create(ctx, caller, "Mine", "mine")
	require.NoError(t, err)
	_, err = idps.CreateSP(ctx, caller, p.ID, idp.SPInput{Name: "RP"})
	require.NoError(t, err)

	err = svc.Delete(ctx, caller, "wrong-password")
	require.True(t, apierr.IsKind(err, apierr.KindForbidden))

	require.NoError(t, svc.Delete(ctx, caller, "password1"))

	_, err = st.AccountByID(ctx, caller.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.IdPByID(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	sps, err := st.SPsByIdP(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, sps)
	users, err := st.IdPUsersByIdP(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestUpdateProfileEmailChange(t *testing.T) {
	ctx := context.Background()
	svc, _, mail := newTestService(t)
	token := register(t, svc, "ada@example.com")
	register(t, svc, "taken@example.com")
	caller := svc.ResolveSession(ctx, token)
	require.NotNil(t, caller)

	_, err := svc.UpdateProfile(ctx, caller, "someone-else", UpdateProfileInput{})
	require.True(t, apierr.IsKind(err, apierr.KindForbidden))

	taken := "taken@example.com"
	_, err = svc.UpdateProfile(ctx, caller, caller.ID, UpdateProfileInput{Email: &taken})
	require.True(t, apierr.IsKind(err, apierr.KindConflict))

	fresh := "Ada.New@example.com"
	updated, err := svc.UpdateProfile(ctx, caller, caller.ID, UpdateProfileInput{Email: &fresh})
	require.NoError(t, err)
	require.Equal(t, "ada.new@example.com", updated.Email)

	// Both the old and the new address are notified.
	require.Len(t, mail.sent, 2)
	require.Contains(t, mail.sent[0].to, "ada@example.com")
	require.Contains(t, mail.sent[1].to, "ada.new@example.com")
}
