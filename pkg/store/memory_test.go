package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedIdP(t *testing.T, s Store, id, accountID, code string) {
	t.Helper()
	err := s.CreateIdP(context.Background(), &IdP{
		ID:        id,
		AccountID: accountID,
		Name:      "IdP " + id,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestClaimIdPsOnlyTransfersUnclaimed(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seedIdP(t, s, "p1", "", "alpha")
	seedIdP(t, s, "p2", "other-account", "beta")
	seedIdP(t, s, "p3", "", "gamma")

	n, err := s.ClaimIdPs(ctx, []string{"p1", "p2", "p3", "missing"}, "me")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	p1, err := s.IdPByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "me", p1.AccountID)

	p2, err := s.IdPByID(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, "other-account", p2.AccountID)

	// A second claim batch finds nothing left to transfer.
	n, err = s.ClaimIdPs(ctx, []string{"p1", "p3"}, "someone-else")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestCodeInUseExcludesSelf(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seedIdP(t, s, "p1", "", "alpha")

	inUse, err := s.CodeInUse(ctx, "alpha", "")
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = s.CodeInUse(ctx, "alpha", "p1")
	require.NoError(t, err)
	require.False(t, inUse)

	inUse, err = s.CodeInUse(ctx, "beta", "")
	require.NoError(t, err)
	require.False(t, inUse)
}

func TestListIdPsUnionsOwnedAndIncluded(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seedIdP(t, s, "owned", "me", "alpha")
	seedIdP(t, s, "unclaimed", "", "beta")
	seedIdP(t, s, "foreign", "other", "gamma")

	idps, err := s.ListIdPs(ctx, "me", []string{"unclaimed", "foreign"})
	require.NoError(t, err)

	ids := make([]string, 0, len(idps))
	for _, p := range idps {
		ids = append(ids, p.ID)
	}
	// include only pulls in unclaimed IdPs; claimed ones stay private.
	require.ElementsMatch(t, []string{"owned", "unclaimed"}, ids)
}

func TestLoginTokensAreASet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateAccount(ctx, &Account{ID: "a1", Email: "a@example.com"}))

	require.NoError(t, s.AddLoginToken(ctx, "a1", "t1"))
	require.NoError(t, s.AddLoginToken(ctx, "a1", "t2"))
	require.NoError(t, s.AddLoginToken(ctx, "a1", "t1"))

	a, err := s.AccountByID(ctx, "a1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"t1", "t2"}, a.LoginTokens)

	require.NoError(t, s.RemoveLoginToken(ctx, "a1", "t1"))
	a, err = s.AccountByID(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, []string{"t2"}, a.LoginTokens)

	_, err = s.AccountByLoginToken(ctx, "a1", "t1")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.AccountByLoginToken(ctx, "a1", "t2")
	require.NoError(t, err)
}

func TestSingleUseTokenSupersededAndCleared(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateAccount(ctx, &Account{ID: "a1", Email: "a@example.com"}))

	require.NoError(t, s.SetSingleUseToken(ctx, "a1", PurposePasswordReset, "old"))
	require.NoError(t, s.SetSingleUseToken(ctx, "a1", PurposePasswordReset, "new"))

	_, err := s.AccountBySingleUseToken(ctx, "a1", PurposePasswordReset, "old")
	require.ErrorIs(t, err, ErrNotFound)

	a, err := s.AccountBySingleUseToken(ctx, "a1", PurposePasswordReset, "new")
	require.NoError(t, err)
	require.Equal(t, "a1", a.ID)

	require.NoError(t, s.SetPassword(ctx, "a1", "hash", PurposePasswordReset))
	_, err = s.AccountBySingleUseToken(ctx, "a1", PurposePasswordReset, "new")
	require.ErrorIs(t, err, ErrNotFound)
}
