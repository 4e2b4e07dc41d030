package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiomarket/curio-backend/internal/audit"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository, *audit.Repository) {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	auditRepo := audit.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{Repo: repo, Audit: auditRepo, TransactionRunner: client})
	require.NoError(t, err)
	return svc, repo, auditRepo
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing repo")
	}
}

func TestUpsertFromOIDCCreatesBuyerThenKeepsRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "sub-1", Email: "Ada@Example.com", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleBuyer, created.Role)
	assert.Equal(t, enums.SubscriptionStateNone, created.SubscriptionState)
	require.NotNil(t, created.Email)
	assert.Equal(t, "ada@example.com", *created.Email)
	assert.NotNil(t, created.LastLoginAt)

	require.NoError(t, repo.UpdateColumns(ctx, created.ID, map[string]any{"role": enums.UserRoleSeller}))

	again, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "sub-1", Email: "ada@example.com", LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, enums.UserRoleSeller, again.Role)
	require.NotNil(t, again.FirstName)
	assert.Equal(t, "Ada", *again.FirstName)
	require.NotNil(t, again.LastName)
	assert.Equal(t, "Lovelace", *again.LastName)
}

func TestUpsertFromOIDCRejectsMissingSubject(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.UpsertFromOIDC(context.Background(), OIDCProfile{Email: "x@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestUpsertFromOIDCEmailConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "a", Email: "same@example.com"})
	require.NoError(t, err)
	_, err = svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "b", Email: "same@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestSetRoleIsAudited(t *testing.T) {
	svc, _, auditRepo := newTestService(t)
	ctx := context.Background()
	admin, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "admin"})
	require.NoError(t, err)
	target, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "target"})
	require.NoError(t, err)

	updated, err := svc.SetRole(ctx, admin.ID, target.ID, enums.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, updated.Role)

	entries, err := auditRepo.ListForUser(ctx, target.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.AuditRoleChanged, entries[0].Action)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, admin.ID, *entries[0].ActorID)

	_, err = svc.SetRole(ctx, admin.ID, admin.ID, enums.UserRoleBuyer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestSetAccountStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	target, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "target"})
	require.NoError(t, err)

	banned, err := svc.SetAccountStatus(ctx, uuid.New(), target.ID, enums.AccountStatusBanned)
	require.NoError(t, err)
	assert.False(t, banned.CanSignIn())

	_, err = svc.SetAccountStatus(ctx, uuid.New(), uuid.New(), enums.AccountStatusActive)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateProfileResetsPhoneVerification(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	user, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: "p"})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateColumns(ctx, user.ID, map[string]any{"phone": "+15550001", "phone_verified": true}))

	phone := "+15550002"
	name := "Grace"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Phone: &phone, FirstName: &name})
	require.NoError(t, err)
	assert.False(t, updated.PhoneVerified)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)
	assert.Equal(t, "Grace", *updated.FirstName)
}

func TestListFiltersByRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	for _, sub := range []string{"a", "b", "c"} {
		_, err := svc.UpsertFromOIDC(ctx, OIDCProfile{Subject: sub})
		require.NoError(t, err)
	}
	seller, err := repo.FindBySubject(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateColumns(ctx, seller.ID, map[string]any{"role": enums.UserRoleSeller}))

	role := enums.UserRoleSeller
	page, err := svc.List(ctx, ListFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, seller.ID, page.Items[0].ID)

	counts, err := svc.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[enums.UserRoleBuyer])
	assert.Equal(t, int64(1), counts[enums.UserRoleSeller])
}
