// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/stride/internal/apperr"
	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/store/memory"
	"github.com/opentrusty/stride/internal/workspace"
)

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) GetUser(ctx context.Context, userID string) (*identity.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*identity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccounts) SetPersonalTenant(ctx context.Context, userID, tenantID string) error {
	args := m.Called(ctx, userID, tenantID)
	return args.Error(0)
}

func newTestService(t *testing.T) (*Service, *mockAccounts, workspace.Repositories) {
	t.Helper()
	st := memory.New()
	repos := st.Workspace()
	accounts := &mockAccounts{}
	svc := NewService(
		repos,
		authz.NewResolver(repos, audit.NopLogger{}, nil),
		cascade.NewEngine(st, audit.NopLogger{}, nil),
		accounts,
		audit.NopLogger{},
	)
	return svc, accounts, repos
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, accounts, repos := newTestService(t)

	accounts.On("GetUser", mock.Anything, "u1").Return(&identity.User{ID: "u1"}, nil).Once()
	accounts.On("SetPersonalTenant", mock.Anything, "u1", mock.AnythingOfType("string")).Return(nil).Once()

	tn, err := svc.Create(ctx, "u1", "  Acme  ", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "Acme", tn.Name)
	assert.Equal(t, "u1", tn.OwnerID)
	assert.Len(t, tn.JoinCode, joinCodeLength)

	m, err := repos.Members.GetTenantMember(ctx, tn.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, workspace.RoleAdmin, m.Role)

	// A second tenant does not replace the personal tenant.
	personal := tn.ID
	accounts.On("GetUser", mock.Anything, "u1").Return(&identity.User{ID: "u1", PersonalTenantID: &personal}, nil).Once()
	_, err = svc.Create(ctx, "u1", "Side project", "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "u1", "   ", "")
	assert.ErrorIs(t, err, workspace.ErrInvalidName)

	accounts.AssertExpectations(t)
}

// TestPurpose: Validates that only the tenant owner can delete a tenant and that deletion removes everything beneath it.
// Scope: Unit Test
// Security: Destructive operations restricted to the owner; referential closure
// Expected: A joined Developer is denied with ErrNotOwner; the owner's delete succeeds and the tenant, its projects and issues report NotFound.
// Test Case ID: TNT-01
func TestService_Delete_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, accounts, repos := newTestService(t)
	accounts.On("GetUser", mock.Anything, "u1").Return(&identity.User{ID: "u1"}, nil)
	accounts.On("SetPersonalTenant", mock.Anything, "u1", mock.Anything).Return(nil)

	tn, err := svc.Create(ctx, "u1", "Acme", "")
	require.NoError(t, err)

	joined, err := svc.Join(ctx, "u2", tn.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, joined.ID)
	m, err := repos.Members.GetTenantMember(ctx, tn.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, workspace.RoleDeveloper, m.Role)

	p := &workspace.Project{ID: "p1", TenantID: tn.ID, CreatorID: "u1", Name: "P", JoinCode: "PROJ0001"}
	require.NoError(t, repos.Projects.Create(ctx, p, &workspace.ProjectMember{ProjectID: p.ID, UserID: "u1", Role: workspace.RoleAdmin}))
	require.NoError(t, repos.Issues.Create(ctx, &workspace.Issue{ID: "i1", ProjectID: p.ID, TenantID: tn.ID, Title: "I", CreatedBy: "u1"}))

	_, err = svc.Delete(ctx, "u2", tn.ID)
	require.ErrorIs(t, err, authz.ErrNotOwner)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	// Promotion to Admin does not confer ownership.
	require.NoError(t, svc.ChangeRole(ctx, "u1", tn.ID, "u2", workspace.RoleAdmin))
	_, err = svc.Delete(ctx, "u2", tn.ID)
	require.ErrorIs(t, err, authz.ErrNotOwner)

	rep, err := svc.Delete(ctx, "u1", tn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Counts[cascade.TableTenants])

	_, err = repos.Tenants.GetByID(ctx, tn.ID)
	assert.ErrorIs(t, err, workspace.ErrTenantNotFound)
	_, err = repos.Projects.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, workspace.ErrProjectNotFound)
	_, err = repos.Issues.GetByID(ctx, "i1")
	assert.ErrorIs(t, err, workspace.ErrIssueNotFound)

	_, err = svc.Get(ctx, "u1", tn.ID)
	assert.ErrorIs(t, err, workspace.ErrTenantNotFound)
}

func TestService_Membership(t *testing.T) {
	ctx := context.Background()
	svc, accounts, repos := newTestService(t)
	accounts.On("GetUser", mock.Anything, "owner").Return(&identity.User{ID: "owner"}, nil)
	accounts.On("SetPersonalTenant", mock.Anything, "owner", mock.Anything).Return(nil)

	tn, err := svc.Create(ctx, "owner", "Acme", "")
	require.NoError(t, err)

	_, err = svc.Join(ctx, "dev", tn.JoinCode)
	require.NoError(t, err)
	_, err = svc.Join(ctx, "dev", tn.JoinCode)
	assert.ErrorIs(t, err, workspace.ErrAlreadyMember)
	_, err = svc.Join(ctx, "dev", "NOPE00")
	assert.ErrorIs(t, err, workspace.ErrTenantNotFound)

	t.Run("developer cannot manage members", func(t *testing.T) {
		err := svc.ChangeRole(ctx, "dev", tn.ID, "dev", workspace.RoleAdmin)
		assert.ErrorIs(t, err, authz.ErrInsufficientRole)
	})

	t.Run("owner is immutable", func(t *testing.T) {
		require.NoError(t, svc.ChangeRole(ctx, "owner", tn.ID, "dev", workspace.RoleAdmin))
		err := svc.ChangeRole(ctx, "dev", tn.ID, "owner", workspace.RoleDeveloper)
		assert.ErrorIs(t, err, ErrOwnerImmutable)
		err = svc.RemoveMember(ctx, "dev", tn.ID, "owner")
		assert.ErrorIs(t, err, ErrOwnerImmutable)
	})

	t.Run("invalid role", func(t *testing.T) {
		err := svc.ChangeRole(ctx, "owner", tn.ID, "dev", workspace.RoleUnknown)
		assert.ErrorIs(t, err, workspace.ErrInvalidRole)
	})

	t.Run("members can leave", func(t *testing.T) {
		_, err := svc.Join(ctx, "leaver", tn.JoinCode)
		require.NoError(t, err)
		require.NoError(t, svc.RemoveMember(ctx, "leaver", tn.ID, "leaver"))
		_, err = repos.Members.GetTenantMember(ctx, tn.ID, "leaver")
		assert.ErrorIs(t, err, workspace.ErrMemberNotFound)
	})

	members, err := svc.ListMembers(ctx, "owner", tn.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = svc.ListMembers(ctx, "stranger", tn.ID)
	assert.ErrorIs(t, err, authz.ErrNotMember)

	tenants, err := svc.ListForUser(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, tn.ID, tenants[0].ID)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, accounts, _ := newTestService(t)
	accounts.On("GetUser", mock.Anything, "owner").Return(&identity.User{ID: "owner"}, nil)
	accounts.On("SetPersonalTenant", mock.Anything, "owner", mock.Anything).Return(nil)

	tn, err := svc.Create(ctx, "owner", "Acme", "a")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "owner", tn.ID, "", "b, c")
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name)
	assert.Equal(t, "b, c", updated.Keywords)

	_, err = svc.Join(ctx, "dev", tn.JoinCode)
	require.NoError(t, err)
	_, err = svc.Update(ctx, "dev", tn.ID, "Hijacked", "")
	assert.ErrorIs(t, err, authz.ErrInsufficientRole)
}
