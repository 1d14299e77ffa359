package service

import (
	"context"
	"testing"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	all := []uuid.UUID{a, b, c}

	tests := []struct {
		name string
		p    auth.Principal
		want []uuid.UUID
	}{
		{"admin sees everything", auth.Principal{Role: model.RoleAdmin}, all},
		{"agent sees assignments", auth.Principal{Role: model.RoleAgent, AssignedSocietyIDs: []uuid.UUID{b, c, b}}, []uuid.UUID{b, c}},
		{"agent without assignments", auth.Principal{Role: model.RoleAgent}, []uuid.UUID{}},
		{"officer sees home society", auth.Principal{Role: model.RoleTreasurer, HomeSocietyID: &a}, []uuid.UUID{a}},
		{"officer ignores assignments", auth.Principal{Role: model.RoleManager, HomeSocietyID: &a, AssignedSocietyIDs: []uuid.UUID{b}}, []uuid.UUID{a}},
		{"unbound officer", auth.Principal{Role: model.RoleSecretary}, []uuid.UUID{}},
		{"unknown role", auth.Principal{Role: "Guest", HomeSocietyID: &a}, []uuid.UUID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := ResolveScope(tt.p, all)
			assert.Equal(t, tt.want, scope.IDs())
			for _, id := range all {
				assert.Equal(t, containsID(tt.want, id), scope.Contains(id))
			}
		})
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func TestScope_Narrow(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	scope := NewScope(a)

	assert.Equal(t, []uuid.UUID{a}, scope.Narrow(nil).IDs())
	assert.Equal(t, []uuid.UUID{a}, scope.Narrow(&a).IDs())
	assert.Equal(t, 0, scope.Narrow(&b).Len())
	assert.NotNil(t, Scope{}.IDs())
}

func TestAccessScopeService(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	ctx := context.Background()

	home := env.society(t, "Green Meadows")
	other := env.society(t, "Blue Ridge")

	t.Run("load principal", func(t *testing.T) {
		agent := env.user(t, model.RoleAgent, nil, home, other)
		assert.ElementsMatch(t, []uuid.UUID{home, other}, agent.AssignedSocietyIDs)
		assert.Nil(t, agent.HomeSocietyID)

		treasurer := env.user(t, model.RoleTreasurer, &home)
		require.NotNil(t, treasurer.HomeSocietyID)
		assert.Equal(t, home, *treasurer.HomeSocietyID)
		assert.Empty(t, treasurer.AssignedSocietyIDs)
	})

	t.Run("unknown and inactive users are unauthorized", func(t *testing.T) {
		_, err := env.scopes.LoadPrincipal(ctx, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)

		u := &model.User{Name: "Gone", Email: "gone@example.com", Password: "x", Role: model.RoleManager, AssociatedSocietyID: &home, IsActive: true}
		require.NoError(t, env.userRepo.Create(ctx, u))
		u.IsActive = false
		require.NoError(t, env.userRepo.Update(ctx, u))

		_, err = env.scopes.LoadPrincipal(ctx, u.ID)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("ensure access", func(t *testing.T) {
		admin := env.user(t, model.RoleAdmin, nil)
		scope, err := env.scopes.EnsureAccess(ctx, admin, other)
		require.NoError(t, err)
		assert.Equal(t, 2, scope.Len())

		_, err = env.scopes.EnsureAccess(ctx, admin, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrNotFound)

		president := env.user(t, model.RolePresident, &home)
		_, err = env.scopes.EnsureAccess(ctx, president, other)
		assert.ErrorIs(t, err, apperror.ErrAccessDenied)
		_, err = env.scopes.EnsureAccess(ctx, president, uuid.New())
		assert.ErrorIs(t, err, apperror.ErrAccessDenied)
	})
}
