package service

import (
	"context"
	"testing"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(env *testEnv) (UserService, *auth.TokenManager) {
	tokens := auth.NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "society-ledger", AccessTokenExpiration: time.Hour})
	svc := NewUserService(env.userRepo, env.societyRepo, env.auditRepo, repository.NewTransactionManager(env.db), env.scopes, tokens, zap.NewNop())
	return svc, tokens
}

func TestUserService_SeedAndLogin(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	users, tokens := newUserService(env)
	ctx := context.Background()

	seed := config.SeedConfig{AdminEmail: "Admin@Ledger.io", AdminPassword: "changeme123", AdminName: "Admin"}
	require.NoError(t, users.SeedAdmin(ctx, seed))
	// second run is a no-op
	require.NoError(t, users.SeedAdmin(ctx, seed))

	resp, err := users.Login(ctx, LoginRequest{Email: "admin@ledger.io", Password: "changeme123"})
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleAdmin), resp.User.Role)
	assert.NotEmpty(t, resp.ExpiresAt)

	claims, err := tokens.Parse(resp.Token)
	require.NoError(t, err)
	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID.String())

	_, err = users.Login(ctx, LoginRequest{Email: "admin@ledger.io", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = users.Login(ctx, LoginRequest{Email: "nobody@ledger.io", Password: "changeme123"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestUserService_AgentLifecycle(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	users, _ := newUserService(env)
	ctx := context.Background()

	admin := env.user(t, model.RoleAdmin, nil)
	meadows := env.society(t, "Green Meadows")
	ridge := env.society(t, "Blue Ridge")

	created, err := users.CreateAgent(ctx, admin, CreateAgentRequest{
		Name:              "Ravi",
		Email:             "ravi@agency.in",
		Password:          "agentpass1",
		AssignedSocieties: []uuid.UUID{meadows, meadows},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{meadows.String()}, created.AssignedSocieties)
	agentID := uuid.MustParse(created.ID)

	_, err = users.CreateAgent(ctx, admin, CreateAgentRequest{Name: "Dup", Email: "RAVI@agency.in", Password: "agentpass1"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = users.UpdateAgentSocieties(ctx, admin, agentID, UpdateAgentSocietiesRequest{AssignedSocieties: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	updated, err := users.UpdateAgentSocieties(ctx, admin, agentID, UpdateAgentSocietiesRequest{AssignedSocieties: []uuid.UUID{meadows, ridge}})
	require.NoError(t, err)
	assert.Len(t, updated.AssignedSocieties, 2)

	p, err := env.scopes.LoadPrincipal(ctx, agentID)
	require.NoError(t, err)
	me, err := users.Me(ctx, p)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{meadows.String(), ridge.String()}, me.AccessibleSocieties)
	assert.False(t, me.CanSubmitBills)
	assert.True(t, me.CanReviewBills)

	list, total, err := users.ListAgents(ctx, admin, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].AssignedSocieties, 2)

	_, err = env.societies.AssignAgent(ctx, admin, meadows, AssignAgentRequest{AgentID: agentID})
	require.NoError(t, err)

	require.NoError(t, users.TerminateAgent(ctx, admin, agentID))

	_, err = env.scopes.LoadPrincipal(ctx, agentID)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	ids, err := env.userRepo.AssignedSocietyIDs(ctx, agentID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	society, err := env.societyRepo.GetByID(ctx, meadows)
	require.NoError(t, err)
	assert.Nil(t, society.AssignedAgentID)

	_, err = users.Login(ctx, LoginRequest{Email: "ravi@agency.in", Password: "agentpass1"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	err = users.TerminateAgent(ctx, admin, admin.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserService_UpdateAgentSocietiesClearsDroppedPointers(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	users, _ := newUserService(env)
	ctx := context.Background()

	admin := env.user(t, model.RoleAdmin, nil)
	meadows := env.society(t, "Green Meadows")
	ridge := env.society(t, "Blue Ridge")

	created, err := users.CreateAgent(ctx, admin, CreateAgentRequest{
		Name:              "Ravi",
		Email:             "ravi@agency.in",
		Password:          "agentpass1",
		AssignedSocieties: []uuid.UUID{meadows, ridge},
	})
	require.NoError(t, err)
	agentID := uuid.MustParse(created.ID)

	_, err = env.societies.AssignAgent(ctx, admin, meadows, AssignAgentRequest{AgentID: agentID})
	require.NoError(t, err)
	_, err = env.societies.AssignAgent(ctx, admin, ridge, AssignAgentRequest{AgentID: agentID})
	require.NoError(t, err)

	_, err = users.UpdateAgentSocieties(ctx, admin, agentID, UpdateAgentSocietiesRequest{AssignedSocieties: []uuid.UUID{ridge}})
	require.NoError(t, err)

	dropped, err := env.societyRepo.GetByID(ctx, meadows)
	require.NoError(t, err)
	assert.Nil(t, dropped.AssignedAgentID)

	kept, err := env.societyRepo.GetByID(ctx, ridge)
	require.NoError(t, err)
	require.NotNil(t, kept.AssignedAgentID)
	assert.Equal(t, agentID, *kept.AssignedAgentID)

	recipients, err := NewRecipientResolver(env.societyRepo, env.userRepo).Resolve(ctx, meadows)
	require.NoError(t, err)
	assert.NotContains(t, recipients.Emails, "ravi@agency.in")

	_, err = users.UpdateAgentSocieties(ctx, admin, agentID, UpdateAgentSocietiesRequest{})
	require.NoError(t, err)
	kept, err = env.societyRepo.GetByID(ctx, ridge)
	require.NoError(t, err)
	assert.Nil(t, kept.AssignedAgentID)
}

func TestUserService_ManagerCapabilities(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	users, _ := newUserService(env)
	societyID := env.society(t, "Green Meadows")
	manager := env.user(t, model.RoleManager, &societyID)

	me, err := users.Me(context.Background(), manager)
	require.NoError(t, err)
	assert.True(t, me.CanSubmitBills)
	assert.True(t, me.CanReviewBills)
	assert.False(t, me.CanApproveBills)
	assert.Equal(t, []string{societyID.String()}, me.AccessibleSocieties)
	require.NotNil(t, me.User.AssociatedSocietyID)
}
