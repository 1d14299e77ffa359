package service

import (
	"context"
	"testing"

	"societyledger/internal/apperror"
	"societyledger/internal/config"
	"societyledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAdvancePaymentService_Lifecycle(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	ctx := context.Background()

	societyID := env.society(t, "Green Meadows")
	secretary := env.user(t, model.RoleSecretary, &societyID)
	treasurer := env.user(t, model.RoleTreasurer, &societyID)

	created, err := env.advances.Request(ctx, secretary, RequestAdvancePaymentRequest{
		SocietyID:         societyID,
		TotalAmountNeeded: dec("20000"),
		RequestedAmount:   dec("15000"),
		Remarks:           "lift repair",
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.AdvancePending), created.Status)
	assert.Equal(t, "20000.00", created.RemainingAmount)
	assert.Nil(t, created.ApprovedAmount)
	id := uuid.MustParse(created.ID)

	reviewed, err := env.advances.Review(ctx, treasurer, id, ReviewAdvancePaymentRequest{
		Status:         model.AdvancePartiallyApproved,
		ApprovedAmount: ptr(dec("15000")),
		ReceivedAmount: ptr(dec("12000")),
	})
	require.NoError(t, err)
	assert.Equal(t, string(model.AdvancePartiallyApproved), reviewed.Status)
	require.NotNil(t, reviewed.ApprovedAmount)
	assert.Equal(t, "15000.00", *reviewed.ApprovedAmount)
	assert.Equal(t, "5000.00", reviewed.RemainingAmount)
	require.NotNil(t, reviewed.ApprovedBy)
	assert.Equal(t, treasurer.ID.String(), *reviewed.ApprovedBy)
	assert.Equal(t, "lift repair", reviewed.Remarks)

	got, err := env.advances.Get(ctx, treasurer, id)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", got.RemainingAmount)

	list, err := env.advances.List(ctx, secretary, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestAdvancePaymentService_RequestValidation(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	ctx := context.Background()

	societyID := env.society(t, "Green Meadows")
	treasurer := env.user(t, model.RoleTreasurer, &societyID)

	tests := []struct {
		name      string
		total     string
		requested string
		field     string
	}{
		{"requested above total", "1000", "1000.01", "requestedAmount"},
		{"negative requested", "1000", "-1", "requestedAmount"},
		{"zero total", "0", "0", "totalAmountNeeded"},
		{"total rounds to zero", "0.004", "0", "totalAmountNeeded"},
		{"total beyond column range", "1e20", "0", "totalAmountNeeded"},
		{"requested above total after rounding", "10.004", "10.006", "requestedAmount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.advances.Request(ctx, treasurer, RequestAdvancePaymentRequest{
				SocietyID:         societyID,
				TotalAmountNeeded: dec(tt.total),
				RequestedAmount:   dec(tt.requested),
			})
			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			require.NotEmpty(t, appErr.Details)
			assert.Equal(t, tt.field, appErr.Details[0].Field)
		})
	}

	payments, err := env.paymentRepo.List(ctx, []uuid.UUID{societyID})
	require.NoError(t, err)
	assert.Empty(t, payments)

	t.Run("requested equal to total is allowed", func(t *testing.T) {
		_, err := env.advances.Request(ctx, treasurer, RequestAdvancePaymentRequest{
			SocietyID:         societyID,
			TotalAmountNeeded: dec("1000"),
			RequestedAmount:   dec("1000"),
		})
		require.NoError(t, err)
	})
}

func TestAdvancePaymentService_ReviewRules(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{})
	ctx := context.Background()

	societyID := env.society(t, "Green Meadows")
	otherID := env.society(t, "Blue Ridge")
	president := env.user(t, model.RolePresident, &societyID)
	manager := env.user(t, model.RoleManager, &societyID)
	outsider := env.user(t, model.RoleAgent, nil, otherID)

	created, err := env.advances.Request(ctx, president, RequestAdvancePaymentRequest{
		SocietyID:         societyID,
		TotalAmountNeeded: dec("500"),
		RequestedAmount:   dec("500"),
	})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	t.Run("managers cannot grant funds", func(t *testing.T) {
		_, err := env.advances.Review(ctx, manager, id, ReviewAdvancePaymentRequest{Status: model.AdvanceApproved})
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		_, err = env.advances.Review(ctx, manager, id, ReviewAdvancePaymentRequest{Status: model.AdvancePartiallyApproved})
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("managers may reject", func(t *testing.T) {
		resp, err := env.advances.Review(ctx, manager, id, ReviewAdvancePaymentRequest{Status: model.AdvanceRejected, Remarks: ptr("not budgeted")})
		require.NoError(t, err)
		assert.Equal(t, string(model.AdvanceRejected), resp.Status)
		assert.Nil(t, resp.ApprovedBy)
		assert.Equal(t, "not budgeted", resp.Remarks)
	})

	t.Run("amounts beyond total are rejected", func(t *testing.T) {
		_, err := env.advances.Review(ctx, president, id, ReviewAdvancePaymentRequest{Status: model.AdvanceApproved, ApprovedAmount: ptr(dec("500.01"))})
		assert.ErrorIs(t, err, apperror.ErrValidation)

		stored, err := env.paymentRepo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.AdvanceRejected, stored.Status)
		assert.Nil(t, stored.ApprovedAmount)
	})

	t.Run("amounts are compared after rounding to cents", func(t *testing.T) {
		resp, err := env.advances.Review(ctx, president, id, ReviewAdvancePaymentRequest{Status: model.AdvanceApproved, ApprovedAmount: ptr(dec("500.004"))})
		require.NoError(t, err)
		require.NotNil(t, resp.ApprovedAmount)
		assert.Equal(t, "500.00", *resp.ApprovedAmount)
	})

	t.Run("outsiders cannot see or review", func(t *testing.T) {
		_, err := env.advances.Get(ctx, outsider, id)
		assert.ErrorIs(t, err, apperror.ErrAccessDenied)
		_, err = env.advances.Review(ctx, outsider, id, ReviewAdvancePaymentRequest{Status: model.AdvanceRejected})
		assert.ErrorIs(t, err, apperror.ErrAccessDenied)

		list, err := env.advances.List(ctx, outsider, &societyID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestAdvancePaymentService_BillLink(t *testing.T) {
	env := newTestEnv(t, config.WorkflowConfig{EnforceAdvanceBillLink: true})
	ctx := context.Background()

	societyID := env.society(t, "Green Meadows")
	otherID := env.society(t, "Blue Ridge")
	treasurer := env.user(t, model.RoleTreasurer, &societyID)
	bill := seedStoredBill(t, env, otherID, "10")

	_, err := env.advances.Request(ctx, treasurer, RequestAdvancePaymentRequest{
		SocietyID:         societyID,
		BillID:            &bill.ID,
		TotalAmountNeeded: dec("10"),
		RequestedAmount:   dec("10"),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = env.advances.Request(ctx, treasurer, RequestAdvancePaymentRequest{
		SocietyID:         societyID,
		BillID:            ptr(uuid.New()),
		TotalAmountNeeded: dec("10"),
		RequestedAmount:   dec("10"),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
