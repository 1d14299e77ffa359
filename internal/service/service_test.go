package service

import (
	"context"
	"testing"
	"time"

	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/database/dbtest"
	"societyledger/internal/lock"
	"societyledger/internal/model"
	"societyledger/internal/notification"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockHook struct {
	mock.Mock
}

func (m *mockHook) Notify(ctx context.Context, event notification.Event) {
	m.Called(ctx, event)
}

// testEnv wires every service against one migrated in-memory database
type testEnv struct {
	db          *gorm.DB
	userRepo    repository.UserRepository
	societyRepo repository.SocietyRepository
	billRepo    repository.BillRepository
	paymentRepo repository.AdvancePaymentRepository
	auditRepo   repository.AuditRepository
	scopes      AccessScopeService
	hook        *mockHook
	bills       BillService
	advances    AdvancePaymentService
	reports     ReportService
	societies   SocietyService
}

func newTestEnv(t *testing.T, workflow config.WorkflowConfig) *testEnv {
	t.Helper()
	db := dbtest.New(t)

	env := &testEnv{
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		societyRepo: repository.NewSocietyRepository(db),
		billRepo:    repository.NewBillRepository(db),
		paymentRepo: repository.NewAdvancePaymentRepository(db),
		auditRepo:   repository.NewAuditRepository(db),
		hook:        &mockHook{},
	}
	tx := repository.NewTransactionManager(db)
	env.scopes = NewAccessScopeService(env.userRepo, env.societyRepo)
	env.bills = NewBillService(env.billRepo, env.auditRepo, tx, env.scopes, lock.Nop{}, env.hook, workflow, zap.NewNop())
	env.advances = NewAdvancePaymentService(env.paymentRepo, env.billRepo, env.auditRepo, tx, env.scopes, workflow, zap.NewNop())
	env.reports = NewReportService(env.billRepo, env.societyRepo, env.scopes)
	env.societies = NewSocietyService(env.societyRepo, env.userRepo, env.auditRepo, tx, env.scopes)
	return env
}

func (e *testEnv) society(t *testing.T, name string) uuid.UUID {
	t.Helper()
	s := &model.Society{Name: name, IsActive: true, ApprovalStatus: model.SocietyApproved}
	require.NoError(t, e.societyRepo.Create(context.Background(), s))
	return s.ID
}

// user stores an account and returns the principal LoadPrincipal builds for it
func (e *testEnv) user(t *testing.T, role model.UserRole, home *uuid.UUID, assigned ...uuid.UUID) auth.Principal {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		Name:                string(role) + " user",
		Email:               uuid.NewString() + "@example.com",
		Password:            "x",
		Role:                role,
		AssociatedSocietyID: home,
		IsActive:            true,
	}
	require.NoError(t, e.userRepo.Create(ctx, u))
	for _, id := range assigned {
		require.NoError(t, e.userRepo.AddAssignment(ctx, u.ID, id))
	}
	p, err := e.scopes.LoadPrincipal(ctx, u.ID)
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

func repositoryFilterAll(societyIDs ...uuid.UUID) repository.BillFilter {
	return repository.BillFilter{SocietyIDs: societyIDs}
}

// seedStoredBill writes a bill straight through the repository, bypassing workflow checks
func seedStoredBill(t *testing.T, e *testEnv, societyID uuid.UUID, amount string, status ...model.BillStatus) *model.Bill {
	t.Helper()
	b := &model.Bill{
		SocietyID:         societyID,
		VendorName:        "Vendor " + amount,
		TransactionNature: "Repairs",
		Amount:            decimal.RequireFromString(amount),
		DueDate:           time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status:            model.BillPending,
		SubmittedBy:       uuid.New(),
	}
	if len(status) > 0 {
		b.Status = status[0]
	}
	require.NoError(t, e.billRepo.Create(context.Background(), b))
	return b
}
