package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/database/dbtest"
	"societyledger/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func seedBill(t *testing.T, repo BillRepository, societyID uuid.UUID, vendor string, status model.BillStatus, createdAt time.Time) *model.Bill {
	t.Helper()
	bill := &model.Bill{
		SocietyID:         societyID,
		VendorName:        vendor,
		TransactionNature: "Maintenance",
		Amount:            decimal.RequireFromString("100.50"),
		DueDate:           createdAt.Add(30 * 24 * time.Hour),
		Status:            status,
		SubmittedBy:       uuid.New(),
		CreatedAt:         createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), bill))
	return bill
}

func TestBillRepository_List(t *testing.T) {
	db := dbtest.New(t)
	repo := NewBillRepository(db)
	ctx := context.Background()

	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	oldest := seedBill(t, repo, s1, "Acme Plumbing", model.BillPending, base)
	middle := seedBill(t, repo, s1, "Bright Electricals", model.BillApproved, base.Add(24*time.Hour))
	newest := seedBill(t, repo, s2, "ACME Security 100%", model.BillPending, base.Add(48*time.Hour))
	seedBill(t, repo, s3, "Acme Outside Scope", model.BillPending, base.Add(72*time.Hour))
	umlaut := seedBill(t, repo, s2, "ÄRZTE Bedarf GmbH", model.BillRejected, base.Add(12*time.Hour))

	t.Run("scope only, newest first", func(t *testing.T) {
		bills, err := repo.List(ctx, BillFilter{SocietyIDs: []uuid.UUID{s1, s2}})
		require.NoError(t, err)
		require.Len(t, bills, 4)
		assert.Equal(t, newest.ID, bills[0].ID)
		assert.Equal(t, middle.ID, bills[1].ID)
		assert.Equal(t, umlaut.ID, bills[2].ID)
		assert.Equal(t, oldest.ID, bills[3].ID)
	})

	t.Run("empty scope matches nothing", func(t *testing.T) {
		bills, err := repo.List(ctx, BillFilter{SocietyIDs: []uuid.UUID{}})
		require.NoError(t, err)
		assert.Empty(t, bills)
	})

	t.Run("vendor name is case-insensitive substring", func(t *testing.T) {
		bills, err := repo.List(ctx, BillFilter{SocietyIDs: []uuid.UUID{s1, s2}, VendorNameContains: "acme"})
		require.NoError(t, err)
		assert.Len(t, bills, 2)
	})

	t.Run("vendor name folds non-ascii case", func(t *testing.T) {
		bills, err := repo.List(ctx, BillFilter{SocietyIDs: []uuid.UUID{s1, s2}, VendorNameContains: "ärzte"})
		require.NoError(t, err)
		require.Len(t, bills, 1)
		assert.Equal(t, umlaut.ID, bills[0].ID)
		assert.Equal(t, "ärzte bedarf gmbh", bills[0].VendorSearch)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		bills, err := repo.List(ctx, BillFilter{SocietyIDs: []uuid.UUID{s1, s2}, VendorNameContains: "100%"})
		require.NoError(t, err)
		require.Len(t, bills, 1)
		assert.Equal(t, newest.ID, bills[0].ID)
	})

	t.Run("status and date range", func(t *testing.T) {
		from := base
		to := base.Add(24 * time.Hour)
		bills, err := repo.List(ctx, BillFilter{
			SocietyIDs:  []uuid.UUID{s1, s2},
			Status:      model.BillPending,
			CreatedFrom: &from,
			CreatedTo:   &to,
		})
		require.NoError(t, err)
		require.Len(t, bills, 1)
		assert.Equal(t, oldest.ID, bills[0].ID)
	})
}

func TestBillRepository_SaveTransitionAndRemarks(t *testing.T) {
	db := dbtest.New(t)
	repo := NewBillRepository(db)
	ctx := context.Background()

	bill := seedBill(t, repo, uuid.New(), "Acme", model.BillPending, time.Now())
	author := uuid.New()

	for i, next := range []model.BillStatus{model.BillUnderReview, model.BillApproved} {
		locked, err := repo.GetForUpdate(ctx, bill.ID)
		require.NoError(t, err)

		status := next
		remark := &model.BillRemark{
			BillID:         bill.ID,
			Seq:            locked.Version + 1,
			Text:           "step",
			AuthorID:       author,
			AuthorRole:     model.RoleTreasurer,
			PreviousStatus: locked.Status,
			NewStatus:      &status,
		}
		locked.Status = next
		locked.Version++
		require.NoError(t, repo.SaveTransition(ctx, locked, remark), "transition %d", i)
	}

	got, err := repo.GetByIDWithRemarks(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BillApproved, got.Status)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Remarks, 2)
	assert.Equal(t, model.BillPending, got.Remarks[0].PreviousStatus)
	assert.Equal(t, model.BillUnderReview, *got.Remarks[0].NewStatus)
	assert.Equal(t, model.BillUnderReview, got.Remarks[1].PreviousStatus)

	t.Run("duplicate sequence is a conflict", func(t *testing.T) {
		err := repo.SaveTransition(ctx, got, &model.BillRemark{
			BillID:         bill.ID,
			Seq:            2,
			AuthorID:       author,
			AuthorRole:     model.RoleTreasurer,
			PreviousStatus: got.Status,
		})
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})
}

func TestBillRepository_GetByID_NotFound(t *testing.T) {
	repo := NewBillRepository(dbtest.New(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestBillRepository_CountByStatus(t *testing.T) {
	repo := NewBillRepository(dbtest.New(t))
	s1 := uuid.New()
	now := time.Now()

	seedBill(t, repo, s1, "a", model.BillPending, now)
	seedBill(t, repo, s1, "b", model.BillPending, now)
	seedBill(t, repo, s1, "c", model.BillApproved, now)
	seedBill(t, repo, uuid.New(), "d", model.BillApproved, now)

	counts, err := repo.CountByStatus(context.Background(), []uuid.UUID{s1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[model.BillPending])
	assert.Equal(t, int64(1), counts[model.BillApproved])
	assert.Zero(t, counts[model.BillRejected])
}

func TestBillRepository_GetForUpdate_LocksRow(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	billID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "society_id", "vendor_name", "status", "version"}).
		AddRow(billID.String(), uuid.New().String(), "Acme", "Pending", 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bills" WHERE id = $1`) + `.*FOR UPDATE`).
		WithArgs(billID, 1).
		WillReturnRows(rows)

	bill, err := NewBillRepository(gormDB).GetForUpdate(context.Background(), billID)
	require.NoError(t, err)
	assert.Equal(t, 3, bill.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
