package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type ExpenseReportQuery struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	SocietyID string `form:"societyId"`
	Status    string `form:"status"`
}

type SummaryCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
}

type ExpenseSummary struct {
	TotalAmount   string `json:"totalAmount"`
	TotalBills    int    `json:"totalBills"`
	AverageAmount string `json:"averageAmount"`
}

type DateRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

type ExpenseReport struct {
	Summary   ExpenseSummary    `json:"summary"`
	ByStatus  map[string]string `json:"byStatus"`
	BySociety map[string]string `json:"bySociety"`
	Bills     []BillResponse    `json:"bills"`
	DateRange DateRange         `json:"dateRange"`
}

// --- Interface ---

type ReportService interface {
	SummaryCounts(ctx context.Context, p auth.Principal) (SummaryCounts, error)
	ExpenseReport(ctx context.Context, p auth.Principal, query ExpenseReportQuery) (ExpenseReport, error)
}

type reportService struct {
	billRepo    repository.BillRepository
	societyRepo repository.SocietyRepository
	scopes      AccessScopeService
}

func NewReportService(billRepo repository.BillRepository, societyRepo repository.SocietyRepository, scopes AccessScopeService) ReportService {
	return &reportService{billRepo: billRepo, societyRepo: societyRepo, scopes: scopes}
}

// --- Implementation ---

func (s *reportService) SummaryCounts(ctx context.Context, p auth.Principal) (SummaryCounts, error) {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return SummaryCounts{}, err
	}
	counts, err := s.billRepo.CountByStatus(ctx, scope.IDs())
	if err != nil {
		return SummaryCounts{}, fmt.Errorf("failed to count bills: %w", err)
	}
	return SummaryCounts{
		Pending:  counts[model.BillPending],
		Approved: counts[model.BillApproved],
	}, nil
}

func (s *reportService) ExpenseReport(ctx context.Context, p auth.Principal, query ExpenseReportQuery) (ExpenseReport, error) {
	filter, err := parseExpenseQuery(query)
	if err != nil {
		return ExpenseReport{}, err
	}

	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return ExpenseReport{}, err
	}
	filter.bills.SocietyIDs = scope.Narrow(filter.societyID).IDs()

	bills, err := s.billRepo.List(ctx, filter.bills)
	if err != nil {
		return ExpenseReport{}, fmt.Errorf("failed to list bills: %w", err)
	}

	societyIDs := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]bool)
	for _, b := range bills {
		if !seen[b.SocietyID] {
			seen[b.SocietyID] = true
			societyIDs = append(societyIDs, b.SocietyID)
		}
	}
	names, err := s.societyRepo.NamesByID(ctx, societyIDs)
	if err != nil {
		return ExpenseReport{}, fmt.Errorf("failed to resolve society names: %w", err)
	}

	report := aggregateExpenses(bills, names)
	report.DateRange = DateRange{Start: formatOptional(filter.bills.CreatedFrom), End: formatOptional(filter.bills.CreatedTo)}
	return report, nil
}

type expenseFilter struct {
	bills     repository.BillFilter
	societyID *uuid.UUID
}

func parseExpenseQuery(q ExpenseReportQuery) (expenseFilter, error) {
	var (
		f       expenseFilter
		details []apperror.FieldError
	)

	if raw := strings.TrimSpace(q.StartDate); raw != "" {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			details = append(details, apperror.FieldError{Field: "startDate", Message: err.Error()})
		} else {
			f.bills.CreatedFrom = &ts
		}
	}
	if raw := strings.TrimSpace(q.EndDate); raw != "" {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			details = append(details, apperror.FieldError{Field: "endDate", Message: err.Error()})
		} else {
			end := endOfDay(raw, ts)
			f.bills.CreatedTo = &end
		}
	}
	if f.bills.CreatedFrom != nil && f.bills.CreatedTo != nil && f.bills.CreatedTo.Before(*f.bills.CreatedFrom) {
		details = append(details, apperror.FieldError{Field: "endDate", Message: "must not be before startDate"})
	}
	if raw := strings.TrimSpace(q.SocietyID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			details = append(details, apperror.FieldError{Field: "societyId", Message: "must be a valid id"})
		} else {
			f.societyID = &id
		}
	}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		status := model.BillStatus(raw)
		if !status.IsValid() {
			details = append(details, apperror.FieldError{Field: "status", Message: "unknown status"})
		} else {
			f.bills.Status = status
		}
	}

	if len(details) > 0 {
		return expenseFilter{}, apperror.Validation("invalid report filter", details...)
	}
	return f, nil
}

// aggregateExpenses builds the summary and both rollups from the same bill set,
// so total == sum(byStatus) == sum(bySociety)
func aggregateExpenses(bills []model.Bill, societyNames map[uuid.UUID]string) ExpenseReport {
	total := decimal.Zero
	byStatus := make(map[string]decimal.Decimal)
	bySociety := make(map[string]decimal.Decimal)
	responses := make([]BillResponse, 0, len(bills))

	for _, b := range bills {
		total = total.Add(b.Amount)
		byStatus[string(b.Status)] = byStatus[string(b.Status)].Add(b.Amount)

		name, ok := societyNames[b.SocietyID]
		if !ok || name == "" {
			name = b.SocietyID.String()
		}
		bySociety[name] = bySociety[name].Add(b.Amount)
		responses = append(responses, toBillResponse(b))
	}

	average := decimal.Zero
	if len(bills) > 0 {
		average = total.Div(decimal.NewFromInt(int64(len(bills)))).Round(2)
	}

	return ExpenseReport{
		Summary: ExpenseSummary{
			TotalAmount:   total.StringFixed(2),
			TotalBills:    len(bills),
			AverageAmount: average.StringFixed(2),
		},
		ByStatus:  fixedMap(byStatus),
		BySociety: fixedMap(bySociety),
		Bills:     responses,
	}
}

func fixedMap(m map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.StringFixed(2)
	}
	return out
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
