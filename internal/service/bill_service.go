package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/lock"
	"societyledger/internal/model"
	"societyledger/internal/notification"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateBillRequest struct {
	SocietyID         uuid.UUID              `json:"societyId" binding:"required"`
	VendorName        string                 `json:"vendorName" binding:"required,max=255"`
	VendorContact     string                 `json:"vendorContact" binding:"max=255"`
	TransactionNature string                 `json:"transactionNature" binding:"required,max=255"`
	Amount            decimal.Decimal        `json:"amount"`
	DueDate           Timestamp              `json:"dueDate"`
	Attachments       []model.BillAttachment `json:"attachments" binding:"max=20,dive"`
}

type UpdateBillStatusRequest struct {
	Status model.BillStatus `json:"status" binding:"required,billstatus"`
	Remark string           `json:"remark" binding:"max=2000"`
	// Version, when given, must match the stored version or the update is rejected
	Version *int `json:"version" binding:"omitempty,min=0"`
}

type AddRemarkRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type BillListFilter struct {
	SocietyID          *uuid.UUID
	Status             model.BillStatus
	VendorNameContains string
}

type RemarkResponse struct {
	Seq            int     `json:"seq"`
	Text           string  `json:"text"`
	AuthorID       string  `json:"authorId"`
	AuthorRole     string  `json:"authorRole"`
	Timestamp      string  `json:"timestamp"`
	PreviousStatus string  `json:"previousStatus"`
	NewStatus      *string `json:"newStatus,omitempty"`
}

type BillResponse struct {
	ID                string                 `json:"id"`
	SocietyID         string                 `json:"societyId"`
	VendorName        string                 `json:"vendorName"`
	VendorContact     string                 `json:"vendorContact"`
	TransactionNature string                 `json:"transactionNature"`
	Amount            string                 `json:"amount"`
	DueDate           string                 `json:"dueDate"`
	Status            string                 `json:"status"`
	Attachments       []model.BillAttachment `json:"attachments"`
	SubmittedBy       string                 `json:"submittedBy"`
	Version           int                    `json:"version"`
	Remarks           []RemarkResponse       `json:"remarks"`
	CreatedAt         string                 `json:"createdAt"`
	UpdatedAt         string                 `json:"updatedAt"`
}

// BillChangeResponse acknowledges a status change or remark
type BillChangeResponse struct {
	OK      bool           `json:"ok"`
	BillID  string         `json:"billId"`
	Status  string         `json:"status"`
	Version int            `json:"version"`
	Remark  RemarkResponse `json:"remark"`
}

// --- Interface ---

type BillService interface {
	CreateBill(ctx context.Context, p auth.Principal, req CreateBillRequest) (BillResponse, error)
	UpdateStatus(ctx context.Context, p auth.Principal, billID uuid.UUID, req UpdateBillStatusRequest) (BillChangeResponse, error)
	AddRemark(ctx context.Context, p auth.Principal, billID uuid.UUID, req AddRemarkRequest) (BillChangeResponse, error)
	ListBills(ctx context.Context, p auth.Principal, filter BillListFilter) ([]BillResponse, error)
	ListBillsBySociety(ctx context.Context, p auth.Principal, societyID uuid.UUID) ([]BillResponse, error)
	GetBill(ctx context.Context, p auth.Principal, billID uuid.UUID) (BillResponse, error)
	ListRemarks(ctx context.Context, p auth.Principal, billID uuid.UUID) ([]RemarkResponse, error)
}

type billService struct {
	billRepo  repository.BillRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	scopes    AccessScopeService
	locker    lock.Locker
	hook      notification.Hook
	workflow  config.WorkflowConfig
	log       *zap.Logger
}

func NewBillService(
	billRepo repository.BillRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	scopes AccessScopeService,
	locker lock.Locker,
	hook notification.Hook,
	workflow config.WorkflowConfig,
	log *zap.Logger,
) BillService {
	if locker == nil {
		locker = lock.Nop{}
	}
	if hook == nil {
		hook = notification.NopHook{}
	}
	return &billService{
		billRepo:  billRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		scopes:    scopes,
		locker:    locker,
		hook:      hook,
		workflow:  workflow,
		log:       log.Named("bills"),
	}
}

// --- Implementation ---

func (s *billService) CreateBill(ctx context.Context, p auth.Principal, req CreateBillRequest) (BillResponse, error) {
	if !p.CanSubmit() {
		return BillResponse{}, apperror.AccessDenied("your role cannot submit bills")
	}
	if err := validateCreateBill(&req); err != nil {
		return BillResponse{}, err
	}
	if _, err := s.scopes.EnsureAccess(ctx, p, req.SocietyID); err != nil {
		return BillResponse{}, err
	}

	bill := model.Bill{
		SocietyID:         req.SocietyID,
		VendorName:        req.VendorName,
		VendorContact:     strings.TrimSpace(req.VendorContact),
		TransactionNature: req.TransactionNature,
		Amount:            req.Amount,
		DueDate:           req.DueDate.Time,
		Status:            model.BillPending,
		Attachments:       req.Attachments,
		SubmittedBy:       p.ID,
	}
	if bill.Attachments == nil {
		bill.Attachments = []model.BillAttachment{}
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.billRepo.Create(txCtx, &bill); err != nil {
			return fmt.Errorf("failed to create bill: %w", err)
		}
		repository.AfterCommit(txCtx, func() {
			s.hook.Notify(ctx, billEvent(notification.BillCreated, &bill, nil, p))
		})
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionCreateBill, bill.ID.String(), bill.VendorName, map[string]interface{}{
			"society_id": bill.SocietyID,
			"amount":     bill.Amount.StringFixed(2),
			"due_date":   bill.DueDate,
		})
	})
	if err != nil {
		return BillResponse{}, err
	}

	return toBillResponse(bill), nil
}

func (s *billService) UpdateStatus(ctx context.Context, p auth.Principal, billID uuid.UUID, req UpdateBillStatusRequest) (BillChangeResponse, error) {
	if !p.CanReview() {
		return BillChangeResponse{}, apperror.AccessDenied("your role cannot review bills")
	}
	if !req.Status.IsValid() {
		return BillChangeResponse{}, apperror.Validation("invalid bill status",
			apperror.FieldError{Field: "status", Message: "must be one of Pending, Under Review, Clarification Required, Approved, Rejected"})
	}
	if p.Role == model.RoleManager && req.Status == model.BillApproved {
		return BillChangeResponse{}, apperror.Forbidden("Managers cannot approve bills")
	}

	if _, err := s.loadInScope(ctx, p, billID); err != nil {
		return BillChangeResponse{}, err
	}

	release, err := s.locker.Acquire(ctx, "bill:"+billID.String())
	if err != nil {
		return BillChangeResponse{}, err
	}
	defer release()

	var (
		bill   *model.Bill
		remark *model.BillRemark
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.billRepo.GetForUpdate(txCtx, billID)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != locked.Version {
			return apperror.Conflict(fmt.Sprintf("bill was modified concurrently (version %d, now %d)", *req.Version, locked.Version))
		}
		if s.workflow.LockTerminalBills && locked.Status.IsTerminal() && locked.Status != req.Status && !p.IsAdmin() {
			return apperror.Forbidden("only an Admin can reopen an approved or rejected bill")
		}

		newStatus := req.Status
		remark = appendRemark(locked, p, strings.TrimSpace(req.Remark), &newStatus)
		locked.Status = newStatus

		if err := s.billRepo.SaveTransition(txCtx, locked, remark); err != nil {
			return fmt.Errorf("failed to update bill status: %w", err)
		}
		bill = locked
		repository.AfterCommit(txCtx, func() {
			s.hook.Notify(ctx, billEvent(notification.RemarkAdded, locked, remark, p))
		})
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionUpdateBillStatus, locked.ID.String(), locked.VendorName, map[string]interface{}{
			"previous_status": remark.PreviousStatus,
			"new_status":      newStatus,
			"version":         locked.Version,
		})
	})
	if err != nil {
		return BillChangeResponse{}, err
	}

	s.log.Info("bill status updated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("from", string(remark.PreviousStatus)),
		zap.String("to", string(bill.Status)),
		zap.String("by", p.ID.String()))

	return toBillChangeResponse(bill, remark), nil
}

func (s *billService) AddRemark(ctx context.Context, p auth.Principal, billID uuid.UUID, req AddRemarkRequest) (BillChangeResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return BillChangeResponse{}, apperror.Validation("remark text is required",
			apperror.FieldError{Field: "text", Message: "must not be empty"})
	}
	if _, err := s.loadInScope(ctx, p, billID); err != nil {
		return BillChangeResponse{}, err
	}

	release, err := s.locker.Acquire(ctx, "bill:"+billID.String())
	if err != nil {
		return BillChangeResponse{}, err
	}
	defer release()

	var (
		bill   *model.Bill
		remark *model.BillRemark
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.billRepo.GetForUpdate(txCtx, billID)
		if err != nil {
			return err
		}
		remark = appendRemark(locked, p, text, nil)
		if err := s.billRepo.SaveTransition(txCtx, locked, remark); err != nil {
			return fmt.Errorf("failed to add remark: %w", err)
		}
		bill = locked
		repository.AfterCommit(txCtx, func() {
			s.hook.Notify(ctx, billEvent(notification.RemarkAdded, locked, remark, p))
		})
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionAddBillRemark, locked.ID.String(), locked.VendorName, map[string]interface{}{
			"status":  locked.Status,
			"version": locked.Version,
		})
	})
	if err != nil {
		return BillChangeResponse{}, err
	}

	return toBillChangeResponse(bill, remark), nil
}

func (s *billService) ListBills(ctx context.Context, p auth.Principal, filter BillListFilter) ([]BillResponse, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("invalid bill status", apperror.FieldError{Field: "status", Message: "unknown status"})
	}
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.BillFilter{
		SocietyIDs:         scope.Narrow(filter.SocietyID).IDs(),
		Status:             filter.Status,
		VendorNameContains: strings.TrimSpace(filter.VendorNameContains),
	})
}

func (s *billService) ListBillsBySociety(ctx context.Context, p auth.Principal, societyID uuid.UUID) ([]BillResponse, error) {
	if _, err := s.scopes.EnsureAccess(ctx, p, societyID); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.BillFilter{SocietyIDs: []uuid.UUID{societyID}})
}

func (s *billService) GetBill(ctx context.Context, p auth.Principal, billID uuid.UUID) (BillResponse, error) {
	bill, err := s.billRepo.GetByIDWithRemarks(ctx, billID)
	if err != nil {
		return BillResponse{}, err
	}
	if err := s.checkBillScope(ctx, p, bill); err != nil {
		return BillResponse{}, err
	}
	return toBillResponse(*bill), nil
}

func (s *billService) ListRemarks(ctx context.Context, p auth.Principal, billID uuid.UUID) ([]RemarkResponse, error) {
	if _, err := s.loadInScope(ctx, p, billID); err != nil {
		return nil, err
	}
	remarks, err := s.billRepo.ListRemarks(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list remarks: %w", err)
	}
	return toRemarkResponses(remarks), nil
}

func (s *billService) list(ctx context.Context, filter repository.BillFilter) ([]BillResponse, error) {
	filter.WithRemarks = true
	bills, err := s.billRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	result := make([]BillResponse, 0, len(bills))
	for _, b := range bills {
		result = append(result, toBillResponse(b))
	}
	return result, nil
}

// loadInScope fetches a bill and checks the caller can reach its society
func (s *billService) loadInScope(ctx context.Context, p auth.Principal, billID uuid.UUID) (*model.Bill, error) {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBillScope(ctx, p, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *billService) checkBillScope(ctx context.Context, p auth.Principal, bill *model.Bill) error {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if !scope.Contains(bill.SocietyID) {
		return apperror.AccessDenied("you do not have access to this bill")
	}
	return nil
}

// appendRemark bumps the bill version and builds the remark that records it.
// It must be called before the bill status is changed.
func appendRemark(bill *model.Bill, p auth.Principal, text string, newStatus *model.BillStatus) *model.BillRemark {
	bill.Version++
	return &model.BillRemark{
		BillID:         bill.ID,
		Seq:            bill.Version,
		Text:           text,
		AuthorID:       p.ID,
		AuthorRole:     p.Role,
		PreviousStatus: bill.Status,
		NewStatus:      newStatus,
		CreatedAt:      time.Now().UTC(),
	}
}

func validateCreateBill(req *CreateBillRequest) error {
	req.VendorName = strings.TrimSpace(req.VendorName)
	req.TransactionNature = strings.TrimSpace(req.TransactionNature)

	var details []apperror.FieldError
	if req.SocietyID == uuid.Nil {
		details = append(details, apperror.FieldError{Field: "societyId", Message: "is required"})
	}
	if req.VendorName == "" {
		details = append(details, apperror.FieldError{Field: "vendorName", Message: "is required"})
	}
	if req.TransactionNature == "" {
		details = append(details, apperror.FieldError{Field: "transactionNature", Message: "is required"})
	}
	req.Amount = toCents(req.Amount)
	if !req.Amount.IsPositive() {
		details = append(details, apperror.FieldError{Field: "amount", Message: "must be a positive number"})
	} else if exceedsMaxAmount(req.Amount) {
		details = append(details, apperror.FieldError{Field: "amount", Message: "must not exceed " + maxAmount.StringFixed(2)})
	}
	if req.DueDate.IsZero() {
		details = append(details, apperror.FieldError{Field: "dueDate", Message: "must be a valid timestamp"})
	}
	for i, a := range req.Attachments {
		if strings.TrimSpace(a.FileURL) == "" {
			details = append(details, apperror.FieldError{Field: fmt.Sprintf("attachments[%d].fileUrl", i), Message: "is required"})
		}
	}
	if len(details) > 0 {
		return apperror.Validation("invalid bill", details...)
	}
	return nil
}

func billEvent(kind notification.EventType, bill *model.Bill, remark *model.BillRemark, p auth.Principal) notification.Event {
	event := notification.Event{
		Type:              kind,
		SocietyID:         bill.SocietyID,
		BillID:            bill.ID,
		VendorName:        bill.VendorName,
		TransactionNature: bill.TransactionNature,
		Amount:            bill.Amount.StringFixed(2),
		DueDate:           bill.DueDate,
		Status:            string(bill.Status),
		ActorID:           p.ID,
		ActorRole:         string(p.Role),
		OccurredAt:        time.Now().UTC(),
		AttachmentCount:   len(bill.Attachments),
	}
	if remark != nil {
		event.Remark = remark.Text
		event.PreviousStatus = string(remark.PreviousStatus)
	}
	return event
}

func toBillResponse(b model.Bill) BillResponse {
	attachments := []model.BillAttachment(b.Attachments)
	if attachments == nil {
		attachments = []model.BillAttachment{}
	}
	return BillResponse{
		ID:                b.ID.String(),
		SocietyID:         b.SocietyID.String(),
		VendorName:        b.VendorName,
		VendorContact:     b.VendorContact,
		TransactionNature: b.TransactionNature,
		Amount:            b.Amount.StringFixed(2),
		DueDate:           b.DueDate.UTC().Format(time.RFC3339),
		Status:            string(b.Status),
		Attachments:       attachments,
		SubmittedBy:       b.SubmittedBy.String(),
		Version:           b.Version,
		Remarks:           toRemarkResponses(b.Remarks),
		CreatedAt:         b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toRemarkResponse(r model.BillRemark) RemarkResponse {
	resp := RemarkResponse{
		Seq:            r.Seq,
		Text:           r.Text,
		AuthorID:       r.AuthorID.String(),
		AuthorRole:     string(r.AuthorRole),
		Timestamp:      r.CreatedAt.UTC().Format(time.RFC3339),
		PreviousStatus: string(r.PreviousStatus),
	}
	if r.NewStatus != nil {
		status := string(*r.NewStatus)
		resp.NewStatus = &status
	}
	return resp
}

func toRemarkResponses(remarks []model.BillRemark) []RemarkResponse {
	result := make([]RemarkResponse, 0, len(remarks))
	for _, r := range remarks {
		result = append(result, toRemarkResponse(r))
	}
	return result
}

func toBillChangeResponse(bill *model.Bill, remark *model.BillRemark) BillChangeResponse {
	return BillChangeResponse{
		OK:      true,
		BillID:  bill.ID.String(),
		Status:  string(bill.Status),
		Version: bill.Version,
		Remark:  toRemarkResponse(*remark),
	}
}
