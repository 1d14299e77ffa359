package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/config"
	"societyledger/internal/model"
	"societyledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type RequestAdvancePaymentRequest struct {
	SocietyID         uuid.UUID       `json:"societyId" binding:"required"`
	BillID            *uuid.UUID      `json:"billId"`
	TotalAmountNeeded decimal.Decimal `json:"totalAmountNeeded"`
	RequestedAmount   decimal.Decimal `json:"requestedAmount"`
	Remarks           string          `json:"remarks" binding:"max=2000"`
}

type ReviewAdvancePaymentRequest struct {
	Status         model.AdvancePaymentStatus `json:"status" binding:"required,advancestatus"`
	ApprovedAmount *decimal.Decimal           `json:"approvedAmount"`
	ReceivedAmount *decimal.Decimal           `json:"receivedAmount"`
	Remarks        *string                    `json:"remarks" binding:"omitempty,max=2000"`
}

type AdvancePaymentResponse struct {
	ID                string  `json:"id"`
	SocietyID         string  `json:"societyId"`
	BillID            *string `json:"billId"`
	TotalAmountNeeded string  `json:"totalAmountNeeded"`
	RequestedAmount   string  `json:"requestedAmount"`
	ApprovedAmount    *string `json:"approvedAmount"`
	ReceivedAmount    *string `json:"receivedAmount"`
	RemainingAmount   string  `json:"remainingAmount"`
	Status            string  `json:"status"`
	RequestedBy       string  `json:"requestedBy"`
	ApprovedBy        *string `json:"approvedBy"`
	Remarks           string  `json:"remarks"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// --- Interface ---

type AdvancePaymentService interface {
	Request(ctx context.Context, p auth.Principal, req RequestAdvancePaymentRequest) (AdvancePaymentResponse, error)
	Review(ctx context.Context, p auth.Principal, id uuid.UUID, req ReviewAdvancePaymentRequest) (AdvancePaymentResponse, error)
	List(ctx context.Context, p auth.Principal, societyID *uuid.UUID) ([]AdvancePaymentResponse, error)
	Get(ctx context.Context, p auth.Principal, id uuid.UUID) (AdvancePaymentResponse, error)
}

type advancePaymentService struct {
	paymentRepo repository.AdvancePaymentRepository
	billRepo    repository.BillRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	scopes      AccessScopeService
	workflow    config.WorkflowConfig
	log         *zap.Logger
}

func NewAdvancePaymentService(
	paymentRepo repository.AdvancePaymentRepository,
	billRepo repository.BillRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	scopes AccessScopeService,
	workflow config.WorkflowConfig,
	log *zap.Logger,
) AdvancePaymentService {
	return &advancePaymentService{
		paymentRepo: paymentRepo,
		billRepo:    billRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		scopes:      scopes,
		workflow:    workflow,
		log:         log.Named("advance_payments"),
	}
}

// --- Implementation ---

func (s *advancePaymentService) Request(ctx context.Context, p auth.Principal, req RequestAdvancePaymentRequest) (AdvancePaymentResponse, error) {
	if !p.CanSubmit() {
		return AdvancePaymentResponse{}, apperror.AccessDenied("your role cannot request advance payments")
	}
	if err := validateAdvanceRequest(&req); err != nil {
		return AdvancePaymentResponse{}, err
	}
	if _, err := s.scopes.EnsureAccess(ctx, p, req.SocietyID); err != nil {
		return AdvancePaymentResponse{}, err
	}
	if req.BillID != nil && s.workflow.EnforceAdvanceBillLink {
		if err := s.checkBillLink(ctx, *req.BillID, req.SocietyID); err != nil {
			return AdvancePaymentResponse{}, err
		}
	}

	payment := model.AdvancePayment{
		SocietyID:         req.SocietyID,
		BillID:            req.BillID,
		TotalAmountNeeded: req.TotalAmountNeeded,
		RequestedAmount:   req.RequestedAmount,
		Status:            model.AdvancePending,
		RequestedBy:       p.ID,
		Remarks:           strings.TrimSpace(req.Remarks),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Create(txCtx, &payment); err != nil {
			return fmt.Errorf("failed to create advance payment: %w", err)
		}
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionRequestAdvance, payment.ID.String(), "", map[string]interface{}{
			"society_id":          payment.SocietyID,
			"bill_id":             payment.BillID,
			"total_amount_needed": payment.TotalAmountNeeded.StringFixed(2),
			"requested_amount":    payment.RequestedAmount.StringFixed(2),
		})
	})
	if err != nil {
		return AdvancePaymentResponse{}, err
	}
	return toAdvancePaymentResponse(payment), nil
}

func (s *advancePaymentService) Review(ctx context.Context, p auth.Principal, id uuid.UUID, req ReviewAdvancePaymentRequest) (AdvancePaymentResponse, error) {
	if !p.CanReview() {
		return AdvancePaymentResponse{}, apperror.AccessDenied("your role cannot review advance payments")
	}
	if !req.Status.IsValid() {
		return AdvancePaymentResponse{}, apperror.Validation("invalid advance payment status",
			apperror.FieldError{Field: "status", Message: "must be one of Pending, Approved, Rejected, Partially Approved"})
	}
	if p.Role == model.RoleManager && req.Status.GrantsFunds() {
		return AdvancePaymentResponse{}, apperror.Forbidden("Managers cannot approve advance payments")
	}

	existing, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return AdvancePaymentResponse{}, err
	}
	if err := s.checkScope(ctx, p, existing.SocietyID); err != nil {
		return AdvancePaymentResponse{}, err
	}

	var payment *model.AdvancePayment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.paymentRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := validateReviewAmounts(&req, locked.TotalAmountNeeded); err != nil {
			return err
		}

		previous := locked.Status
		locked.Status = req.Status
		if req.ApprovedAmount != nil {
			amount := *req.ApprovedAmount
			locked.ApprovedAmount = &amount
		}
		if req.ReceivedAmount != nil {
			amount := *req.ReceivedAmount
			locked.ReceivedAmount = &amount
		}
		if req.Remarks != nil {
			locked.Remarks = strings.TrimSpace(*req.Remarks)
		}
		if req.Status.GrantsFunds() {
			reviewer := p.ID
			locked.ApprovedBy = &reviewer
		}

		if err := s.paymentRepo.Update(txCtx, locked); err != nil {
			return fmt.Errorf("failed to update advance payment: %w", err)
		}
		payment = locked
		return s.auditRepo.Record(txCtx, &p.ID, model.ActionReviewAdvance, locked.ID.String(), "", map[string]interface{}{
			"previous_status": previous,
			"new_status":      locked.Status,
			"approved_amount": decimalString(locked.ApprovedAmount),
			"received_amount": decimalString(locked.ReceivedAmount),
		})
	})
	if err != nil {
		return AdvancePaymentResponse{}, err
	}

	s.log.Info("advance payment reviewed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(payment.Status)),
		zap.String("by", p.ID.String()))
	return toAdvancePaymentResponse(*payment), nil
}

func (s *advancePaymentService) List(ctx context.Context, p auth.Principal, societyID *uuid.UUID) ([]AdvancePaymentResponse, error) {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.List(ctx, scope.Narrow(societyID).IDs())
	if err != nil {
		return nil, fmt.Errorf("failed to list advance payments: %w", err)
	}
	result := make([]AdvancePaymentResponse, 0, len(payments))
	for _, payment := range payments {
		result = append(result, toAdvancePaymentResponse(payment))
	}
	return result, nil
}

func (s *advancePaymentService) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (AdvancePaymentResponse, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return AdvancePaymentResponse{}, err
	}
	if err := s.checkScope(ctx, p, payment.SocietyID); err != nil {
		return AdvancePaymentResponse{}, err
	}
	return toAdvancePaymentResponse(*payment), nil
}

func (s *advancePaymentService) checkScope(ctx context.Context, p auth.Principal, societyID uuid.UUID) error {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if !scope.Contains(societyID) {
		return apperror.AccessDenied("you do not have access to this advance payment")
	}
	return nil
}

func (s *advancePaymentService) checkBillLink(ctx context.Context, billID, societyID uuid.UUID) error {
	bill, err := s.billRepo.GetByID(ctx, billID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Validation("linked bill does not exist", apperror.FieldError{Field: "billId", Message: "unknown bill"})
		}
		return err
	}
	if bill.SocietyID != societyID {
		return apperror.Validation("linked bill belongs to another society",
			apperror.FieldError{Field: "billId", Message: "must reference a bill of the same society"})
	}
	return nil
}

func validateAdvanceRequest(req *RequestAdvancePaymentRequest) error {
	req.TotalAmountNeeded = toCents(req.TotalAmountNeeded)
	req.RequestedAmount = toCents(req.RequestedAmount)

	var details []apperror.FieldError
	if req.SocietyID == uuid.Nil {
		details = append(details, apperror.FieldError{Field: "societyId", Message: "is required"})
	}
	if !req.TotalAmountNeeded.IsPositive() {
		details = append(details, apperror.FieldError{Field: "totalAmountNeeded", Message: "must be a positive number"})
	} else if exceedsMaxAmount(req.TotalAmountNeeded) {
		details = append(details, apperror.FieldError{Field: "totalAmountNeeded", Message: "must not exceed " + maxAmount.StringFixed(2)})
	}
	if req.RequestedAmount.IsNegative() {
		details = append(details, apperror.FieldError{Field: "requestedAmount", Message: "must not be negative"})
	} else if req.RequestedAmount.GreaterThan(req.TotalAmountNeeded) {
		details = append(details, apperror.FieldError{Field: "requestedAmount", Message: "must not exceed totalAmountNeeded"})
	}
	if len(details) > 0 {
		return apperror.Validation("invalid advance payment request", details...)
	}
	return nil
}

func validateReviewAmounts(req *ReviewAdvancePaymentRequest, total decimal.Decimal) error {
	var details []apperror.FieldError
	check := func(field string, amount *decimal.Decimal) {
		if amount == nil {
			return
		}
		*amount = toCents(*amount)
		if amount.IsNegative() || amount.GreaterThan(total) {
			details = append(details, apperror.FieldError{
				Field:   field,
				Message: fmt.Sprintf("must be between 0 and %s", total.StringFixed(2)),
			})
		}
	}
	check("approvedAmount", req.ApprovedAmount)
	check("receivedAmount", req.ReceivedAmount)
	if len(details) > 0 {
		return apperror.Validation("invalid review amounts", details...)
	}
	return nil
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toAdvancePaymentResponse(a model.AdvancePayment) AdvancePaymentResponse {
	return AdvancePaymentResponse{
		ID:                a.ID.String(),
		SocietyID:         a.SocietyID.String(),
		BillID:            uuidString(a.BillID),
		TotalAmountNeeded: a.TotalAmountNeeded.StringFixed(2),
		RequestedAmount:   a.RequestedAmount.StringFixed(2),
		ApprovedAmount:    decimalString(a.ApprovedAmount),
		ReceivedAmount:    decimalString(a.ReceivedAmount),
		RemainingAmount:   a.Remaining().StringFixed(2),
		Status:            string(a.Status),
		RequestedBy:       a.RequestedBy.String(),
		ApprovedBy:        uuidString(a.ApprovedBy),
		Remarks:           a.Remarks,
		CreatedAt:         a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
