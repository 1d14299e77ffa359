package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

type mockBillService struct{ mock.Mock }

func (m *mockBillService) CreateBill(ctx context.Context, p auth.Principal, req service.CreateBillRequest) (service.BillResponse, error) {
	args := m.Called(ctx, p, req)
	return args.Get(0).(service.BillResponse), args.Error(1)
}

func (m *mockBillService) UpdateStatus(ctx context.Context, p auth.Principal, id uuid.UUID, req service.UpdateBillStatusRequest) (service.BillChangeResponse, error) {
	args := m.Called(ctx, p, id, req)
	return args.Get(0).(service.BillChangeResponse), args.Error(1)
}

func (m *mockBillService) AddRemark(ctx context.Context, p auth.Principal, id uuid.UUID, req service.AddRemarkRequest) (service.BillChangeResponse, error) {
	args := m.Called(ctx, p, id, req)
	return args.Get(0).(service.BillChangeResponse), args.Error(1)
}

func (m *mockBillService) ListBills(ctx context.Context, p auth.Principal, f service.BillListFilter) ([]service.BillResponse, error) {
	args := m.Called(ctx, p, f)
	return args.Get(0).([]service.BillResponse), args.Error(1)
}

func (m *mockBillService) ListBillsBySociety(ctx context.Context, p auth.Principal, id uuid.UUID) ([]service.BillResponse, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).([]service.BillResponse), args.Error(1)
}

func (m *mockBillService) GetBill(ctx context.Context, p auth.Principal, id uuid.UUID) (service.BillResponse, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).(service.BillResponse), args.Error(1)
}

func (m *mockBillService) ListRemarks(ctx context.Context, p auth.Principal, id uuid.UUID) ([]service.RemarkResponse, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).([]service.RemarkResponse), args.Error(1)
}

type mockReportService struct{ mock.Mock }

func (m *mockReportService) SummaryCounts(ctx context.Context, p auth.Principal) (service.SummaryCounts, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(service.SummaryCounts), args.Error(1)
}

func (m *mockReportService) ExpenseReport(ctx context.Context, p auth.Principal, q service.ExpenseReportQuery) (service.ExpenseReport, error) {
	args := m.Called(ctx, p, q)
	return args.Get(0).(service.ExpenseReport), args.Error(1)
}

type mockUploadService struct{ mock.Mock }

func (m *mockUploadService) Upload(ctx context.Context, p auth.Principal, files []service.UploadFile) (service.UploadResponse, error) {
	args := m.Called(ctx, p, files)
	return args.Get(0).(service.UploadResponse), args.Error(1)
}

type registrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// newRouter mounts h behind a stand-in for Authenticate that injects p
func newRouter(p *auth.Principal, h registrar) *gin.Engine {
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		if p != nil {
			middleware.SetPrincipal(c, *p)
		}
		c.Next()
	})
	h.RegisterRoutes(api)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func principal(role model.UserRole) *auth.Principal {
	p := auth.Principal{ID: uuid.New(), Role: role}
	if role.IsOfficer() {
		home := uuid.New()
		p.HomeSocietyID = &home
	}
	return &p
}

func TestBillHandler_CreateBill(t *testing.T) {
	treasurer := principal(model.RoleTreasurer)
	svc := new(mockBillService)
	r := newRouter(treasurer, NewBillHandler(svc))

	billID := uuid.New()
	svc.On("CreateBill", mock.Anything, *treasurer, mock.MatchedBy(func(req service.CreateBillRequest) bool {
		return req.VendorName == "Acme Plumbing" && req.Amount.Equal(decimal.RequireFromString("150.75"))
	})).Return(service.BillResponse{ID: billID.String(), Status: string(model.BillPending)}, nil).Once()

	w := do(r, http.MethodPost, "/api/bills", map[string]interface{}{
		"societyId":         treasurer.HomeSocietyID.String(),
		"vendorName":        "Acme Plumbing",
		"transactionNature": "Repairs",
		"amount":            "150.75",
		"dueDate":           "2026-11-01",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, billID.String(), body.Data.(map[string]interface{})["id"])
	svc.AssertExpectations(t)
}

func TestBillHandler_CreateBill_BindingFailure(t *testing.T) {
	svc := new(mockBillService)
	r := newRouter(principal(model.RoleTreasurer), NewBillHandler(svc))

	w := do(r, http.MethodPost, "/api/bills", map[string]interface{}{"amount": "10"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, string(apperror.KindValidation), body.Code)
	fields := map[string]bool{}
	for _, d := range body.Details.([]interface{}) {
		fields[d.(map[string]interface{})["field"].(string)] = true
	}
	assert.True(t, fields["societyId"])
	assert.True(t, fields["vendorName"])
	assert.True(t, fields["transactionNature"])
	svc.AssertNotCalled(t, "CreateBill", mock.Anything, mock.Anything, mock.Anything)
}

func TestBillHandler_RoleGates(t *testing.T) {
	tests := []struct {
		name   string
		role   model.UserRole
		method string
		path   string
	}{
		{"agent cannot submit", model.RoleAgent, http.MethodPost, "/api/bills"},
		{"admin cannot remark", model.RoleAdmin, http.MethodPost, "/api/bills/" + uuid.NewString() + "/remarks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBillService)
			r := newRouter(principal(tt.role), NewBillHandler(svc))

			w := do(r, tt.method, tt.path, `{}`)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, string(apperror.KindAccessDenied), decodeBody(t, w).Code)
			assert.Empty(t, svc.Calls)
		})
	}
}

func TestBillHandler_Unauthenticated(t *testing.T) {
	r := newRouter(nil, NewBillHandler(new(mockBillService)))
	w := do(r, http.MethodGet, "/api/bills", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBillHandler_UpdateStatus(t *testing.T) {
	agent := principal(model.RoleAgent)
	billID := uuid.New()

	tests := []struct {
		name       string
		path       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", path: billID.String(), body: `{"status":"Approved","remark":"fine"}`, wantStatus: http.StatusOK},
		{name: "bad id", path: "not-a-uuid", body: `{"status":"Approved"}`, wantStatus: http.StatusBadRequest, wantCode: string(apperror.KindValidation)},
		{name: "unknown status", path: billID.String(), body: `{"status":"Paid"}`, wantStatus: http.StatusBadRequest, wantCode: string(apperror.KindValidation)},
		{name: "stale version", path: billID.String(), body: `{"status":"Rejected","version":1}`, serviceErr: apperror.Conflict("bill was modified"), wantStatus: http.StatusConflict, wantCode: string(apperror.KindConflict)},
		{name: "out of scope", path: billID.String(), body: `{"status":"Rejected"}`, serviceErr: apperror.AccessDenied("access denied"), wantStatus: http.StatusForbidden, wantCode: string(apperror.KindAccessDenied)},
		{name: "unclassified", path: billID.String(), body: `{"status":"Rejected"}`, serviceErr: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantCode: string(apperror.KindInternal)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBillService)
			r := newRouter(agent, NewBillHandler(svc))
			svc.On("UpdateStatus", mock.Anything, *agent, billID, mock.Anything).
				Return(service.BillChangeResponse{OK: true, BillID: billID.String(), Status: "Approved", Version: 2}, tt.serviceErr).Maybe()

			w := do(r, http.MethodPut, "/api/bills/"+tt.path+"/status", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decodeBody(t, w)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Code)
				return
			}
			assert.Equal(t, float64(2), body.Data.(map[string]interface{})["version"])
		})
	}
}

func TestBillHandler_ListBills_PassesFilter(t *testing.T) {
	president := principal(model.RolePresident)
	svc := new(mockBillService)
	r := newRouter(president, NewBillHandler(svc))

	societyID := *president.HomeSocietyID
	svc.On("ListBills", mock.Anything, *president, service.BillListFilter{
		SocietyID:          &societyID,
		Status:             model.BillUnderReview,
		VendorNameContains: "acme",
	}).Return([]service.BillResponse{{ID: uuid.NewString()}}, nil).Once()

	w := do(r, http.MethodGet, "/api/bills?societyId="+societyID.String()+"&status=Under%20Review&q=acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeBody(t, w).Data, 1)
	svc.AssertExpectations(t)

	w = do(r, http.MethodGet, "/api/bills?societyId=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_ExpenseReport(t *testing.T) {
	admin := principal(model.RoleAdmin)
	svc := new(mockReportService)
	r := newRouter(admin, NewReportHandler(svc))

	query := service.ExpenseReportQuery{StartDate: "2026-01-01", EndDate: "2026-01-31", Status: "Approved"}
	svc.On("ExpenseReport", mock.Anything, *admin, query).
		Return(service.ExpenseReport{ByStatus: map[string]string{"Approved": "500.00"}}, nil).Once()
	svc.On("ExpenseReport", mock.Anything, *admin, service.ExpenseReportQuery{StartDate: "yesterday"}).
		Return(service.ExpenseReport{}, apperror.Validation("invalid report filters",
			apperror.FieldError{Field: "startDate", Message: "unrecognised date"})).Once()

	w := do(r, http.MethodGet, "/api/reports/expense?startDate=2026-01-01&endDate=2026-01-31&status=Approved", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"Approved":"500.00"`)

	w = do(r, http.MethodGet, "/api/reports/expense?startDate=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"startDate"`)
	svc.AssertExpectations(t)
}

func TestReportHandler_SummaryCounts(t *testing.T) {
	agent := principal(model.RoleAgent)
	svc := new(mockReportService)
	svc.On("SummaryCounts", mock.Anything, *agent).Return(service.SummaryCounts{Pending: 3, Approved: 1}, nil).Once()

	w := do(newRouter(agent, NewReportHandler(svc)), http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":3,"approved":1}`, mustMarshal(t, decodeBody(t, w).Data))
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestUploadHandler(t *testing.T) {
	secretary := principal(model.RoleSecretary)
	svc := new(mockUploadService)
	r := newRouter(secretary, NewUploadHandler(svc, 1<<20))

	svc.On("Upload", mock.Anything, *secretary, mock.MatchedBy(func(files []service.UploadFile) bool {
		if len(files) != 1 || files[0].Name != "invoice.pdf" || files[0].Size != 9 {
			return false
		}
		rc, err := files[0].Open()
		if err != nil {
			return false
		}
		defer rc.Close()
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(rc)
		return buf.String() == "%PDF-1.7"+"\n"
	})).Return(service.UploadResponse{Files: []model.BillAttachment{{FileName: "invoice.pdf", FileURL: "/uploads/x.pdf", FileSize: 9}}}, nil).Once()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "invoice.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.7\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "/uploads/x.pdf")
	svc.AssertExpectations(t)
}

func TestUploadHandler_NotMultipart(t *testing.T) {
	svc := new(mockUploadService)
	r := newRouter(principal(model.RoleSecretary), NewUploadHandler(svc, 1<<20))

	w := do(r, http.MethodPost, "/api/upload", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.Calls)
}
