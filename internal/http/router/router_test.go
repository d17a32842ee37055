package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/domain/port"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/notify"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/payment"
	"github.com/ignatzorin/escrow-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-backend/internal/interface/http/handler"
	"github.com/ignatzorin/escrow-backend/internal/service"
	"github.com/ignatzorin/escrow-backend/internal/storage"
	"github.com/ignatzorin/escrow-backend/internal/usecase/escrow"
)

type apiResponse struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Pagination *struct {
		Total   int  `json:"total"`
		Page    int  `json:"page"`
		PerPage int  `json:"per_page"`
		HasMore bool `json:"has_more"`
	} `json:"pagination"`
}

type escrowBody struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	EscrowFee        string  `json:"escrow_fee"`
	TotalAmount      string  `json:"total_amount"`
	PaymentReference *string `json:"payment_reference"`
	PayoutReference  *string `json:"payout_reference"`
	RefundReference  *string `json:"refund_reference"`
	Milestones       []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"milestones"`
}

type testAPI struct {
	router  *gin.Engine
	tokens  *service.TokenManager
	gateway *payment.SandboxGateway
	buyer   uuid.UUID
	seller  uuid.UUID
	admin   uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway, err := payment.NewSandboxGateway()
	require.NoError(t, err)

	engine := escrow.NewEngine(
		persistence.NewMemoryEscrowRepository(),
		gateway,
		notify.NewDispatcher(),
		port.SystemClock{},
		escrow.DefaultConfig(),
	)

	attachments, err := storage.NewAttachmentStorage(t.TempDir(), 1)
	require.NoError(t, err)

	tokens := service.NewTokenManager("router-test-secret-router-test-secret", time.Hour)
	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}

	r := SetupRouter(cfg, Handlers{
		Escrow:     handler.NewEscrowHandler(engine),
		Dispute:    handler.NewDisputeHandler(engine),
		Attachment: handler.NewAttachmentHandler(engine, attachments),
		Health:     handler.NewHealthHandler(nil, config.StoreMemory),
	}, tokens)

	return &testAPI{
		router:  r,
		tokens:  tokens,
		gateway: gateway,
		buyer:   uuid.New(),
		seller:  uuid.New(),
		admin:   uuid.New(),
	}
}

func (a *testAPI) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, _, err := a.tokens.IssueAccess(userID, role)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path string, userID uuid.UUID, role string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID, role))
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func (a *testAPI) createEscrow(t *testing.T) escrowBody {
	t.Helper()
	w, resp := a.do(t, http.MethodPost, "/api/escrow", a.buyer, service.RoleUser, map[string]interface{}{
		"seller_id":        a.seller.String(),
		"item_type":        "website",
		"item_title":       "Интернет-магазин",
		"item_description": "Готовый сайт с доменом",
		"total_amount":     "1000",
		"currency":         "USD",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeEscrow(t, resp)
}

func decodeEscrow(t *testing.T, resp apiResponse) escrowBody {
	t.Helper()
	var body escrowBody
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	return body
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodGet, "/api/escrow", uuid.Nil, "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
}

func TestRouter_CreateEscrow(t *testing.T) {
	api := newTestAPI(t)

	created := api.createEscrow(t)

	assert.Equal(t, "pending_funding", created.Status)
	assert.Equal(t, "1000.00", created.TotalAmount)
	assert.Equal(t, "25.00", created.EscrowFee)
	require.Len(t, created.Milestones, 1)
	assert.Equal(t, "pending", created.Milestones[0].Status)
}

func TestRouter_CreateEscrow_ZeroAmountMilestone(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodPost, "/api/escrow", api.buyer, service.RoleUser, map[string]interface{}{
		"seller_id": api.seller.String(), "item_type": "website", "item_title": "Интернет-магазин",
		"total_amount": "1000", "currency": "USD",
		"milestones": []map[string]interface{}{
			{"title": "Сайт", "amount": "1000"},
			{"title": "Гарантийная поддержка", "amount": "0"},
		},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeEscrow(t, resp)
	require.Len(t, created.Milestones, 2)
	assert.Equal(t, "pending", created.Milestones[1].Status)
}

func TestRouter_CreateEscrow_Errors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		body     map[string]interface{}
		wantCode string
	}{
		{
			name: "buyer equals seller",
			body: map[string]interface{}{
				"seller_id": api.buyer.String(), "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "100", "currency": "EUR",
			},
			wantCode: "INVALID_PARTICIPANTS",
		},
		{
			name: "zero amount",
			body: map[string]interface{}{
				"seller_id": api.seller.String(), "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "0", "currency": "EUR",
			},
			wantCode: "INVALID_AMOUNT",
		},
		{
			name: "milestones do not sum up",
			body: map[string]interface{}{
				"seller_id": api.seller.String(), "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "100", "currency": "EUR",
				"milestones": []map[string]interface{}{
					{"title": "Первый этап", "amount": "30"},
					{"title": "Второй этап", "amount": "30"},
				},
			},
			wantCode: "MILESTONE_AMOUNT_MISMATCH",
		},
		{
			name: "negative milestone",
			body: map[string]interface{}{
				"seller_id": api.seller.String(), "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "100", "currency": "EUR",
				"milestones": []map[string]interface{}{
					{"title": "Первый этап", "amount": "110"},
					{"title": "Второй этап", "amount": "-10"},
				},
			},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name: "malformed seller id",
			body: map[string]interface{}{
				"seller_id": "not-a-uuid", "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "100", "currency": "EUR",
			},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name: "unknown currency",
			body: map[string]interface{}{
				"seller_id": api.seller.String(), "item_type": "service", "item_title": "Настройка CI",
				"total_amount": "100", "currency": "QQQ",
			},
			wantCode: "VALIDATION_ERROR",
		},
		{
			name:     "missing fields",
			body:     map[string]interface{}{"item_title": "Настройка CI"},
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.do(t, http.MethodPost, "/api/escrow", api.buyer, service.RoleUser, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestRouter_FullLifecycle(t *testing.T) {
	api := newTestAPI(t)
	created := api.createEscrow(t)
	base := "/api/escrow/" + created.ID

	w, resp := api.do(t, http.MethodPost, base+"/fund", api.buyer, service.RoleUser, map[string]interface{}{
		"payment_method": "card",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	funded := decodeEscrow(t, resp)
	assert.Equal(t, "funded", funded.Status)
	require.NotNil(t, funded.PaymentReference)

	w, resp = api.do(t, http.MethodPost, base+"/deliver", api.seller, service.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "delivered", decodeEscrow(t, resp).Status)

	w, resp = api.do(t, http.MethodPost, base+"/accept", api.buyer, service.RoleUser, map[string]interface{}{
		"feedback_rating": 5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completed := decodeEscrow(t, resp)
	assert.Equal(t, "completed", completed.Status)
	require.NotNil(t, completed.PayoutReference)

	ops := api.gateway.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, "ch", ops[0].Kind)
	assert.Equal(t, "po", ops[1].Kind)

	w, resp = api.do(t, http.MethodPost, base+"/deliver", api.seller, service.RoleUser, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATE", resp.Code)
}

func TestRouter_NonParticipantGetsNotFound(t *testing.T) {
	api := newTestAPI(t)
	created := api.createEscrow(t)

	w, resp := api.do(t, http.MethodGet, "/api/escrow/"+created.ID, uuid.New(), service.RoleUser, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)

	// Продавец не может оплатить сделку.
	w, resp = api.do(t, http.MethodPost, "/api/escrow/"+created.ID+"/fund", api.seller, service.RoleUser, map[string]interface{}{
		"payment_method": "card",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestRouter_InvalidID(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodGet, "/api/escrow/not-a-uuid", api.buyer, service.RoleUser, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestRouter_FundDeclined(t *testing.T) {
	api := newTestAPI(t)
	created := api.createEscrow(t)

	w, resp := api.do(t, http.MethodPost, "/api/escrow/"+created.ID+"/fund", api.buyer, service.RoleUser, map[string]interface{}{
		"payment_method": payment.DeclinedMethod,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PAYMENT_FAILED", resp.Code)

	w, resp = api.do(t, http.MethodGet, "/api/escrow/"+created.ID, api.buyer, service.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending_funding", decodeEscrow(t, resp).Status)
}

func TestRouter_DisputeAndResolve(t *testing.T) {
	api := newTestAPI(t)
	created := api.createEscrow(t)
	base := "/api/escrow/" + created.ID

	w, _ := api.do(t, http.MethodPost, base+"/fund", api.buyer, service.RoleUser, map[string]interface{}{
		"payment_method": "card",
	})
	require.Equal(t, http.StatusOK, w.Code)

	disputeBody := map[string]interface{}{
		"reason":               "not_delivered",
		"description":          "Продавец не выходит на связь уже неделю",
		"evidence":             []string{"https://example.com/chat.png"},
		"requested_resolution": "full_refund",
	}
	w, resp := api.do(t, http.MethodPost, base+"/dispute", api.buyer, service.RoleUser, disputeBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var opened struct {
		Transaction escrowBody `json:"transaction"`
		Dispute     struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"dispute"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &opened))
	assert.Equal(t, "disputed", opened.Transaction.Status)
	assert.Equal(t, "open", opened.Dispute.Status)

	w, resp = api.do(t, http.MethodPost, base+"/dispute", api.seller, service.RoleUser, disputeBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DISPUTE_ALREADY_OPEN", resp.Code)

	resolvePath := "/api/admin/escrow/disputes/" + opened.Dispute.ID + "/resolve"
	resolveBody := map[string]interface{}{"outcome": "refund_to_buyer", "note": "Поставка не подтверждена"}

	w, resp = api.do(t, http.MethodPost, resolvePath, api.buyer, service.RoleUser, resolveBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", resp.Code)

	w, resp = api.do(t, http.MethodPost, resolvePath, api.admin, service.RoleAdmin, map[string]interface{}{"outcome": "split"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)

	w, resp = api.do(t, http.MethodPost, resolvePath, api.admin, service.RoleAdmin, resolveBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	canceled := decodeEscrow(t, resp)
	assert.Equal(t, "canceled", canceled.Status)
	require.NotNil(t, canceled.RefundReference)
}

func TestRouter_ListAndStatistics(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 3; i++ {
		api.createEscrow(t)
	}

	w, resp := api.do(t, http.MethodGet, "/api/escrow?page=1", api.seller, service.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 3, resp.Pagination.Total)
	assert.Equal(t, 20, resp.Pagination.PerPage)
	assert.False(t, resp.Pagination.HasMore)

	var items []escrowBody
	require.NoError(t, json.Unmarshal(resp.Data, &items))
	assert.Len(t, items, 3)

	w, resp = api.do(t, http.MethodGet, "/api/escrow/statistics", api.buyer, service.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stats escrow.Statistics
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 3, stats.TotalTransactions)
	assert.Equal(t, 3, stats.AsBuyer)
	assert.Equal(t, 3, stats.ByStatus["pending_funding"])
	assert.Equal(t, 100.0, stats.SuccessRate)
	assert.Equal(t, 0.0, stats.DisputeRate)
}

func TestRouter_UploadAttachment(t *testing.T) {
	api := newTestAPI(t)
	created := api.createEscrow(t)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 64)...)

	upload := func(userID uuid.UUID, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "proof.png")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/escrow/"+created.ID+"/attachments", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+api.token(t, userID, service.RoleUser))
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	w := upload(api.seller, png)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded struct {
		Data storage.Attachment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.True(t, strings.HasPrefix(uploaded.Data.Reference, "att_"+created.ID+"_"))
	assert.Equal(t, "image/png", uploaded.Data.ContentType)

	download := func(userID uuid.UUID, ref string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/escrow/"+created.ID+"/attachments/"+ref, nil)
		req.Header.Set("Authorization", "Bearer "+api.token(t, userID, service.RoleUser))
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	w = download(api.buyer, uploaded.Data.Reference)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, png, w.Body.Bytes())

	w = download(api.buyer, "att_"+uuid.NewString()+"_missing.png")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = download(uuid.New(), uploaded.Data.Reference)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = upload(api.seller, []byte("plain text is not allowed"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(uuid.New(), png)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
