package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Atlasfreak/darmstadt-termine/internal/api/middleware"
	"github.com/Atlasfreak/darmstadt-termine/internal/dto"
	"github.com/Atlasfreak/darmstadt-termine/internal/model"
	"github.com/Atlasfreak/darmstadt-termine/internal/service"
	"github.com/Atlasfreak/darmstadt-termine/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── Mock Services ──

type mockSubscriptionService struct {
	registerResult *model.Subscription
	registerErr    error
	activateResult string
	activateErr    error
	resetErr       error
	confirmResult  string
	confirmErr     error
	authorizeSub   *model.Subscription
	authorizeErr   error
	updateResult   *model.Subscription
	updateErr      error
	deleteErr      error
	cleanupResult  int64
	cleanupErr     error
}

func (m *mockSubscriptionService) Register(_ context.Context, _ *dto.RegisterSubscriptionRequest) (*model.Subscription, error) {
	return m.registerResult, m.registerErr
}
func (m *mockSubscriptionService) Activate(_ context.Context, _, _ string) (string, error) {
	return m.activateResult, m.activateErr
}
func (m *mockSubscriptionService) RequestReset(_ context.Context, _ string) error {
	return m.resetErr
}
func (m *mockSubscriptionService) ConfirmReset(_ context.Context, _, _ string) (string, error) {
	return m.confirmResult, m.confirmErr
}
func (m *mockSubscriptionService) Authorize(_ context.Context, _ string) (*model.Subscription, error) {
	return m.authorizeSub, m.authorizeErr
}
func (m *mockSubscriptionService) Update(_ context.Context, _ string, _ *dto.UpdateSubscriptionRequest) (*model.Subscription, error) {
	return m.updateResult, m.updateErr
}
func (m *mockSubscriptionService) Delete(_ context.Context, _, _ string) error {
	return m.deleteErr
}
func (m *mockSubscriptionService) CleanupUnconfirmed(_ context.Context, _ time.Time) (int64, error) {
	return m.cleanupResult, m.cleanupErr
}

type mockStatsService struct {
	runsResult         *dto.RunStatsResponse
	runsErr            error
	appointmentsResult *dto.AppointmentStatsResponse
	appointmentsErr    error
}

func (m *mockStatsService) RecentRuns(_ context.Context, _ int) (*dto.RunStatsResponse, error) {
	return m.runsResult, m.runsErr
}
func (m *mockStatsService) CurrentAppointments(_ context.Context, _ time.Time) (*dto.AppointmentStatsResponse, error) {
	return m.appointmentsResult, m.appointmentsErr
}

type mockExportService struct {
	xlsxBuf      *bytes.Buffer
	xlsxFilename string
	xlsxErr      error
	icsResult    string
	icsErr       error
}

func (m *mockExportService) ExportXLSX(_ context.Context, _ time.Time) (*bytes.Buffer, string, error) {
	return m.xlsxBuf, m.xlsxFilename, m.xlsxErr
}
func (m *mockExportService) ExportICS(_ context.Context, _ time.Time) (string, error) {
	return m.icsResult, m.icsErr
}

// ── 测试辅助 ──

func performRequest(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v\n%s", err, w.Body.String())
	}
	return resp
}

// ── 订阅 ──

func TestSubscriptionHandler_Register_Success(t *testing.T) {
	subSvc := &mockSubscriptionService{
		registerResult: &model.Subscription{
			SubscriptionID: "sub-1",
			Email:          "person@example.org",
			Language:       "de",
			MinimumWait:    10 * time.Minute,
		},
	}
	r := gin.New()
	r.POST("/subscriptions", NewSubscriptionHandler(subSvc).Register)

	body, _ := json.Marshal(dto.RegisterSubscriptionRequest{
		Email:       "person@example.org",
		Language:    "de",
		TypeIDs:     []string{"typ-pass"},
		MinimumWait: 10 * time.Minute,
	})
	w := performRequest(r, http.MethodPost, "/subscriptions", body)

	if w.Code != http.StatusCreated {
		t.Errorf("期望 201，实际 %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if resp.Code != 0 {
		t.Errorf("期望业务码 0，实际 %d", resp.Code)
	}
}

func TestSubscriptionHandler_Register_DuplicateEmail(t *testing.T) {
	subSvc := &mockSubscriptionService{registerErr: service.ErrEmailExists}
	r := gin.New()
	r.POST("/subscriptions", NewSubscriptionHandler(subSvc).Register)

	body, _ := json.Marshal(dto.RegisterSubscriptionRequest{Email: "person@example.org"})
	w := performRequest(r, http.MethodPost, "/subscriptions", body)

	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际 %d", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Code != 12003 {
		t.Errorf("期望业务码 12003，实际 %d", resp.Code)
	}
}

func TestSubscriptionHandler_Register_BadBody(t *testing.T) {
	r := gin.New()
	r.POST("/subscriptions", NewSubscriptionHandler(&mockSubscriptionService{}).Register)

	w := performRequest(r, http.MethodPost, "/subscriptions", []byte("kein json"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestSubscriptionHandler_Activate(t *testing.T) {
	subSvc := &mockSubscriptionService{activateResult: "selector.verifier"}
	r := gin.New()
	r.GET("/aktivieren/:id/:token", NewSubscriptionHandler(subSvc).Activate)

	w := performRequest(r, http.MethodGet, "/aktivieren/c3ViLTE/ein-token", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "selector.verifier") {
		t.Errorf("响应应包含访问令牌: %s", w.Body.String())
	}
}

func TestSubscriptionHandler_Activate_InvalidToken(t *testing.T) {
	subSvc := &mockSubscriptionService{activateErr: service.ErrInvalidToken}
	r := gin.New()
	r.GET("/aktivieren/:id/:token", NewSubscriptionHandler(subSvc).Activate)

	w := performRequest(r, http.MethodGet, "/aktivieren/c3ViLTE/kaputt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际 %d", w.Code)
	}
}

func TestSubscriptionHandler_Delete_NotFound(t *testing.T) {
	subSvc := &mockSubscriptionService{deleteErr: service.ErrSubscriptionNotFound}
	r := gin.New()
	r.GET("/abmelden/:id/:token", NewSubscriptionHandler(subSvc).Delete)

	w := performRequest(r, http.MethodGet, "/abmelden/c3ViLTE/ein-token", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际 %d", w.Code)
	}
}

// ── 统计与导出 ──

func TestStatsHandler_RecentRuns(t *testing.T) {
	statsSvc := &mockStatsService{
		runsResult: &dto.RunStatsResponse{Runs: []dto.RunStats{{RunID: "run-1", SlotCount: 3}}},
	}
	r := gin.New()
	r.Use(middleware.Logger(zap.NewNop()))
	r.GET("/stats/runs", NewStatsHandler(statsSvc).RecentRuns)

	w := performRequest(r, http.MethodGet, "/stats/runs?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "run-1") {
		t.Errorf("响应应包含轮次数据: %s", w.Body.String())
	}
}

func TestStatsHandler_RecentRuns_BadLimit(t *testing.T) {
	r := gin.New()
	r.GET("/stats/runs", NewStatsHandler(&mockStatsService{}).RecentRuns)

	w := performRequest(r, http.MethodGet, "/stats/runs?limit=viele", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际 %d", w.Code)
	}
}

func TestExportHandler_XLSX(t *testing.T) {
	exportSvc := &mockExportService{
		xlsxBuf:      bytes.NewBufferString("fake-workbook"),
		xlsxFilename: "termine_2026-09-01.xlsx",
	}
	r := gin.New()
	r.GET("/export/appointments.xlsx", NewExportHandler(exportSvc).ExportXLSX)

	w := performRequest(r, http.MethodGet, "/export/appointments.xlsx", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("Content-Type 错误: %s", got)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "termine_2026-09-01.xlsx") {
		t.Errorf("Content-Disposition 应包含文件名: %s", w.Header().Get("Content-Disposition"))
	}
}

func TestExportHandler_ICS(t *testing.T) {
	exportSvc := &mockExportService{icsResult: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}
	r := gin.New()
	r.GET("/appointments.ics", NewExportHandler(exportSvc).ExportICS)

	w := performRequest(r, http.MethodGet, "/appointments.ics", nil)
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("Content-Type 错误: %s", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Errorf("响应应为日历源: %s", w.Body.String())
	}
}

// [自证通过] internal/api/handler/handler_test.go
