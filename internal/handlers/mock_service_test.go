package handlers

import (
	"context"
	"net/http"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseOperator string
	parseErr      error

	lastGenUsername string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseOperator, m.parseErr
}

type mockControl struct {
	vitalsErr     error
	signalErr     error
	thresholdsErr error
	gainsErr      error

	lastVitals         models.Vitals
	vitalsCalls        int
	lastEmergencyStop  *bool
	lastManualOverride *bool
	lastThresholds     control.Thresholds
	lastGains          control.Gains
	configureCalls     int
	lastOperator       string
}

func (m *mockControl) IngestVitals(ctx context.Context, v models.Vitals) error {
	m.vitalsCalls++
	m.lastVitals = v
	return m.vitalsErr
}
func (m *mockControl) SetEmergencyStop(ctx context.Context, asserted bool) error {
	m.lastEmergencyStop = &asserted
	m.lastOperator, _ = service.OperatorFrom(ctx)
	return m.signalErr
}
func (m *mockControl) SetManualOverride(ctx context.Context, asserted bool) error {
	m.lastManualOverride = &asserted
	return m.signalErr
}
func (m *mockControl) ConfigureThresholds(ctx context.Context, t control.Thresholds) error {
	m.configureCalls++
	m.lastThresholds = t
	return m.thresholdsErr
}
func (m *mockControl) ConfigureGains(ctx context.Context, g control.Gains) error {
	m.configureCalls++
	m.lastGains = g
	return m.gainsErr
}

type mockMonitoring struct {
	status models.Status
	err    error
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.Status, error) {
	return m.status, m.err
}

type mockEventLog struct {
	resp []models.ControlEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ControlEvent, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
