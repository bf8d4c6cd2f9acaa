package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"garage-repair-api-server/config"
	"garage-repair-api-server/internal/auth"
	"garage-repair-api-server/internal/database"
	"garage-repair-api-server/internal/evidence"
	"garage-repair-api-server/internal/metrics"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/repository"
	"garage-repair-api-server/internal/service"
	"garage-repair-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jpeg = "data:image/jpeg;base64,/9j/4AAQ"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *evidence.MemoryStore
}

func newTestServer(t *testing.T, health HealthCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	repo := repository.NewMemory()
	require.NoError(t, database.SeedAdmin(context.Background(), repo,
		config.SeedConfig{AdminUsername: "admin", AdminPassword: "admin123"}, logger))

	tokens, err := auth.NewTokenManager("routes-test", time.Hour)
	require.NoError(t, err)

	store := evidence.NewMemoryStore()
	hub := socket.NewHub(logger)
	collector := metrics.New()

	repairs := service.NewRepairService(repo, store, logger)
	repairs.Hub = hub
	repairs.Metrics = collector
	users := service.NewUserService(repo, tokens, logger)

	r := SetupRouter(config.Config{}, logger, tokens, repairs, users, hub, collector, health)
	return &testServer{t: t, router: r, store: store}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRepairWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login("admin", "admin123")

	// roster and a worker login
	w := s.do(http.MethodPost, "/api/v1/workers", admin, gin.H{"name": "Minh", "worker_type": models.WorkerTypeRepair})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	worker := decode[models.RepairWorker](t, w)

	w = s.do(http.MethodPost, "/api/v1/users", admin, gin.H{
		"username": "minh", "password": "minh123", "role": "worker", "worker_id": worker.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	minh := s.login("minh", "minh123")

	// intake
	w = s.do(http.MethodPost, "/api/v1/repairs", admin, gin.H{
		"license_plate": "51a-123.45",
		"customer_name": "Lan",
		"items":         []gin.H{{"name": "Engine", "repair_type": models.RepairTypeMechanical}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.RepairOrder](t, w)
	assert.Equal(t, "51A-123.45", order.LicensePlate)

	w = s.do(http.MethodGet, "/api/v1/repairs/"+order.ID+"/detail", minh, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	detail := decode[service.OrderDetail](t, w)
	require.Len(t, detail.Items, 1)
	itemID := detail.Items[0].ID
	assert.True(t, detail.Items[0].CanAssign)

	// self-assign with mixed hour/minute inputs
	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/workers", minh, gin.H{
		"worker_id": worker.ID, "hours": 1, "minutes": "30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assignment := decode[models.RepairItemAssignedWorker](t, w)
	assert.Equal(t, 90, assignment.EstimatedDurationMinutes)

	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/workers", minh, gin.H{
		"worker_id": worker.ID, "hours": "1.5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// start needs a photo
	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/start", minh, gin.H{"worker_id": worker.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "photo")
	assert.Equal(t, 0, s.store.Len())

	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/start", minh, gin.H{
		"worker_id": worker.ID, "image": jpeg, "order_id": order.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, decode[models.RepairItem](t, w).Status)

	// a second start loses: the item is no longer pending
	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/start", minh, gin.H{
		"worker_id": worker.ID, "image": jpeg,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/repairs/items/"+itemID+"/complete", minh, gin.H{"image": jpeg})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusCompleted, decode[models.RepairItem](t, w).Status)

	w = s.do(http.MethodGet, "/api/v1/repairs/items/"+itemID+"/images", minh, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.RepairItemImage](t, w), 2)

	w = s.do(http.MethodGet, "/api/v1/repairs/"+order.ID+"/detail", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail = decode[service.OrderDetail](t, w)
	assert.Equal(t, 100, detail.Progress.Percentage)
	assert.Equal(t, models.StatusCompleted, detail.Order.Status)

	w = s.do(http.MethodGet, "/api/v1/repairs?status=completed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]service.OrderSummary](t, w), 1)

	w = s.do(http.MethodGet, "/api/v1/repairs/"+order.ID+"/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())

	// only admin deletes
	w = s.do(http.MethodDelete, "/api/v1/repairs/"+order.ID, minh, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/repairs/"+order.ID, admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/v1/repairs/"+order.ID+"/detail", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPartsWaitingOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.login("admin", "admin123")

	w := s.do(http.MethodPost, "/api/v1/repairs", admin, gin.H{"license_plate": "30F-999.99"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.RepairOrder](t, w)

	path := "/api/v1/repairs/" + order.ID + "/parts-waiting"
	w = s.do(http.MethodPut, path, admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, path, admin, gin.H{
		"waiting_for_parts":       true,
		"parts_order_start_time":  "2024-05-06T08:00:00Z",
		"parts_expected_end_time": "2024-05-05T08:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, path, admin, gin.H{
		"waiting_for_parts":       true,
		"parts_order_start_time":  "2024-05-06T08:00:00Z",
		"parts_expected_end_time": "2024-05-08T08:00:00Z",
		"parts_note":              "gương chiếu hậu",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.RepairOrder](t, w)
	assert.True(t, got.WaitingForParts)
	assert.Equal(t, "gương chiếu hậu", got.PartsNote)
}

func TestAuthAndOps(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return nil })

	w := s.do(http.MethodGet, "/api/v1/repairs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/repairs/images/unknown/raw", s.login("admin", "admin123"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "garage_http_requests_total")
}

func TestHealthzUnhealthy(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return errors.New("mongo down") })
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "mongo down")
}
