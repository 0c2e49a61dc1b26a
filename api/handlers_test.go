package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolidosrifas/raffle/internal/auth"
	"github.com/bolidosrifas/raffle/internal/domain"
	"github.com/bolidosrifas/raffle/internal/repository"
	"github.com/bolidosrifas/raffle/internal/service/purchases"
	"github.com/bolidosrifas/raffle/internal/service/tickets"
)

const testSecret = "test-secret"

type staticUserRepo struct {
	users map[string]*repository.User
}

func (r *staticUserRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

type testEnv struct {
	store  *repository.MemoryStore
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	engine := tickets.NewTicketService(store, nil)
	purchaseService := purchases.NewPurchaseService(store, engine, nil)

	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	users := &staticUserRepo{users: map[string]*repository.User{
		"admin@bolidosrifas.com": {ID: 1, Email: "admin@bolidosrifas.com", PasswordHash: hash, Role: "admin"},
	}}

	router := gin.New()
	NewTicketHandler(engine, 1).Register(router.Group("/api/tickets"))
	NewPurchaseHandler(purchaseService, 1).Register(router.Group("/api/purchase"))
	NewAdminHandler(users, purchaseService, testSecret, time.Hour).Register(router.Group("/api/admin"))

	return &testEnv{store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 1, 2, 3)
	_, err := env.store.SellByNumbers(context.Background(), 1, []int{2})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/tickets/", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{float64(2)}, body["sold"])
	assert.Equal(t, []interface{}{}, body["reserved"])
}

func TestReserve_Full(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 5, 6, 7)

	w := env.do(t, http.MethodPost, "/api/tickets/reserve", gin.H{"numbers": []int{5, 6}}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{float64(5), float64(6)}, body["reserved"])
	assert.NotContains(t, body, "conflicts")
}

func TestReserve_Partial(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 5, 6, 7)
	_, err := env.store.SellByNumbers(context.Background(), 1, []int{5})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/tickets/reserve", gin.H{"numbers": []int{5, 6}}, nil)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{float64(6)}, body["reserved"])
	assert.Equal(t, []interface{}{float64(5)}, body["conflicts"])
}

func TestReserve_TotalConflict(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 5)
	_, err := env.store.SellByNumbers(context.Background(), 1, []int{5})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/tickets/reserve", gin.H{"numbers": []int{5}}, nil)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{float64(5)}, body["conflicts"])
}

func TestReserve_EmptyNumbers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/tickets/reserve", gin.H{"numbers": []int{}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSell_Conflict(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 9)
	_, err := env.store.SellByNumbers(context.Background(), 1, []int{9})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/tickets/sell", gin.H{"numbers": []int{9}}, nil)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{float64(9)}, body["conflicts"])
}

func TestSell_Success(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 9, 10)

	w := env.do(t, http.MethodPost, "/api/tickets/sell", gin.H{"numbers": []int{9, 10}}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["updated"])
}

func TestCreatePurchase(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/purchase/", gin.H{
		"full_name":    "Maria Perez",
		"document":     "V-12345678",
		"country_code": "+58",
		"phone":        "04141234567",
		"qty":          2,
		"price_cents":  500,
		"method":       "pago_movil",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["reference"])
	assert.Equal(t, "received", body["status"])
}

func TestCreatePurchase_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/purchase/", gin.H{"full_name": "Maria Perez"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify_RequiresParam(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/purchase/verify", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify_PhoneNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/purchase/verify?phone=04140000000", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not_found", body["status"])
}

func TestVerify_Ticket(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 42)
	_, err := env.store.SellByNumbers(context.Background(), 1, []int{42})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/purchase/verify?ticket=42", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "assigned", decode(t, w)["status"])

	w = env.do(t, http.MethodGet, "/api/purchase/verify?ticket=999", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "invalid", decode(t, w)["status"])
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"email":    "admin@bolidosrifas.com",
		"password": "s3cret",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])
}

func TestAdminLogin_BadPassword(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"email":    "admin@bolidosrifas.com",
		"password": "wrong",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminConfirm_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/admin/confirm", gin.H{"purchase_id": 1, "status": "approved"}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminConfirm_RejectsNonAdminRole(t *testing.T) {
	env := newTestEnv(t)
	token, err := auth.NewToken(testSecret, 2, "viewer@bolidosrifas.com", "viewer", time.Hour)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/admin/confirm",
		gin.H{"purchase_id": 1, "status": "approved"},
		map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminConfirm_Approve(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 1, 2, 3, 4, 5)

	created := env.do(t, http.MethodPost, "/api/purchase/", gin.H{
		"full_name":    "Maria Perez",
		"document":     "V-12345678",
		"country_code": "+58",
		"phone":        "04141234567",
		"qty":          2,
		"price_cents":  500,
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	purchaseID := int64(decode(t, created)["id"].(float64))

	token, err := auth.NewToken(testSecret, 1, "admin@bolidosrifas.com", "admin", time.Hour)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + token}

	w := env.do(t, http.MethodPost, "/api/admin/confirm",
		gin.H{"purchase_id": purchaseID, "status": "approved"}, headers)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "approved", body["status"])
	assert.Len(t, body["masked_numbers"], 2)

	// Retried confirmation returns the same numbers without reallocating.
	retry := env.do(t, http.MethodPost, "/api/admin/confirm",
		gin.H{"purchase_id": purchaseID, "status": "approved"}, headers)

	require.Equal(t, http.StatusOK, retry.Code)
	retryBody := decode(t, retry)
	assert.Equal(t, body["masked_numbers"], retryBody["masked_numbers"])
	assert.Equal(t, true, retryBody["reused"])
}

func TestAdminConfirm_InsufficientInventory(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(1, 1)

	created := env.do(t, http.MethodPost, "/api/purchase/", gin.H{
		"full_name":    "Maria Perez",
		"document":     "V-12345678",
		"country_code": "+58",
		"phone":        "04141234567",
		"qty":          3,
		"price_cents":  500,
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	purchaseID := int64(decode(t, created)["id"].(float64))

	token, err := auth.NewToken(testSecret, 1, "admin@bolidosrifas.com", "admin", time.Hour)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/admin/confirm",
		gin.H{"purchase_id": purchaseID, "status": "approved"},
		map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminConfirm_BadStatus(t *testing.T) {
	env := newTestEnv(t)
	token, err := auth.NewToken(testSecret, 1, "admin@bolidosrifas.com", "admin", time.Hour)
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/api/admin/confirm",
		gin.H{"purchase_id": 1, "status": "cancelled"},
		map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventIDParsing(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedTickets(2, 1)
	_, err := env.store.SellByNumbers(context.Background(), 2, []int{1})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/tickets/?event_id=%d", 2), nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(1)}, decode(t, w)["sold"])

	// Malformed event_id falls back to the default event.
	w = env.do(t, http.MethodGet, "/api/tickets/?event_id=abc", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["sold"])
}
