package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"powerbank-rental-go/internal/database"
	"powerbank-rental-go/internal/database/dbtest"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/notify"
	"powerbank-rental-go/internal/reconciler"
	"powerbank-rental-go/internal/rental"
	"powerbank-rental-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	jwtSecret  = "test-jwt-secret"
	hmacSecret = "test-hmac-secret"
)

var testConfig = models.Config{
	Auth: models.AuthConfig{JwtSecret: jwtSecret, Issuer: "powerbank-rental", TokenTTL: time.Hour},
	Hardware: models.HardwareConfig{
		HmacSecret:      hmacSecret,
		FreshnessWindow: 5 * time.Minute,
	},
	Rental: models.RentalConfig{
		CancelWindow:       5 * time.Minute,
		ReminderLead:       15 * time.Minute,
		MinBatteryLevel:    20,
		PointsPerUnit:      10,
		CompletionPoints:   5,
		AbandonAfter:       24 * time.Hour,
		AbandonmentPenalty: decimal.NewFromInt(1000),
	},
}

type testServer struct {
	db      *database.Service
	fixture *dbtest.Fixture
	router  *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	notifier := notify.NewLogNotifier(zaptest.NewLogger(t))
	srv := NewServer(ServerConfig{
		Db:         db,
		Rentals:    rental.NewService(db, db, notifier, testConfig.Rental),
		Reconciler: reconciler.NewService(db, notifier, db, testConfig.Rental),
		Config:     testConfig,
	})
	return &testServer{db: db, fixture: dbtest.Seed(t, db), router: srv.Router()}
}

func (ts *testServer) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := IssueToken(testConfig.Auth, *user, time.Now())
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) hardware(path string, body []byte, timestamp time.Time, signature string) *httptest.ResponseRecorder {
	return ts.hardwareWithContext(context.Background(), path, body, timestamp, signature)
}

func (ts *testServer) hardwareWithContext(ctx context.Context, path string, body []byte, timestamp time.Time, signature string) *httptest.ResponseRecorder {
	ts64 := strconv.FormatInt(timestamp.Unix(), 10)
	if signature == "" {
		signature = Sign(hmacSecret, body, ts64)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(timestampHeader, ts64)
	req.Header.Set(signatureHeader, signature)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func returnBody(t *testing.T, station, bank string, slot, battery int) []byte {
	t.Helper()
	body, err := json.Marshal(models.ReturnEventMessage{
		Device:      models.DeviceInfo{SerialNumber: station},
		ReturnEvent: models.ReturnEventPayload{PowerBankSerial: bank, SlotNumber: slot, BatteryLevel: battery},
	})
	require.NoError(t, err)
	return body
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, store.KindAuth, decodeError(t, w).Kind)

	w = ts.do(http.MethodGet, "/api/v1/wallet", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other := testConfig.Auth
	other.JwtSecret = "someone-else"
	forged, err := IssueToken(other, *ts.fixture.User, time.Now())
	require.NoError(t, err)
	w = ts.do(http.MethodGet, "/api/v1/wallet", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/admin/analytics", ts.token(t, ts.fixture.User), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/admin/analytics", ts.token(t, ts.fixture.Admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRentalRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture
	dbtest.TopUp(t, ts.db, f.User.Id, decimal.NewFromInt(250), "payment:seed")
	token := ts.token(t, f.User)

	w := ts.do(http.MethodPost, "/api/v1/rentals", token, startRentalRequest{
		StationSerial: f.Station.SerialNumber, PackageId: f.Prepaid.Id,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started models.Rental
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, models.RentalActive, started.Status)

	w = ts.do(http.MethodPost, "/api/v1/rentals", token, startRentalRequest{
		StationSerial: f.Station.SerialNumber, PackageId: f.Prepaid.Id,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/rentals/active", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view models.ActiveRentalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, started.Id, view.Rental.Id)
	assert.Nil(t, view.Overdue)

	bank, err := ts.db.GetPowerBank(context.Background(), started.PowerBankId)
	require.NoError(t, err)
	w = ts.hardware("/api/v1/hardware/return", returnBody(t, f.Station.SerialNumber, bank.SerialNumber, 1, 80), time.Now(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ReturnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.RentalCompleted)
	assert.True(t, result.IsReturnedOnTime)
	assert.Equal(t, started.Id, result.RentalId)

	w = ts.do(http.MethodGet, "/api/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet models.WalletBalance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallet))
	assert.True(t, decimal.NewFromInt(150).Equal(wallet.Balance), "got %s", wallet.Balance)

	w = ts.do(http.MethodGet, "/api/v1/points", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"`+f.User.Id+`","points":5}`, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/rentals/history?limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Rentals []models.Rental `json:"rentals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Rentals, 1)
	assert.Equal(t, models.RentalCompleted, history.Rentals[0].Status)

	w = ts.do(http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var txs struct {
		Transactions []models.WalletTransaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs.Transactions, 2)
}

func TestStartRental_InsufficientFundsIsPaymentRequired(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture

	w := ts.do(http.MethodPost, "/api/v1/rentals", ts.token(t, f.User), startRentalRequest{
		StationSerial: f.Station.SerialNumber, PackageId: f.Prepaid.Id,
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, store.KindInsufficientFunds, body.Kind)
	assert.Equal(t, "100.00", body.Details["shortfall"])
	assert.Equal(t, "100.00", body.Details["suggested_top_up"])
}

func TestStartRental_RejectsBadBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/rentals", ts.token(t, ts.fixture.User), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, store.KindValidation, decodeError(t, w).Kind)

	w = ts.do(http.MethodPost, "/api/v1/rentals", ts.token(t, ts.fixture.User), startRentalRequest{
		StationSerial: "ST-404", PackageId: ts.fixture.Prepaid.Id,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHardwareAuth(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture
	body := returnBody(t, f.Station.SerialNumber, f.Banks[1].SerialNumber, 2, 70)

	tests := []struct {
		name      string
		body      []byte
		at        time.Time
		signature string
		want      int
	}{
		{name: "bad signature", body: body, at: time.Now(), signature: "deadbeef", want: http.StatusUnauthorized},
		{name: "stale timestamp", body: body, at: time.Now().Add(-10 * time.Minute), want: http.StatusUnauthorized},
		{name: "future timestamp", body: body, at: time.Now().Add(10 * time.Minute), want: http.StatusUnauthorized},
		{name: "docked unit without rental", body: body, at: time.Now(), want: http.StatusOK},
		{name: "unknown station", body: returnBody(t, "ST-404", "PB-001", 1, 50), at: time.Now(), want: http.StatusNotFound},
		{name: "malformed body", body: []byte(`{"device":`), at: time.Now(), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.hardware("/api/v1/hardware/return", tt.body, tt.at, tt.signature)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHardwareAuth_RejectsReplay(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture
	body := returnBody(t, f.Station.SerialNumber, f.Banks[0].SerialNumber, 1, 90)
	at := time.Now()

	w := ts.hardware("/api/v1/hardware/return", body, at, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.hardware("/api/v1/hardware/return", body, at, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "replayed request", decodeError(t, w).Message)
}

func TestHardwareAuth_FailedDeliveryCanBeRetried(t *testing.T) {
	ts := newTestServer(t)
	f := ts.fixture
	body := returnBody(t, f.Station.SerialNumber, f.Banks[0].SerialNumber, 1, 90)
	at := time.Now()

	// A cancelled request fails inside the database layer like a busy lock would.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	w := ts.hardwareWithContext(cancelled, "/api/v1/hardware/return", body, at, "")
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	w = ts.hardware("/api/v1/hardware/return", body, at, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.hardware("/api/v1/hardware/return", body, at, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "accepted deliveries stay recorded")
}

func TestHardwareAuth_RejectedDeliveryIsNotRecorded(t *testing.T) {
	ts := newTestServer(t)
	body := returnBody(t, "ST-404", "PB-001", 1, 50)
	at := time.Now()

	w := ts.hardware("/api/v1/hardware/return", body, at, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = ts.hardware("/api/v1/hardware/return", body, at, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "a retry reaches the reconciler again")
}

func TestHardwareResync(t *testing.T) {
	ts := newTestServer(t)

	var snapshot models.StationSnapshot
	snapshot.Device.SerialNumber = "ST-002"
	snapshot.Device.Name = "Airport"
	snapshot.Slots = []models.SlotSnapshot{
		{SlotNumber: 1, Status: models.SlotOccupied, BatteryLevel: 95, PowerBankSerial: "PB-900", PowerBankBattery: 95},
		{SlotNumber: 2, Status: models.SlotAvailable},
	}
	body, err := json.Marshal(snapshot)
	require.NoError(t, err)

	w := ts.hardware("/api/v1/hardware/resync", body, time.Now(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ResyncResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.SlotsUpserted)
	assert.Equal(t, 1, result.PowerBanksPlaced)
}

func TestAdminLateFeeFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.fixture.Admin)

	w := ts.do(http.MethodPost, "/api/v1/admin/late-fee-configs", token, models.LateFeeConfiguration{
		Name: "Double rate", FeeType: models.FeeMultiplier, Multiplier: decimal.NewFromInt(2),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.LateFeeConfiguration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = ts.do(http.MethodPost, "/api/v1/admin/late-fee-configs/"+created.Id+"/activate", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/admin/late-fee/preview", token, rental.PreviewRequest{
		PackageId: ts.fixture.Prepaid.Id, OverdueMinutes: 30,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var preview rental.PreviewResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, models.FeeMultiplier, preview.FeeType)
	assert.True(t, decimal.NewFromInt(100).Equal(preview.Fee), "got %s", preview.Fee)

	w = ts.do(http.MethodGet, "/api/v1/admin/late-fee-configs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Id)

	w = ts.do(http.MethodPost, "/api/v1/admin/late-fee-configs/"+created.Id+"/deactivate", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(http.MethodDelete, "/api/v1/admin/late-fee-configs/"+created.Id, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(http.MethodPost, "/api/v1/admin/late-fee-configs/"+created.Id+"/activate", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminOverridesAndTopUp(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, ts.fixture.Admin)
	bank := ts.fixture.Banks[1]

	w := ts.do(http.MethodPatch, "/api/v1/admin/power-banks/"+bank.Id+"/status", token, statusRequest{Status: "MAINTENANCE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.PowerBank
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.PowerBankMaintenance, updated.Status)

	w = ts.do(http.MethodPatch, "/api/v1/admin/power-banks/"+bank.Id+"/status", token, statusRequest{Status: "EXPLODED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := "/api/v1/admin/wallets/" + ts.fixture.User.Id + "/top-up"
	w = ts.do(http.MethodPost, path, token, topUpRequest{Amount: decimal.NewFromInt(50), Reference: "payment:abc"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(http.MethodPost, path, token, topUpRequest{Amount: decimal.NewFromInt(50), Reference: "payment:abc"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(http.MethodPost, path, token, topUpRequest{Amount: decimal.NewFromInt(-5), Reference: "payment:neg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIdHeader))
}

func TestStatusFor(t *testing.T) {
	tests := map[store.Kind]int{
		store.KindNotFound:            http.StatusNotFound,
		store.KindInvalidState:        http.StatusConflict,
		store.KindInsufficientFunds:   http.StatusPaymentRequired,
		store.KindResourceUnavailable: http.StatusServiceUnavailable,
		store.KindConflict:            http.StatusConflict,
		store.KindAuth:                http.StatusUnauthorized,
		store.KindValidation:          http.StatusBadRequest,
		store.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), kind)
	}
}

func TestMemoryReplayGuard_Expires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewMemoryReplayGuard()
	g.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := g.Seen(ctx, "sig", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, _ = g.Seen(ctx, "sig", time.Minute)
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = g.Seen(ctx, "sig", time.Minute)
	assert.False(t, seen)

	require.NoError(t, g.Forget(ctx, "sig"))
	seen, _ = g.Seen(ctx, "sig", time.Minute)
	assert.False(t, seen, "forgotten signatures can be recorded again")
}
