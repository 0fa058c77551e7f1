package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/intake-gw/internal/config"
	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/ledger"
	"github.com/mattjoyce/intake-gw/internal/log"
	"github.com/mattjoyce/intake-gw/internal/notify"
	"github.com/mattjoyce/intake-gw/internal/storage"
)

const (
	testSecret = "test-secret"
	testPath   = "/api/elevenlabs-webhook"
	testEmail  = "/api/email"
	testHeader = "X-ElevenLabs-Signature"
)

// fakeNotifier records what the server asked it to send.
// When entered and hold are set, NotifyIntake signals entered and blocks on
// hold before recording the call.
type fakeNotifier struct {
	mu      sync.Mutex
	err     error
	intake  []intake.Fields
	basic   []notify.BasicIntake
	entered chan struct{}
	hold    chan struct{}
}

func (f *fakeNotifier) NotifyIntake(_ context.Context, fields intake.Fields) (notify.Receipt, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intake = append(f.intake, fields)
	if f.err != nil {
		return notify.Receipt{}, f.err
	}
	return notify.Receipt{Channel: "fake", ProviderID: "msg-1"}, nil
}

func (f *fakeNotifier) NotifyBasic(_ context.Context, in notify.BasicIntake) (notify.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.basic = append(f.basic, in)
	if f.err != nil {
		return notify.Receipt{}, f.err
	}
	return notify.Receipt{Channel: "fake", ProviderID: "msg-2"}, nil
}

func (f *fakeNotifier) Channel() string { return "fake" }

func (f *fakeNotifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intake) + len(f.basic)
}

func testConfig() Config {
	return Config{
		Listen:          "127.0.0.1:0",
		Path:            testPath,
		EmailPath:       testEmail,
		Secret:          testSecret,
		SignatureHeader: testHeader,
		MaxBodySize:     1024,
		MetricsPath:     "/metrics",
	}
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return ledger.New(db)
}

func post(t *testing.T, h http.Handler, path string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(testHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe","phone_number":"808-555-1234","email":"test@example.com"}`)
	fn := &fakeNotifier{}
	l := newTestLedger(t)
	h := New(testConfig(), nil, fn, l, log.Discard()).Handler()

	rec := post(t, h, testPath, body, ComputeSignature(body, testSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.NotEmpty(t, resp.DeliveryID)

	require.Len(t, fn.intake, 1)
	assert.Equal(t, intake.Fields{
		"patient_name": "John Doe",
		"phone_number": "808-555-1234",
		"email":        "test@example.com",
	}, fn.intake[0])

	d, err := l.Get(context.Background(), resp.DeliveryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSent, d.Status)
	assert.Equal(t, "msg-1", d.ProviderID)
	assert.Equal(t, 3, d.FieldCount)
	assert.Equal(t, ledger.Fingerprint(body), d.Fingerprint)
}

func TestHandleWebhook_NestedPayload(t *testing.T) {
	body := []byte(`{"data":{"analysis":{"data_collection_results":{
		"patient_name":{"value":"Jane"},
		"reason_for_visit":{"value":"Renewal"}}}},
		"results":[{"items":[{"collected_data":{"patient_name":"Janet"}}]}]}`)
	fn := &fakeNotifier{}
	h := New(testConfig(), nil, fn, nil, log.Discard()).Handler()

	rec := post(t, h, testPath, body, ComputeSignature(body, testSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fn.intake, 1)
	assert.Equal(t, "Janet", fn.intake[0]["patient_name"])
	assert.Equal(t, "Renewal", fn.intake[0]["reason_for_visit"])
}

func TestHandleWebhook_SignaturePolicy(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)

	tests := []struct {
		name       string
		devMode    bool
		secret     string
		signature  string
		wantStatus int
		wantCalls  int
	}{
		{name: "invalid signature", secret: testSecret, signature: strings.Repeat("0", 64), wantStatus: http.StatusUnauthorized},
		{name: "missing signature", secret: testSecret, wantStatus: http.StatusUnauthorized},
		{name: "signature over other body", secret: testSecret, signature: ComputeSignature([]byte(`{}`), testSecret), wantStatus: http.StatusUnauthorized},
		{name: "dev mode skips verification", devMode: true, secret: testSecret, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "no secret skips verification", signature: "anything", wantStatus: http.StatusOK, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DevMode = tt.devMode
			cfg.Secret = tt.secret
			fn := &fakeNotifier{}
			h := New(cfg, nil, fn, nil, log.Discard()).Handler()

			rec := post(t, h, testPath, body, tt.signature)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalls, fn.calls())
			if tt.wantStatus == http.StatusUnauthorized {
				resp := decode(t, rec)
				assert.Equal(t, StatusError, resp.Status)
				assert.Equal(t, "invalid signature", resp.Message)
			}
		})
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		wantStatus int
		wantMsg    string
	}{
		{name: "malformed json", body: []byte(`{"patient_name":`), wantStatus: http.StatusBadRequest, wantMsg: "malformed JSON payload"},
		{name: "trailing data", body: []byte(`{} {}`), wantStatus: http.StatusBadRequest, wantMsg: "malformed JSON payload"},
		{name: "no known fields", body: []byte(`{"foo":"bar"}`), wantStatus: http.StatusBadRequest, wantMsg: "no patient data found"},
		{name: "non-object", body: []byte(`[1,2,3]`), wantStatus: http.StatusBadRequest, wantMsg: "no patient data found"},
		{name: "null values only", body: []byte(`{"patient_name":null,"email":{"value":null}}`), wantStatus: http.StatusBadRequest, wantMsg: "no patient data found"},
		{name: "too large", body: []byte(`{"transcript":"` + strings.Repeat("x", 2048) + `"}`), wantStatus: http.StatusRequestEntityTooLarge, wantMsg: "payload too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := &fakeNotifier{}
			h := New(testConfig(), nil, fn, nil, log.Discard()).Handler()

			rec := post(t, h, testPath, tt.body, ComputeSignature(tt.body, testSecret))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Zero(t, fn.calls())
		})
	}
}

func TestHandleWebhook_EmptyRecorded(t *testing.T) {
	body := []byte(`{"unrelated":true}`)
	l := newTestLedger(t)
	h := New(testConfig(), nil, &fakeNotifier{}, l, log.Discard()).Handler()

	rec := post(t, h, testPath, body, ComputeSignature(body, testSecret))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	recent, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, ledger.StatusEmpty, recent[0].Status)
	assert.Zero(t, recent[0].FieldCount)
}

func TestHandleWebhook_DispatchFailure(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)
	fn := &fakeNotifier{err: errors.New("provider down")}
	l := newTestLedger(t)
	h := New(testConfig(), nil, fn, l, log.Discard()).Handler()

	rec := post(t, h, testPath, body, ComputeSignature(body, testSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "failed to send notification", resp.Message)
	assert.NotContains(t, resp.Message, "provider down")

	recent, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, ledger.StatusFailed, recent[0].Status)
	assert.Contains(t, recent[0].LastError, "provider down")
}

func TestHandleWebhook_Duplicate(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)
	sig := ComputeSignature(body, testSecret)

	cfg := testConfig()
	cfg.DedupeTTL = time.Hour
	fn := &fakeNotifier{}
	h := New(cfg, nil, fn, newTestLedger(t), log.Discard()).Handler()

	first := post(t, h, testPath, body, sig)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, StatusSuccess, decode(t, first).Status)

	second := post(t, h, testPath, body, sig)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, StatusDuplicate, decode(t, second).Status)

	other := []byte(`{"patient_name":"Jane Doe"}`)
	third := post(t, h, testPath, other, ComputeSignature(other, testSecret))
	assert.Equal(t, StatusSuccess, decode(t, third).Status)

	assert.Equal(t, 2, fn.calls())
}

func TestHandleWebhook_DuplicateWhileSending(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)
	sig := ComputeSignature(body, testSecret)

	cfg := testConfig()
	cfg.DedupeTTL = time.Hour
	fn := &fakeNotifier{entered: make(chan struct{}), hold: make(chan struct{})}
	l := newTestLedger(t)
	h := New(cfg, nil, fn, l, log.Discard()).Handler()

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() { firstDone <- post(t, h, testPath, body, sig) }()

	select {
	case <-fn.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first delivery never reached the notifier")
	}

	// The first send is still running.
	second := post(t, h, testPath, body, sig)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, StatusDuplicate, decode(t, second).Status)

	close(fn.hold)
	first := <-firstDone
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, StatusSuccess, decode(t, first).Status)
	assert.Equal(t, 1, fn.calls())

	// Once released, later copies are caught by the sent row.
	fn.entered = nil
	third := post(t, h, testPath, body, sig)
	assert.Equal(t, StatusDuplicate, decode(t, third).Status)
	assert.Equal(t, 1, fn.calls())

	counts, err := l.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[ledger.StatusSent])
	assert.Equal(t, 2, counts[ledger.StatusDuplicate])
}

func TestHandleWebhook_RetryAfterFailedSend(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)
	sig := ComputeSignature(body, testSecret)

	cfg := testConfig()
	cfg.DedupeTTL = time.Hour
	fn := &fakeNotifier{err: errors.New("provider down")}
	h := New(cfg, nil, fn, newTestLedger(t), log.Discard()).Handler()

	assert.Equal(t, http.StatusInternalServerError, post(t, h, testPath, body, sig).Code)

	fn.mu.Lock()
	fn.err = nil
	fn.mu.Unlock()
	retry := post(t, h, testPath, body, sig)
	require.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, StatusSuccess, decode(t, retry).Status, "a failed send releases the fingerprint")
	assert.Equal(t, 2, fn.calls())
}

func TestHandleWebhook_NoDedupeWithoutTTL(t *testing.T) {
	body := []byte(`{"patient_name":"John Doe"}`)
	sig := ComputeSignature(body, testSecret)
	fn := &fakeNotifier{}
	h := New(testConfig(), nil, fn, newTestLedger(t), log.Discard()).Handler()

	post(t, h, testPath, body, sig)
	post(t, h, testPath, body, sig)
	assert.Equal(t, 2, fn.calls())
}

func TestHandleEmail(t *testing.T) {
	body := []byte(`{"agentId":"a1","patientName":"John Doe","reasonForVisit":"Annual eye exam"}`)
	fn := &fakeNotifier{}
	h := New(testConfig(), nil, fn, nil, log.Discard()).Handler()

	rec := post(t, h, testEmail, body, ComputeSignature(body, testSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSuccess, decode(t, rec).Status)
	require.Len(t, fn.basic, 1)
	assert.Equal(t, "John Doe", fn.basic[0].PatientName)
	assert.Equal(t, "Annual eye exam", fn.basic[0].ReasonForVisit)

	unsigned := post(t, h, testEmail, body, "")
	assert.Equal(t, http.StatusUnauthorized, unsigned.Code)

	empty := []byte(`{"agentId":"a1"}`)
	rec = post(t, h, testEmail, empty, ComputeSignature(empty, testSecret))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, fn.basic, 1)
}

func TestReadinessAndHealth(t *testing.T) {
	s := New(testConfig(), nil, &fakeNotifier{}, nil, log.Discard())
	s.started = time.Now().Add(-90 * time.Second)
	h := s.Handler()

	for _, path := range []string{testPath, testEmail} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, StatusReady, decode(t, rec).Status, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "fake", health.Channel)
	assert.GreaterOrEqual(t, health.UptimeSeconds, int64(90))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEmailPathDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EmailPath = ""
	cfg.MetricsPath = ""
	h := New(cfg, nil, &fakeNotifier{}, nil, log.Discard()).Handler()

	body := []byte(`{"patientName":"x"}`)
	rec := post(t, h, testEmail, body, ComputeSignature(body, testSecret))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStart_Shutdown(t *testing.T) {
	s := New(testConfig(), nil, &fakeNotifier{}, nil, log.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestFromGlobalConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Webhook.Secret = "s"
	cfg.Webhook.MaxBodySize = "2KB"
	cfg.Service.DevMode = true
	cfg.Service.DedupeTTL = time.Minute

	got, err := FromGlobalConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.MaxBodySize)
	assert.Equal(t, "/api/elevenlabs-webhook", got.Path)
	assert.Equal(t, "/api/email", got.EmailPath)
	assert.Equal(t, "/metrics", got.MetricsPath)
	assert.True(t, got.DevMode)
	assert.Equal(t, time.Minute, got.DedupeTTL)

	cfg.Metrics.Enabled = false
	got, err = FromGlobalConfig(cfg)
	require.NoError(t, err)
	assert.Empty(t, got.MetricsPath)

	cfg.Webhook.MaxBodySize = "huge"
	_, err = FromGlobalConfig(cfg)
	assert.Error(t, err)

	_, err = FromGlobalConfig(nil)
	assert.Error(t, err)
}
