package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signumflex/go-event-listener/business/domain/webhook"
	"github.com/signumflex/go-event-listener/entities"
	"github.com/signumflex/go-event-listener/external/ethereum"
	"github.com/signumflex/go-event-listener/infrastructure/store/eventstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "api_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	sLogger := logger.Sugar()

	reportPath := filepath.Join(dir, "eventData.json")
	reportStore := eventstore.NewStore[entities.ReportEvent](reportPath, "NewReport", 1000, sLogger)
	tipStore := eventstore.NewStore[entities.TipEvent](filepath.Join(dir, "eventData1.json"), "TipAdded", 1000, sLogger)

	decoder, err := ethereum.NewDecoder()
	require.NoError(t, err)

	processor := webhook.NewProcessor(decoder, reportStore, tipStore, nil, sLogger)
	handler := NewHandler(reportStore, processor, time.Nanosecond, sLogger)

	return handler.Router(), reportPath
}

func TestGetEvents_EmptyStore(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetEvents_AllowsAnyOrigin(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPostTipAdded(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/tip-added", strings.NewReader(tipWebhookBody())))

	require.Equal(t, http.StatusOK, rec.Code)

	var response TipEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, "100", response.Event.Amount)
	require.Equal(t, "0x01020304", response.Event.QueryData)
	require.Equal(t, "0x1111111111111111111111111111111111111111", response.Event.Tipper)
	require.Equal(t, uint64(1714000000), response.Event.StartTime)
	require.Equal(t, entities.SourceWebhook, response.Event.Source)
}

func TestPostNewReport_ThenVisibleInEvents(t *testing.T) {
	router, reportPath := newTestRouter(t)

	body := reportWebhookBody()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/new-report", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var response ReportEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, uint64(7), response.Event.Nonce)
	require.Equal(t, "0xdeadbeef", response.Event.Value)
	require.Equal(t, uint64(21050000), response.Event.BlockNumber)

	// the record must have been persisted
	_, err := os.Stat(reportPath)
	require.NoError(t, err)

	// and must be served by the query endpoint once the cache entry expired
	time.Sleep(time.Millisecond)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []entities.ReportEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, uint64(7), events[0].Nonce)
}

func TestPostTipAdded_DecodeFault(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"logs":[{"data":"0x01","topic1":"0xaa","topic2":"0x64","transactionHash":"0xcc"}],"block":{"number":1,"timestamp":2}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/tip-added", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostTipAdded_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/tip-added", strings.NewReader("not json")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostTipAdded_NoLogs(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/tip-added", strings.NewReader(`{"logs":[],"block":{}}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"UP"`)
}

func tipWebhookBody() string {
	data := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000040" +
		"0000000000000000000000001111111111111111111111111111111111111111" +
		"0000000000000000000000000000000000000000000000000000000000000004" +
		"0102030400000000000000000000000000000000000000000000000000000000"

	notification := entities.PushNotification{
		Logs: []entities.PushLog{
			{
				Data:            data,
				Topic1:          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				Topic2:          "0x0000000000000000000000000000000000000000000000000000000000000064",
				TransactionHash: "0xcccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc",
			},
		},
		Block: entities.PushBlock{Number: "5285000", Timestamp: "1714000000"},
	}

	body, _ := json.Marshal(notification)
	return string(body)
}

func reportWebhookBody() string {
	data := "0x" +
		"0000000000000000000000000000000000000000000000000000000000000060" +
		"0000000000000000000000000000000000000000000000000000000000000007" +
		"00000000000000000000000000000000000000000000000000000000000000a0" +
		"0000000000000000000000000000000000000000000000000000000000000004" +
		"deadbeef00000000000000000000000000000000000000000000000000000000" +
		"0000000000000000000000000000000000000000000000000000000000000002" +
		"0102000000000000000000000000000000000000000000000000000000000000"

	notification := entities.PushNotification{
		Logs: []entities.PushLog{
			{
				Data:            data,
				Topic1:          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				Topic2:          "0x0000000000000000000000000000000000000000000000000000000066200000",
				Topic3:          "0x0000000000000000000000001111111111111111111111111111111111111111",
				TransactionHash: "0xdddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd",
			},
		},
		Block: entities.PushBlock{Number: "21050000", Timestamp: "1714000000"},
	}

	body, _ := json.Marshal(notification)
	return string(body)
}
