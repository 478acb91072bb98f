package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/cors"
	"github.com/signumflex/go-event-listener/entities"
	"go.uber.org/zap"
)

const eventsCacheKey = "events"

type ReportReader interface {
	ReadAll() ([]entities.ReportEvent, error)
}

type PushProcessor interface {
	ProcessTipAdded(notification entities.PushNotification) (entities.TipEvent, error)
	ProcessNewReport(notification entities.PushNotification) (entities.ReportEvent, error)
}

type TipEventResponse struct {
	Event entities.TipEvent `json:"event"`
}

type ReportEventResponse struct {
	Event entities.ReportEvent `json:"event"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type Handler struct {
	reports     ReportReader
	processor   PushProcessor
	eventsCache *ttlcache.Cache[string, []entities.ReportEvent]
	cacheLock   sync.Mutex
	logger      *zap.SugaredLogger
}

func NewHandler(reports ReportReader, processor PushProcessor, cacheTTL time.Duration, logger *zap.SugaredLogger) *Handler {
	eventsCache := ttlcache.New[string, []entities.ReportEvent](
		ttlcache.WithTTL[string, []entities.ReportEvent](cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, []entities.ReportEvent](), // don't refresh ttl upon getting the item from cache
	)

	return &Handler{
		reports:     reports,
		processor:   processor,
		eventsCache: eventsCache,
		logger:      logger,
	}
}

// Router wires the endpoints and permits cross-origin requests from any
// origin, matching the reference listener.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", h.GetEvents)
	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("POST /webhook/tip-added", h.PostTipAdded)
	mux.HandleFunc("POST /webhook/new-report", h.PostNewReport)
	return cors.AllowAll().Handler(mux)
}

// GetEvents serves the full report store. Read faults degrade to an empty
// array; query callers never see an error.
func (h *Handler) GetEvents(w http.ResponseWriter, _ *http.Request) {
	h.cacheLock.Lock() // lock so that we do not get multiple threads inside the `if`
	item := h.eventsCache.Get(eventsCacheKey)
	var events []entities.ReportEvent
	if item == nil {
		var err error
		events, err = h.reports.ReadAll()
		if err != nil {
			h.logger.Errorf("Reading report store: %v", err)
			events = []entities.ReportEvent{}
		} else {
			h.eventsCache.Set(eventsCacheKey, events, ttlcache.DefaultTTL)
		}
	} else {
		events = item.Value()
	}
	h.cacheLock.Unlock()

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		h.logger.Errorf("Encoding events response: %v", err)
	}
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(HealthResponse{Status: "UP"}); err != nil {
		h.logger.Errorf("Encoding health response: %v", err)
	}
}

func (h *Handler) PostTipAdded(w http.ResponseWriter, r *http.Request) {
	var notification entities.PushNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.processor.ProcessTipAdded(notification)
	if err != nil {
		h.logger.Warnf("Processing tip-added notification: %v", err)
		http.Error(w, "Could not decode tip-added notification", http.StatusBadRequest)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(TipEventResponse{Event: event}); err != nil {
		h.logger.Errorf("Encoding tip event response: %v", err)
	}
}

func (h *Handler) PostNewReport(w http.ResponseWriter, r *http.Request) {
	var notification entities.PushNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.processor.ProcessNewReport(notification)
	if err != nil {
		h.logger.Warnf("Processing new-report notification: %v", err)
		http.Error(w, "Could not decode new-report notification", http.StatusBadRequest)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ReportEventResponse{Event: event}); err != nil {
		h.logger.Errorf("Encoding report event response: %v", err)
	}
}
