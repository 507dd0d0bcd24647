package antares

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"child-monitoring/internal/eventing"
	"child-monitoring/internal/observability/metrics"
	telemetryevents "child-monitoring/internal/telemetry/application/events"
	telemetry "child-monitoring/internal/telemetry/domain"
)

// WebhookHandler ingests device telemetry pushed by the Antares oneM2M
// platform. It accepts the subscription notification envelope, the bare
// content instance envelope and a direct payload, normalizes all three and
// publishes a TelemetryReceived event. Routing happens on the bus; its
// outcome never changes the webhook response.
type WebhookHandler struct {
	publisher *eventing.Publisher
	logger    *log.Logger
}

// NewWebhookHandler constructs a webhook handler.
func NewWebhookHandler(publisher *eventing.Publisher, logger *log.Logger) (*WebhookHandler, error) {
	if publisher == nil {
		return nil, errors.New("antares webhook: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{publisher: publisher, logger: logger}, nil
}

// notification mirrors the payload shapes Antares pushes. Con may hold an
// embedded object or a JSON-encoded string containing one.
type notification struct {
	Sgn       *signalBlock  `json:"m2m:sgn"`
	Cin       *contentBlock `json:"m2m:cin"`
	Condition string        `json:"kondisi"`
	DeviceID  string        `json:"device_id"`
}

type signalBlock struct {
	Vrq *bool       `json:"m2m:vrq"`
	Nev *eventBlock `json:"m2m:nev"`
}

type eventBlock struct {
	Rep *repBlock `json:"m2m:rep"`
}

type repBlock struct {
	Cin *contentBlock `json:"m2m:cin"`
}

type contentBlock struct {
	Con json.RawMessage `json:"con"`
}

type devicePayload struct {
	Condition string `json:"kondisi"`
	DeviceID  string `json:"device_id"`
}

// ServeHTTP handles POST /monitor and POST /monitor/{device_id}.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := metrics.WebhookOutcomeAccepted
	defer func() {
		metrics.ObserveWebhook(outcome, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		outcome = metrics.WebhookOutcomeRejected
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	routeDevice := deviceFromPath(r.URL.Path)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("antares webhook: read body error: %v", err)
		outcome = metrics.WebhookOutcomeRejected
		writeError(w, http.StatusBadRequest, "read body error")
		return
	}
	defer r.Body.Close()

	var req notification
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("antares webhook: decode error: %v", err)
		outcome = metrics.WebhookOutcomeRejected
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Subscription verification handshake: acknowledge and stop. Only a
	// true m2m:vrq is a handshake; a false one still carries a notification.
	if req.Sgn != nil && req.Sgn.Vrq != nil && *req.Sgn.Vrq {
		outcome = metrics.WebhookOutcomeVerified
		writeJSON(w, http.StatusOK, map[string]string{"status": "subscription verified"})
		return
	}

	payload, err := req.devicePayload()
	if err != nil {
		h.logger.Printf("antares webhook: invalid payload: %v", err)
		outcome = metrics.WebhookOutcomeRejected
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	deviceID := payload.DeviceID
	if routeDevice != "" {
		if deviceID != "" && deviceID != routeDevice {
			h.logger.Printf("antares webhook: %v: route=%s payload=%s", telemetry.ErrMismatchedDevice, routeDevice, deviceID)
			outcome = metrics.WebhookOutcomeRejected
			writeError(w, http.StatusBadRequest, "device id mismatch")
			return
		}
		deviceID = routeDevice
	}

	event := telemetry.DeviceEvent{
		DeviceID:   deviceID,
		Kind:       telemetry.KindFromCondition(payload.Condition),
		Condition:  strings.TrimSpace(payload.Condition),
		ObservedAt: time.Now().UTC(),
		Raw:        json.RawMessage(body),
	}
	if err := event.Validate(); err != nil {
		h.logger.Printf("antares webhook: invalid event: %v", err)
		outcome = metrics.WebhookOutcomeRejected
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	metrics.IncTelemetryEvent(string(event.Kind))

	received := telemetryevents.TelemetryReceived{
		EventID:    eventing.NewEventID(),
		DeviceID:   event.DeviceID,
		Kind:       event.Kind,
		Condition:  event.Condition,
		OccurredAt: event.ObservedAt,
		Raw:        event.Raw,
	}
	ctx := eventing.WithEventID(r.Context(), received.EventID)
	if err := h.publisher.Publish(ctx, received); err != nil {
		h.logger.Printf("antares webhook: publish error: %v", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// devicePayload normalizes the three accepted shapes into one payload.
func (n notification) devicePayload() (devicePayload, error) {
	switch {
	case n.Sgn != nil && n.Sgn.Nev != nil && n.Sgn.Nev.Rep != nil && n.Sgn.Nev.Rep.Cin != nil:
		return decodeContent(n.Sgn.Nev.Rep.Cin.Con)
	case n.Cin != nil:
		return decodeContent(n.Cin.Con)
	case n.Condition != "":
		return devicePayload{Condition: n.Condition, DeviceID: n.DeviceID}, nil
	default:
		return devicePayload{}, errors.New("antares webhook: unrecognized notification shape")
	}
}

// decodeContent unwraps the oneM2M con field, which arrives either as an
// embedded JSON object or as a JSON string holding serialized JSON.
func decodeContent(raw json.RawMessage) (devicePayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return devicePayload{}, errors.New("antares webhook: empty content")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return devicePayload{}, err
		}
		trimmed = []byte(inner)
	}
	var payload devicePayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return devicePayload{}, err
	}
	return payload, nil
}

func deviceFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/monitor")
	rest = strings.Trim(rest, "/")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
