package antares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"child-monitoring/internal/eventing"
	telemetryevents "child-monitoring/internal/telemetry/application/events"
	telemetry "child-monitoring/internal/telemetry/domain"
)

func newTestHandler(t *testing.T) (*WebhookHandler, *[]telemetryevents.TelemetryReceived) {
	t.Helper()
	bus := eventing.NewInMemoryBus()
	publisher, err := eventing.NewPublisher(bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	events := &[]telemetryevents.TelemetryReceived{}
	bus.Subscribe(eventing.EventTypeOf[telemetryevents.TelemetryReceived](), func(ctx context.Context, event any) error {
		evt, ok := event.(telemetryevents.TelemetryReceived)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		*events = append(*events, evt)
		return nil
	})

	handler, err := NewWebhookHandler(publisher, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, events
}

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestWebhook_SubscriptionNotificationWithWrappedContent(t *testing.T) {
	handler, events := newTestHandler(t)

	body := `{"m2m:sgn":{"m2m:nev":{"m2m:rep":{"m2m:cin":{"con":"{\"kondisi\": \"terjatuh\", \"device_id\": \"nino-01\"}"}}}}}`
	resp := post(t, handler, "/monitor", body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
	evt := (*events)[0]
	if evt.DeviceID != "nino-01" {
		t.Fatalf("expected device nino-01, got %s", evt.DeviceID)
	}
	if evt.Kind != telemetry.KindFall {
		t.Fatalf("expected FALL, got %s", evt.Kind)
	}
	if evt.EventID == "" {
		t.Fatal("expected event id")
	}
	if string(evt.Raw) != body {
		t.Fatalf("expected raw payload preserved, got %s", evt.Raw)
	}
}

func TestWebhook_BareContentInstanceWithEmbeddedObject(t *testing.T) {
	handler, events := newTestHandler(t)

	body := `{"m2m:cin":{"con":{"kondisi":"terjatuh","device_id":"nino-02"}}}`
	resp := post(t, handler, "/monitor", body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(*events) != 1 || (*events)[0].DeviceID != "nino-02" {
		t.Fatalf("expected event for nino-02, got %+v", *events)
	}
}

func TestWebhook_DirectPayload(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor", `{"kondisi":"terjatuh","device_id":"nino-03"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if len(*events) != 1 || (*events)[0].DeviceID != "nino-03" {
		t.Fatalf("expected event for nino-03, got %+v", *events)
	}
}

func TestWebhook_SubscriptionVerification(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor", `{"m2m:sgn":{"m2m:vrq":true}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "subscription verified") {
		t.Fatalf("expected verification ack, got %s", resp.Body.String())
	}
	if len(*events) != 0 {
		t.Fatalf("expected no events for verification, got %d", len(*events))
	}
}

func TestWebhook_NotificationWithFalseVerificationFlag(t *testing.T) {
	handler, events := newTestHandler(t)

	body := `{"m2m:sgn":{"m2m:vrq":false,"m2m:nev":{"m2m:rep":{"m2m:cin":{"con":"{\"kondisi\": \"terjatuh\", \"device_id\": \"nino-04\"}"}}}}}`
	resp := post(t, handler, "/monitor", body)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(*events) != 1 {
		t.Fatalf("expected the fall to be published, got %d events", len(*events))
	}
	evt := (*events)[0]
	if evt.DeviceID != "nino-04" || evt.Kind != telemetry.KindFall {
		t.Fatalf("expected FALL from nino-04, got %+v", evt)
	}
}

func TestWebhook_RouteDeviceAdoptedWhenPayloadOmitsIt(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor/nino-07", `{"kondisi":"terjatuh"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(*events) != 1 || (*events)[0].DeviceID != "nino-07" {
		t.Fatalf("expected route device adopted, got %+v", *events)
	}
}

func TestWebhook_MismatchedDeviceRejected(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor/nino-07", `{"kondisi":"terjatuh","device_id":"nino-99"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "device id mismatch") {
		t.Fatalf("expected mismatch error, got %s", resp.Body.String())
	}
	if len(*events) != 0 {
		t.Fatalf("expected no events, got %d", len(*events))
	}
}

func TestWebhook_MatchingRouteAndPayloadDevice(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor/nino-07", `{"kondisi":"terjatuh","device_id":"nino-07"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
}

func TestWebhook_OtherConditionStillAccepted(t *testing.T) {
	handler, events := newTestHandler(t)

	resp := post(t, handler, "/monitor", `{"kondisi":"normal","device_id":"nino-01"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if len(*events) != 1 || (*events)[0].Kind != telemetry.KindOther {
		t.Fatalf("expected OTHER kind event, got %+v", *events)
	}
}

func TestWebhook_Rejections(t *testing.T) {
	handler, events := newTestHandler(t)

	if resp := post(t, handler, "/monitor", `{not json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.Code)
	}
	if resp := post(t, handler, "/monitor", `{"device_id":"nino-01"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing condition, got %d", resp.Code)
	}
	if resp := post(t, handler, "/monitor", `{"kondisi":"terjatuh"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing device id, got %d", resp.Code)
	}
	if resp := post(t, handler, "/monitor", `{"m2m:cin":{"con":"not-json"}}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unparseable content, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/monitor", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}

	if len(*events) != 0 {
		t.Fatalf("expected no events from rejected requests, got %d", len(*events))
	}
}

func TestKindFromCondition(t *testing.T) {
	if kind := telemetry.KindFromCondition(" Terjatuh "); kind != telemetry.KindFall {
		t.Fatalf("expected FALL for padded mixed case, got %s", kind)
	}
	if kind := telemetry.KindFromCondition("jatuh bebas"); kind != telemetry.KindOther {
		t.Fatalf("expected OTHER, got %s", kind)
	}
}
