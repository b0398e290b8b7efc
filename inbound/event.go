// Package inbound receives webhook deliveries at the adapter's boundary
// and dispatches them to registered handlers. Signature verification stays
// behind the Verifier interface; this package never implements it.
package inbound

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-githubapp/core"
)

const (
	HeaderDelivery = "X-GitHub-Delivery"
	HeaderEvent    = "X-GitHub-Event"
)

// Event is one webhook delivery, decoded just enough to route it.
type Event struct {
	DeliveryID     string
	Name           string
	Action         string
	InstallationID *int64
	Payload        []byte
	Headers        map[string]string
}

// Key returns the routing key: "name.action" when the payload carries an
// action, the bare event name otherwise.
func (e Event) Key() string {
	if strings.TrimSpace(e.Action) == "" {
		return e.Name
	}
	return e.Name + "." + e.Action
}

type eventEnvelope struct {
	Action       string `json:"action"`
	Installation *struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// ParseEvent builds an Event from delivery headers and payload. Deliveries
// without a platform GUID get a generated one so results stay traceable.
// Installation-deletion payloads still carry the installation block; the
// caller decides whether the installation is usable for credentials.
func ParseEvent(headers map[string]string, payload []byte) (Event, error) {
	name := strings.TrimSpace(headerValue(headers, HeaderEvent))
	if name == "" {
		return Event{}, core.BadConfigError("inbound: event name header is required", nil)
	}

	deliveryID := strings.TrimSpace(headerValue(headers, HeaderDelivery))
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	event := Event{
		DeliveryID: deliveryID,
		Name:       name,
		Payload:    payload,
		Headers:    cloneHeaders(headers),
	}

	if len(payload) > 0 {
		var envelope eventEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return Event{}, core.BadConfigError(
				"inbound: event payload is not valid json",
				map[string]any{"delivery_id": deliveryID, "event": name},
			)
		}
		event.Action = strings.TrimSpace(envelope.Action)
		if envelope.Installation != nil && envelope.Installation.ID > 0 {
			id := envelope.Installation.ID
			event.InstallationID = &id
		}
	}
	return event, nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func cloneHeaders(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out[trimmed] = strings.TrimSpace(value)
	}
	return out
}
