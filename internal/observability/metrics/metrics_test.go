package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_kind", "order"),
		attribute.String("user_id", "u_123"),
		attribute.String("outcome", "ok"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "event_kind" && attrs[1].Key != "event_kind" {
		t.Fatalf("expected event_kind to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}
