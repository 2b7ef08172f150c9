package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesKeepsLowCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("route", "/v1/orders/:id/invoice"),
		attribute.String("order_id", "456"),
		attribute.String("invoice_number", "INV-BLR01-202610-00001"),
		attribute.String("entity_type", "invoice"),
		attribute.String("source", "fallback"),
	)

	keys := make([]attribute.Key, 0, len(attrs))
	for _, attr := range attrs {
		keys = append(keys, attr.Key)
	}
	assert.Equal(t, []attribute.Key{"route", "entity_type", "source"}, keys)
}

func TestFilterAttributesEmpty(t *testing.T) {
	assert.Empty(t, FilterAttributes())
}
