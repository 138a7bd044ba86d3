package telemetry

import (
	"context"
	"testing"

	"creator-playbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), &config.OTel{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}
