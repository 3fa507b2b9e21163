package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	routingKey string
	event      any
	headers    map[string]string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.routingKey = routingKey
	p.event = event
	p.headers = headers
	return nil
}

func TestEmitBuildsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	emitter := NewAuditEmitter(pub, "audit_log", "chat-gateway", "test", nil)
	userID := int64(7)

	emitter.Emit(context.Background(), "WARN", "handshake refused", "group:3", "req-9", &userID)

	assert.Equal(t, "audit_log", pub.routingKey)
	envelope, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, 1, envelope.SchemaVersion)
	assert.Equal(t, "chat-gateway", envelope.Service)
	assert.Equal(t, "group:3", envelope.Payload.Room)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, int64(7), *envelope.UserID)
	assert.Equal(t, "req-9", pub.headers["x-request-id"])
}

func TestEmitOnNilEmitter(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "noop", "", "", nil)
	})
}
