package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "explorer"})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_EnabledWithWriter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "explorer",
		ServiceVersion: "0.0.1",
		SessionID:      "abc",
		BatchTimeout:   time.Second,
		LogWriter:      &buf,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NotNil(t, p.LoggerProvider())

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "explorer"})
	require.Len(t, attrs, 1)
	assert.Equal(t, "explorer", attrs[0].Value.AsString())

	attrs = resourceAttributes(Config{ServiceName: "explorer", ServiceVersion: "1.2.3", SessionID: "s-1"})
	require.Len(t, attrs, 3)
	assert.Contains(t, attrs, attribute.String("explorer.session", "s-1"))
}
