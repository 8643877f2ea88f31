package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackBlobCallCountsResult(t *testing.T) {
	okBefore := testutil.ToFloat64(BlobOperations.WithLabelValues("test", "put", "ok"))
	errBefore := testutil.ToFloat64(BlobOperations.WithLabelValues("test", "put", "error"))

	TrackBlobCall("test", "put")(nil)
	TrackBlobCall("test", "put")(errors.New("boom"))
	TrackBlobCall("test", "put")(nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(BlobOperations.WithLabelValues("test", "put", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(BlobOperations.WithLabelValues("test", "put", "error")))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "inkwell-test", Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	span, ctx := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	span.SetError(errors.New("ignored by noop tracer"))
}
