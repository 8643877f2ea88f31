package blobstore

import (
	"context"
	"errors"

	"inkwell/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// instrumented decorates a Store with Prometheus counters and client spans.
type instrumented struct {
	next   Store
	driver string
}

// Instrument wraps store so every call is counted, timed and traced.
func Instrument(store Store, driver string) Store {
	return &instrumented{next: store, driver: driver}
}

// Unwrap returns the decorated store.
func (i *instrumented) Unwrap() Store { return i.next }

func (i *instrumented) Put(ctx context.Context, key string, data []byte, contentType string, publicRead bool) (err error) {
	span, ctx := observability.StartClientSpan(ctx, "blobstore.put",
		attribute.String("blob.driver", i.driver),
		attribute.String("blob.key", key),
		attribute.Int("blob.size", len(data)),
		attribute.String("blob.content_type", contentType),
	)
	done := observability.TrackBlobCall(i.driver, "put")
	defer func() {
		done(err)
		span.SetError(err)
		span.End()
	}()

	err = i.next.Put(ctx, key, data, contentType, publicRead)
	if err == nil {
		observability.BlobBytesUploaded.WithLabelValues(i.driver).Add(float64(len(data)))
	}
	return err
}

func (i *instrumented) Delete(ctx context.Context, key string) (err error) {
	span, ctx := observability.StartClientSpan(ctx, "blobstore.delete",
		attribute.String("blob.driver", i.driver),
		attribute.String("blob.key", key),
	)
	done := observability.TrackBlobCall(i.driver, "delete")
	defer func() {
		// a missing object is not a backend failure
		if errors.Is(err, ErrNotFound) {
			done(nil)
		} else {
			done(err)
			span.SetError(err)
		}
		span.End()
	}()

	return i.next.Delete(ctx, key)
}

func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
