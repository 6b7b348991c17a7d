package storage

import (
	"context"

	"hotel-receptionist/internal/metrics"
)

type instrumented struct {
	next    Port
	metrics *metrics.Metrics
}

// Instrument counts failed reads and writes of next.
func Instrument(next Port, m *metrics.Metrics) Port {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Read(ctx context.Context, c Collection, dest any) (bool, error) {
	ok, err := i.next.Read(ctx, c, dest)
	if err != nil {
		i.metrics.StorageErrors.WithLabelValues(string(c), "read").Inc()
	}
	return ok, err
}

func (i *instrumented) WriteAll(ctx context.Context, c Collection, value any) error {
	err := i.next.WriteAll(ctx, c, value)
	if err != nil {
		i.metrics.StorageErrors.WithLabelValues(string(c), "write").Inc()
	}
	return err
}
