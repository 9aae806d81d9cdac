package transport

import (
	"context"
	"errors"
	"sync"
)

// FanOutSink delivers every message to several sinks in parallel
type FanOutSink struct {
	sinks []Sink
}

func NewFanOutSink(sinks ...Sink) *FanOutSink {
	return &FanOutSink{sinks: sinks}
}

// Deliver returns the joined errors of the sinks that failed
func (f *FanOutSink) Deliver(ctx context.Context, msg Message) error {
	var wg sync.WaitGroup
	errs := make([]error, len(f.sinks))

	for i, sink := range f.sinks {
		wg.Add(1)
		go func(idx int, s Sink) {
			defer wg.Done()
			errs[idx] = s.Deliver(ctx, msg)
		}(i, sink)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (f *FanOutSink) Close() error {
	errs := make([]error, 0, len(f.sinks))
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
