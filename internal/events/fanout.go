package events

import "context"

// Fanout delivers every event to each underlying publisher in order. It is
// how the in-process bus and an external broker backend receive the same
// stream. The first publish error is returned after all targets have been
// attempted.
type Fanout struct {
	targets []Publisher
}

// NewFanout creates a fanout over the given publishers.
func NewFanout(targets ...Publisher) *Fanout {
	return &Fanout{targets: targets}
}

// Publish sends the event to every target.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every target, returning the first error.
func (f *Fanout) Close() error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
