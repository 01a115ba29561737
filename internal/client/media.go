package client

import "context"

// MediaSource prepares local media before the adapter starts placing
// or answering calls. Implementations own capture devices; the adapter
// only cares whether acquisition succeeded.
type MediaSource interface {
	Acquire(ctx context.Context) error
}

// NoMedia is a source with nothing to capture. Acquisition always
// succeeds and the participant operates receive-only.
type NoMedia struct{}

func (NoMedia) Acquire(context.Context) error { return nil }
