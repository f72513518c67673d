package engine

import "context"

// Handler consumes completed responses and may spawn follow-up
// requests by returning KindRequest items. Handler errors are logged
// and contained; they never abort the run.
type Handler interface {
	HandleResponse(ctx context.Context, env *Envelope) ([]Item, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *Envelope) ([]Item, error)

// HandleResponse implements Handler.
func (f HandlerFunc) HandleResponse(ctx context.Context, env *Envelope) ([]Item, error) {
	return f(ctx, env)
}

// Customizer mutates a request plan before dispatch and returns extra
// key material folded into the dedup fingerprint. Only this returned
// string is dedup-significant; incidental header or payload mutations
// are not.
type Customizer interface {
	Customize(ctx context.Context, plan *Plan) (extraKey string, err error)
}

// CustomizerFunc adapts a function to the Customizer interface.
type CustomizerFunc func(ctx context.Context, plan *Plan) (string, error)

// Customize implements Customizer.
func (f CustomizerFunc) Customize(ctx context.Context, plan *Plan) (string, error) {
	return f(ctx, plan)
}

// Lifecycle receives per-request setup and cleanup callbacks. Setup
// runs after credential checkout and before the dedup check. Once Setup
// succeeds Cleanup is guaranteed, dedup drops and failures included.
type Lifecycle interface {
	Setup(ctx context.Context, plan *Plan) error
	Cleanup(ctx context.Context, plan *Plan)
}

// ProgressFunc reports run progress: done counts terminal requests,
// total counts every request scheduled so far. Total grows as
// generations spawn. Invocations are serialized.
type ProgressFunc func(done, total int)

type nopHandler struct{}

func (nopHandler) HandleResponse(context.Context, *Envelope) ([]Item, error) {
	return nil, nil
}

type nopLifecycle struct{}

func (nopLifecycle) Setup(context.Context, *Plan) error { return nil }

func (nopLifecycle) Cleanup(context.Context, *Plan) {}
