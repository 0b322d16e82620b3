package state

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "livequiz_state_flush_total",
	Help: "Snapshot flushes by outcome.",
}, []string{"outcome"})

type flushRequest struct {
	ctx   context.Context
	data  []byte
	reply chan error
}

func (e *Engine) enqueue(ctx context.Context, data []byte) <-chan error {
	req := flushRequest{
		ctx:   ctx,
		data:  data,
		reply: make(chan error, 1),
	}

	e.queue <- req
	return req.reply
}

// flushLoop is the write serializer: requests are handled one at a time in
// arrival order, and each Save fully completes, success or failure, before the
// next one starts.
func (e *Engine) flushLoop() {
	defer e.wg.Done()

	for req := range e.queue {
		err := e.store.Save(req.ctx, req.data)

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		flushTotal.WithLabelValues(outcome).Inc()

		req.reply <- err
	}
}
