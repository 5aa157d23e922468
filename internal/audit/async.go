package audit

import (
	"context"
	"sync/atomic"

	"github.com/dropDatabas3/sessionguard/internal/metrics"
)

// Async desacopla a los emisores de un sink lento con un buffer acotado.
// Si el buffer está lleno el evento se descarta (best-effort).
type Async struct {
	next    Sink
	ch      chan Event
	dropped atomic.Int64
}

// NewAsync crea el sink; el pump arranca con Run.
func NewAsync(next Sink, buffer int) *Async {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Async{next: next, ch: make(chan Event, buffer)}
}

func (a *Async) Emit(e Event) {
	select {
	case a.ch <- e:
	default:
		a.dropped.Add(1)
		metrics.AuditDropped.Inc()
	}
}

// Dropped retorna cuántos eventos se descartaron.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Pending retorna cuántos eventos esperan en el buffer.
func (a *Async) Pending() int { return len(a.ch) }

// Run entrega eventos hasta que ctx se cancela; después drena lo que quedó en el buffer.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case e := <-a.ch:
			a.next.Emit(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-a.ch:
					a.next.Emit(e)
				default:
					return nil
				}
			}
		}
	}
}
