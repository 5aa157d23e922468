// Package clock provee la fuente de tiempo usada para toda la matemática de expiración.
//
// Los componentes reciben un Clock por inyección; en producción es System(),
// en tests un *Fake que se adelanta a mano.
package clock

import (
	"sync"
	"time"
)

// Clock devuelve el instante actual.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System retorna el reloj de pared del proceso (UTC).
func System() Clock { return systemClock{} }

// OrSystem retorna c, o System() si c es nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System()
	}
	return c
}

// Fake es un reloj manual, seguro para uso concurrente.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake crea un reloj detenido en t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance mueve el reloj hacia adelante d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set fija el reloj en t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
