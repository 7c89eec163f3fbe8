package engine

import (
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives every committed update with the fields it changed.
type Listener func(newState, oldState State, changed []Field)

// FieldListener receives the new and old value of one field.
type FieldListener func(newValue, oldValue any)

type notification struct {
	next    State
	prev    State
	changed []Field
}

type wildcardSub struct {
	id int
	fn Listener
}

type fieldSub struct {
	id int
	fn FieldListener
}

// bus fans notifications out to subscribers in subscription order. A panicking
// listener is logged and does not stop delivery to the others.
type bus struct {
	mu     sync.Mutex
	nextID int
	all    []wildcardSub
	fields map[Field][]fieldSub
	log    *zerolog.Logger
}

func newBus(log *zerolog.Logger) *bus {
	return &bus{
		fields: make(map[Field][]fieldSub),
		log:    log,
	}
}

func (b *bus) subscribeAll(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, wildcardSub{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.all {
				if s.id == id {
					b.all = append(b.all[:i:i], b.all[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) subscribe(f Field, fn FieldListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.fields[f] = append(b.fields[f], fieldSub{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.fields[f]
			for i, s := range subs {
				if s.id == id {
					b.fields[f] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = nil
	b.fields = make(map[Field][]fieldSub)
}

func (b *bus) publish(n notification) {
	b.mu.Lock()
	all := append([]wildcardSub(nil), b.all...)
	perField := make([][]fieldSub, len(n.changed))
	for i, f := range n.changed {
		perField[i] = append([]fieldSub(nil), b.fields[f]...)
	}
	b.mu.Unlock()

	for _, s := range all {
		b.deliver("*", func() { s.fn(n.next.clone(), n.prev.clone(), append([]Field(nil), n.changed...)) })
	}
	for i, f := range n.changed {
		for _, s := range perField[i] {
			b.deliver(f, func() { s.fn(n.next.Get(f), n.prev.Get(f)) })
		}
	}
}

func (b *bus) deliver(f Field, call func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("field", string(f)).
				Interface("panic", r).
				Msg("state listener panicked")
		}
	}()
	call()
}

// Watch subscribes to one field with a typed callback. Values of another type are skipped.
func Watch[T any](e *Engine, f Field, fn func(newValue, oldValue T)) func() {
	return e.Subscribe(f, func(newValue, oldValue any) {
		nv, ok := newValue.(T)
		if !ok {
			return
		}
		ov, _ := oldValue.(T)
		fn(nv, ov)
	})
}
