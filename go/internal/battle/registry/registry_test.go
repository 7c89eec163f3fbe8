package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
)

func TestRegistryLifecycle(t *testing.T) {
	r := New(engine.DefaultConfig(), nil, 0, engine.WithClock(clockwork.NewFakeClock()))
	t.Cleanup(r.Close)

	var attached, detached atomic.Int32
	r.OnCreate(func(id uuid.UUID, e *engine.Engine) func() {
		attached.Add(1)
		return func() { detached.Add(1) }
	})

	id, e, err := r.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.Snapshot().Phase != engine.PhaseReady {
		t.Errorf("new battle phase = %q, want ready", e.Snapshot().Phase)
	}
	if attached.Load() != 1 {
		t.Errorf("hooks run %d times, want 1", attached.Load())
	}

	got, err := r.Get(id)
	if err != nil || got != e {
		t.Fatalf("Get() = %p, %v; want the created engine", got, err)
	}
	if list := r.List(); len(list) != 1 || list[0].ID != id {
		t.Errorf("List() = %+v", list)
	}

	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if detached.Load() != 1 {
		t.Errorf("detach run %d times, want 1", detached.Load())
	}
	if !e.Closed() {
		t.Error("engine not closed on Remove")
	}
	if _, err := r.Get(id); !errors.Is(err, ErrBattleNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrBattleNotFound", err)
	}
	if err := r.Remove(id); !errors.Is(err, ErrBattleNotFound) {
		t.Errorf("second Remove() error = %v, want ErrBattleNotFound", err)
	}
}

func TestRegistryLimit(t *testing.T) {
	r := New(engine.DefaultConfig(), nil, 2)
	t.Cleanup(r.Close)

	for i := 0; i < 2; i++ {
		if _, _, err := r.Create(); err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
	}
	if _, _, err := r.Create(); !errors.Is(err, ErrTooManyBattles) {
		t.Errorf("Create() over limit error = %v, want ErrTooManyBattles", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	r.Close()
	if r.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", r.Len())
	}
}

func TestBattleHiddenUntilHooksAttach(t *testing.T) {
	r := New(engine.DefaultConfig(), nil, 1, engine.WithClock(clockwork.NewFakeClock()))
	t.Cleanup(r.Close)

	entered := make(chan uuid.UUID)
	release := make(chan struct{})
	var detached atomic.Int32
	r.OnCreate(func(id uuid.UUID, e *engine.Engine) func() {
		entered <- id
		<-release
		return func() { detached.Add(1) }
	})

	var (
		wg        sync.WaitGroup
		createdID uuid.UUID
		createErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		createdID, _, createErr = r.Create()
	}()

	id := <-entered
	if err := r.Remove(id); !errors.Is(err, ErrBattleNotFound) {
		t.Errorf("Remove() while hooks run error = %v, want ErrBattleNotFound", err)
	}
	if _, err := r.Get(id); !errors.Is(err, ErrBattleNotFound) {
		t.Errorf("Get() while hooks run error = %v, want ErrBattleNotFound", err)
	}
	if _, _, err := r.Create(); !errors.Is(err, ErrTooManyBattles) {
		t.Errorf("Create() while another is attaching error = %v, want ErrTooManyBattles", err)
	}
	close(release)
	wg.Wait()

	if createErr != nil || createdID != id {
		t.Fatalf("Create() = %s, %v", createdID, createErr)
	}
	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if detached.Load() != 1 {
		t.Errorf("detach run %d times, want 1", detached.Load())
	}
}

func TestCloseDuringCreate(t *testing.T) {
	r := New(engine.DefaultConfig(), nil, 0, engine.WithClock(clockwork.NewFakeClock()))

	entered := make(chan *engine.Engine)
	release := make(chan struct{})
	var detached atomic.Int32
	r.OnCreate(func(id uuid.UUID, e *engine.Engine) func() {
		entered <- e
		<-release
		return func() { detached.Add(1) }
	})

	done := make(chan error)
	go func() {
		_, _, err := r.Create()
		done <- err
	}()
	e := <-entered
	r.Close()
	close(release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Errorf("Create() error = %v, want ErrClosed", err)
	}
	if detached.Load() != 1 || !e.Closed() {
		t.Errorf("detached %d, engine closed %v; want the half-made battle torn down", detached.Load(), e.Closed())
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, _, err := r.Create(); !errors.Is(err, ErrClosed) {
		t.Errorf("Create() after Close error = %v, want ErrClosed", err)
	}
}
