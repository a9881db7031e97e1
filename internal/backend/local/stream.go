package local

import (
	"sync"

	"github.com/google/uuid"

	"github.com/darray-ml/darray/internal/device"
)

// event is a one-shot completion token.
type event struct {
	id   uuid.UUID
	done chan struct{}
}

func newEvent() *event {
	return &event{id: uuid.New(), done: make(chan struct{})}
}

func (e *event) UUID() uuid.UUID      { return e.id }
func (e *event) Done() <-chan struct{} { return e.done }
func (e *event) Synchronize()          { <-e.done }

// stream executes launched operations strictly in issue order. Each
// operation runs on its own goroutine chained to the completion of the
// previous one, so an idle stream holds no goroutine at all.
type stream struct {
	dev device.ID

	mu   sync.Mutex
	tail <-chan struct{} // completion of the most recently issued op
}

func newStream(dev device.ID) *stream {
	return &stream{dev: dev}
}

func (s *stream) Device() device.ID { return s.dev }

func (s *stream) Launch(op func()) {
	done := make(chan struct{})
	s.mu.Lock()
	prev := s.tail
	s.tail = done
	s.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}
		op()
		close(done)
	}()
}

func (s *stream) Record() device.Event {
	e := newEvent()
	s.Launch(func() {
		close(e.done)
	})
	return e
}

func (s *stream) Wait(e device.Event) {
	s.Launch(func() {
		<-e.Done()
	})
}

func (s *stream) Synchronize() {
	s.Record().Synchronize()
}
