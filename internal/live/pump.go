package live

import (
	"context"
	"errors"
	"io"
	"sync"
)

const defaultEventBuffer = 256

// Conn is a connected push transport. ReadMessage returns io.EOF on a clean
// remote close.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

// Dialer opens a Conn to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Pump runs one connection in the background and reports transport callbacks
// as Events. It never interprets frames.
type Pump struct {
	generation uint64
	events     chan Event
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	mu     sync.Mutex
	conn   Conn
	closed bool
}

// StartPump dials endpoint in a new goroutine. The returned pump's Events
// channel is closed once the connection goroutine exits.
func StartPump(parent context.Context, dialer Dialer, endpoint string, generation uint64, buffer int) *Pump {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	p := &Pump{
		generation: generation,
		events:     make(chan Event, buffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.run(dialer, endpoint)
	return p
}

// Generation is the session generation stamped on every event.
func (p *Pump) Generation() uint64 {
	return p.generation
}

// Events streams transport callbacks in order.
func (p *Pump) Events() <-chan Event {
	return p.events
}

// Done is closed when the connection goroutine has exited.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Close cancels a pending dial and closes an open connection. It does not
// wait for the goroutine; no further events are emitted once Close returns.
func (p *Pump) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conn := p.conn
	p.mu.Unlock()

	p.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

func (p *Pump) run(dialer Dialer, endpoint string) {
	defer close(p.done)
	defer close(p.events)
	defer p.Close()

	conn, err := dialer.Dial(p.ctx, endpoint)
	if err != nil {
		p.emit(Event{Kind: EventError, Err: err})
		p.emit(Event{Kind: EventClose})
		return
	}
	if !p.attach(conn) {
		_ = conn.Close()
		return
	}
	if !p.emit(Event{Kind: EventOpen}) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.emit(Event{Kind: EventError, Err: err})
			}
			p.emit(Event{Kind: EventClose})
			return
		}
		if !p.emit(Event{Kind: EventFrame, Frame: data}) {
			return
		}
	}
}

func (p *Pump) attach(conn Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.conn = conn
	return true
}

func (p *Pump) emit(ev Event) bool {
	if p.ctx.Err() != nil {
		return false
	}
	ev.Generation = p.generation
	select {
	case p.events <- ev:
		return true
	case <-p.ctx.Done():
		return false
	}
}
