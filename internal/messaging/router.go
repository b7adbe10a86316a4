package messaging

import (
	"context"
	"fmt"
	"sync"
)

// Router dispatches requests to the handler registered for their action.
type Router struct {
	mu       sync.RWMutex
	handlers map[Action]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Action]Handler)}
}

// Register binds h to action. It panics on an undeclared action.
func (r *Router) Register(action Action, h Handler) {
	if !action.Valid() {
		panic(fmt.Sprintf("messaging: undeclared action %q", action))
	}
	r.mu.Lock()
	r.handlers[action] = h
	r.mu.Unlock()
}

// RegisterFunc binds f to action.
func (r *Router) RegisterFunc(action Action, f func(ctx context.Context, req Request) Response) {
	r.Register(action, HandlerFunc(f))
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	r.mu.RLock()
	h, ok := r.handlers[req.Action]
	r.mu.RUnlock()
	if !ok {
		return Response{Success: false, Error: "Unknown action"}
	}
	return h.Handle(ctx, req)
}

// Send implements Channel for in-process delivery.
func (r *Router) Send(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return r.Handle(ctx, req), nil
}

// Broadcaster fans progress messages out to subscribers. Delivery is
// fire-and-forget: a subscriber that is not keeping up misses messages.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Request
}

// NewBroadcaster returns a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Request)}
}

// Subscribe registers a listener with the given buffer size. The returned
// function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Request, func()) {
	ch := make(chan Request, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers req to every subscriber with room in its buffer and
// returns how many received it.
func (b *Broadcaster) Publish(req Request) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- req:
			delivered++
		default:
		}
	}
	return delivered
}
