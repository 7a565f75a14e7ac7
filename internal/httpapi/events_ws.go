package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"inferd/internal/manager"
)

// wsSendQueueSize bounds per-subscriber buffering; slow consumers drop
// events rather than blocking the publisher.
const wsSendQueueSize = 32

const wsWriteTimeout = 5 * time.Second

// WSPublisher fans manager lifecycle events out to websocket subscribers.
// It implements manager.EventPublisher, so it can be wired directly as the
// manager's publisher.
type WSPublisher struct {
	mu   sync.Mutex
	subs map[chan manager.Event]struct{}
}

func NewWSPublisher() *WSPublisher {
	return &WSPublisher{subs: make(map[chan manager.Event]struct{})}
}

// Publish delivers e to every subscriber without blocking.
func (p *WSPublisher) Publish(e manager.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is not keeping up; drop rather than stall loads.
		}
	}
}

func (p *WSPublisher) subscribe() (chan manager.Event, func()) {
	ch := make(chan manager.Event, wsSendQueueSize)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
}

// Subscribers returns the current subscriber count.
func (p *WSPublisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// ServeHTTP upgrades the request and streams events as JSON text messages
// until the client disconnects.
func (p *WSPublisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logError(err, "websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, unsubscribe := p.subscribe()
	defer unsubscribe()

	// We never expect inbound messages; CloseRead gives us a context that
	// ends when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
