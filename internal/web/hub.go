// Package web serves the headless HTTP surface: page state as JSON, record
// downloads, power actions and a websocket stream of loop reports.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/page"
)

// Event names pushed to websocket clients.
const (
	EventReport = "report"
	EventStatus = "status"
	EventAction = "action"
)

// Event is one message on the websocket stream.
type Event struct {
	Event   string `json:"event"`
	Page    string `json:"page"`
	Payload any    `json:"payload"`
}

// Hub fans events out to connected websocket clients.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan *Event
	done       chan struct{}

	log *slog.Logger
}

// NewHub creates a Hub. Call Run to start dispatching.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *Event, 100),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run dispatches until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.Info("ws: client registered", "remote_addr", c.remote, "total_clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("ws: client unregistered", "remote_addr", c.remote, "total_clients", len(h.clients))
			}

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(ev *Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws: failed to marshal event", "event", ev.Event, "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			h.log.Warn("ws: client channel full, dropping client", "remote_addr", c.remote)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Broadcast queues an event. It never blocks the caller: when the queue is
// full the event is dropped.
func (h *Hub) Broadcast(event, pageKey string, payload any) {
	select {
	case h.events <- &Event{Event: event, Page: pageKey, Payload: payload}:
	default:
		h.log.Warn("ws: event queue full, dropping event", "event", event, "page", pageKey)
	}
}

// ObserveReport implements engine.Observer.
func (h *Hub) ObserveReport(rep engine.Report) {
	h.Broadcast(EventReport, rep.Page, newReportView(rep))
}

// ObserveStatus pushes a machine status change.
func (h *Hub) ObserveStatus(pageKey, host string, s model.MachineStatus) {
	h.Broadcast(EventStatus, pageKey, newStatusView(host, s))
}

// ObserveAction pushes the outcome of a power action.
func (h *Hub) ObserveAction(pageKey, host string, a page.Action, err error) {
	v := actionView{Host: host, Action: string(a), At: time.Now()}
	if err != nil {
		v.Error = err.Error()
	}
	h.Broadcast(EventAction, pageKey, v)
}
