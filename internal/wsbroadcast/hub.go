package wsbroadcast

import (
	"sync/atomic"
	"time"

	"spreadmonitor/internal/aggregator"
	"spreadmonitor/internal/pairtable"
	"spreadmonitor/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PairsUpdateMessage is the envelope pushed to every subscriber on each
// broadcast tick.
type PairsUpdateMessage struct {
	Type  string                `json:"type"`
	Pairs []pairtable.PairState `json:"pairs"`
}

// Hub fans out periodic top(n) snapshots from an *aggregator.Aggregator
// to every registered Client.
type Hub struct {
	agg    *aggregator.Aggregator
	topN   int
	period time.Duration
	log    *utils.Logger

	register   chan *Client
	unregister chan *Client
	clients    map[*Client]struct{}

	dropped atomic.Int64

	stop chan struct{}
	done chan struct{}
}

// NewHub builds a Hub that broadcasts agg.Top(topN) every period.
func NewHub(agg *aggregator.Aggregator, topN int, period time.Duration, log *utils.Logger) *Hub {
	if period <= 0 {
		period = time.Second
	}
	return &Hub{
		agg:        agg,
		topN:       topN,
		period:     period,
		log:        log.WithComponent("wsbroadcast"),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run drives the registration loop and the periodic broadcast tick. It
// blocks until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case <-ticker.C:
			h.broadcastSnapshot()

		case <-h.stop:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Stop halts the broadcast loop and blocks until Run has returned.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

// DroppedMessages reports how many broadcast frames were discarded
// because a subscriber's send buffer was full.
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

func (h *Hub) broadcastSnapshot() {
	msg := PairsUpdateMessage{Type: "pairs_update", Pairs: h.agg.Top(h.topN)}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal pairs update", utils.Err(err))
		return
	}

	h.BroadcastRaw(payload)
}

// BroadcastRaw pushes a pre-encoded payload to every registered client,
// dropping it for any client whose send buffer is full rather than
// blocking the hub loop.
func (h *Hub) BroadcastRaw(payload []byte) {
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.dropped.Add(1)
			h.log.Warn("dropping broadcast frame, client send buffer full")
		}
	}
}
