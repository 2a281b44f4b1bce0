package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medchain/medchain-server/internal/models"
	"go.uber.org/zap"
)

// Kind names the collection a watch follows
type Kind string

const (
	KindDrugs         Kind = "drugs"
	KindShipments     Kind = "shipments"
	KindPrescriptions Kind = "prescriptions"
)

// ParseKind validates a collection name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDrugs, KindShipments, KindPrescriptions:
		return k, nil
	}
	return "", fmt.Errorf("unknown verification kind %q", s)
}

// RecordFetcher re-reads one record of a kind.
type RecordFetcher func(ctx context.Context, id string) (models.Record, error)

// Event is pushed to a watch when one of its records resolves
type Event struct {
	Kind         Kind                `json:"kind"`
	ID           string              `json:"id"`
	Verification models.Verification `json:"blockchain_tx_id"`
	Record       models.Record       `json:"record,omitempty"`
}

// Watch is one live view: the records it loaded, patched in place as
// verifications arrive, and the poller that keeps them fresh.
type Watch struct {
	ID     string
	UserID string
	Kind   Kind
	Events chan Event

	mu      sync.Mutex
	records []models.Record
	latest  map[string]models.Record
	poller  *Poller
	logger  *zap.SugaredLogger
}

// Records returns a copy of the watch's current list.
func (w *Watch) Records() []models.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Record, len(w.records))
	copy(out, w.records)
	return out
}

// Pending returns the ids still awaiting verification.
func (w *Watch) Pending() []string {
	return w.poller.Pending()
}

func (w *Watch) resolve(resolved []Resolution) {
	w.mu.Lock()
	events := make([]Event, 0, len(resolved))
	for _, r := range resolved {
		rec, ok := w.latest[r.ID]
		delete(w.latest, r.ID)
		if ok {
			if !models.ReplaceByID(w.records, rec) {
				w.records = append([]models.Record{rec}, w.records...)
			}
		}
		events = append(events, Event{Kind: w.Kind, ID: r.ID, Verification: r.Verification, Record: rec})
	}
	w.mu.Unlock()

	for _, ev := range events {
		select {
		case w.Events <- ev:
		default:
			w.logger.Warnw("Verification watch buffer full, dropping event", "watch", w.ID, "id", ev.ID)
		}
	}
}

// HubOptions configures a Hub
type HubOptions struct {
	Interval time.Duration
	Clock    Clock
	Logger   *zap.SugaredLogger
}

// Hub owns every live watch and routes newly created records to them.
type Hub struct {
	mu       sync.RWMutex
	watches  map[string]*Watch
	fetchers map[Kind]RecordFetcher
	opts     HubOptions
	seq      uint64
}

// NewHub creates a hub with one fetcher per kind
func NewHub(fetchers map[Kind]RecordFetcher, opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Hub{
		watches:  make(map[string]*Watch),
		fetchers: fetchers,
		opts:     opts,
	}
}

// Open starts a watch over records for userID. Every pending record is
// tracked immediately. The watch ends when ctx is done or Close is called.
func (h *Hub) Open(ctx context.Context, userID string, kind Kind, records []models.Record) (*Watch, error) {
	fetch, ok := h.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher for %s", kind)
	}

	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("%s_%s_%d", userID, kind, h.seq)
	h.mu.Unlock()

	owned := make([]models.Record, len(records))
	copy(owned, records)

	w := &Watch{
		ID:      id,
		UserID:  userID,
		Kind:    kind,
		Events:  make(chan Event, 64),
		records: owned,
		latest:  make(map[string]models.Record),
		logger:  h.opts.Logger,
	}
	w.poller = NewPoller(ctx, func(ctx context.Context, id string) (models.Verification, error) {
		rec, err := fetch(ctx, id)
		if err != nil {
			return models.Verification{}, err
		}
		w.mu.Lock()
		w.latest[id] = rec
		w.mu.Unlock()
		return rec.Verification(), nil
	}, Options{
		Interval:  h.opts.Interval,
		Clock:     h.opts.Clock,
		OnResolve: w.resolve,
		Logger:    h.opts.Logger,
	})

	h.mu.Lock()
	h.watches[id] = w
	h.mu.Unlock()

	w.poller.Track(models.PendingIDs(owned)...)
	h.opts.Logger.Infow("Verification watch opened",
		"watch", id,
		"user", userID,
		"kind", kind,
		"pending", len(w.poller.Pending()),
	)

	go func() {
		<-ctx.Done()
		h.Close(id)
	}()
	return w, nil
}

// Track adds a freshly inserted record to every watch userID has open on kind.
func (h *Hub) Track(userID string, kind Kind, recordID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, w := range h.watches {
		if w.UserID == userID && w.Kind == kind {
			w.poller.Track(recordID)
		}
	}
}

// Close tears a watch down; its poller stops and no further events are sent.
func (h *Hub) Close(watchID string) {
	h.mu.Lock()
	w, ok := h.watches[watchID]
	if ok {
		delete(h.watches, watchID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	w.poller.Close()
	h.opts.Logger.Infow("Verification watch closed", "watch", watchID)
}

// Count returns the number of open watches.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watches)
}
