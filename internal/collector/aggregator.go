package collector

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sweeney/carpi-telemetry/internal/geo"
	"github.com/sweeney/carpi-telemetry/internal/notify"
	"github.com/sweeney/carpi-telemetry/internal/report"
)

// ErrUnauthorized is returned when any entry of a batch carries the wrong token.
var ErrUnauthorized = errors.New("collector: unauthorized")

// DefaultSeenIDs bounds the replay dedupe cache.
const DefaultSeenIDs = 4096

// Options tune an Aggregator. Zero values select defaults.
type Options struct {
	HistoryCapacity int
	ThresholdFeet   float64
	SeenIDs         int
	Metrics         *Metrics
	Now             func() time.Time
}

// Aggregator holds the collector state behind an RWMutex. Ingest takes the
// write lock for a whole batch so requests are serialized.
type Aggregator struct {
	mu      sync.RWMutex
	token   []byte
	snap    Snapshot
	track   *geo.Track
	seen    *lru.Cache[string, struct{}]
	metrics *Metrics
	now     func() time.Time
}

// New creates an Aggregator that accepts reports carrying token.
func New(token string, opts Options) *Aggregator {
	if opts.SeenIDs <= 0 {
		opts.SeenIDs = DefaultSeenIDs
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seen, err := lru.New[string, struct{}](opts.SeenIDs)
	if err != nil {
		// Only possible for a non-positive size.
		panic(err)
	}
	return &Aggregator{
		token:   []byte(token),
		snap:    Snapshot{StartTime: opts.Now()},
		track:   geo.NewTrack(opts.HistoryCapacity, opts.ThresholdFeet),
		seen:    seen,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
}

// Ingest authenticates every entry of batch and, only if all pass, applies
// them in order. It returns an alert for every accepted door transition.
// Entries whose id was already applied are skipped.
func (a *Aggregator) Ingest(batch []report.Report) ([]notify.Alert, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range batch {
		if !a.authorized(r.AuthToken) {
			a.metrics.batchRejected()
			return nil, fmt.Errorf("entry %d of %d: %w", i+1, len(batch), ErrUnauthorized)
		}
	}

	now := a.now()
	var alerts []notify.Alert
	for _, r := range batch {
		if r.ID != "" {
			if a.seen.Contains(r.ID) {
				a.snap.Duplicates++
				a.metrics.duplicate()
				continue
			}
			a.seen.Add(r.ID, struct{}{})
		}

		switch r.Kind {
		case report.KindSensorAlert:
			if alert, ok := a.applyAlert(r, now); ok {
				alerts = append(alerts, alert)
			}
		default:
			a.applyHeartbeat(r)
		}
		a.snap.Applied++
		a.metrics.ingested(r.Kind)
	}

	a.snap.HistoryLen = a.track.Len()
	a.metrics.observe(a.snap)
	return alerts, nil
}

func (a *Aggregator) authorized(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), a.token) == 1
}

func (a *Aggregator) applyHeartbeat(r report.Report) {
	if r.Status != "" {
		a.snap.Status = r.Status
	}
	if r.Timestamp != 0 {
		a.snap.Timestamp = report.Millis{Value: r.Timestamp, Valid: true}
	}
	if r.CPUTempC != nil {
		c := *r.CPUTempC
		a.snap.CPUTempC = &c
	}
	if r.LastOpenedAt.Valid {
		a.snap.LastOpenedAt = r.LastOpenedAt
	}
	for _, p := range r.Positions {
		if !p.Retainable() {
			continue
		}
		cur := p
		a.snap.Position = &cur
		a.track.Offer(p)
	}
}

func (a *Aggregator) applyAlert(r report.Report, now time.Time) (notify.Alert, bool) {
	if r.LastOpenedAt.Valid {
		a.snap.LastOpenedAt = r.LastOpenedAt
	}

	id := int(r.SensorID)
	if id < 1 || id > NumSensors || !r.Door.Known {
		log.Printf("collector: ignoring sensor alert (sensor %d, door %s)", id, r.Door)
		return notify.Alert{}, false
	}
	a.snap.Sensors[id-1] = r.Door

	at := now
	if r.Timestamp != 0 {
		at = r.Time()
	}
	return notify.Alert{
		SensorID:   id,
		Door:       r.Door.Value,
		At:         at,
		ReceivedAt: now,
	}, true
}

// Snapshot returns a point-in-time copy of the collector state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	s := a.snap
	if s.CPUTempC != nil {
		c := *s.CPUTempC
		s.CPUTempC = &c
	}
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	a.mu.RUnlock()
	s.Now = a.now()
	return s
}

// History returns the retained positions, oldest first.
func (a *Aggregator) History() []report.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.track.Positions()
}
