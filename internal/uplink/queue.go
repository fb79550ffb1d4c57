package uplink

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/sweeney/carpi-telemetry/internal/filestore"
	"github.com/sweeney/carpi-telemetry/internal/report"
)

// DefaultQueueCapacity bounds the number of parked reports.
const DefaultQueueCapacity = 1000

// Queue is the durable offline report queue. Reports are stored without
// their auth token and replayed as one ordered batch.
// Not safe for concurrent use; the uplink loop owns it.
type Queue struct {
	file     *filestore.File
	items    []report.Report
	capacity int
	overflow bool // true if any report was dropped since the last flush
}

// NewQueue creates a queue persisted at path.
func NewQueue(path string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		file:     filestore.New(path),
		capacity: capacity,
	}
}

// Load restores parked reports from disk. A missing or corrupt file
// leaves the queue empty.
func (q *Queue) Load() {
	var items []report.Report
	err := q.file.Load(&items)
	switch {
	case err == nil:
		if len(items) > q.capacity {
			items = items[len(items)-q.capacity:]
		}
		q.items = items
		log.Printf("queue: restored %d reports from %s", len(q.items), q.file.Path())
	case errors.Is(err, fs.ErrNotExist):
		q.items = nil
	default:
		log.Printf("queue: %v, starting empty", err)
		q.items = nil
	}
}

// Enqueue strips the auth token from r, appends it, and rewrites the file.
// On a write error the report is still held in memory and will be
// persisted by the next successful write.
func (q *Queue) Enqueue(r report.Report) error {
	if len(q.items) >= q.capacity {
		if !q.overflow {
			log.Printf("queue: full (%d reports), dropping oldest", q.capacity)
			q.overflow = true
		}
		q.items = q.items[1:]
	}
	q.items = append(q.items, r.WithoutSecret())
	if err := q.file.Save(q.items); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// Flush reattaches token to every parked report and hands the whole
// backlog to send as one batch, oldest first. The queue is cleared only if
// send succeeds; any send error leaves it intact.
func (q *Queue) Flush(token string, send func([]report.Report) error) error {
	if len(q.items) == 0 {
		return nil
	}
	batch := make([]report.Report, len(q.items))
	for i, r := range q.items {
		batch[i] = r.WithToken(token)
	}
	if err := send(batch); err != nil {
		return err
	}

	q.items = nil
	q.overflow = false
	// The batch is acknowledged; a stale file is replayed at most once
	// more and deduplicated by the collector.
	if err := q.file.Remove(); err != nil {
		log.Printf("queue: clear after delivery: %v", err)
	}
	return nil
}

// Len returns the number of parked reports.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the parked reports, oldest first.
func (q *Queue) Items() []report.Report {
	return append([]report.Report(nil), q.items...)
}
