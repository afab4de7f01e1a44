package renderercore

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

// Queue mirrors what has been handed to the player. Entries are only ever
// appended; the player owns reordering and removal.
type Queue struct {
	Driver Driver
	Log    *zap.Logger

	mu       sync.Mutex
	revision int64
	nextID   int64
	entries  []QueueEntry
}

// QueueEntry describes a queued item.
type QueueEntry struct {
	QueueEntryID string `json:"queueEntryId"`
	Artist       string `json:"artist"`
	Track        string `json:"track"`
	Locator      string `json:"locator"`
	// Err holds the driver failure, if the player refused the item.
	Err string `json:"error,omitempty"`
}

// NewQueue builds a queue in front of driver.
func NewQueue(driver Driver, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{Driver: driver, Log: log}
}

// EnqueueAppendPlay implements ports.PlaybackQueue. Driver failures are logged
// and kept on the entry; they are never returned.
func (q *Queue) EnqueueAppendPlay(ctx context.Context, item mp.PlayableItem) error {
	q.mu.Lock()
	q.nextID++
	entry := QueueEntry{
		QueueEntryID: "q" + strconv.FormatInt(q.nextID, 10),
		Artist:       item.Artist,
		Track:        item.Track,
		Locator:      item.Locator,
	}
	q.entries = append(q.entries, entry)
	idx := len(q.entries) - 1
	q.revision++
	q.mu.Unlock()

	if q.Driver == nil {
		return nil
	}
	if err := q.Driver.AppendPlay(ctx, item.Locator); err != nil {
		q.log().Warn("player rejected item",
			zap.String("queueEntryId", entry.QueueEntryID),
			zap.String("locator", item.Locator),
			zap.Error(err))
		q.mu.Lock()
		q.entries[idx].Err = err.Error()
		q.revision++
		q.mu.Unlock()
		return nil
	}
	q.log().Debug("queued", zap.String("queueEntryId", entry.QueueEntryID), zap.String("locator", item.Locator))
	return nil
}

// Snapshot returns a copy of a window of the queue. count <= 0 means to the end.
func (q *Queue) Snapshot(from int64, count int64) mp.QueueGetReply {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := int64(len(q.entries))
	start := clampIndex(from, total)
	end := total
	if count > 0 && count < total-start {
		end = start + count
	}
	items := make([]mp.QueueItem, 0, end-start)
	for _, entry := range q.entries[start:end] {
		items = append(items, mp.QueueItem{
			QueueEntryID: entry.QueueEntryID,
			Artist:       entry.Artist,
			Track:        entry.Track,
			Locator:      entry.Locator,
			Error:        entry.Err,
		})
	}
	return mp.QueueGetReply{Revision: q.revision, Entries: items}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) log() *zap.Logger {
	if q.Log == nil {
		return zap.NewNop()
	}
	return q.Log
}

func clampIndex(index int64, max int64) int64 {
	if index < 0 {
		return 0
	}
	if index > max {
		return max
	}
	return index
}
