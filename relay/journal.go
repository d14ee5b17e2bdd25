package relay

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Entry is one journaled operation frame with its relay-assigned sequence.
type Entry struct {
	Seq   int64
	Actor string
	Frame []byte
}

// Journal persists the per-document frame history so a late-joining client
// can be bootstrapped from the beginning.
type Journal interface {
	Append(ctx context.Context, doc string, entry Entry) error
	Replay(ctx context.Context, doc string) ([]Entry, error)
}

// MemoryJournal keeps frame history in process memory. Suitable for tests
// and single-node development relays.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string][]Entry)}
}

// Append records one entry at the tail of the document's history.
func (j *MemoryJournal) Append(_ context.Context, doc string, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	frame := make([]byte, len(entry.Frame))
	copy(frame, entry.Frame)
	entry.Frame = frame
	j.entries[doc] = append(j.entries[doc], entry)
	return nil
}

// Replay returns the document's full history in append order.
func (j *MemoryJournal) Replay(_ context.Context, doc string) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	src := j.entries[doc]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, nil
}

// RedisJournal persists frame history in one Redis stream per document, so
// relay nodes can restart or scale out without losing bootstrap state.
type RedisJournal struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisJournal creates a journal on the given Redis client.
func NewRedisJournal(client *redis.Client) *RedisJournal {
	return &RedisJournal{client: client, keyPrefix: "collabdoc:journal:"}
}

func (j *RedisJournal) key(doc string) string {
	return j.keyPrefix + doc
}

// Append records one entry at the tail of the document's stream.
func (j *RedisJournal) Append(ctx context.Context, doc string, entry Entry) error {
	err := j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.key(doc),
		Values: map[string]interface{}{
			"seq":   entry.Seq,
			"actor": entry.Actor,
			"frame": entry.Frame,
		},
	}).Err()
	return errors.Wrapf(err, "failed to journal frame for doc %s", doc)
}

// Replay returns the document's full stream in append order.
func (j *RedisJournal) Replay(ctx context.Context, doc string) ([]Entry, error) {
	msgs, err := j.client.XRange(ctx, j.key(doc), "-", "+").Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to replay journal for doc %s", doc)
	}

	out := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		var entry Entry
		if raw, ok := msg.Values["seq"].(string); ok {
			entry.Seq, _ = strconv.ParseInt(raw, 10, 64)
		}
		if actor, ok := msg.Values["actor"].(string); ok {
			entry.Actor = actor
		}
		if frame, ok := msg.Values["frame"].(string); ok {
			entry.Frame = []byte(frame)
		}
		out = append(out, entry)
	}
	return out, nil
}
