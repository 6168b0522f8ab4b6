// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package journal keeps a durable, per-proposal history of the governance
// events published on the event bus. It is an observer: nothing in the
// coordinator reads it back, and a journal failure never affects proposal
// state.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vishalishere/DEX-VC-PLAT-sub002/event"
)

const (
	keyPrefix       = "evt|"
	sequenceKey     = "seq|journal"
	sequenceLease   = 100
	journalDirName  = "journal"
	keyTimestampFmt = "%020d"
)

var (
	ErrUnsupportedPayload = errors.New("journal: unsupported event payload")
	ErrClosed             = errors.New("journal: closed")
)

// Entry is a journaled event
type Entry struct {
	Sequence  uint64                `json:"sequence"`
	Type      event.EventType       `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Data      event.GovernanceEvent `json:"data"`
}

type Journal struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	seq          *badger.Sequence
	logger       *slog.Logger
	metrics      *journalMetrics
	dataDir      string
	gcEnabled    bool
	gcInterval   time.Duration
	gcTicker     *time.Ticker
	gcStopCh     chan struct{}
	gcWg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
	bus    *event.EventBus
	subIds map[event.EventType]event.EventSubscriberId
}

type journalMetrics struct {
	entries prometheus.Counter
	errors  prometheus.Counter
}

// New opens the journal
func New(opts ...JournalOptionFunc) (*Journal, error) {
	j := &Journal{
		gcEnabled:  true,
		gcInterval: DefaultGcInterval,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		j.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	j.logger = j.logger.With("component", "journal")
	var badgerOpts badger.Options
	if j.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		// Value log GC is not supported in memory
		j.gcEnabled = false
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(j.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(j.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(j.dataDir, journalDirName)).
			WithValueLogFileSize(DefaultValueLogFileSize).
			WithMemTableSize(DefaultMemTableSize).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(j.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j.db = db
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("open journal sequence: %w", err),
			db.Close(),
		)
	}
	j.seq = seq
	if j.promRegistry != nil {
		factory := promauto.With(j.promRegistry)
		j.metrics = &journalMetrics{
			entries: factory.NewCounter(prometheus.CounterOpts{
				Name: "govd_journal_entries_total",
				Help: "Governance events written to the journal",
			}),
			errors: factory.NewCounter(prometheus.CounterOpts{
				Name: "govd_journal_errors_total",
				Help: "Governance events the journal failed to write",
			}),
		}
	}
	if j.gcEnabled && j.gcInterval > 0 {
		j.gcTicker = time.NewTicker(j.gcInterval)
		j.gcStopCh = make(chan struct{})
		j.gcWg.Add(1)
		go j.valueLogGc(j.gcTicker, j.gcStopCh)
	}
	return j, nil
}

func (j *Journal) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer j.gcWg.Done()
	for {
		select {
		case <-t.C:
			// Keep collecting while each run rewrites a file
			for {
				err := j.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					j.logger.Warn(
						"value log GC failure",
						"error", err,
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

func entryKey(proposalID string, ts time.Time, seq uint64) []byte {
	return fmt.Appendf(
		nil,
		keyPrefix+"%s|"+keyTimestampFmt+"|"+keyTimestampFmt,
		proposalID,
		ts.UnixNano(),
		seq,
	)
}

func proposalPrefix(proposalID string) []byte {
	return []byte(keyPrefix + proposalID + "|")
}

// Append writes an event. Only governance event payloads are accepted.
func (j *Journal) Append(evt event.Event) (*Entry, error) {
	var data event.GovernanceEvent
	switch payload := evt.Data.(type) {
	case event.GovernanceEvent:
		data = payload
	case *event.GovernanceEvent:
		if payload == nil {
			return nil, ErrUnsupportedPayload
		}
		data = *payload
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPayload, evt.Data)
	}
	if data.ProposalID == "" {
		return nil, fmt.Errorf("%w: missing proposal id", ErrUnsupportedPayload)
	}
	j.mu.Lock()
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	next, err := j.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("next journal sequence: %w", err)
	}
	entry := &Entry{
		// Badger sequences start at 0
		Sequence:  next + 1,
		Type:      evt.Type,
		Timestamp: evt.Timestamp.UTC(),
		Data:      data,
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode journal entry: %w", err)
	}
	key := entryKey(data.ProposalID, entry.Timestamp, entry.Sequence)
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return nil, fmt.Errorf("write journal entry: %w", err)
	}
	return entry, nil
}

// List returns the journaled events of a proposal, oldest first
func (j *Journal) List(proposalID string) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = proposalPrefix(proposalID)
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode journal entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Attach subscribes the journal to every governance event type on bus
func (j *Journal) Attach(bus *event.EventBus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.bus != nil {
		return
	}
	j.bus = bus
	j.subIds = make(map[event.EventType]event.EventSubscriberId)
	for _, eventType := range event.GovernanceEventTypes {
		j.subIds[eventType] = bus.RegisterSubscriber(
			eventType,
			&subscriber{journal: j},
		)
	}
}

// Detach removes the journal's subscriptions from the bus it was attached to
func (j *Journal) Detach() {
	j.mu.Lock()
	bus := j.bus
	subIds := j.subIds
	j.bus = nil
	j.subIds = nil
	j.mu.Unlock()
	if bus == nil {
		return
	}
	for eventType, subId := range subIds {
		bus.Unsubscribe(eventType, subId)
	}
}

// Close detaches the journal and closes the underlying database
func (j *Journal) Close() error {
	j.Detach()
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()
	if j.gcTicker != nil {
		j.gcTicker.Stop()
		close(j.gcStopCh)
		j.gcWg.Wait()
		j.gcTicker = nil
	}
	return errors.Join(j.seq.Release(), j.db.Close())
}

// subscriber adapts the journal to event.Subscriber. Write failures are
// logged and counted but never reported to the bus, which would drop the
// subscription.
type subscriber struct {
	journal *Journal
}

func (s *subscriber) Deliver(evt event.Event) error {
	j := s.journal
	if _, err := j.Append(evt); err != nil {
		if j.metrics != nil {
			j.metrics.errors.Inc()
		}
		j.logger.Error(
			"failed to journal event",
			"type", evt.Type,
			"error", err,
		)
		return nil
	}
	if j.metrics != nil {
		j.metrics.entries.Inc()
	}
	return nil
}

func (s *subscriber) Close() {}
