// Package sync implements the SyncEngine: the component that owns a
// workspace's replicated key/value map, drives last-writer-wins merge
// over hybrid logical clock timestamps, gates remote delivery on a
// causal dependency buffer, persists an offline pending-op queue, and
// garbage-collects tombstones once they clear a stability window.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"acp-sync/internal/causal"
	"acp-sync/internal/codec"
	"acp-sync/internal/config"
	"acp-sync/internal/crypto"
	"acp-sync/internal/hlc"
	"acp-sync/internal/metrics"
	"acp-sync/internal/staleness"
	"acp-sync/internal/storage"
	"acp-sync/internal/tombstone"
)

// defaultStaleReadThreshold is the staleness detector's IsStale bound.
// Get records every served entry's age into the data-age histogram and
// does not consult this bound, so it neither gates reads nor changes
// what is recorded.
const defaultStaleReadThreshold = 30 * time.Second

// EngineState is the engine's own lifecycle, distinct from the
// connection Status reported to subscribers.
type EngineState int

const (
	StateNew EngineState = iota
	StateRunning
	StateStopped
	StateDestroyed
)

// Entry is one live key's current value and the operation that wrote
// it. A nil Value denotes a tombstone.
type Entry struct {
	Value          codec.Value
	Timestamp      hlc.HLC
	PeerID         string
	LastCiphertext []byte // set only when an encryption adapter is active
}

// PendingOp is a locally generated operation awaiting delivery,
// mirrored durably under a queue-prefixed storage key so it survives
// a restart.
type PendingOp struct {
	ID        uuid.UUID
	Key       string
	ValueWire []byte // codec-encoded value, or ciphertext if encryption is active
	Timestamp hlc.HLC
	Deps      [][]byte
}

// remoteOpEnvelope is the causal buffer payload for an operation
// received from a remote peer; it carries everything applyOneRemote
// needs once its dependencies clear.
type remoteOpEnvelope struct {
	Key       string
	Payload   []byte
	Peer      string
	Timestamp hlc.HLC
}

// Engine owns one workspace's replicated state. The state map and
// causal buffer are protected by a single lock held across each
// public operation, per the concurrency model: one logical owner,
// operations that run to completion atomically with respect to one
// another.
type Engine struct {
	mu sync.Mutex

	workspaceID string
	peerID      string

	lifecycle EngineState

	state   map[string]Entry
	pending []PendingOp

	causalBuf  *causal.Buffer
	tombstones *tombstone.Log

	clock       *hlc.Clock
	clockOffset int64

	storage storage.Adapter
	crypto  crypto.Adapter // nil disables encryption

	metrics   *metrics.Metrics
	stale     *staleness.Detector
	logger    *zap.Logger

	maxQueueSize    int
	stabilityWindow time.Duration

	listeners      map[int]Listener
	nextListenerID int

	persistWG sync.WaitGroup
}

// NewEngine builds an engine for cfg. store and m must be non-nil; enc
// may be nil to disable the encryption adapter.
func NewEngine(cfg *config.Config, store storage.Adapter, enc crypto.Adapter, m *metrics.Metrics, logger *zap.Logger) *Engine {
	peerID := cfg.PeerID
	if peerID == "" {
		peerID = uuid.NewString()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	stabilityWindow := time.Duration(cfg.StabilityWindowMs) * time.Millisecond

	return &Engine{
		workspaceID:     cfg.WorkspaceID,
		peerID:          peerID,
		lifecycle:       StateNew,
		state:           make(map[string]Entry),
		causalBuf:       causal.NewBuffer(cfg.MaxQueueSize),
		tombstones:      tombstone.NewLog(stabilityWindow),
		clock:           hlc.NewClock(peerID, cfg.HLCMaxDrift),
		storage:         store,
		crypto:          enc,
		metrics:         m,
		stale:           staleness.NewDetector(defaultStaleReadThreshold, m),
		logger:          logger,
		maxQueueSize:    cfg.MaxQueueSize,
		stabilityWindow: stabilityWindow,
		listeners:       make(map[int]Listener),
	}
}

// PeerID returns this engine's own peer identity.
func (e *Engine) PeerID() string {
	return e.peerID
}

// operableLocked reports whether the engine currently accepts
// mutating operations. Must be called with e.mu held.
func (e *Engine) operableLocked() bool {
	return e.lifecycle == StateRunning
}

// Boot initializes storage and rehydrates state from it, then moves
// the engine into the running state. Operations issued before Boot or
// after Stop/Destroy return without effect.
func (e *Engine) Boot(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle != StateNew {
		return fmt.Errorf("sync: boot called in state %d, want new", e.lifecycle)
	}

	if err := e.storage.Init(ctx); err != nil {
		return fmt.Errorf("sync: storage init: %w", err)
	}

	if err := e.loadFromStorageLocked(ctx); err != nil {
		e.logger.Warn("load from storage failed, starting from empty state", zap.Error(err))
	}

	e.lifecycle = StateRunning
	e.logger.Info("engine booted", zap.String("workspace_id", e.workspaceID), zap.String("peer_id", e.peerID))
	e.emit(Event{Kind: EventStatus, NewStatus: StatusReady})

	return nil
}

// Stop moves a running engine to stopped; subsequent mutating
// operations return without effect until a new engine is constructed.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle != StateRunning {
		return
	}
	e.lifecycle = StateStopped
	e.logger.Info("engine stopped")
	e.emit(Event{Kind: EventStatus, NewStatus: StatusDisconnected})
}

// Destroy is terminal: state is wiped, subscribers removed, and the
// engine rejects all future operations.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lifecycle == StateDestroyed {
		return
	}

	e.persistWG.Wait()

	if err := e.storage.Close(); err != nil {
		e.logger.Warn("storage close failed", zap.Error(err))
	}

	e.state = nil
	e.pending = nil
	e.listeners = nil
	e.lifecycle = StateDestroyed
	e.logger.Info("engine destroyed")
}

// Get returns key's current value. A tombstoned key reports ok=true
// with a nil value; a key never written (or already compacted)
// reports ok=false.
func (e *Engine) Get(key string) (value codec.Value, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, found := e.state[key]
	if !found {
		return nil, false
	}

	e.stale.Observe(entry.Timestamp, hlc.NowMillis())
	return entry.Value, true
}

// Set encodes value, stamps it with a fresh HLC, writes it into the
// state map unconditionally, and returns the wire bytes for the
// transport to forward. Never blocks on storage.
func (e *Engine) Set(ctx context.Context, key string, value codec.Value) ([]byte, error) {
	start := time.Now()
	defer func() { e.metrics.SetLatency.Observe(time.Since(start).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.operableLocked() {
		e.logger.Debug("set ignored, engine not running", zap.String("key", key))
		return nil, nil
	}

	return e.setLocked(ctx, key, value, nil)
}

// Delete is equivalent to Set(key, nil): tombstones carry a null value
// and an ordinary HLC.
func (e *Engine) Delete(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { e.metrics.DeleteLatency.Observe(time.Since(start).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.operableLocked() {
		e.logger.Debug("delete ignored, engine not running", zap.String("key", key))
		return nil, nil
	}

	return e.setLocked(ctx, key, nil, nil)
}

// setLocked performs the shared Set/Delete path (CAS applies its new
// value through its own copy of these steps). deps
// is nil for ordinary local writes: a locally originated op has no
// unsatisfied causal predecessors, since it is the single local
// engine's own mutation of its own state.
func (e *Engine) setLocked(ctx context.Context, key string, value codec.Value, deps [][]byte) ([]byte, error) {
	valBytes, err := codec.EncodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("sync: encode value: %w", err)
	}

	ts := e.clock.Now(e.clockOffset)

	wireValue := valBytes
	storedValue := valBytes
	if e.crypto != nil {
		ciphertext, err := e.crypto.Encrypt(valBytes)
		if err != nil {
			e.metrics.CryptoErrorsTotal.WithLabelValues("encrypt").Inc()
			return nil, fmt.Errorf("sync: encrypt value: %w", err)
		}
		wireValue = ciphertext
		storedValue = ciphertext
	}

	entry := Entry{Value: value, Timestamp: ts, PeerID: e.peerID}
	if e.crypto != nil {
		entry.LastCiphertext = wireValue
	}
	e.state[key] = entry

	if value == nil {
		e.tombstones.Record(key, ts)
	} else {
		e.tombstones.Forget(key)
	}

	e.causalBuf.MarkObserved(causal.ObservedHash(key, ts, e.peerID))
	e.metrics.RecordOpAccepted(true)

	op := codec.Op{ID: uuid.New(), Key: key, Timestamp: ts, Value: wireValue, Deps: deps}
	opBytes := codec.EncodeOp(op)
	wireBytes := codec.EncodeMessage(codec.TagOp, opBytes)

	e.enqueuePendingLocked(PendingOp{ID: op.ID, Key: key, ValueWire: wireValue, Timestamp: ts, Deps: deps})

	e.emit(Event{Kind: EventOp, Key: key, Value: value, IsLocal: true, Timestamp: ts})

	e.persistAsync("set", func(ctx context.Context) error {
		return e.storage.Set(ctx, key, storedValue)
	})
	e.persistAsync("set", func(ctx context.Context) error {
		return e.storage.Set(ctx, QueueKey(ts, key), opBytes)
	})

	return wireBytes, nil
}

// enqueuePendingLocked appends op to the in-memory pending queue,
// evicting the oldest entry (and its durable record) if it would grow
// past maxQueueSize, and emits queueChange.
func (e *Engine) enqueuePendingLocked(op PendingOp) {
	e.pending = append(e.pending, op)

	if len(e.pending) > e.maxQueueSize {
		evicted := e.pending[0]
		e.pending = e.pending[1:]
		e.persistAsync("delete", func(ctx context.Context) error {
			return e.storage.Delete(ctx, QueueKey(evicted.Timestamp, evicted.Key))
		})
	}

	e.metrics.QueueSize.Set(float64(len(e.pending)))
	e.emit(Event{Kind: EventQueueChange, QueueSize: len(e.pending)})
}

// ApplyRemote gates key's arriving operation through the causal buffer
// and, once its dependencies are satisfied, runs the LWW merge. deps
// unsatisfied at arrival time are not an error: the op is buffered and
// the engine emits a syncing status event. No status event is emitted
// when the gap later closes.
func (e *Engine) ApplyRemote(ctx context.Context, key string, payload []byte, peer string, timestamp hlc.HLC, deps [][]byte) error {
	start := time.Now()
	defer func() { e.metrics.ApplyLatency.Observe(time.Since(start).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.operableLocked() {
		return nil
	}

	hash := causal.ObservedHash(key, timestamp, peer)
	env := &remoteOpEnvelope{Key: key, Payload: payload, Peer: peer, Timestamp: timestamp}

	ready, resyncRequested := e.causalBuf.Deliver(causal.Entry{Hash: hash, Deps: deps, Payload: env})
	e.metrics.CausalBufferSize.Set(float64(e.causalBuf.PendingCount()))

	delivered := false
	for _, r := range ready {
		re := r.(*remoteOpEnvelope)
		if re == env {
			delivered = true
		}
		e.applyOneRemoteLocked(re)
	}

	if resyncRequested {
		e.metrics.ResyncRequestsTotal.Inc()
		e.logger.Warn("causal buffer overflow, requesting resync", zap.String("key", key))
		e.emit(Event{Kind: EventError, ErrorKind: "causal_gap", Detail: "pending buffer overflow, resync requested"})
	}

	if !delivered {
		e.logger.Debug("op buffered awaiting causal dependencies", zap.String("key", key), zap.Int("deps", len(deps)))
		e.emit(Event{Kind: EventStatus, NewStatus: StatusSyncing})
	}

	return nil
}

// applyOneRemoteLocked runs steps 2-5 of applyRemote for an envelope
// the causal buffer has already cleared for delivery. It first folds
// the remote timestamp into the local clock via Observe, so this
// replica's own subsequent writes stay causally ahead of everything it
// has merged in; a timestamp too far ahead of local wall time is
// dropped rather than accepted. Decryption and decode failures are
// likewise logged and dropped, never propagated: a single bad remote
// op must not halt the engine.
func (e *Engine) applyOneRemoteLocked(re *remoteOpEnvelope) {
	if err := e.clock.Observe(re.Timestamp); err != nil {
		e.metrics.ClockDriftRejectedTotal.Inc()
		e.logger.Warn("dropping remote op, clock drift exceeds bound", zap.String("key", re.Key), zap.Error(err))
		e.emit(Event{Kind: EventError, ErrorKind: "clock_drift", Detail: err.Error()})
		return
	}

	plaintext := re.Payload
	if e.crypto != nil {
		pt, err := e.crypto.Decrypt(re.Payload)
		if err != nil {
			e.metrics.CryptoErrorsTotal.WithLabelValues("decrypt").Inc()
			e.logger.Warn("dropping remote op, decryption failed", zap.String("key", re.Key), zap.Error(err))
			e.emit(Event{Kind: EventError, ErrorKind: "crypto", Detail: err.Error()})
			return
		}
		plaintext = pt
	}

	value, err := codec.DecodeValue(plaintext)
	if err != nil {
		e.metrics.StorageErrorsTotal.WithLabelValues("decode").Inc()
		e.logger.Warn("dropping remote op, decode failed", zap.String("key", re.Key), zap.Error(err))
		e.emit(Event{Kind: EventError, ErrorKind: "codec", Detail: err.Error()})
		return
	}

	cur, exists := e.state[re.Key]
	accept := !exists ||
		tsLess(cur.Timestamp, re.Timestamp) ||
		(tsEqual(cur.Timestamp, re.Timestamp) && cur.PeerID < re.Peer)

	if !accept {
		if tsEqual(cur.Timestamp, re.Timestamp) {
			e.metrics.RecordOpRejected("rejected_tie")
		} else {
			e.metrics.RecordOpRejected("rejected_stale")
		}
		return
	}

	entry := Entry{Value: value, Timestamp: re.Timestamp, PeerID: re.Peer}
	if e.crypto != nil {
		entry.LastCiphertext = re.Payload
	}
	e.state[re.Key] = entry

	if value == nil {
		e.tombstones.Record(re.Key, re.Timestamp)
	} else {
		e.tombstones.Forget(re.Key)
	}

	e.metrics.RecordOpAccepted(false)

	e.persistAsync("set", func(ctx context.Context) error {
		return e.storage.Set(ctx, re.Key, re.Payload)
	})

	e.emit(Event{Kind: EventOp, Key: re.Key, Value: value, IsLocal: false, Timestamp: re.Timestamp})
}

// tsLess and tsEqual compare only the (physical, logical) pair of an
// HLC, deliberately ignoring the numeric NodeID: the LWW accept rule
// breaks ties on the operation's string peer id instead, per the
// data model's (timestamp, peer_id) ordering key.
func tsLess(a, b hlc.HLC) bool {
	if a.Physical != b.Physical {
		return a.Physical < b.Physical
	}
	return a.Logical < b.Logical
}

func tsEqual(a, b hlc.HLC) bool {
	return a.Physical == b.Physical && a.Logical == b.Logical
}

// CAS performs an optimistic compare-and-swap: it checks the current
// value against expected by deep structural equality, applies newValue
// locally on a match, and returns the CAS wire message for the
// transport to forward. The server is the final arbiter; a rejection
// arrives later as an ordinary remote op.
func (e *Engine) CAS(ctx context.Context, key string, expected, newValue codec.Value) (bool, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.operableLocked() {
		return false, nil, nil
	}

	cur, exists := e.state[key]
	var curValue codec.Value
	if exists {
		curValue = cur.Value
	}

	if !codec.DeepEqual(curValue, expected) {
		e.metrics.RecordCAS(false)
		return false, nil, nil
	}

	if e.crypto != nil && expected != nil {
		if !exists || len(cur.LastCiphertext) == 0 {
			e.metrics.RecordCAS(false)
			return false, nil, nil
		}
	}

	ts := e.clock.Now(e.clockOffset)

	newBytes, err := codec.EncodeValue(newValue)
	if err != nil {
		return false, nil, fmt.Errorf("sync: encode value: %w", err)
	}

	expectedBytes, err := codec.EncodeValue(expected)
	if err != nil {
		return false, nil, fmt.Errorf("sync: encode expected value: %w", err)
	}

	wireNew := newBytes
	if e.crypto != nil {
		ciphertext, err := e.crypto.Encrypt(newBytes)
		if err != nil {
			e.metrics.CryptoErrorsTotal.WithLabelValues("encrypt").Inc()
			return false, nil, fmt.Errorf("sync: encrypt value: %w", err)
		}
		wireNew = ciphertext
	}

	entry := Entry{Value: newValue, Timestamp: ts, PeerID: e.peerID}
	if e.crypto != nil {
		entry.LastCiphertext = wireNew
	}
	e.state[key] = entry

	if newValue == nil {
		e.tombstones.Record(key, ts)
	} else {
		e.tombstones.Forget(key)
	}

	e.causalBuf.MarkObserved(causal.ObservedHash(key, ts, e.peerID))
	e.metrics.RecordCAS(true)
	e.metrics.RecordOpAccepted(true)

	op := codec.Op{ID: uuid.New(), Key: key, Timestamp: ts, Value: wireNew}
	e.enqueuePendingLocked(PendingOp{ID: op.ID, Key: key, ValueWire: wireNew, Timestamp: ts})

	cas := codec.CAS{
		Key:             key,
		ExpectedPresent: true,
		Expected:        expectedBytes,
		New:             wireNew,
		PeerID:          e.peerID,
		Timestamp:       ts,
	}
	wireBytes := codec.EncodeMessage(codec.TagCAS, codec.EncodeCAS(cas))

	e.persistAsync("set", func(ctx context.Context) error {
		return e.storage.Set(ctx, key, wireNew)
	})
	e.persistAsync("set", func(ctx context.Context) error {
		return e.storage.Set(ctx, QueueKey(ts, key), codec.EncodeOp(op))
	})

	e.emit(Event{Kind: EventOp, Key: key, Value: newValue, IsLocal: true, Timestamp: ts})
	e.emit(Event{Kind: EventCAS, WireBytes: wireBytes})

	return true, wireBytes, nil
}

// LoadFromStorage scans every durable key, splits live entries from
// the pending queue by the queue:: prefix, and rehydrates both. Live
// entries are seeded with a sentinel base HLC so any freshly observed
// op supersedes them regardless of when they were originally written.
func (e *Engine) LoadFromStorage(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadFromStorageLocked(ctx)
}

func (e *Engine) loadFromStorageLocked(ctx context.Context) error {
	all, err := e.storage.ScanPrefix(ctx, "")
	if err != nil {
		e.metrics.StorageErrorsTotal.WithLabelValues("scan").Inc()
		return fmt.Errorf("sync: scan storage: %w", err)
	}

	type queueItem struct {
		queueKey string
		op       PendingOp
	}
	var queued []queueItem

	for _, kv := range all {
		key, raw := kv.Key, kv.Value
		if strings.HasPrefix(key, queuePrefix) {
			ts, origKey, ok := ParseQueueKey(key)
			if !ok {
				e.logger.Warn("dropping unparseable queue entry", zap.String("queue_key", key))
				continue
			}
			op, err := codec.DecodeOp(raw)
			if err != nil {
				e.logger.Warn("dropping corrupt queue entry", zap.String("queue_key", key), zap.Error(err))
				continue
			}
			queued = append(queued, queueItem{
				queueKey: key,
				op:       PendingOp{ID: op.ID, Key: origKey, ValueWire: op.Value, Timestamp: ts, Deps: op.Deps},
			})
			continue
		}

		plaintext := raw
		if e.crypto != nil {
			pt, err := e.crypto.Decrypt(raw)
			if err != nil {
				e.metrics.CryptoErrorsTotal.WithLabelValues("decrypt").Inc()
				e.logger.Warn("dropping stored entry, decryption failed", zap.String("key", key), zap.Error(err))
				continue
			}
			plaintext = pt
		}

		value, err := codec.DecodeValue(plaintext)
		if err != nil {
			e.logger.Warn("dropping stored entry, decode failed", zap.String("key", key), zap.Error(err))
			continue
		}

		sentinel := hlc.HLC{Physical: 1}
		entry := Entry{Value: value, Timestamp: sentinel, PeerID: ""}
		if e.crypto != nil {
			entry.LastCiphertext = raw
		}
		e.state[key] = entry
		if value == nil {
			e.tombstones.Record(key, sentinel)
		}
		e.causalBuf.MarkObserved(causal.ObservedHash(key, sentinel, ""))
	}

	sort.Slice(queued, func(i, j int) bool { return queued[i].queueKey < queued[j].queueKey })

	e.pending = e.pending[:0]
	for _, q := range queued {
		e.pending = append(e.pending, q.op)
		e.causalBuf.MarkObserved(causal.ObservedHash(q.op.Key, q.op.Timestamp, e.peerID))
	}

	e.metrics.QueueSize.Set(float64(len(e.pending)))
	e.emit(Event{Kind: EventQueueChange, QueueSize: len(e.pending)})

	return nil
}

// LoadSnapshot applies a server-provided full-map dump: it clears
// persistent storage, writes every key fresh under a base HLC derived
// from serverTimeMs (or the sentinel 1 if unset), then replays every
// still-pending local op on top so optimistic local state survives the
// snapshot.
func (e *Engine) LoadSnapshot(ctx context.Context, snapshotBytes []byte, serverTimeMs *int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.operableLocked() {
		return nil
	}

	decoded, err := codec.DecodeValue(snapshotBytes)
	if err != nil {
		return fmt.Errorf("sync: decode snapshot: %w", err)
	}
	snapshotMap, ok := decoded.(map[string]any)
	if !ok {
		return errors.New("sync: snapshot payload is not a mapping")
	}

	if err := e.storage.ClearAll(ctx); err != nil {
		e.metrics.StorageErrorsTotal.WithLabelValues("clear").Inc()
		e.logger.Warn("clear storage before snapshot failed", zap.Error(err))
	}

	baseTs := hlc.HLC{Physical: 1}
	if serverTimeMs != nil {
		baseTs = hlc.HLC{Physical: *serverTimeMs}
	}

	e.state = make(map[string]Entry, len(snapshotMap))
	for key, value := range snapshotMap {
		e.state[key] = Entry{Value: value, Timestamp: baseTs, PeerID: ""}

		valBytes, err := codec.EncodeValue(value)
		if err != nil {
			e.logger.Warn("skip persisting snapshot entry, encode failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if e.crypto != nil {
			ciphertext, err := e.crypto.Encrypt(valBytes)
			if err != nil {
				e.metrics.CryptoErrorsTotal.WithLabelValues("encrypt").Inc()
				e.logger.Warn("skip persisting snapshot entry, encrypt failed", zap.String("key", key), zap.Error(err))
				continue
			}
			valBytes = ciphertext
			e.state[key] = Entry{Value: value, Timestamp: baseTs, PeerID: "", LastCiphertext: ciphertext}
		}
		e.persistAsync("set", func(ctx context.Context) error {
			return e.storage.Set(ctx, key, valBytes)
		})
		e.emit(Event{Kind: EventOp, Key: key, Value: value, IsLocal: false, Timestamp: baseTs})
	}

	for _, p := range e.pending {
		re := &remoteOpEnvelope{Key: p.Key, Payload: p.ValueWire, Peer: e.peerID, Timestamp: p.Timestamp}
		e.applyOneRemoteLocked(re)
	}

	full := make(map[string]any, len(e.state))
	for k, v := range e.state {
		full[k] = v.Value
	}
	e.emit(Event{Kind: EventReady, FullState: full})

	return nil
}

// DrainPending empties the pending queue and returns it, deleting the
// corresponding durable queue:: entries.
func (e *Engine) DrainPending(ctx context.Context) []PendingOp {
	e.mu.Lock()
	defer e.mu.Unlock()

	ops := e.pending
	e.pending = nil

	for _, op := range ops {
		e.persistAsync("delete", func(ctx context.Context) error {
			return e.storage.Delete(ctx, QueueKey(op.Timestamp, op.Key))
		})
	}

	e.metrics.DrainedOpsTotal.Add(float64(len(ops)))
	e.metrics.QueueSize.Set(0)
	e.emit(Event{Kind: EventQueueChange, QueueSize: 0})

	return ops
}

// Compact removes tombstones that have cleared the stability window
// from both the state map and storage. Live entries are never removed.
func (e *Engine) Compact(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	collectable := e.tombstones.Collectable(hlc.NowMillis())
	e.metrics.CompactionRunsTotal.Inc()
	if len(collectable) == 0 {
		return
	}

	for _, key := range collectable {
		entry, ok := e.state[key]
		if !ok || entry.Value != nil {
			continue
		}
		delete(e.state, key)
		e.persistAsync("delete", func(ctx context.Context) error {
			return e.storage.Delete(ctx, key)
		})
	}

	e.metrics.TombstonesCollectedTotal.Add(float64(len(collectable)))
	e.logger.Debug("compaction removed tombstones", zap.Int("count", len(collectable)))
}

// SetClockOffset atomically replaces the clock offset used by future
// Set/CAS calls to approximate server time.
func (e *Engine) SetClockOffset(offsetMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clockOffset = offsetMs
	e.metrics.ClockOffsetMs.Set(float64(offsetMs))
}

// persistAsync fires fn in its own goroutine, detached from the
// caller's context, and logs (never surfaces) any error: in-memory
// state is already authoritative by the time this is scheduled, and a
// caller's request context ending is no reason to abandon the write.
// Destroy waits on persistWG before closing storage, so a shutdown can
// never race an in-flight write.
func (e *Engine) persistAsync(op string, fn func(ctx context.Context) error) {
	e.persistWG.Add(1)
	go func() {
		defer e.persistWG.Done()
		if err := fn(context.Background()); err != nil {
			e.metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
			e.logger.Warn("storage operation failed", zap.String("op", op), zap.Error(err))
		}
	}()
}
