// Package idempotency collapses repeated tool calls that carry the same
// (agent, tool, key) into a single execution: the first call runs fn and
// persists its outcome through the engine — success or error alike — and
// every later call (or a concurrent one still in flight) replays that
// outcome instead of running fn again.
package idempotency

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/metrics"
	"github.com/cuemby/caephub/pkg/types"
)

const (
	defaultApplyTimeout = 5 * time.Second
	defaultCleanup      = time.Hour
)

// Gate is the persisted counterpart of an in-process idempotency cache: the
// first-result record lives in the store (committed through the engine), so
// a replayed call survives a process restart, but collapsing concurrent
// in-flight duplicates still happens with an in-memory wait map, since
// Raft has no notion of "block until this entry exists".
type Gate struct {
	eng       *engine.Engine
	retention time.Duration

	mu       sync.Mutex
	inFlight map[string]chan struct{}

	stopCh chan struct{}
}

// NewGate creates a Gate over eng. retention controls how far back
// PurgeExpired (and the background loop started by Start) reaches when
// dropping old records.
func NewGate(eng *engine.Engine, retention time.Duration) *Gate {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Gate{
		eng:       eng,
		retention: retention,
		inFlight:  make(map[string]chan struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Start begins a background loop that purges idempotency records older than
// the configured retention on a fixed interval.
func (g *Gate) Start() {
	go func() {
		ticker := time.NewTicker(defaultCleanup)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = g.PurgeExpired()
			case <-g.stopCh:
				return
			}
		}
	}()
}

// Stop stops the background purge loop.
func (g *Gate) Stop() {
	close(g.stopCh)
}

// PurgeExpired removes idempotency records stored before now-retention.
func (g *Gate) PurgeExpired() (int, error) {
	cutoff := time.Now().Add(-g.retention).UnixMilli()
	cmd, err := engine.NewPurgeIdempotencyCommand(cutoff)
	if err != nil {
		return 0, err
	}
	value, err := g.eng.Apply(cmd, defaultApplyTimeout)
	if err != nil {
		return 0, err
	}
	purged, _ := value.(int)
	metrics.IdempotencyRecordsPurgedTotal.Add(float64(purged))
	return purged, nil
}

// Execute runs fn under the idempotency key (agentID, tool, key). If key is
// empty the call is not deduplicated and fn runs unconditionally. Otherwise:
// a prior committed outcome for the same key is replayed (an error outcome
// is returned as the same *codes.Error the first call produced), a call
// already in flight for the same key is waited on rather than re-run, and a
// fresh call's outcome — success or error — is persisted before being
// returned.
func (g *Gate) Execute(agentID, tool, key string, fn func() ([]byte, error)) (result []byte, replayed bool, err error) {
	if key == "" {
		result, err = fn()
		return result, false, err
	}

	composite := agentID + "\x00" + tool + "\x00" + key

	if record, ok, err := g.lookup(agentID, tool, key); err != nil {
		return nil, false, err
	} else if ok {
		res, replayErr := replayRecord(record)
		return res, true, replayErr
	}

	g.mu.Lock()
	if ch, busy := g.inFlight[composite]; busy {
		g.mu.Unlock()
		<-ch
		if record, ok, err := g.lookup(agentID, tool, key); err == nil && ok {
			res, replayErr := replayRecord(record)
			return res, true, replayErr
		}
		// Whoever was in flight didn't leave a usable record (the commit
		// itself failed); fall through and run fn ourselves.
		g.mu.Lock()
	}
	done := make(chan struct{})
	g.inFlight[composite] = done
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inFlight, composite)
		g.mu.Unlock()
		close(done)
	}()

	result, err = fn()
	if err != nil {
		coded, ok := codes.Of(err)
		if !ok {
			coded = codes.Internalf(err)
		}
		payload, marshalErr := json.Marshal(coded)
		if marshalErr != nil {
			return result, false, err
		}
		if persistErr := g.persist(agentID, tool, key, payload, true); persistErr != nil {
			return result, false, persistErr
		}
		return result, false, err
	}

	if persistErr := g.persist(agentID, tool, key, result, false); persistErr != nil {
		return result, false, persistErr
	}

	return result, false, nil
}

// persist commits result (a success payload, or a marshaled *codes.Error
// when isError) as the first-result record for (agentID, tool, key).
func (g *Gate) persist(agentID, tool, key string, result []byte, isError bool) error {
	record := types.IdempotencyRecord{
		AgentID:  agentID,
		Tool:     tool,
		Key:      key,
		Result:   result,
		IsError:  isError,
		StoredAt: time.Now().UnixMilli(),
	}
	cmd, err := engine.NewCommand(engine.OpPutIdempotency, record)
	if err != nil {
		return err
	}
	_, err = g.eng.Apply(cmd, defaultApplyTimeout)
	return err
}

// replayRecord reconstructs Execute's return values from a stored record:
// a success record's bytes are returned verbatim, an error record's bytes
// are unmarshaled back into the *codes.Error the first call returned.
func replayRecord(record *types.IdempotencyRecord) ([]byte, error) {
	if !record.IsError {
		return record.Result, nil
	}
	var coded codes.Error
	if err := json.Unmarshal(record.Result, &coded); err != nil {
		return nil, err
	}
	return nil, &coded
}

func (g *Gate) lookup(agentID, tool, key string) (*types.IdempotencyRecord, bool, error) {
	record, err := g.eng.Store().GetIdempotency(agentID, tool, key)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, nil
	}
	return record, true, nil
}
