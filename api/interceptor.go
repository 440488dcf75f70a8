// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/alpaca/devnet"
)

// noBlockObserved is the cursor value before any block has been seen.
const noBlockObserved = math.MaxUint64

// Notifier receives the JSON of every newly observed block.
type Notifier interface {
	Call(payload json.RawMessage)
}

// Chain is the part of the engine the change tracker reads.
type Chain interface {
	LatestBlock() (*devnet.Block, error)
	BlockByNumber(number uint64) (*devnet.Block, error)
}

// ChangeTracker wraps the JSON-RPC handler. After each request it checks
// the chain head and notifies once per newly observed block number.
type ChangeTracker struct {
	inner    http.Handler
	chain    Chain
	notifier Notifier
	metrics  *trackerMetrics
	log      log.Logger
	marshal  func(v interface{}) ([]byte, error)

	// cursor holds the last notified block number. It only moves forward.
	cursor atomic.Uint64
}

// NewChangeTracker wraps [inner]. Metrics are registered on [registerer]
// when it is non-nil.
func NewChangeTracker(
	inner http.Handler,
	chain Chain,
	notifier Notifier,
	registerer prometheus.Registerer,
) (*ChangeTracker, error) {
	t := &ChangeTracker{
		inner:    inner,
		chain:    chain,
		notifier: notifier,
		log:      log.New("module", "tracker"),
		marshal:  json.Marshal,
	}
	t.cursor.Store(noBlockObserved)
	if registerer != nil {
		m, err := newTrackerMetrics(registerer)
		if err != nil {
			return nil, err
		}
		t.metrics = m
	}
	return t, nil
}

func (t *ChangeTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.inner.ServeHTTP(w, r)

	head, err := t.chain.LatestBlock()
	if err != nil {
		if !errors.Is(err, devnet.ErrNoBlocks) {
			t.log.Warn("failed to read chain head", "error", err)
		}
		return
	}
	number := head.Number()
	if !t.advance(number) {
		return
	}
	if t.metrics != nil {
		t.metrics.head.Set(float64(number))
	}
	t.notify(number)
}

// advance moves the cursor to [number] if that is past the last observed
// block. Only one caller wins for a given number.
func (t *ChangeTracker) advance(number uint64) bool {
	for {
		old := t.cursor.Load()
		if old != noBlockObserved && number <= old {
			return false
		}
		if t.cursor.CompareAndSwap(old, number) {
			return true
		}
	}
}

// Observed returns the last notified block number and whether any block has
// been observed.
func (t *ChangeTracker) Observed() (uint64, bool) {
	n := t.cursor.Load()
	return n, n != noBlockObserved
}

func (t *ChangeTracker) notify(number uint64) {
	t.notifier.Call(t.blockPayload(number))
	if t.metrics != nil {
		t.metrics.notifications.Inc()
	}
}

// blockPayload returns the block JSON, or a JSON-RPC error object when the
// block cannot be fetched or encoded.
func (t *ChangeTracker) blockPayload(number uint64) json.RawMessage {
	blk, err := t.chain.BlockByNumber(number)
	if err != nil {
		t.log.Warn("failed to fetch observed block", "number", number, "error", err)
		if t.metrics != nil {
			t.metrics.fetchFailures.Inc()
		}
		return errorPayload(err)
	}
	payload, err := t.marshal(FormatBlockWithTxs(blk))
	if err != nil {
		t.log.Error("failed to encode block notification", "number", number, "error", err)
		return errorPayload(err)
	}
	return payload
}

func errorPayload(err error) json.RawMessage {
	payload, _ := json.Marshal(&json2.Error{
		Code:    json2.E_SERVER,
		Message: err.Error(),
	})
	return payload
}
