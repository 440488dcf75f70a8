// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/alpaca/devnet"
)

// HTTPHandler serves the plain HTTP API of a devnet.
type HTTPHandler struct {
	chain *devnet.Devnet
	log   log.Logger
}

// NewHTTPHandler returns the HTTP API over [chain].
func NewHTTPHandler(chain *devnet.Devnet) *HTTPHandler {
	return &HTTPHandler{
		chain: chain,
		log:   log.New("module", "api"),
	}
}

type mintRequest struct {
	Address ids.ShortID `json:"address"`
	Amount  uint64      `json:"amount"`
}

type timeRequest struct {
	Time uint64 `json:"time"`
}

type timeReply struct {
	Timestamp int64 `json:"timestamp"`
}

type balanceReply struct {
	Address ids.ShortID `json:"address"`
	Balance uint64      `json:"balance"`
}

type errorReply struct {
	Error string `json:"error"`
}

// IsAlive answers liveness probes.
func (h *HTTPHandler) IsAlive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Alive!!!"))
}

// PredeployedAccounts lists the accounts funded at construction.
func (h *HTTPHandler) PredeployedAccounts(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, FormatAccounts(h.chain.PredeployedAccounts()))
}

// AccountBalance returns the balance of the ?address= account.
func (h *HTTPHandler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := ids.ShortFromString(r.URL.Query().Get("address"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := h.chain.Balance(addr)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceReply{Address: addr, Balance: balance})
}

// Mint credits an account and returns the transaction.
func (h *HTTPHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := h.chain.Mint(req.Address, req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FormatTransaction(tx))
}

// CreateBlock mines the pending transactions.
func (h *HTTPHandler) CreateBlock(w http.ResponseWriter, _ *http.Request) {
	blk, err := h.chain.CreateBlock()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FormatBlock(blk))
}

// SetTime moves the chain clock to an absolute timestamp.
func (h *HTTPHandler) SetTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.chain.SetTime(req.Time); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, devnet.ErrTimeInPast) {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, err)
		return
	}
	h.writeJSON(w, http.StatusOK, timeReply{Timestamp: h.chain.Now()})
}

// IncreaseTime moves the chain clock forward.
func (h *HTTPHandler) IncreaseTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.chain.IncreaseTime(req.Time)
	h.writeJSON(w, http.StatusOK, timeReply{Timestamp: h.chain.Now()})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("failed to write response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorReply{Error: err.Error()})
}
