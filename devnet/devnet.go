// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package devnet

import (
	"fmt"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
)

// Devnet is an in-memory simulated chain.
// Reads take the read lock, state-mutating calls take the write lock, so a
// Devnet can be shared by every request-handling goroutine of a server.
type Devnet struct {
	config Config
	log    log.Logger
	clock  func() time.Time

	mu        sync.RWMutex
	state     *state
	accounts  []Account
	pending   []Transaction
	timeShift int64
	mints     uint64
}

// Option configures a Devnet.
type Option func(*Devnet)

// WithClock replaces the wall clock used to timestamp blocks.
func WithClock(clock func() time.Time) Option {
	return func(d *Devnet) {
		d.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Devnet) {
		d.log = logger
	}
}

// New constructs a devnet and funds its predeployed accounts.
func New(config Config, opts ...Option) (*Devnet, error) {
	if err := config.Verify(); err != nil {
		return nil, err
	}

	d := &Devnet{
		config: config,
		log:    log.New("module", "devnet"),
		clock:  time.Now,
		state:  newState(),
	}
	for _, opt := range opts {
		opt(d)
	}

	accounts, err := deriveAccounts(config.Seed, config.TotalAccounts, config.InitialBalance)
	if err != nil {
		return nil, wrap("derive accounts", err)
	}
	for _, acc := range accounts {
		if err := d.state.setBalance(acc.Address, acc.InitialBalance); err != nil {
			return nil, wrap("fund accounts", err)
		}
	}
	if err := d.state.vDB.Commit(); err != nil {
		return nil, wrap("fund accounts", err)
	}
	d.accounts = accounts

	if config.StartTime != nil {
		d.timeShift = int64(*config.StartTime) - d.clock().Unix()
	}

	d.log.Info("devnet initialized",
		"seed", config.Seed,
		"accounts", len(accounts),
		"blockGeneration", config.BlockGeneration,
	)
	return d, nil
}

// Config returns the configuration the devnet was built with.
func (d *Devnet) Config() Config { return d.config }

// PredeployedAccounts returns the accounts funded at construction.
func (d *Devnet) PredeployedAccounts() []Account {
	d.mu.RLock()
	defer d.mu.RUnlock()

	accounts := make([]Account, len(d.accounts))
	copy(accounts, d.accounts)
	return accounts
}

// UnixTimestamp returns the wall clock in seconds, without the shift.
func (d *Devnet) UnixTimestamp() int64 { return d.clock().Unix() }

// Now returns the chain time in unix seconds: wall clock plus shift.
func (d *Devnet) Now() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.now()
}

func (d *Devnet) now() int64 { return d.clock().Unix() + d.timeShift }

// SetBlockTimestampShift sets the offset, in seconds, added to the wall
// clock when timestamping blocks.
func (d *Devnet) SetBlockTimestampShift(shift int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeShift = shift
}

// SetTime moves the chain clock to [timestamp].
func (d *Devnet) SetTime(timestamp uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last := d.state.lastAccepted; last != nil && int64(timestamp) < last.Tmstmp {
		return wrap("set time", ErrTimeInPast)
	}
	d.timeShift = int64(timestamp) - d.clock().Unix()
	d.log.Debug("chain time set", "timestamp", timestamp, "shift", d.timeShift)
	return nil
}

// IncreaseTime moves the chain clock forward by [seconds].
func (d *Devnet) IncreaseTime(seconds uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeShift += int64(seconds)
}

// LatestBlock returns the chain head, or ErrNoBlocks if nothing was mined yet.
func (d *Devnet) LatestBlock() (*Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.state.lastAccepted == nil {
		return nil, wrap("latest block", ErrNoBlocks)
	}
	return d.state.lastAccepted, nil
}

// BlockByNumber returns the block at [number].
func (d *Devnet) BlockByNumber(number uint64) (*Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blkID, err := d.state.getBlockIDAtHeight(number)
	if err != nil {
		return nil, wrap("get block by number", err)
	}
	blk, err := d.state.getBlock(blkID)
	return blk, wrap("get block by number", err)
}

// BlockByID returns the block with [blkID].
func (d *Devnet) BlockByID(blkID ids.ID) (*Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	blk, err := d.state.getBlock(blkID)
	return blk, wrap("get block", err)
}

// Balance returns the balance of [addr] as of the chain head.
func (d *Devnet) Balance(addr ids.ShortID) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	balance, err := d.state.getBalance(addr)
	return balance, wrap("get balance", err)
}

// Nonce returns the number of transfers sent by [addr] and mined so far.
func (d *Devnet) Nonce(addr ids.ShortID) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	nonce, err := d.state.getNonce(addr)
	return nonce, wrap("get nonce", err)
}

// PendingTransactions returns the transactions waiting for the next block.
func (d *Devnet) PendingTransactions() []Transaction {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pending := make([]Transaction, len(d.pending))
	copy(pending, d.pending)
	return pending
}

// Transfer queues a transfer of [amount] from [from] to [to].
func (d *Devnet) Transfer(from, to ids.ShortID, amount uint64) (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if amount == 0 {
		return nil, wrap("transfer", ErrZeroAmount)
	}
	balance, err := d.state.getBalance(from)
	if err != nil {
		return nil, wrap("transfer", err)
	}
	nonce, err := d.state.getNonce(from)
	if err != nil {
		return nil, wrap("transfer", err)
	}
	for _, tx := range d.pending {
		if tx.Kind == Transfer && tx.From == from {
			balance -= tx.Amount
			nonce++
		}
	}
	if balance < amount {
		return nil, wrap("transfer", ErrInsufficientBalance)
	}
	if err := d.checkCredit(to, amount); err != nil {
		return nil, wrap("transfer", err)
	}

	tx := Transaction{
		Kind:   Transfer,
		From:   from,
		To:     to,
		Amount: amount,
		Nonce:  nonce,
	}
	return d.submit("transfer", tx)
}

// Mint queues a credit of [amount] to [to].
func (d *Devnet) Mint(to ids.ShortID, amount uint64) (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if amount == 0 {
		return nil, wrap("mint", ErrZeroAmount)
	}
	if err := d.checkCredit(to, amount); err != nil {
		return nil, wrap("mint", err)
	}
	tx := Transaction{
		Kind:   Mint,
		To:     to,
		Amount: amount,
		Nonce:  d.mints,
	}
	submitted, err := d.submit("mint", tx)
	if err != nil {
		return nil, err
	}
	d.mints++
	return submitted, nil
}

// checkCredit fails if crediting [amount] to [to], on top of its balance
// and every pending credit, would overflow. Pending debits are not counted.
// Assumes the write lock is held.
func (d *Devnet) checkCredit(to ids.ShortID, amount uint64) error {
	total, err := d.state.getBalance(to)
	if err != nil {
		return err
	}
	for _, tx := range d.pending {
		if tx.To != to {
			continue
		}
		if total+tx.Amount < total {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
		}
		total += tx.Amount
	}
	if total+amount < total {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}
	return nil
}

// submit assumes the write lock is held.
func (d *Devnet) submit(op string, tx Transaction) (*Transaction, error) {
	if err := tx.initialize(); err != nil {
		return nil, wrap(op, err)
	}
	d.pending = append(d.pending, tx)
	d.log.Debug("transaction queued", "kind", tx.Kind, "txID", tx.ID())

	if d.config.BlockGeneration == OnTransaction {
		if _, err := d.createBlock(); err != nil {
			d.dropPending(tx.ID())
			return nil, wrap(op, err)
		}
	}
	return &tx, nil
}

// CreateBlock mines every pending transaction into a new block, even when
// there are none.
func (d *Devnet) CreateBlock() (*Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	blk, err := d.createBlock()
	return blk, wrap("create block", err)
}

// createBlock assumes the write lock is held.
func (d *Devnet) createBlock() (*Block, error) {
	var (
		parentID = ids.Empty
		number   = uint64(0)
		now      = d.now()
	)
	if last := d.state.lastAccepted; last != nil {
		parentID = last.ID()
		number = last.Number() + 1
		if now < last.Tmstmp {
			now = last.Tmstmp
		}
	}

	for i := range d.pending {
		if err := d.state.apply(&d.pending[i]); err != nil {
			d.state.vDB.Abort()
			d.log.Warn("dropping unappliable transaction", "txID", d.pending[i].ID(), "error", err)
			d.dropPending(d.pending[i].ID())
			return nil, err
		}
	}

	blk, err := newBlock(parentID, number, now, d.pending)
	if err != nil {
		d.state.vDB.Abort()
		return nil, err
	}
	if err := d.state.accept(blk); err != nil {
		return nil, err
	}
	d.pending = nil

	d.log.Info("block created", "number", blk.Number(), "blkID", blk.ID(), "txs", len(blk.Txs))
	return blk, nil
}

// dropPending removes [txID] from the pending set. Assumes the write lock
// is held.
func (d *Devnet) dropPending(txID ids.ID) {
	pending := make([]Transaction, 0, len(d.pending))
	for _, tx := range d.pending {
		if tx.ID() != txID {
			pending = append(pending, tx)
		}
	}
	d.pending = pending
}
