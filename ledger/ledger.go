// Package ledger is the transactional record of trading operations: proposed
// operations are staged, grouped into a prepared commit, then pushed against
// the venue. Every push finalizes an immutable commit linked to its parent by
// hash, whether the operations succeeded or not, so the chain is a complete
// audit of what was attempted and what happened.
//
// The ledger is generic over the wallet shape so one implementation serves
// both derivatives (PerpWallet) and securities (EquityWallet) accounts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mkarls/tradewarden/audit"
	"github.com/mkarls/tradewarden/broker"
)

var (
	ErrEmptyStaging    = errors.New("staging area is empty")
	ErrNoPendingCommit = errors.New("no pending commit, call Commit first")
)

// Operation is one proposed venue call. Immutable once staged.
type Operation struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Symbol pulls the internal symbol out of the operation params, if present.
func (o Operation) Symbol() string {
	s, _ := o.Params["symbol"].(string)
	return s
}

// OperationSummary is the compact per-operation record kept on a commit.
type OperationSummary struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
	Change string `json:"change"`
	Status string `json:"status"`
}

// Commit is one finalized, immutable batch of operations and their outcomes.
type Commit struct {
	Hash       string             `json:"hash"`
	ParentHash string             `json:"parent_hash"` // empty at the root
	Message    string             `json:"message"`
	Operations []Operation        `json:"operations"`
	Summaries  []OperationSummary `json:"summaries"`
	Timestamp  time.Time          `json:"timestamp"`
	Round      int                `json:"round,omitempty"`
}

// ExecOutcome is what the execution callback reports for one operation.
type ExecOutcome struct {
	Success bool
	Status  broker.OrderStatus
	OrderID string
	Symbol  string // internal symbol, overrides the op params when set
	Change  string // human-readable effect, e.g. "+0.1 BTC @ 95000"
	Error   string
}

// OperationResult pairs an operation with its classified outcome.
type OperationResult struct {
	Operation Operation          `json:"operation"`
	OrderID   string             `json:"order_id,omitempty"`
	Symbol    string             `json:"symbol,omitempty"`
	Status    broker.OrderStatus `json:"status"`
	Error     string             `json:"error,omitempty"`
}

// PushResult classifies every staged operation's outcome for one push.
type PushResult struct {
	OperationCount int
	Filled         []OperationResult
	Pending        []OperationResult
	Rejected       []OperationResult
	Hash           string
}

// OrderUpdate is one observed status transition during reconciliation.
type OrderUpdate struct {
	OrderID        string
	Symbol         string
	PreviousStatus broker.OrderStatus
	CurrentStatus  broker.OrderStatus
	FilledPrice    float64
	FilledQty      float64
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	UpdatedCount int
	Hash         string
}

// PendingOrder is one entry of the pending-order index.
type PendingOrder struct {
	OrderID string `json:"order_id"`
	Symbol  string `json:"symbol"`
}

// Status is a snapshot of the ledger's mutable state.
type Status struct {
	Staged         int
	PendingMessage string
	Head           string
	CommitCount    int
}

// AddResult reports where an operation landed in the staging area.
type AddResult struct {
	Staged    bool
	Index     int
	Operation Operation
}

// CommitResult reports the prepared commit; the chain is not touched yet.
type CommitResult struct {
	Prepared       bool
	Hash           string
	Message        string
	OperationCount int
}

// Deps are the external collaborators a ledger drives. Execute performs one
// staged operation against the venue; Wallet fetches the current account
// state for PnL simulation; OnCommit receives the exported state after every
// chain mutation and is strictly best-effort.
type Deps[W WalletState] struct {
	Execute  func(ctx context.Context, op Operation) (ExecOutcome, error)
	Wallet   func(ctx context.Context) (W, error)
	OnCommit func(blob []byte)
}

// Ledger owns its commit chain, staging area and pending-order index
// exclusively. It is not safe for concurrent use; callers serialize access
// per instance (see the execution pipeline's single-flight rule).
type Ledger[W WalletState] struct {
	deps Deps[W]

	staging        []Operation
	prepared       bool
	pendingMessage string
	pendingHash    string

	head    string
	commits []Commit
	byHash  map[string]int

	pendingOrders map[string]string // orderID -> internal symbol
	seq           uint64
	round         int

	now    func() time.Time
	logger *zap.Logger
	sink   audit.Sink
}

// Option configures a Ledger.
type Option[W WalletState] func(*Ledger[W])

func WithClock[W WalletState](now func() time.Time) Option[W] {
	return func(l *Ledger[W]) { l.now = now }
}

func WithLogger[W WalletState](logger *zap.Logger) Option[W] {
	return func(l *Ledger[W]) { l.logger = logger }
}

// WithAudit routes commit events to an audit sink.
func WithAudit[W WalletState](sink audit.Sink) Option[W] {
	return func(l *Ledger[W]) { l.sink = sink }
}

func New[W WalletState](deps Deps[W], opts ...Option[W]) *Ledger[W] {
	l := &Ledger[W]{
		deps:          deps,
		byHash:        map[string]int{},
		pendingOrders: map[string]string{},
		now:           time.Now,
		logger:        zap.NewNop(),
		sink:          audit.Nop{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add appends an operation to the staging area.
func (l *Ledger[W]) Add(op Operation) AddResult {
	l.staging = append(l.staging, op)
	return AddResult{Staged: true, Index: len(l.staging) - 1, Operation: op}
}

// Commit prepares a commit message and computes the commit hash now, but
// does not mutate the chain; Push realizes it. The hash folds in a monotonic
// sequence number so identical staged content still yields distinct hashes.
func (l *Ledger[W]) Commit(message string) (CommitResult, error) {
	if len(l.staging) == 0 {
		return CommitResult{}, ErrEmptyStaging
	}
	l.seq++
	l.prepared = true
	l.pendingMessage = message
	l.pendingHash = commitHash(l.head, message, l.staging, l.seq)
	return CommitResult{
		Prepared:       true,
		Hash:           l.pendingHash,
		Message:        message,
		OperationCount: len(l.staging),
	}, nil
}

// Push executes every staged operation in order, classifies the outcomes,
// finalizes the prepared commit and advances head. A commit always happens
// once Push runs with a pending message: even a total venue failure records
// a commit with every operation rejected, it is never rolled back.
func (l *Ledger[W]) Push(ctx context.Context) (PushResult, error) {
	if len(l.staging) == 0 {
		return PushResult{}, ErrEmptyStaging
	}
	if !l.prepared {
		return PushResult{}, ErrNoPendingCommit
	}

	res := PushResult{OperationCount: len(l.staging), Hash: l.pendingHash}
	summaries := make([]OperationSummary, 0, len(l.staging))

	for _, op := range l.staging {
		outcome, err := l.deps.Execute(ctx, op)
		r := OperationResult{Operation: op, OrderID: outcome.OrderID}
		r.Symbol = outcome.Symbol
		if r.Symbol == "" {
			r.Symbol = op.Symbol()
		}

		switch {
		case err != nil:
			r.Status = broker.StatusRejected
			r.Error = err.Error()
			res.Rejected = append(res.Rejected, r)
		case !outcome.Success:
			r.Status = broker.StatusRejected
			r.Error = outcome.Error
			res.Rejected = append(res.Rejected, r)
		case outcome.Status == broker.StatusFilled:
			r.Status = broker.StatusFilled
			res.Filled = append(res.Filled, r)
		case outcome.Status.Terminal():
			// Terminal but not filled (cancelled on arrival).
			r.Status = outcome.Status
			r.Error = outcome.Error
			res.Rejected = append(res.Rejected, r)
		default:
			r.Status = broker.StatusPending
			res.Pending = append(res.Pending, r)
			if r.OrderID != "" {
				l.pendingOrders[r.OrderID] = r.Symbol
			}
		}

		summaries = append(summaries, OperationSummary{
			Symbol: r.Symbol,
			Action: op.Action,
			Change: outcome.Change,
			Status: string(r.Status),
		})
	}

	l.appendCommit(Commit{
		Hash:       l.pendingHash,
		ParentHash: l.head,
		Message:    l.pendingMessage,
		Operations: append([]Operation(nil), l.staging...),
		Summaries:  summaries,
		Timestamp:  l.now(),
		Round:      l.round,
	})

	l.staging = nil
	l.prepared = false
	l.pendingMessage = ""
	l.pendingHash = ""

	l.sink.Append(audit.EventCommit, map[string]any{
		"hash":       res.Hash,
		"operations": res.OperationCount,
		"filled":     len(res.Filled),
		"pending":    len(res.Pending),
		"rejected":   len(res.Rejected),
	})
	l.notifyCommit()
	return res, nil
}

// Sync folds observed order-status transitions into a reconciliation commit.
// It ignores staging and pending-commit state entirely, and is a no-op when
// there is nothing to reconcile.
func (l *Ledger[W]) Sync(updates []OrderUpdate, wallet W) (SyncResult, error) {
	if len(updates) == 0 {
		return SyncResult{}, nil
	}

	summaries := make([]OperationSummary, 0, len(updates))
	for _, u := range updates {
		change := fmt.Sprintf("%s -> %s", u.PreviousStatus, u.CurrentStatus)
		if u.CurrentStatus == broker.StatusFilled && u.FilledQty > 0 {
			change = fmt.Sprintf("%s (%.8g @ %.8g)", change, u.FilledQty, u.FilledPrice)
		}
		summaries = append(summaries, OperationSummary{
			Symbol: u.Symbol,
			Action: "sync",
			Change: change,
			Status: string(u.CurrentStatus),
		})
		if u.CurrentStatus.Terminal() {
			delete(l.pendingOrders, u.OrderID)
		}
	}

	message := fmt.Sprintf("sync: %d order update(s)", len(updates))
	if unrealized, ok := totalUnrealized(wallet); ok {
		message = fmt.Sprintf("%s, unrealized %.2f", message, unrealized)
	}

	l.seq++
	hash := commitHash(l.head, message, nil, l.seq)
	l.appendCommit(Commit{
		Hash:       hash,
		ParentHash: l.head,
		Message:    message,
		Summaries:  summaries,
		Timestamp:  l.now(),
		Round:      l.round,
	})

	l.notifyCommit()
	return SyncResult{UpdatedCount: len(updates), Hash: hash}, nil
}

// LogOptions filter the commit log.
type LogOptions struct {
	Limit  int    // 0 = unlimited
	Symbol string // "" = all symbols
}

// Log returns commits newest-first, optionally filtered to commits whose
// summaries reference a symbol, capped to a limit.
func (l *Ledger[W]) Log(opts LogOptions) []Commit {
	out := make([]Commit, 0, len(l.commits))
	for i := len(l.commits) - 1; i >= 0; i-- {
		c := l.commits[i]
		if opts.Symbol != "" && !references(c, opts.Symbol) {
			continue
		}
		out = append(out, c)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}

func references(c Commit, symbol string) bool {
	for _, s := range c.Summaries {
		if s.Symbol == symbol {
			return true
		}
	}
	return false
}

// Show returns the commit for a hash, or nil when unknown.
func (l *Ledger[W]) Show(hash string) *Commit {
	i, ok := l.byHash[hash]
	if !ok {
		return nil
	}
	c := l.commits[i]
	return &c
}

// Status snapshots staging depth, pending message, head and chain length.
func (l *Ledger[W]) Status() Status {
	return Status{
		Staged:         len(l.staging),
		PendingMessage: l.pendingMessage,
		Head:           l.head,
		CommitCount:    len(l.commits),
	}
}

// PendingOrders snapshots the pending-order index, sorted for determinism.
func (l *Ledger[W]) PendingOrders() []PendingOrder {
	out := make([]PendingOrder, 0, len(l.pendingOrders))
	for id, sym := range l.pendingOrders {
		out = append(out, PendingOrder{OrderID: id, Symbol: sym})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// SetRound tags subsequently created commits, for backtest bookkeeping.
func (l *Ledger[W]) SetRound(round int) {
	l.round = round
}

func (l *Ledger[W]) appendCommit(c Commit) {
	l.commits = append(l.commits, c)
	l.byHash[c.Hash] = len(l.commits) - 1
	l.head = c.Hash
}

// notifyCommit hands the exported state to the OnCommit hook. The hook runs
// before Push/Sync return but its failure never reaches the caller.
func (l *Ledger[W]) notifyCommit() {
	if l.deps.OnCommit == nil {
		return
	}
	blob, err := l.ExportState()
	if err != nil {
		l.logger.Warn("ledger export for commit hook failed", zap.Error(err))
		return
	}
	l.deps.OnCommit(blob)
}
