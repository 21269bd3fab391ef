package ledger

import (
	"encoding/json"
	"fmt"
)

// ledgerState is the durable shape of a ledger. Any storage technology may
// hold the blob; Store below keeps it in sqlite.
type ledgerState struct {
	Head          string            `json:"head"`
	Commits       []Commit          `json:"commits"`
	PendingOrders map[string]string `json:"pending_orders"`
	Seq           uint64            `json:"seq"`
	Round         int               `json:"round"`
}

// ExportState serializes head, the full commit chain, the pending-order index
// and the hash sequence counter.
func (l *Ledger[W]) ExportState() ([]byte, error) {
	st := ledgerState{
		Head:          l.head,
		Commits:       l.commits,
		PendingOrders: l.pendingOrders,
		Seq:           l.seq,
		Round:         l.round,
	}
	return json.Marshal(st)
}

// Restore rebuilds a ledger from an exported blob and fresh dependencies.
// Staging and pending-commit state are deliberately not part of the durable
// shape: a restart never resumes a half-prepared push.
func Restore[W WalletState](blob []byte, deps Deps[W], opts ...Option[W]) (*Ledger[W], error) {
	var st ledgerState
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("decode ledger state: %w", err)
	}

	l := New(deps, opts...)
	l.commits = st.Commits
	l.head = st.Head
	l.seq = st.Seq
	l.round = st.Round
	if st.PendingOrders != nil {
		l.pendingOrders = st.PendingOrders
	}
	for i, c := range l.commits {
		l.byHash[c.Hash] = i
	}

	if len(l.commits) > 0 && l.head != l.commits[len(l.commits)-1].Hash {
		return nil, fmt.Errorf("corrupt ledger state: head %s is not the last commit", l.head)
	}
	return l, nil
}
