package account

import (
	"time"

	"github.com/xraph/tokenledger/id"
)

// OperationKind names a kind of balance mutation.
type OperationKind string

const (
	OperationMint     OperationKind = "mint"
	OperationBurn     OperationKind = "burn"
	OperationTransfer OperationKind = "transfer"
	OperationAdjust   OperationKind = "adjust"
)

// Operation describes one applied balance mutation. It is handed to
// plugins and is not persisted.
//
// For mint and adjust only To is set, for burn only From. Actor is the
// handle that issued the command, empty for programmatic adjustments.
type Operation struct {
	ID          id.OperationID `json:"id"`
	Kind        OperationKind  `json:"kind"`
	Actor       string         `json:"actor,omitempty"`
	From        string         `json:"from,omitempty"`
	To          string         `json:"to,omitempty"`
	Amount      int64          `json:"amount"`
	FromBalance int64          `json:"from_balance"`
	ToBalance   int64          `json:"to_balance"`
	At          time.Time      `json:"at"`
}

// NewOperation stamps a new operation with an ID and the current time.
func NewOperation(kind OperationKind, actor string, amount int64) *Operation {
	return &Operation{
		ID:     id.NewOperationID(),
		Kind:   kind,
		Actor:  actor,
		Amount: amount,
		At:     time.Now().UTC(),
	}
}
