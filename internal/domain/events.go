package domain

import (
	"time"
)

// BuildEventKind tags build lifecycle notifications.
type BuildEventKind uint8

const (
	EventBuildSucceeded BuildEventKind = iota + 1
	EventBuildFailed
	EventEscrowShortfall
)

func (k BuildEventKind) String() string {
	switch k {
	case EventBuildSucceeded:
		return "build_succeeded"
	case EventBuildFailed:
		return "build_failed"
	case EventEscrowShortfall:
		return "escrow_shortfall"
	default:
		return "unknown"
	}
}

// BuildEvent is the typed message published on the builder's event channel.
// One schema per kind; consumers select on Kind instead of listening to
// untyped emits.
type BuildEvent struct {
	Kind         BuildEventKind
	Wallet       string
	TargetMint   string
	BorrowAmount uint64
	TxSize       int
	Err          string
	At           time.Time
}
