package events

import "time"

// RebuildKind is the scope of a requested rebuild. A full rebuild subsumes a
// styles-only one.
type RebuildKind int

const (
	RebuildStyles RebuildKind = iota + 1
	RebuildFull
)

func (k RebuildKind) String() string {
	switch k {
	case RebuildFull:
		return "full"
	case RebuildStyles:
		return "styles"
	default:
		return "none"
	}
}

// Merge returns the wider of two kinds.
func (k RebuildKind) Merge(other RebuildKind) RebuildKind {
	if other > k {
		return other
	}
	return k
}

// RebuildRequested asks the debouncer for a rebuild soon.
type RebuildRequested struct {
	Kind        RebuildKind
	Reason      string
	Path        string
	RequestedAt time.Time
}

// RebuildNow is emitted by the debouncer once it decides a rebuild should start.
type RebuildNow struct {
	Kind          RebuildKind
	TriggeredAt   time.Time
	RequestCount  int
	LastReason    string
	LastPath      string
	FirstRequest  time.Time
	LastRequest   time.Time
	DebounceCause string // "quiet", "max_delay" or "after_running"
}

// BuildFinished reports a completed rebuild (of any kind) to interested parties
// such as live reload clients.
type BuildFinished struct {
	BuildID    string
	Kind       RebuildKind
	Outcome    string
	Err        error
	FinishedAt time.Time
}

// AssetSynced reports a single published image copy or removal.
type AssetSynced struct {
	Path    string
	Removed bool
	Err     error
}
