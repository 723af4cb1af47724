package simtypes

// Action is the event kind. The zero value is intentionally invalid; use the
// named constants.
type Action int

const (
	ActionInvalid Action = iota
	HasherFind
	RecvOwn
	RecvOther
)

func (a Action) String() string {
	switch a {
	case HasherFind:
		return "HASHER_FIND"
	case RecvOwn:
		return "RECV_OWN"
	case RecvOther:
		return "RECV_OTHER"
	default:
		return "INVALID"
	}
}

// actionRank inverts lexical order of the action tag so RECV_OWN sorts before
// RECV_OTHER at equal simClock (spec 4.1's action' key). Smaller rank = popped
// first.
func (a Action) actionRank() int {
	switch a {
	case RecvOwn:
		return 0
	case RecvOther:
		return 1
	case HasherFind:
		return 2
	default:
		return 3
	}
}

// Event is a scheduled occurrence in the simulation (spec 3 "Event").
type Event struct {
	SimClock float64
	PoolID   string
	Action   Action
	Chaintip BlockID

	// NewIDs is an ordered list of blockIds ascending in height, populated by
	// generateBlock (one id) or broadcastBlock/request replies (many ids).
	NewIDs []BlockID

	// Seq is assigned by the engine at push time and used only as the final
	// tie-break once all five spec keys compare equal (spec 9: the heap must
	// be stable under equal keys; container/heap is not, so this makes the
	// comparator total).
	Seq uint64
}

// LastNewID returns the last id in NewIDs, or "" if empty — used as the
// final tie-break key in the 5-key comparator (spec 4.1).
func (e Event) LastNewID() BlockID {
	if len(e.NewIDs) == 0 {
		return ""
	}
	return e.NewIDs[len(e.NewIDs)-1]
}

// Less implements the deterministic 5-key total order required by spec 4.1:
// (simClock, poolId, action', chaintip, lastNewId), all byte-lex or exact
// numeric comparisons.
func Less(a, b Event) bool {
	if a.SimClock != b.SimClock {
		return a.SimClock < b.SimClock
	}
	if a.PoolID != b.PoolID {
		return a.PoolID < b.PoolID
	}
	if ra, rb := a.Action.actionRank(), b.Action.actionRank(); ra != rb {
		return ra < rb
	}
	if a.Chaintip != b.Chaintip {
		return a.Chaintip < b.Chaintip
	}
	if la, lb := a.LastNewID(), b.LastNewID(); la != lb {
		return la < lb
	}
	return a.Seq < b.Seq
}
