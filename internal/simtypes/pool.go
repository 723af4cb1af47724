package simtypes

// ScoringFunc is a pure scoring plug-in (spec 4.4.2): given the block graph,
// the pool's own view and the block being scored, it returns an integer
// adjustment added to diffScore. Params are closed over when the function is
// built from the strategy manifest.
type ScoringFunc func(chain ChainView, pool PoolView, id BlockID) int64

// NamedScoringFunc pairs a scoring plug-in with a name, for logging/metrics.
type NamedScoringFunc struct {
	Name string
	Fn   ScoringFunc
}

// Strategy is the tagged variant of spec 4.4/9: a pool is either honest or
// selfish, never both, modeled as a sum type rather than subclasses.
type Strategy struct {
	Honest bool

	// KThresh in {1, 0, -1}: Eyal-Sirer / Stubborn / Very-Stubborn (selfish only).
	KThresh int

	// RetortPolicy in {0, 1, 2}: silent / equal-fork / clobber (selfish only).
	RetortPolicy int

	Scoring []NamedScoringFunc
}

// OrderedScores is an insertion-ordered blockId -> Score mapping. Spec 9
// requires metrics walks to use first-seen order, so this preserves it
// explicitly rather than relying on map iteration (which Go does not order).
type OrderedScores struct {
	order []BlockID
	byID  map[BlockID]*Score
}

// NewOrderedScores returns an empty ordered score map.
func NewOrderedScores() *OrderedScores {
	return &OrderedScores{byID: make(map[BlockID]*Score)}
}

// Get returns the score for id, or nil if absent.
func (o *OrderedScores) Get(id BlockID) *Score {
	return o.byID[id]
}

// Has reports whether id has an entry (resolved or tentative).
func (o *OrderedScores) Has(id BlockID) bool {
	_, ok := o.byID[id]
	return ok
}

// Put inserts or replaces the score for id, appending to insertion order only
// the first time id is seen.
func (o *OrderedScores) Put(id BlockID, s *Score) {
	if _, ok := o.byID[id]; !ok {
		o.order = append(o.order, id)
	}
	o.byID[id] = s
}

// InOrder returns the ids in first-seen order (do not mutate).
func (o *OrderedScores) InOrder() []BlockID {
	return o.order
}

// Len returns the number of scored blocks.
func (o *OrderedScores) Len() int {
	return len(o.order)
}

// Clone returns a deep copy safe to hand out as a read-only view.
func (o *OrderedScores) Clone() *OrderedScores {
	cp := NewOrderedScores()
	cp.order = append([]BlockID(nil), o.order...)
	for id, s := range o.byID {
		cp.byID[id] = s.Clone()
	}
	return cp
}

// Pool is a mining pool's full mutable state (spec 3 "Pool").
type Pool struct {
	ID       string
	HPP      float64 // fraction of network hashrate, sum over pools = 1
	Hashrate float64 // HPP * networkHashrate

	// NTPDrift is sampled once at round start from N(0, ntpStdev).
	NTPDrift float64

	Chaintip BlockID

	// HonTip is, for selfish pools, the id the pool believes is the public
	// honest tip. NewPool starts it at the initial chaintip for every pool;
	// honest pools never read or update it.
	HonTip BlockID

	Scores *OrderedScores

	// RequestIDs is the set of blockIds requested (missing ancestor) but not
	// yet received.
	RequestIDs map[BlockID]struct{}

	// Unscored maps blockId -> height for blocks whose ancestor score is
	// still missing.
	Unscored map[BlockID]Height

	Config Strategy
}

// NewPool returns a freshly initialized pool at the given chaintip.
func NewPool(id string, hpp, hashrate, ntpDrift float64, chaintip BlockID, cfg Strategy) *Pool {
	return &Pool{
		ID:         id,
		HPP:        hpp,
		Hashrate:   hashrate,
		NTPDrift:   ntpDrift,
		Chaintip:   chaintip,
		HonTip:     chaintip,
		Scores:     NewOrderedScores(),
		RequestIDs: make(map[BlockID]struct{}),
		Unscored:   make(map[BlockID]Height),
		Config:     cfg,
	}
}

// PoolView is the read-only snapshot of a pool's state handed to the agent
// (spec 9: "shared, read-only" snapshots — the agent must not mutate it).
type PoolView struct {
	ID         string
	HPP        float64
	Hashrate   float64
	NTPDrift   float64
	Chaintip   BlockID
	HonTip     BlockID
	Scores     *OrderedScores
	RequestIDs map[BlockID]struct{}
	Unscored   map[BlockID]Height
	Config     Strategy
}

// View builds a read-only snapshot of p. The scores map is deep-copied so an
// errant agent mutation can never leak back into the engine's state.
func (p *Pool) View() PoolView {
	reqs := make(map[BlockID]struct{}, len(p.RequestIDs))
	for k := range p.RequestIDs {
		reqs[k] = struct{}{}
	}
	unscored := make(map[BlockID]Height, len(p.Unscored))
	for k, v := range p.Unscored {
		unscored[k] = v
	}
	return PoolView{
		ID:         p.ID,
		HPP:        p.HPP,
		Hashrate:   p.Hashrate,
		NTPDrift:   p.NTPDrift,
		Chaintip:   p.Chaintip,
		HonTip:     p.HonTip,
		Scores:     p.Scores.Clone(),
		RequestIDs: reqs,
		Unscored:   unscored,
		Config:     p.Config,
	}
}
