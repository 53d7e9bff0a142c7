package records

// Outcome is the result of offering a tuple to an Accumulator
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
)

func (o Outcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "accepted"
}

// SeenSet records fingerprints observed during one run
type SeenSet interface {
	// Add inserts f and reports whether it was not present before
	Add(f Fingerprint) bool
	Len() int
}

// exactSet is an unbounded, exact SeenSet. Memory grows with the number of distinct rows.
type exactSet map[Fingerprint]struct{}

// NewExactSet creates the default map-backed SeenSet
func NewExactSet() SeenSet {
	return make(exactSet)
}

func (s exactSet) Add(f Fingerprint) bool {
	if _, ok := s[f]; ok {
		return false
	}
	s[f] = struct{}{}
	return true
}

func (s exactSet) Len() int {
	return len(s)
}

// Accumulator deduplicates tuples by fingerprint and buffers the accepted ones
// until they are drained. It belongs to a single run and is not safe for
// concurrent use.
type Accumulator struct {
	seen      SeenSet
	batch     []Tuple
	threshold int
}

// NewAccumulator creates an accumulator that asks for a flush once the batch
// holds more than threshold tuples
func NewAccumulator(threshold int) *Accumulator {
	return NewAccumulatorWithSet(threshold, NewExactSet())
}

// NewAccumulatorWithSet creates an accumulator backed by a custom SeenSet
func NewAccumulatorWithSet(threshold int, seen SeenSet) *Accumulator {
	return &Accumulator{
		seen:      seen,
		threshold: threshold,
	}
}

// Offer fingerprints t and appends it to the batch unless it was seen before
func (a *Accumulator) Offer(t Tuple) Outcome {
	if !a.seen.Add(ComputeFingerprint(t)) {
		return Duplicate
	}
	a.batch = append(a.batch, t)
	return Accepted
}

// ShouldFlush reports whether the batch exceeds the threshold
func (a *Accumulator) ShouldFlush() bool {
	return len(a.batch) > a.threshold
}

// Drain returns the current batch and starts a new one. The next batch grows
// with what is offered, not with the threshold.
func (a *Accumulator) Drain() []Tuple {
	batch := a.batch
	a.batch = nil
	return batch
}

// Len returns the number of buffered tuples
func (a *Accumulator) Len() int {
	return len(a.batch)
}

// Seen returns the number of distinct fingerprints observed
func (a *Accumulator) Seen() int {
	return a.seen.Len()
}
