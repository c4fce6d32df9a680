package regalloc

// RegTraversalIter yields candidate PRegs for one allocation attempt, in
// the order spec.md §4.7/§6 describes: the advisory hint first (if
// valid and not already covered), then the preferred-class list rotated
// to start at scan_offset (for demand spreading across calls), then the
// non-preferred list likewise rotated. If a fixed PReg is supplied, it is
// the only PReg ever yielded (a FixedReg/FixedStack requirement pins the
// candidate outright).
type RegTraversalIter struct {
	regs []PReg
	pos  int
}

// NewRegTraversalIter builds the traversal order for one process_bundle
// probe loop attempt.
func NewRegTraversalIter(env *MachineEnv, class RegClass, hint1, hint2 PReg, offset int, fixed PReg) *RegTraversalIter {
	if fixed.IsValid() {
		return &RegTraversalIter{regs: []PReg{fixed}}
	}

	seen := make(map[int32]bool)

	var order []PReg

	addUnique := func(p PReg) {
		if !p.IsValid() || p.Class != class || seen[p.RegIndex] {
			return
		}

		seen[p.RegIndex] = true

		order = append(order, p)
	}

	addUnique(hint1)
	addUnique(hint2)

	order = append(order, rotateUnseen(env.PreferredRegsByClass[class], offset, seen)...)
	order = append(order, rotateUnseen(env.NonPreferredRegsByClass[class], offset, seen)...)

	return &RegTraversalIter{regs: order}
}

// rotateUnseen returns regs starting at index offset%len(regs) and
// wrapping around, skipping any PReg already marked in seen, and marking
// every PReg it yields.
func rotateUnseen(regs []PReg, offset int, seen map[int32]bool) []PReg {
	n := len(regs)
	if n == 0 {
		return nil
	}

	start := ((offset % n) + n) % n

	out := make([]PReg, 0, n)

	for i := 0; i < n; i++ {
		p := regs[(start+i)%n]
		if seen[p.RegIndex] {
			continue
		}

		seen[p.RegIndex] = true

		out = append(out, p)
	}

	return out
}

// Next returns the next candidate PReg, or ok=false when exhausted.
func (it *RegTraversalIter) Next() (PReg, bool) {
	if it.pos >= len(it.regs) {
		return PReg{}, false
	}

	p := it.regs[it.pos]
	it.pos++

	return p, true
}
