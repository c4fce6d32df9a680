package regalloc

// evictBundle undoes a bundle's register allocation (spec.md §4.4): its
// Allocation is cleared, every one of its ranges is removed from the
// PReg map that held it, and it is reinserted into the allocation queue
// with an invalid hint (it lost whatever hint justified its previous
// placement; process_bundle recomputes one from scratch on retry).
func (e *Env) evictBundle(bundle LiveBundleIndex) {
	b := e.bundles[bundle.Index()]

	reg, ok := b.Allocation.AsReg()
	if !ok {
		// Not currently holding a register: nothing to undo, matching the
		// original's evict_bundle guard (process.rs).
		return
	}

	preg := e.pregs[reg.Index()]
	for _, entry := range b.Ranges {
		preg.Allocations.Remove(entry.Range)
	}

	b.Allocation = Allocation{}

	e.Stats.EvictBundleCount++
	e.allocationQueue.Insert(bundle, int(b.Prio), InvalidPReg)
}
