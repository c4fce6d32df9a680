package regalloc

// SpillSet is the equivalence class shared by all bundles descended from
// one original VReg lineage (spec.md §3, GLOSSARY). Every split of a
// bundle produces a new bundle that keeps the same SpillSetIndex, so that
// all the pieces still ultimately agree on one spill slot if any of them
// is spilled.
type SpillSet struct {
	Class       RegClass
	RegHint     PReg
	Required    bool
	SpillBundle LiveBundleIndex
}

// VRegData carries the lazily-maintained, append-only list of live
// ranges owned by one VReg (spec.md §3 "VReg record"). Splitting appends
// new ranges out of order; sorting and end-fixup happens once, after
// allocation completes, outside this package's scope (spec.md §9 "Lazy
// VReg range list").
type VRegData struct {
	Ranges []LiveRangeListEntry
	IsRef  bool
	Class  RegClass
}

// getOrCreateSpillBundle returns the spill bundle shared by bundle's
// spillset, creating one (and registering it in spilledBundles) if
// createIfAbsent is set and none exists yet (spec.md §4.6).
func (e *Env) getOrCreateSpillBundle(bundle LiveBundleIndex, createIfAbsent bool) (LiveBundleIndex, bool) {
	ssIdx := e.bundles[bundle.Index()].Spillset
	idx := e.spillsets[ssIdx.Index()].SpillBundle

	if !idx.Invalid() {
		return idx, true
	}

	if !createIfAbsent {
		return InvalidLiveBundleIndex, false
	}

	idx = e.createBundle()
	e.spillsets[ssIdx.Index()].SpillBundle = idx
	e.bundles[idx.Index()].Spillset = ssIdx
	e.spilledBundles = append(e.spilledBundles, idx)

	return idx, true
}
