package regalloc

// normalizeSplitAt implements the split_at normalization rules of
// spec.md §4.6 steps 1-3: it never returns a point outside
// (bundleStart, bundleEnd).
func (e *Env) normalizeSplitAt(bundle LiveBundleIndex, splitAt ProgPoint) ProgPoint {
	b := e.bundles[bundle.Index()]
	bundleStart := b.start()
	bundleEnd := b.end()

	if splitAt == bundleStart {
		// Splitting exactly at the start would produce an empty prefix:
		// peel off the first use instead, landing just after it (if it
		// shares the start instruction) or just before it.
		var firstUse *ProgPoint
		for _, entry := range b.Ranges {
			if len(e.ranges[entry.Index.Index()].Uses) > 0 {
				p := e.ranges[entry.Index.Index()].Uses[0].Pos
				firstUse = &p
				break
			}
		}

		if firstUse == nil {
			return ProgPointBefore(bundleStart.Inst().Next())
		}

		if firstUse.Inst() == bundleStart.Inst() {
			return ProgPointBefore(firstUse.Inst().Next())
		}

		return ProgPointBefore(firstUse.Inst())
	}

	// Never split between an instruction's uses and its defs.
	if splitAt.Pos() == After {
		splitAt = splitAt.Next()
	}

	if splitAt >= bundleEnd {
		splitAt = splitAt.Prev().Prev()
	}

	return splitAt
}

// splitAndRequeueBundle splits bundle at splitAt into two bundles,
// migrating ranges and uses, trims use-free margins into the shared
// spill bundle, and requeues whichever halves remain non-empty (spec.md
// §4.6).
func (e *Env) splitAndRequeueBundle(bundle LiveBundleIndex, splitAt ProgPoint, regHint PReg) {
	e.Stats.Splits++

	splitAt = e.normalizeSplitAt(bundle, splitAt)

	spillset := e.bundles[bundle.Index()].Spillset
	ranges := e.bundles[bundle.Index()].Ranges

	lastOld, firstNew := 0, 0
	for i, entry := range ranges {
		if splitAt > entry.Range.From {
			lastOld = i
			firstNew = i
		}

		if splitAt < entry.Range.To {
			firstNew = i
			break
		}
	}

	newRanges := make([]LiveRangeListEntry, len(ranges)-firstNew)
	copy(newRanges, ranges[firstNew:])

	e.bundles[bundle.Index()].Ranges = ranges[:lastOld+1]

	if splitAt > newRanges[0].Range.From {
		// The range at the boundary straddles the split point: cut it in
		// two, moving every use at or after splitAt to the new range.
		origLR := newRanges[0].Index
		newLR := e.createLiveRange(CodeRange{From: splitAt, To: newRanges[0].Range.To})
		e.ranges[newLR.Index()].VReg = e.ranges[origLR.Index()].VReg

		firstUse := len(e.ranges[origLR.Index()].Uses)
		for i, u := range e.ranges[origLR.Index()].Uses {
			if u.Pos >= splitAt {
				firstUse = i
				break
			}
		}

		restUses := make([]Use, len(e.ranges[origLR.Index()].Uses)-firstUse)
		copy(restUses, e.ranges[origLR.Index()].Uses[firstUse:])
		e.ranges[newLR.Index()].Uses = restUses
		e.ranges[origLR.Index()].Uses = e.ranges[origLR.Index()].Uses[:firstUse]

		e.recomputeRangeProperties(origLR)
		e.recomputeRangeProperties(newLR)

		newRanges[0].Index = newLR
		newRanges[0].Range = e.ranges[newLR.Index()].Range
		e.ranges[origLR.Index()].Range.To = splitAt
		e.bundles[bundle.Index()].Ranges[lastOld].Range = e.ranges[origLR.Index()].Range

		vreg := e.ranges[newLR.Index()].VReg
		e.vregs[vreg.Index()].Ranges = append(e.vregs[vreg.Index()].Ranges, LiveRangeListEntry{
			Range: e.ranges[newLR.Index()].Range,
			Index: newLR,
		})
	}

	newBundle := e.createBundle()
	e.bundles[newBundle.Index()].Spillset = spillset

	for _, entry := range newRanges {
		e.ranges[entry.Index.Index()].Bundle = newBundle
	}

	e.bundles[newBundle.Index()].Ranges = newRanges

	e.trimTrailingMargin(bundle)
	e.trimLeadingMargin(newBundle)

	if len(e.bundles[bundle.Index()].Ranges) > 0 {
		e.recomputeBundleProperties(bundle)
		b := e.bundles[bundle.Index()]
		e.allocationQueue.Insert(bundle, int(b.Prio), regHint)
	}

	if len(e.bundles[newBundle.Index()].Ranges) > 0 {
		e.recomputeBundleProperties(newBundle)
		b := e.bundles[newBundle.Index()]
		e.allocationQueue.Insert(newBundle, int(b.Prio), regHint)
	}
}

// trimTrailingMargin drops bundle's last range's use-free tail into the
// shared spill bundle, repeating while the whole range is use-free
// (spec.md §4.6 "tail trimming").
func (e *Env) trimTrailingMargin(bundle LiveBundleIndex) {
	for {
		ranges := e.bundles[bundle.Index()].Ranges
		if len(ranges) == 0 {
			return
		}

		entry := ranges[len(ranges)-1]
		lr := e.ranges[entry.Index.Index()]

		if len(lr.Uses) == 0 {
			spill, _ := e.getOrCreateSpillBundle(bundle, true)
			e.bundles[spill.Index()].Ranges = append(e.bundles[spill.Index()].Ranges, entry)
			e.bundles[bundle.Index()].Ranges = ranges[:len(ranges)-1]
			lr.Bundle = spill

			continue
		}

		lastUse := lr.Uses[len(lr.Uses)-1].Pos
		split := ProgPointBefore(lastUse.Inst().Next())

		if split < entry.Range.To {
			spill, _ := e.getOrCreateSpillBundle(bundle, true)

			end := entry.Range.To
			vreg := lr.VReg

			lr.Range.To = split
			e.bundles[bundle.Index()].Ranges[len(ranges)-1].Range.To = split

			tailRange := CodeRange{From: split, To: end}
			emptyLR := e.createLiveRange(tailRange)
			e.ranges[emptyLR.Index()].Bundle = spill
			e.bundles[spill.Index()].Ranges = append(e.bundles[spill.Index()].Ranges, LiveRangeListEntry{Range: tailRange, Index: emptyLR})
			e.vregs[vreg.Index()].Ranges = append(e.vregs[vreg.Index()].Ranges, LiveRangeListEntry{Range: tailRange, Index: emptyLR})
		}

		return
	}
}

// trimLeadingMargin is the symmetric operation on bundle's first range,
// skipped entirely when StartsAtDef is set (the front hosts an implicit
// def that must not be stranded in the spill bundle).
func (e *Env) trimLeadingMargin(bundle LiveBundleIndex) {
	for {
		ranges := e.bundles[bundle.Index()].Ranges
		if len(ranges) == 0 {
			return
		}

		entry := ranges[0]
		lr := e.ranges[entry.Index.Index()]

		if lr.HasFlag(LiveRangeStartsAtDef) {
			return
		}

		if len(lr.Uses) == 0 {
			spill, _ := e.getOrCreateSpillBundle(bundle, true)
			e.bundles[spill.Index()].Ranges = append(e.bundles[spill.Index()].Ranges, entry)
			e.bundles[bundle.Index()].Ranges = ranges[1:]
			lr.Bundle = spill

			continue
		}

		firstUse := lr.Uses[0].Pos
		split := ProgPointBefore(firstUse.Inst())

		if split > entry.Range.From {
			spill, _ := e.getOrCreateSpillBundle(bundle, true)

			start := entry.Range.From
			vreg := lr.VReg

			lr.Range.From = split
			e.bundles[bundle.Index()].Ranges[0].Range.From = split

			headRange := CodeRange{From: start, To: split}
			emptyLR := e.createLiveRange(headRange)
			e.ranges[emptyLR.Index()].Bundle = spill
			e.bundles[spill.Index()].Ranges = append(e.bundles[spill.Index()].Ranges, LiveRangeListEntry{Range: headRange, Index: emptyLR})
			e.vregs[vreg.Index()].Ranges = append(e.vregs[vreg.Index()].Ranges, LiveRangeListEntry{Range: headRange, Index: emptyLR})
		}

		return
	}
}
