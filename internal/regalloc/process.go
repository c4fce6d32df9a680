package regalloc

// processBundle is one iteration of the allocation loop (spec.md §4.7):
// it decides, for one bundle, whether to allocate a register, evict
// conflicting bundles and retry, split and requeue, or defer to the
// stack.
func (e *Env) processBundle(bundle LiveBundleIndex, regHint PReg) error {
	ss := e.bundles[bundle.Index()].Spillset
	class := e.spillsets[ss.Index()].Class

	hintReg := regHint
	if !hintReg.IsValid() {
		hintReg = e.spillsets[ss.Index()].RegHint
	}

	if hintReg.IsValid() && (e.pregs[hintReg.Index()].IsStack || e.Machine.IsStack(hintReg)) {
		hintReg = InvalidPReg
	}

	req, conflict := e.computeRequirement(bundle)
	if conflict != nil {
		// The bundle's own uses are mutually unsatisfiable: split right
		// away at the offending point and let the two halves re-probe.
		e.splitAndRequeueBundle(bundle, conflict.Point, regHint)
		return nil
	}

	if req.Kind == RequirementAny {
		if spill, ok := e.getOrCreateSpillBundle(bundle, false); ok {
			list := e.bundles[bundle.Index()].Ranges
			e.bundles[bundle.Index()].Ranges = nil

			for _, entry := range list {
				e.ranges[entry.Index.Index()].Bundle = spill
			}

			e.bundles[spill.Index()].Ranges = append(e.bundles[spill.Index()].Ranges, list...)

			return nil
		}
	}

	maxAttempts := 100 * e.Func.NumInsts()

	for attempts := 1; ; attempts++ {
		if attempts >= maxAttempts {
			return ErrAllocatorStalled()
		}

		var fixedPReg PReg
		switch req.Kind {
		case RequirementFixedReg, RequirementFixedStack:
			fixedPReg = req.Reg
		case RequirementStack:
			e.spillsets[ss.Index()].Required = true
			return nil
		case RequirementAny:
			e.spilledBundles = append(e.spilledBundles, bundle)
			return nil
		default:
			fixedPReg = InvalidPReg
		}

		var (
			bestEvictSet      []LiveBundleIndex
			bestEvictCost     *uint32
			bestSplitCost     *uint32
			bestSplitPoint    ProgPoint
			bestSplitReg      = InvalidPReg
		)

		firstRange := e.ranges[e.bundles[bundle.Index()].Ranges[0].Index.Index()]
		scanOffset := firstRange.Range.From.Inst().Index() + bundle.Index()

		it := NewRegTraversalIter(e.Machine, class, hintReg, InvalidPReg, scanOffset, fixedPReg)

		for {
			preg, ok := it.Next()
			if !ok {
				break
			}

			e.Stats.ProcessBundleRegProbeCount++

			pregIdx := PRegIndex(preg.RegIndex)

			var scanLimit *uint32
			if bestEvictCost != nil && bestSplitCost != nil {
				m := maxUint32(*bestEvictCost, *bestSplitCost)
				scanLimit = &m
			}

			result := e.tryToAllocateBundleToReg(bundle, pregIdx, scanLimit)

			switch result.Kind {
			case AllocRegAllocated:
				e.Stats.ProcessBundleRegSuccessCount++
				e.spillsets[ss.Index()].RegHint, _ = result.Allocation.AsReg()
				return nil

			case AllocRegConflict:
				conflictCost := e.maximumSpillWeightInBundleSet(result.ConflictBundles)

				if bestEvictCost == nil || conflictCost < *bestEvictCost {
					c := conflictCost
					bestEvictCost = &c
					bestEvictSet = result.ConflictBundles
				}

				loopDepth := e.CFG.LoopDepthAt(result.FirstConflictPoint)
				moveCost := spillWeightFromConstraint(ConstraintReg, int(loopDepth), true).ToUint32()

				if bestSplitCost == nil || conflictCost+moveCost < *bestSplitCost {
					c := conflictCost + moveCost
					bestSplitCost = &c
					bestSplitPoint = result.FirstConflictPoint
					bestSplitReg = preg
				}

			case AllocRegConflictWithFixed:
				loopDepth := e.CFG.LoopDepthAt(result.ConflictPoint)
				moveCost := spillWeightFromConstraint(ConstraintReg, int(loopDepth), true).ToUint32()

				if bestSplitCost == nil || result.MaxConflictWeight+moveCost < *bestSplitCost {
					c := result.MaxConflictWeight + moveCost
					bestSplitCost = &c
					bestSplitPoint = result.ConflictPoint
					bestSplitReg = preg
				}

			case AllocRegConflictHighCost:
				// A cheaper option is already on record; keep scanning.
			}
		}

		ourWeight := e.bundleSpillWeight(bundle)

		if e.minimalBundle(bundle) &&
			(attempts >= 2 || bestEvictCost == nil || *bestEvictCost >= ourWeight) {
			if req.Kind == RequirementRegister {
				if e.tooManyLiveRegs(bundle, class) {
					return ErrTooManyLiveRegs()
				}
			}

			panic("regalloc: could not allocate minimal bundle though the class is not saturated")
		}

		if !e.minimalBundle(bundle) &&
			(attempts >= 2 || bestEvictCost == nil || ourWeight <= *bestEvictCost) {
			bundleStart := e.bundles[bundle.Index()].start()

			splitAtPoint := bestSplitPoint
			if bundleStart > splitAtPoint {
				splitAtPoint = bundleStart
			}

			splitAtPoint = e.hoistSplitPoint(bundleStart, splitAtPoint)

			e.splitAndRequeueBundle(bundle, splitAtPoint, bestSplitReg)

			return nil
		}

		e.Stats.EvictBundleEvents++
		e.Stats.recordEviction(*bestEvictCost)

		for _, victim := range bestEvictSet {
			e.evictBundle(victim)
		}
	}
}

// tooManyLiveRegs scans every PReg of class for occupants overlapping
// bundle's first range, counting how many are fixed reservations or
// belong to minimal bundles; it reports true iff that count already exhausts every
// register in the class, meaning eviction can never make room (spec.md
// §4.7 step 5, §7, §8 scenario 5).
func (e *Env) tooManyLiveRegs(bundle LiveBundleIndex, class RegClass) bool {
	r := e.bundles[bundle.Index()].Ranges[0].Range

	var minAssigned, fixedAssigned, totalRegs int

	scan := func(preg PReg) {
		totalRegs++

		e.pregs[preg.Index()].Allocations.Overlapping(r, func(hit pregEntry) {
			if hit.LR.Invalid() {
				fixedAssigned++
				return
			}

			if e.minimalBundle(e.ranges[hit.LR.Index()].Bundle) {
				minAssigned++
			}
		})
	}

	for _, p := range e.Machine.PreferredRegsByClass[class] {
		scan(p)
	}

	for _, p := range e.Machine.NonPreferredRegsByClass[class] {
		scan(p)
	}

	return minAssigned+fixedAssigned >= totalRegs
}

// hoistSplitPoint moves splitAt to the entry of the first block encountered
// between bundleStart and splitAt whose loop depth exceeds bundleStart's,
// so that a split point is never chosen strictly inside a loop the bundle's
// start sits outside of (spec.md §4.7 step 5 "loop hoist").
func (e *Env) hoistSplitPoint(bundleStart, splitAt ProgPoint) ProgPoint {
	startBlock := e.CFG.InsnBlock[bundleStart.Inst().Index()]
	splitBlock := e.CFG.InsnBlock[splitAt.Inst().Index()]

	startDepth := e.CFG.ApproxLoopDepth[startBlock.Index()]
	splitDepth := e.CFG.ApproxLoopDepth[splitBlock.Index()]

	if splitDepth <= startDepth {
		return splitAt
	}

	for b := startBlock.Index() + 1; b <= splitBlock.Index(); b++ {
		if e.CFG.ApproxLoopDepth[b] > startDepth {
			return e.CFG.BlockEntry[b]
		}
	}

	return splitAt
}
