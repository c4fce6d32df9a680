package regalloc

// computeRequirement reconciles every use's OperandConstraint across
// bundle's ranges into one overall Requirement (spec.md §4.7 step 2,
// §6). Uses are scanned in ProgPoint order (ranges are already sorted,
// and each range's Uses list is sorted by construction); the first pair
// of uses whose constraints cannot be reconciled yields a
// RequirementConflictAt at the later use's position, which the caller
// treats as "split here and retry."
func (e *Env) computeRequirement(bundle LiveBundleIndex) (Requirement, *RequirementConflictAt) {
	req := Requirement{Kind: RequirementAny}

	for _, entry := range e.bundles[bundle.Index()].Ranges {
		lr := e.ranges[entry.Index.Index()]

		for _, u := range lr.Uses {
			merged, ok := mergeRequirement(req, u.Operand.Constraint)
			if !ok {
				return Requirement{}, &RequirementConflictAt{Point: u.Pos}
			}

			req = merged
		}
	}

	return req, nil
}

// mergeRequirement combines an accumulated Requirement with one more
// operand constraint, returning the new accumulated Requirement, or
// ok=false if the two are mutually unsatisfiable.
func mergeRequirement(acc Requirement, c OperandConstraint) (Requirement, bool) {
	next := constraintToRequirement(c)

	switch {
	case acc.Kind == RequirementAny:
		return next, true
	case next.Kind == RequirementAny:
		return acc, true

	case acc.Kind == RequirementRegister && next.Kind == RequirementRegister:
		return acc, true
	case acc.Kind == RequirementRegister && next.Kind == RequirementFixedReg:
		return next, true
	case acc.Kind == RequirementFixedReg && next.Kind == RequirementRegister:
		return acc, true
	case acc.Kind == RequirementFixedReg && next.Kind == RequirementFixedReg:
		if acc.Reg == next.Reg {
			return acc, true
		}

		return Requirement{}, false

	case acc.Kind == RequirementStack && next.Kind == RequirementStack:
		return acc, true
	case acc.Kind == RequirementStack && next.Kind == RequirementFixedStack:
		return next, true
	case acc.Kind == RequirementFixedStack && next.Kind == RequirementStack:
		return acc, true
	case acc.Kind == RequirementFixedStack && next.Kind == RequirementFixedStack:
		if acc.Reg == next.Reg {
			return acc, true
		}

		return Requirement{}, false

	default:
		// Any combination that mixes a register-ish requirement with a
		// stack-ish requirement cannot be satisfied by one allocation.
		return Requirement{}, false
	}
}

// constraintToRequirement maps one OperandConstraint onto the
// Requirement vocabulary: Reuse implies the operand must be in a
// register (the same register as the operand it reuses, which is
// enforced by the move-insertion pass out of this package's scope).
func constraintToRequirement(c OperandConstraint) Requirement {
	switch c.Kind {
	case ConstraintAny:
		return Requirement{Kind: RequirementAny}
	case ConstraintReg, ConstraintReuse:
		return Requirement{Kind: RequirementRegister}
	case ConstraintStack:
		return Requirement{Kind: RequirementStack}
	case ConstraintFixedReg:
		return Requirement{Kind: RequirementFixedReg, Reg: c.Reg}
	case ConstraintFixedStack:
		return Requirement{Kind: RequirementFixedStack, Reg: c.Reg}
	default:
		return Requirement{Kind: RequirementAny}
	}
}
