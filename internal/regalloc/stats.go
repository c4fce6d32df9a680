package regalloc

import "github.com/montanaflynn/stats"

// Stats collects run counters for one ProcessBundles call (spec.md §6).
// None of these numbers feed back into allocation decisions: doing so
// would break the reproducibility guarantee of spec.md §5 ("given
// identical inputs the sequence of allocations, evictions and splits is
// reproducible"). They exist purely for callers to log or assert on.
type Stats struct {
	ProcessBundleCount          int
	ProcessBundleRegProbeCount  int
	ProcessBundleRegSuccessCount int
	EvictBundleEvents           int
	EvictBundleCount            int
	Splits                      int
	FinalLiveRangeCount         int
	FinalBundleCount            int
	SpillBundleCount            int

	evictionWeights []float64
}

// recordEviction appends one conflict-set weight observed at the moment
// a set of bundles was evicted, for SpillWeightSummary.
func (s *Stats) recordEviction(weight uint32) {
	s.evictionWeights = append(s.evictionWeights, float64(weight))
}

// SpillWeightSummary reports the mean and standard deviation of the
// conflict weights that triggered an eviction over this run, using
// github.com/montanaflynn/stats. It returns ok=false if no eviction ever
// happened (stats.Mean errors on an empty series, which this package
// treats as "nothing to summarize" rather than propagating the error).
func (s *Stats) SpillWeightSummary() (mean, stddev float64, ok bool) {
	if len(s.evictionWeights) == 0 {
		return 0, 0, false
	}

	data := stats.Float64Data(s.evictionWeights)

	m, err := data.Mean()
	if err != nil {
		return 0, 0, false
	}

	sd, err := data.StandardDeviation()
	if err != nil {
		return 0, 0, false
	}

	return m, sd, true
}
