package ranking

import "github.com/headline-goat/intent-goat/internal/intent"

// Default content block ids.
const (
	BlockStructuralFabrication    = "structural-fabrication"
	BlockMultiProjectOptimization = "multi-project-optimization"
	BlockMachineCalibration       = "machine-calibration"
	BlockFleetGrip                = "fleet-grip"
	BlockARExecution              = "ar-execution"
	BlockAIGovernance             = "ai-governance"
)

// Sequences holds one canonical block ordering per intent tier.
type Sequences map[intent.State][]string

// DefaultSequences are the orderings used when no configuration is given.
var DefaultSequences = Sequences{
	intent.StateLow: {
		BlockStructuralFabrication,
		BlockMultiProjectOptimization,
		BlockMachineCalibration,
		BlockFleetGrip,
		BlockARExecution,
		BlockAIGovernance,
	},
	intent.StateEmerging: {
		BlockMultiProjectOptimization,
		BlockStructuralFabrication,
		BlockAIGovernance,
		BlockMachineCalibration,
		BlockARExecution,
		BlockFleetGrip,
	},
	intent.StateHigh: {
		BlockAIGovernance,
		BlockStructuralFabrication,
		BlockMachineCalibration,
		BlockMultiProjectOptimization,
		BlockARExecution,
		BlockFleetGrip,
	},
}

// For returns the sequence of a tier, falling back to DefaultSequences.
func (s Sequences) For(state intent.State) []string {
	if seq, ok := s[state]; ok {
		return seq
	}
	return DefaultSequences[state]
}

// Merge overlays configured tiers on top of s.
func (s Sequences) Merge(overrides Sequences) Sequences {
	out := make(Sequences, len(s))
	for state, seq := range s {
		out[state] = seq
	}
	for state, seq := range overrides {
		if len(seq) > 0 {
			out[state] = seq
		}
	}
	return out
}
