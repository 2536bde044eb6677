package pipeline

// State is where a target is in its extraction lifecycle.
type State int

const (
	StatePending State = iota
	StateRendering
	StateClassified
	StateExtracted
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	case StateClassified:
		return "classified"
	case StateExtracted:
		return "extracted"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// RestrictedPolicy selects what happens to pages that carry a restriction
// phrase.
type RestrictedPolicy string

const (
	// RestrictedExtract runs full extraction and only logs the signal.
	RestrictedExtract RestrictedPolicy = "extract"
	// RestrictedFallback treats restricted pages like walled ones.
	RestrictedFallback RestrictedPolicy = "fallback"
)

// ParseRestrictedPolicy maps a config value to a policy; anything unknown is
// RestrictedExtract.
func ParseRestrictedPolicy(s string) RestrictedPolicy {
	if RestrictedPolicy(s) == RestrictedFallback {
		return RestrictedFallback
	}
	return RestrictedExtract
}
