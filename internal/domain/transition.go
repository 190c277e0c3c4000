package domain

type Transition int

const (
	NoTransition Transition = iota
	WentDown
	CameBackUp
)

func (t Transition) String() string {
	switch t {
	case WentDown:
		return "went_down"
	case CameBackUp:
		return "came_back_up"
	default:
		return "none"
	}
}

// TransitionBetween classifies a status change. Only down edges count:
// unknown or up to down is a failure, down to up is a recovery.
func TransitionBetween(prev, next Status) Transition {
	switch {
	case prev != StatusDown && next == StatusDown:
		return WentDown
	case prev == StatusDown && next == StatusUp:
		return CameBackUp
	default:
		return NoTransition
	}
}
