package tail

import "fmt"

// ThrottleKind classifies how a file's reads are currently being limited.
type ThrottleKind int

const (
	ThrottleNormal ThrottleKind = iota
	ThrottleThrottled
	ThrottlePaused
)

// ThrottleReason explains a ThrottlePaused state.
type ThrottleReason int

const (
	ReasonNone ThrottleReason = iota
	ReasonTooFast
	ReasonUserPaused
	ReasonBufferFull
)

func (r ThrottleReason) String() string {
	switch r {
	case ReasonTooFast:
		return "too fast"
	case ReasonUserPaused:
		return "user paused"
	case ReasonBufferFull:
		return "buffer full"
	default:
		return "none"
	}
}

// ThrottleState is Normal, Throttled with the fraction of lines skipped in
// the last poll, or Paused with a reason.
type ThrottleState struct {
	Kind      ThrottleKind
	SkipRatio float64
	Reason    ThrottleReason
}

func normalState() ThrottleState { return ThrottleState{Kind: ThrottleNormal} }

func throttledState(skipped, total int) ThrottleState {
	return ThrottleState{Kind: ThrottleThrottled, SkipRatio: float64(skipped) / float64(total)}
}

func pausedState(reason ThrottleReason) ThrottleState {
	return ThrottleState{Kind: ThrottlePaused, Reason: reason}
}

func (s ThrottleState) String() string {
	switch s.Kind {
	case ThrottleThrottled:
		return fmt.Sprintf("throttled (%.0f%% skipped)", s.SkipRatio*100)
	case ThrottlePaused:
		return "paused (" + s.Reason.String() + ")"
	default:
		return "normal"
	}
}

// budget applies the per-poll line budget to lines. It returns the lines to
// keep (the newest ones) and how many were skipped.
func budget(lines []string, limit int) ([]string, int) {
	if limit <= 0 || len(lines) <= limit {
		return lines, 0
	}
	skipped := len(lines) - limit
	return lines[skipped:], skipped
}
