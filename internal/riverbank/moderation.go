package riverbank

import "context"

// Verdict is the outcome of a content check.
type Verdict int

const (
	Safe Verdict = iota
	Unsafe
)

func (v Verdict) String() string {
	if v == Unsafe {
		return "unsafe"
	}
	return "safe"
}

// Moderator decides whether a submission may enter the river.
// Implementations must never fail: an unreachable classifier yields Safe.
type Moderator interface {
	Moderate(ctx context.Context, message, nickname string) Verdict
}

// AllowAllModerator accepts everything.
type AllowAllModerator struct{}

func (AllowAllModerator) Moderate(context.Context, string, string) Verdict { return Safe }
