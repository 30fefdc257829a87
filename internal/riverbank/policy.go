package riverbank

// ReportPolicy decides whether a bottle should leave the exchange pool after
// receiving a report.
type ReportPolicy interface {
	ShouldWithdraw(reportCount int64) bool
}

// NeverWithdraw keeps reported bottles in circulation. Reports only count.
type NeverWithdraw struct{}

func (NeverWithdraw) ShouldWithdraw(int64) bool { return false }

// ThresholdPolicy withdraws a bottle once its report count reaches Threshold.
type ThresholdPolicy struct {
	Threshold int64
}

func (p ThresholdPolicy) ShouldWithdraw(reportCount int64) bool {
	return p.Threshold > 0 && reportCount >= p.Threshold
}

// NewReportPolicy returns a ThresholdPolicy for positive thresholds and
// NeverWithdraw otherwise.
func NewReportPolicy(threshold int64) ReportPolicy {
	if threshold > 0 {
		return ThresholdPolicy{Threshold: threshold}
	}
	return NeverWithdraw{}
}
