package reconcile

// CheckResult is one entry of the contract diff report. Expected and Actual are
// snapshots of what was compared, kept JSON-friendly for the audit trail.
type CheckResult struct {
	Field    string `json:"field"`
	Pass     bool   `json:"pass"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Notes    string `json:"notes,omitempty"`
}

// Report is the ordered check list produced by one diff run.
type Report []CheckResult

// AllPass reports whether every check in the report passed.
func (r Report) AllPass() bool {
	for _, check := range r {
		if !check.Pass {
			return false
		}
	}
	return true
}

// Failing returns only the failed entries, preserving order.
func (r Report) Failing() Report {
	var out Report
	for _, check := range r {
		if !check.Pass {
			out = append(out, check)
		}
	}
	return out
}
