package types

type PolicyResult struct {
	Passed         int
	AdvisoryFailed int
	SoftFailed     int
	HardFailed     int
	Result         bool
}

type PolicyCheck struct {
	ID            string
	Status        string
	Scope         string
	Result        PolicyResult
	CanOverride   bool
	IsOverridable bool
	RunID         string
}

// PolicyTotals sums results across every policy check of a run.
func PolicyTotals(checks []*PolicyCheck) PolicyResult {
	var total PolicyResult
	for _, check := range checks {
		if check == nil {
			continue
		}
		total.Passed += check.Result.Passed
		total.AdvisoryFailed += check.Result.AdvisoryFailed
		total.SoftFailed += check.Result.SoftFailed
		total.HardFailed += check.Result.HardFailed
	}
	return total
}
