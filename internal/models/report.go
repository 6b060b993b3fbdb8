package models

// Report carries the per-stage row accounting for one pipeline run. Every
// row-level defect is recovered by filtering and counted here rather than
// failing the run.
type Report struct {
	SourceRows            int `json:"source_rows"`
	UnparseableTimestamps int `json:"unparseable_timestamps"`
	OutOfSession          int `json:"out_of_session"`
	DuplicateTimestamps   int `json:"duplicate_timestamps"`
	SanityViolations      int `json:"sanity_violations"`
	StaleRows             int `json:"stale_rows"`
	StructuralBreaks      int `json:"structural_breaks"`
	CleanRows             int `json:"clean_rows"`
}

// RemovedRows returns the total number of rows filtered out across stages.
func (r *Report) RemovedRows() int {
	return r.UnparseableTimestamps + r.OutOfSession + r.DuplicateTimestamps +
		r.SanityViolations + r.StaleRows
}
