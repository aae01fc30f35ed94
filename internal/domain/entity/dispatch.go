package entity

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the result reported for one recipient of a dispatch.
type Outcome struct {
	Email  string        `json:"email"`
	Name   string        `json:"name,omitempty"`
	Status OutcomeStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

type Classification string

const (
	AllSuccess Classification = "all_success"
	Partial    Classification = "partial"
	AllFailure Classification = "all_failure"
)

type DispatchStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchResult holds one outcome per recipient in input order.
type DispatchResult struct {
	Results []Outcome `json:"results"`
}

func (r *DispatchResult) Stats() DispatchStats {
	s := DispatchStats{Total: len(r.Results)}
	for _, o := range r.Results {
		if o.Status == OutcomeSuccess {
			s.Sent++
		} else {
			s.Failed++
		}
	}
	return s
}

// Classification is undefined for an empty result; dispatch never produces one.
func (r *DispatchResult) Classification() Classification {
	s := r.Stats()
	switch {
	case s.Failed == 0:
		return AllSuccess
	case s.Sent == 0:
		return AllFailure
	default:
		return Partial
	}
}
