package model

// AdvisorySeverity indicates the urgency level of an advisory.
type AdvisorySeverity int

const (
	SeverityNormal AdvisorySeverity = iota
	SeverityWarning
	SeverityCritical
)

// AdvisoryCategory groups related advisories.
type AdvisoryCategory int

const (
	CategoryTiming AdvisoryCategory = iota
	CategoryHostErrors
	CategorySelection
)

// Advisory is a single operator-facing hint derived from loop state.
type Advisory struct {
	Severity AdvisorySeverity
	Category AdvisoryCategory
	Title    string
	Detail   string
}

func (s AdvisorySeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "normal"
	}
}

func (c AdvisoryCategory) String() string {
	switch c {
	case CategoryHostErrors:
		return "host-errors"
	case CategorySelection:
		return "selection"
	default:
		return "timing"
	}
}
