package diag

// Kind classifies a non-fatal problem met while parsing logs.
type Kind uint8

const (
	// KindInput is a missing or unreadable log file, or a malformed line.
	KindInput Kind = iota
	// KindCorrelation is a compiled function with no metadata event.
	KindCorrelation
	// KindResolution is a module, type or method that could not be resolved.
	KindResolution
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCorrelation:
		return "correlation"
	case KindResolution:
		return "resolution"
	}
	return "unknown"
}
