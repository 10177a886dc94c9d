package constants

// OutputMode selects the shape of a sweep's tabular output.
type OutputMode string

const (
	// ModeSummary writes one row per scenario.
	ModeSummary OutputMode = "summary"

	// ModeTime additionally writes one row per (scenario, period) pair.
	ModeTime OutputMode = "time"
)

// Valid returns true if the mode is a recognized value.
func (m OutputMode) Valid() bool {
	switch m {
	case ModeSummary, ModeTime:
		return true
	}
	return false
}

// String returns the string representation of the mode.
func (m OutputMode) String() string {
	return string(m)
}

// OutputFormat selects the on-disk encoding of tabular output.
type OutputFormat string

const (
	// FormatCSV writes comma-separated text files.
	FormatCSV OutputFormat = "csv"

	// FormatArrow writes Arrow IPC streams.
	FormatArrow OutputFormat = "arrow"
)

// Valid returns true if the format is a recognized value.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatCSV, FormatArrow:
		return true
	}
	return false
}

// Ext returns the file extension for the format, without the dot.
func (f OutputFormat) Ext() string {
	if f == FormatArrow {
		return "arrow"
	}
	return "csv"
}

// String returns the string representation of the format.
func (f OutputFormat) String() string {
	return string(f)
}
