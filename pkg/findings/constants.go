package findings

// Default configuration constants shared by the store, CLI and MCP tools.
const (
	// DefaultComplexityThreshold is the file complexity score at which a
	// complexity finding is recorded. Twice the threshold is critical.
	// Every node contributes at least 1, so scores scale with file size.
	DefaultComplexityThreshold = 5000

	// SeverityCriticalMultiplier is the factor applied to a threshold to
	// derive the critical-severity boundary.
	SeverityCriticalMultiplier = 2

	// DefaultSearchLimit is the default result count for findings
	// full-text search (store, CLI, and MCP tool).
	DefaultSearchLimit = 20

	// DefaultListLimit is the default result count for findings list
	// queries (store, CLI, and MCP tool).
	DefaultListLimit = 100

	// maxTextLen bounds the matched text copied into a persisted finding.
	maxTextLen = 200
)
