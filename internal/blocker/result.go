package blocker

// ConversionResult is the result of converting the rule list of a single
// category.
type ConversionResult struct {
	// Artifact is the compiled representation of the rules, which is opaque to
	// the pipeline.
	Artifact []byte `json:"artifact"`

	// AdvancedArtifact contains the advanced-blocking rules, which the
	// enforcement backend cannot apply on its own.  It is empty unless
	// advanced blocking is enabled.
	AdvancedArtifact []byte `json:"advanced_artifact,omitempty"`

	// TotalCount is the number of input rules.
	TotalCount int `json:"total_count"`

	// ConvertedCount is the number of rules represented in Artifact.  It is
	// never greater than the conversion limit.
	ConvertedCount int `json:"converted_count"`

	// ErrorsCount is the number of rules within the limit that could not be
	// converted.
	ErrorsCount int `json:"errors_count"`

	// Overlimit is true if TotalCount exceeded the conversion limit, in which
	// case Artifact only reflects the retained prefix.
	Overlimit bool `json:"overlimit"`
}

// Results is a mapping of categories to the results of their conversion.
type Results map[Category]*ConversionResult
