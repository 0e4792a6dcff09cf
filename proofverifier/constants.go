package proofverifier

// Display and Formatting Constants
const (
	RedactionCollapseThreshold = 100            // Number of consecutive sentinels before collapsing
	CollapsedRedactionPattern  = "XXXXXXXXX..." // Pattern used for collapsed redactions
)
