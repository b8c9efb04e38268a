package domain

// Enrichment holds side-channel analysis documents produced outside this
// service. Either part may be nil when the analysis has not run yet.
type Enrichment struct {
	ATS         map[string]interface{} `json:"ats,omitempty"`
	Personality map[string]interface{} `json:"personality,omitempty"`
}
