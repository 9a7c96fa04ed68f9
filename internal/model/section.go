package model

type LeadHeading struct {
	Value string `json:"value"`
	Depth int    `json:"depth"`
	Slug  string `json:"slug,omitempty"`
}

// Section is a heading-delimited region of a document. A chunk shares the
// same shape with content bounded by the chunk budget.
type Section struct {
	Content     string       `json:"content"`
	LeadHeading *LeadHeading `json:"leadHeading,omitempty"`
}
