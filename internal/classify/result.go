package classify

// Result is the outcome of classifying a single message. Results are
// created fresh per call, never mutated by the engine afterward, and
// owned by the caller.
type Result struct {
	// Category is the selected inbox category.
	Category Category `json:"category"`

	// Confidence is an integer score in [0,100] expressing how strongly
	// the engine believes in Category.
	Confidence int `json:"confidence"`

	// Labels holds every category the message plausibly belongs to,
	// Category included. It is a set: no duplicates, order is Category
	// first followed by the remaining entries in canonical order.
	Labels []Category `json:"labels"`

	// Reason is a human-readable trace of the top-ranked categories and
	// their raw similarity scores, for debugging and audit. It is never
	// machine-parsed.
	Reason string `json:"reason"`
}

// HasLabel reports whether the result carries the given label.
func (r Result) HasLabel(c Category) bool {
	for _, l := range r.Labels {
		if l == c {
			return true
		}
	}
	return false
}

// LabelNames returns the labels as plain strings, in the same order.
func (r Result) LabelNames() []string {
	out := make([]string, len(r.Labels))
	for i, l := range r.Labels {
		out[i] = string(l)
	}
	return out
}
