package domain

// Template is a starter form offered when creating a new form.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Data        BookingFlowData `json:"data"`
}
