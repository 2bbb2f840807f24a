package models

// InteractionTarget pairs a deterministic locator with the human-readable
// description used as the fallback query when the locator fails.
type InteractionTarget struct {
	Locator     string `json:"locator" yaml:"selector"`
	Description string `json:"description" yaml:"description" validate:"required"`
}

// OutcomeStatus is the result class of a self-healing interaction
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "Success"
	OutcomeHealed  OutcomeStatus = "Healed"
	OutcomeFail    OutcomeStatus = "Fail"
)

// Outcome describes what happened to one interaction attempt
type Outcome struct {
	Status     OutcomeStatus
	SearchText string // Empty when the primary locator succeeded
	Selector   string // Selector that was actually clicked
	Screenshot string // Failure screenshot file name, if one was captured
	Err        error
}

// Clicked reports whether the interaction took place
func (o Outcome) Clicked() bool {
	return o.Status == OutcomeSuccess || o.Status == OutcomeHealed
}
