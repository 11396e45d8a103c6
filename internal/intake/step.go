package intake

import "fmt"

// Step identifies which question a conversation is waiting on.
type Step string

const (
	StepAwaitingName          Step = "awaiting_name"
	StepAwaitingAge           Step = "awaiting_age"
	StepAwaitingFavoriteColor Step = "awaiting_favorite_color"
	StepAwaitingPersonality   Step = "awaiting_personality"
	// StepDone is terminal; input is ignored until the session is restarted.
	StepDone Step = "done"
)

var stepOrder = []Step{
	StepAwaitingName,
	StepAwaitingAge,
	StepAwaitingFavoriteColor,
	StepAwaitingPersonality,
	StepDone,
}

// Next returns the step that follows s. Done and unknown steps map to Done.
func (s Step) Next() Step {
	for i, st := range stepOrder[:len(stepOrder)-1] {
		if st == s {
			return stepOrder[i+1]
		}
	}
	return StepDone
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	for _, st := range stepOrder {
		if st == s {
			return true
		}
	}
	return false
}

func (s Step) String() string { return string(s) }

// ParseStep converts a stored step name back into a Step.
func ParseStep(raw string) (Step, error) {
	s := Step(raw)
	if !s.Valid() {
		return "", fmt.Errorf("intake: unknown step %q", raw)
	}
	return s, nil
}
