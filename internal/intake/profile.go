package intake

// Profile is the set of answers collected for one user. Fields stay nil until answered
// and are filled in question order.
type Profile struct {
	UserID        int64
	Name          *string
	Age           *int
	FavoriteColor *string
	Personality   *string
}

// Complete reports whether every answer is present.
func (p Profile) Complete() bool {
	return p.Name != nil && p.Age != nil && p.FavoriteColor != nil && p.Personality != nil
}

// Suggestion returns the oracle request for a complete profile.
// Missing answers are rendered as zero values.
func (p Profile) Suggestion() Suggestion {
	var s Suggestion
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Age != nil {
		s.Age = *p.Age
	}
	if p.FavoriteColor != nil {
		s.FavoriteColor = *p.FavoriteColor
	}
	if p.Personality != nil {
		s.Personality = *p.Personality
	}
	return s
}

// Suggestion is the input of the suggestion oracle.
type Suggestion struct {
	Name          string
	Age           int
	FavoriteColor string
	Personality   string
}
