package intake

import (
	"errors"
	"strconv"
)

// ErrInvalidAge is returned when an age answer is not a plain non-negative integer.
var ErrInvalidAge = errors.New("intake: age must be a non-negative integer")

// ParseAge accepts only non-empty strings made of ASCII digits. Signs, spaces,
// separators and non-ASCII digits are rejected, as are values that overflow int.
func ParseAge(text string) (int, error) {
	if text == "" {
		return 0, ErrInvalidAge
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, ErrInvalidAge
		}
	}
	age, err := strconv.Atoi(text)
	if err != nil {
		return 0, ErrInvalidAge
	}
	return age, nil
}
