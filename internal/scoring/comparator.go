// Package scoring aligns a candidate's decoded answer string against the
// active answer key and classifies every position.
package scoring

// Unattempted markers. The decoder emits '-' for blank bubbles; a literal
// space is accepted for keys typed by hand in the admin flow.
const (
	UnattemptedDash  = '-'
	UnattemptedBlank = ' '
)

// Breakdown is the position-by-position classification of one comparison.
type Breakdown struct {
	Correct     int `json:"correct"`
	Wrong       int `json:"wrong"`
	Unattempted int `json:"unattempted"`

	// Compared is the number of positions actually classified. When the two
	// strings differ in length the comparison truncates to the shorter one,
	// so Compared can be less than either input length.
	Compared int `json:"compared"`

	// LengthMismatch is set when truncation occurred. Trailing questions of
	// the longer string were dropped without classification; callers decide
	// whether to warn or abort.
	LengthMismatch bool `json:"lengthMismatch"`
}

// Compare classifies each position of the candidate string against the key:
// unattempted marker counts as unattempted, an exact match as correct,
// anything else as wrong. No partial credit, no negative marking.
// Always: Correct + Wrong + Unattempted == Compared == min(len(a), len(b)).
func Compare(candidateAnswers, correctAnswers string) Breakdown {
	minLength := len(candidateAnswers)
	if len(correctAnswers) < minLength {
		minLength = len(correctAnswers)
	}

	b := Breakdown{
		Compared:       minLength,
		LengthMismatch: len(candidateAnswers) != len(correctAnswers),
	}

	for i := 0; i < minLength; i++ {
		switch {
		case candidateAnswers[i] == UnattemptedDash || candidateAnswers[i] == UnattemptedBlank:
			b.Unattempted++
		case candidateAnswers[i] == correctAnswers[i]:
			b.Correct++
		default:
			b.Wrong++
		}
	}

	return b
}

// Score is the number of correct answers; there is no negative marking.
func (b Breakdown) Score() int {
	return b.Correct
}

// Percentage computes the score share against the answer key's declared
// question count, NOT the compared length. A short key legitimately yields a
// percentage that differs from correct/compared.
func Percentage(correct, totalQuestions int) float64 {
	if totalQuestions <= 0 {
		return 0
	}
	return float64(correct) / float64(totalQuestions) * 100
}
