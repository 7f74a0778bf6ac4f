package omr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DecodedAnswerSet is the decoder service's reading of one OMR sheet: the
// identity fields printed on the sheet plus one marked option per question.
type DecodedAnswerSet struct {
	Name       string            `json:"name"`
	RollNumber string            `json:"roll_number"`
	Version    string            `json:"version"`
	Answers    map[string]string `json:"answers"`

	// ReportedAnswerString is the service's own rendering of the answers
	// map. Decode cross-checks it against the derived AnswerString.
	ReportedAnswerString string `json:"answer_string"`

	// AnswerString is derived by Normalize, one character per question in
	// ascending question order, '-' for questions with no detected mark.
	AnswerString string `json:"-"`
}

// Normalize derives AnswerString from the Answers map. Question keys are of
// the form Q1..Qn; every position from 1 to the highest key is emitted so the
// string length equals the question count even when marks are missing.
func (d *DecodedAnswerSet) Normalize() error {
	if len(d.Answers) == 0 {
		d.AnswerString = ""
		return nil
	}

	max := 0
	for key := range d.Answers {
		n, err := questionNumber(key)
		if err != nil {
			return err
		}
		if n > max {
			max = n
		}
	}

	var sb strings.Builder
	sb.Grow(max)
	for i := 1; i <= max; i++ {
		answer := d.Answers["Q"+strconv.Itoa(i)]
		answer = strings.TrimSpace(answer)
		if answer == "" {
			sb.WriteByte('-')
			continue
		}
		if len(answer) != 1 {
			return fmt.Errorf("question Q%d has a multi-character answer %q", i, answer)
		}
		sb.WriteString(strings.ToUpper(answer))
	}
	d.AnswerString = sb.String()
	return nil
}

// QuestionCount reports how many positions the normalized string covers.
func (d *DecodedAnswerSet) QuestionCount() int {
	return len(d.AnswerString)
}

// SortedQuestions returns the question keys in ascending numeric order,
// used when logging a decoded sheet.
func (d *DecodedAnswerSet) SortedQuestions() []string {
	keys := make([]string, 0, len(d.Answers))
	for key := range d.Answers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, _ := questionNumber(keys[i])
		nj, _ := questionNumber(keys[j])
		return ni < nj
	})
	return keys
}

func questionNumber(key string) (int, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(key), "Q")
	if trimmed == key {
		return 0, fmt.Errorf("invalid question key %q", key)
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid question key %q", key)
	}
	return n, nil
}
