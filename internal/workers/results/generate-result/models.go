// internal/workers/results/generate-result/models.go
package generateresult

// Input identifies the candidate by their admit card scan. A registration
// number already extracted upstream can be passed directly to skip OCR.
type Input struct {
	AdmitCardImage     string `json:"admitCardImage"`
	RegistrationNumber string `json:"registrationNumber"`
}

type Output struct {
	RegistrationNumber string  `json:"registrationNumber"`
	FinalResultID      string  `json:"finalResultId"`
	CorrectAnswers     int     `json:"correctAnswers"`
	WrongAnswers       int     `json:"wrongAnswers"`
	Unattempted        int     `json:"unattempted"`
	Score              int     `json:"score"`
	Percentage         float64 `json:"percentage"`
	TotalQuestions     int     `json:"totalQuestions"`
	AnsweredQuestions  int     `json:"answeredQuestions"`
	Status             string  `json:"status"`
	LengthMismatch     bool    `json:"lengthMismatch"`
}
