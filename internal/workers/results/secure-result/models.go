// internal/workers/results/secure-result/models.go
package secureresult

// Input carries the scans as base64 process variables.
type Input struct {
	AdmitCardImage string `json:"admitCardImage"`
	OMRSheetImage  string `json:"omrSheetImage"`
	OMRFileName    string `json:"omrFileName"`
}

// Output is merged back into the process instance on completion.
type Output struct {
	RegistrationNumber string `json:"registrationNumber"`
	CandidateID        string `json:"candidateId"`
	ExamResultID       string `json:"examResultId"`
	AnswerStringHash   string `json:"answerStringHash"`
	TotalQuestions     int    `json:"totalQuestions"`
	AnsweredQuestions  int    `json:"answeredQuestions"`
	Status             string `json:"status"`
}
