package quiz

type GenerateRequest struct {
	Topic           string `json:"topic"`
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description,omitempty"`
	NumQuestions    int    `json:"num_questions"`
}

type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type GenerateResponse struct {
	Success   bool       `json:"success"`
	Questions []Question `json:"questions"`
	Message   string     `json:"message,omitempty"`
}

type Answer struct {
	QuestionID     string `json:"questionId"`
	Question       string `json:"question"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
	Difficulty     string `json:"difficulty"`
}

type VerifyRequest struct {
	UserID        string   `json:"userId"`
	TaskID        string   `json:"taskId"`
	Answers       []Answer `json:"answers"`
	WalletAddress string   `json:"walletAddress"`
}

// VerifyResponse is the verifier's verdict. Reward is in whole tokens.
type VerifyResponse struct {
	Success        bool     `json:"success"`
	Score          int      `json:"score"`
	TotalQuestions int      `json:"totalQuestions"`
	Passed         bool     `json:"passed"`
	Reward         *float64 `json:"reward,omitempty"`
	TxHash         string   `json:"txHash,omitempty"`
	Message        string   `json:"message,omitempty"`
}
