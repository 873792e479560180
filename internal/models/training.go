// internal/models/training.go
package models

import "time"

// QuizQuestion is one generated multiple-choice question.
type QuizQuestion struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectChoice int      `json:"correctChoice"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizAttempt records an operator's answers to a generated quiz.
type QuizAttempt struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	UserID         string         `json:"userId"`
	Topic          string         `json:"topic"`
	Questions      []QuizQuestion `json:"questions"`
	Answers        []int          `json:"answers"`
	Score          int            `json:"score"` // correct answers out of len(Questions)
	CompletedAt    time.Time      `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	CreatedBy      string         `json:"createdBy"`
}
