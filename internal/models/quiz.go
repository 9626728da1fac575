package models

import "time"

// Quiz is a generated set of open questions over one kind's extracted text.
type Quiz struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Questions []string  `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizSlot returns the key-value slot for a quiz id.
func QuizSlot(id string) string {
	return slotQuizPrefix + id
}
