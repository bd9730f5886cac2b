package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/futig/medical-chatbot/internal/entity"
)

// Validator validates chat input
type Validator struct {
	maxQuestionLength int
}

func NewValidator(maxQuestionLength int) *Validator {
	return &Validator{maxQuestionLength: maxQuestionLength}
}

// ValidateQuestion trims the question and rejects empty or oversized input.
func (v *Validator) ValidateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: msg", entity.ErrEmptyQuestion)
	}

	if v.maxQuestionLength > 0 && utf8.RuneCountInString(question) > v.maxQuestionLength {
		return "", fmt.Errorf("%w: msg longer than %d characters", entity.ErrQuestionTooLong, v.maxQuestionLength)
	}

	return question, nil
}
