package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinQuestionLen is the minimum trimmed length of a displayable question.
	MinQuestionLen = 12
	// MinPerspectiveLen is the minimum trimmed length of an advice body.
	MinPerspectiveLen = 24
)

// Scenario is a normalized question+advice content unit. Immutable once built.
type Scenario struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Perspective string    `json:"perspective"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Hash        string    `json:"hash"`
}

// ValidationError reports which field of a raw payload failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scenario: %s is empty or below minimum length", e.Field)
}

// ContentHash returns the dedup key for a (question, perspective) pair.
// Stable across processes: sha256 of the two texts joined by "|".
func ContentHash(question, perspective string) string {
	sum := sha256.Sum256([]byte(question + "|" + perspective))
	return hex.EncodeToString(sum[:])
}

// New validates the given fields and builds a canonical Scenario.
// id, tags, createdAt and hash fall back to defaults when zero.
func New(id, question, perspective string, tags []string, createdAt time.Time, hash string) (Scenario, error) {
	question = strings.TrimSpace(question)
	perspective = strings.TrimSpace(perspective)
	// Minimum lengths are counted in runes, not bytes.
	if utf8.RuneCountInString(question) < MinQuestionLen {
		return Scenario{}, &ValidationError{Field: "question"}
	}
	if utf8.RuneCountInString(perspective) < MinPerspectiveLen {
		return Scenario{}, &ValidationError{Field: "perspective"}
	}
	if tags == nil {
		tags = []string{}
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if strings.TrimSpace(hash) == "" {
		hash = ContentHash(question, perspective)
	}
	if strings.TrimSpace(id) == "" {
		id = newID(question, perspective)
	}
	return Scenario{
		ID:          id,
		Question:    question,
		Perspective: perspective,
		Tags:        tags,
		CreatedAt:   createdAt,
		Hash:        hash,
	}, nil
}
