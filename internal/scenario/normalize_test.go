package scenario

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validQuestion    = "Should I text my ex back after two months of silence?"
	validPerspective = "Take a week before deciding; old feelings resurface fast and fade just as fast."
)

func TestNormalizePlainFields(t *testing.T) {
	s, err := Normalize(map[string]any{
		"question":    validQuestion,
		"perspective": validPerspective,
		"tags":        []any{"exes", "texting"},
	})
	require.NoError(t, err)
	assert.Equal(t, validQuestion, s.Question)
	assert.Equal(t, validPerspective, s.Perspective)
	assert.Equal(t, []string{"exes", "texting"}, s.Tags)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, ContentHash(validQuestion, validPerspective), s.Hash)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestNormalizeQuestionFallbacks(t *testing.T) {
	cases := map[string]map[string]any{
		"nested text":   {"question": map[string]any{"text": validQuestion}, "perspective": validPerspective},
		"nested answer": {"question": map[string]any{"answer": validQuestion}, "perspective": validPerspective},
		"prompt":        {"prompt": validQuestion, "perspective": validPerspective},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, validQuestion, s.Question)
		})
	}
}

func TestNormalizePerspectiveFallbacks(t *testing.T) {
	cases := map[string]map[string]any{
		"answer":   {"question": validQuestion, "answer": validPerspective},
		"advice":   {"question": validQuestion, "advice": validPerspective},
		"rendered": {"question": validQuestion, "rendered": validPerspective},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, validPerspective, s.Perspective)
		})
	}
}

func TestNormalizePrecedenceOrder(t *testing.T) {
	// A plain question string wins over prompt; perspective wins over answer.
	s, err := Normalize(map[string]any{
		"question":    validQuestion,
		"prompt":      "this prompt should lose to the plain question",
		"perspective": validPerspective,
		"answer":      "this answer field should lose to the perspective field",
	})
	require.NoError(t, err)
	assert.Equal(t, validQuestion, s.Question)
	assert.Equal(t, validPerspective, s.Perspective)
}

func TestNormalizeRejectsShortQuestion(t *testing.T) {
	_, err := Normalize(map[string]any{
		"question":    "hi",
		"perspective": validPerspective,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "question", verr.Field)
}

func TestNormalizeCountsRunesNotBytes(t *testing.T) {
	// 5 runes but 15 bytes: must still be too short.
	_, err := Normalize(map[string]any{
		"question":    "こんにちは",
		"perspective": validPerspective,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "question", verr.Field)

	s, err := Normalize(map[string]any{
		"question":    strings.Repeat("元", MinQuestionLen),
		"perspective": strings.Repeat("気", MinPerspectiveLen),
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(s.ID))
}

func TestNormalizeRejectsShortPerspective(t *testing.T) {
	_, err := Normalize(map[string]any{
		"question":    strings.Repeat("a", MinQuestionLen),
		"perspective": "short",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "perspective", verr.Field)
}

func TestNormalizeIdempotentOnCanonicalInput(t *testing.T) {
	original, err := New("s-1", validQuestion, validPerspective, []string{"tag"}, time.Now().UTC(), "")
	require.NoError(t, err)
	again, err := Normalize(original)
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func TestNormalizePreservesSuppliedIdentity(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s, err := Normalize(map[string]any{
		"id":          "seed-42",
		"question":    validQuestion,
		"perspective": validPerspective,
		"hash":        "precomputed",
		"created_at":  created.Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "seed-42", s.ID)
	assert.Equal(t, "precomputed", s.Hash)
	assert.True(t, created.Equal(s.CreatedAt))
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("q", "p")
	b := ContentHash("q", "p")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ContentHash("q", "other"))
	assert.Len(t, a, 64)
}

func TestNewIDDistinctForIdenticalContent(t *testing.T) {
	a := newID(validQuestion, validPerspective)
	b := newID(validQuestion, validPerspective)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "should-i-text-my-ex-back"))
}

func TestNewIDHandlesMultibyteQuestions(t *testing.T) {
	// Non-ASCII letters never reach the slug, so truncation cannot split a
	// rune; fully non-ASCII questions fall back to the generic prefix.
	id := newID("西暦2026年のデートのアドバイスをください", validPerspective)
	assert.True(t, utf8.ValidString(id))
	assert.True(t, strings.HasPrefix(id, "2026-"))

	id = newID("こんにちは、お元気ですか?", validPerspective)
	assert.True(t, strings.HasPrefix(id, "scenario-"))
}
