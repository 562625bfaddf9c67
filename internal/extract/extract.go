// Package extract pulls structured payloads out of untrusted model output.
//
// Completions frequently wrap their JSON in prose, markdown fences, or
// trailing commentary. Object finds the payload by anchoring on the expected
// key and scanning out to the balanced enclosing object, then validates it
// with a strict parse. Callers degrade to an empty result on ErrNoPayload
// rather than fabricating placeholder data, so a failed extraction is
// visible downstream.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenlearn/lumen/internal/model"
)

// ErrNoPayload indicates the text contained no parsable object with the
// expected key.
var ErrNoPayload = errors.New("extract: no structured payload found")

// Object returns the first brace-balanced JSON object in raw that contains
// the given key. The scan is string- and escape-aware so braces inside
// string values do not unbalance it.
func Object(raw, key string) (json.RawMessage, error) {
	anchor := `"` + key + `"`
	if !strings.Contains(raw, anchor) {
		return nil, ErrNoPayload
	}

	// Try every opening brace in turn; a candidate that fails to resolve
	// must not block a later one. Prose often quotes the key before the
	// payload appears, and an early brace pair may not be JSON at all.
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		end := closingBrace(raw, start)
		if end < 0 {
			continue
		}
		candidate := raw[start : end+1]
		if !strings.Contains(candidate, anchor) {
			// A balanced object without the key cannot contain it
			// nested either.
			start = end
			continue
		}
		if !json.Valid(json.RawMessage(candidate)) {
			continue
		}
		return json.RawMessage(candidate), nil
	}
	return nil, ErrNoPayload
}

// closingBrace finds the index of the brace that balances the one at start,
// skipping braces inside JSON strings.
func closingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Questions extracts and normalizes a quiz payload. Missing question ids are
// assigned sequentially; the list is clamped to maxCount. Returns nil with
// ErrNoPayload when no payload is present so the caller can return an empty
// (not fabricated) result.
func Questions(raw string, maxCount int) ([]model.QuizQuestion, error) {
	obj, err := Object(raw, "questions")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Questions []model.QuizQuestion `json:"questions"`
	}
	if err := json.Unmarshal(obj, &payload); err != nil {
		return nil, ErrNoPayload
	}
	qs := payload.Questions
	if maxCount > 0 && len(qs) > maxCount {
		qs = qs[:maxCount]
	}
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	return qs, nil
}

// Scenario extracts a scenario payload.
func Scenario(raw string) (*model.Scenario, error) {
	obj, err := Object(raw, "scenario")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Scenario *model.Scenario `json:"scenario"`
	}
	if err := json.Unmarshal(obj, &payload); err != nil {
		return nil, ErrNoPayload
	}
	if payload.Scenario == nil || len(payload.Scenario.Steps) == 0 {
		return nil, ErrNoPayload
	}
	return payload.Scenario, nil
}

// Flashcards extracts and normalizes a flashcard payload. Missing card ids
// are assigned sequentially; the list is clamped to maxCount.
func Flashcards(raw string, maxCount int) ([]model.Flashcard, error) {
	obj, err := Object(raw, "flashcards")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Flashcards []model.Flashcard `json:"flashcards"`
	}
	if err := json.Unmarshal(obj, &payload); err != nil {
		return nil, ErrNoPayload
	}
	cards := payload.Flashcards
	if maxCount > 0 && len(cards) > maxCount {
		cards = cards[:maxCount]
	}
	for i := range cards {
		if cards[i].ID == "" {
			cards[i].ID = fmt.Sprintf("c%d", i+1)
		}
	}
	return cards, nil
}

// TextOrFallback returns text, or fallback when the completion came back
// empty or whitespace-only.
func TextOrFallback(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
