package llm

import "errors"

// JSONMimeType asks Gemini to answer with a JSON document
const JSONMimeType = "application/json"

var (
	// ErrEmptyResponse is returned when the model answered without any text
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrBlocked is returned when the prompt or answer was blocked by safety filters
	ErrBlocked = errors.New("response blocked by model")
)
