package voiceapi

import "errors"

// Result is the outcome of one API call: either Success with Data, or a
// failure with a non-empty, user-facing Error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps a successful response.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps a failure. An empty message is replaced so that a failed
// Result always explains itself.
func Fail[T any](msg string) Result[T] {
	if msg == "" {
		msg = "request failed"
	}
	return Result[T]{Error: msg}
}

// Err returns nil on success and the failure text as an error otherwise.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Error)
}
