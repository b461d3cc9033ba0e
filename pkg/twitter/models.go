package twitter

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Error definitions
var (
	ErrInvalidConfig   = stderrors.New("invalid configuration")
	ErrInvalidEndpoint = stderrors.New("invalid endpoint")
)

// fallbackErrorMessage is reported when an error body carries no message.
const fallbackErrorMessage = "no error message"

// Option holds a response field that may be absent. The zero value is empty.
type Option[T any] struct {
	value T
	valid bool
}

// Some returns an Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, valid: true}
}

// Get returns the value and whether it was present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.valid
}

// IsSome reports whether the field was present.
func (o Option[T]) IsSome() bool {
	return o.valid
}

// OrElse returns the value, or def when the field was absent.
func (o Option[T]) OrElse(def T) T {
	if !o.valid {
		return def
	}
	return o.value
}

// UnmarshalJSON treats JSON null like an absent field.
func (o *Option[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Option[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MarshalJSON writes null for an absent field.
func (o Option[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o Option[T]) String() string {
	if !o.valid {
		return "<none>"
	}
	return fmt.Sprint(o.value)
}

// JSONResponse is the subset of a v1.1 status or media object the client reads.
// Every field is optional; an absent field is not an error.
type JSONResponse struct {
	CreatedAt Option[string] `json:"created_at"`
	ID        Option[string] `json:"id_str"`
	Text      Option[string] `json:"text"`
	MediaID   Option[string] `json:"media_id_string"`
}

// ErrorDetail is one entry of an API error list.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// APIError is returned when the API answers 400 or 401 with an error list.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

// Message returns the first reported message, or a fallback when there is none.
func (e *APIError) Message() string {
	if len(e.Errors) > 0 && e.Errors[0].Message != "" {
		return e.Errors[0].Message
	}
	return fallbackErrorMessage
}

// Code returns the first reported error code, or 0.
func (e *APIError) Code() int {
	if len(e.Errors) > 0 {
		return e.Errors[0].Code
	}
	return 0
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API error (status %d): %s", e.StatusCode, e.Message())
}

// StatusError is returned for any other non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}
