/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package api defines the JSON response envelope and the closed error-code
// taxonomy shared by every charted HTTP endpoint.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorCode is a machine-readable error identifier. The enumeration is
// closed: handlers must not invent codes outside this set.
type ErrorCode string

// Client input errors.
const (
	ValidationFailed           ErrorCode = "ValidationFailed"
	InvalidName                ErrorCode = "InvalidName"
	InvalidPassword            ErrorCode = "InvalidPassword"
	InvalidUtf8                ErrorCode = "InvalidUtf8"
	UnableToDecodeBase64       ErrorCode = "UnableToDecodeBase64"
	MissingPathParameter       ErrorCode = "MissingPathParameter"
	UnableToParsePathParameter ErrorCode = "UnableToParsePathParameter"
)

// Authentication errors.
const (
	MissingAuthorizationHeader ErrorCode = "MissingAuthorizationHeader"
	InvalidAuthorizationParts  ErrorCode = "InvalidAuthorizationParts"
	InvalidAuthenticationType  ErrorCode = "InvalidAuthenticationType"
	InvalidSessionToken        ErrorCode = "InvalidSessionToken"
	SessionExpired             ErrorCode = "SessionExpired"
	UnknownSession             ErrorCode = "UnknownSession"
	RefreshTokenRequired       ErrorCode = "RefreshTokenRequired"
	MissingPassword            ErrorCode = "MissingPassword"
	InsufficientScope          ErrorCode = "InsufficientScope"
	InvalidJwtClaim            ErrorCode = "InvalidJwtClaim"
)

// Resource errors.
const (
	EntityNotFound      ErrorCode = "EntityNotFound"
	EntityAlreadyExists ErrorCode = "EntityAlreadyExists"
	HandlerNotFound     ErrorCode = "HandlerNotFound"
)

// Policy errors.
const (
	RegistrationsDisabled ErrorCode = "RegistrationsDisabled"
	PrereleaseNotAllowed  ErrorCode = "PrereleaseNotAllowed"
)

// Upload errors.
const (
	MissingFile        ErrorCode = "MissingFile"
	MissingContentType ErrorCode = "MissingContentType"
	InvalidContentType ErrorCode = "InvalidContentType"
	ObjectTooLarge     ErrorCode = "ObjectTooLarge"
)

// Server errors.
const (
	InternalServerError ErrorCode = "InternalServerError"
)

// statusByCode maps every error code to its HTTP status.
var statusByCode = map[ErrorCode]int{
	ValidationFailed:           http.StatusBadRequest,
	InvalidName:                http.StatusBadRequest,
	InvalidPassword:            http.StatusUnauthorized,
	InvalidUtf8:                http.StatusBadRequest,
	UnableToDecodeBase64:       http.StatusBadRequest,
	MissingPathParameter:       http.StatusBadRequest,
	UnableToParsePathParameter: http.StatusBadRequest,

	MissingAuthorizationHeader: http.StatusUnauthorized,
	InvalidAuthorizationParts:  http.StatusBadRequest,
	InvalidAuthenticationType:  http.StatusBadRequest,
	InvalidSessionToken:        http.StatusForbidden,
	SessionExpired:             http.StatusUnauthorized,
	UnknownSession:             http.StatusUnauthorized,
	RefreshTokenRequired:       http.StatusNotAcceptable,
	MissingPassword:            http.StatusUnauthorized,
	InsufficientScope:          http.StatusForbidden,
	InvalidJwtClaim:            http.StatusForbidden,

	EntityNotFound:      http.StatusNotFound,
	EntityAlreadyExists: http.StatusConflict,
	HandlerNotFound:     http.StatusNotFound,

	RegistrationsDisabled: http.StatusForbidden,
	PrereleaseNotAllowed:  http.StatusBadRequest,

	MissingFile:        http.StatusBadRequest,
	MissingContentType: http.StatusBadRequest,
	InvalidContentType: http.StatusBadRequest,
	ObjectTooLarge:     http.StatusRequestEntityTooLarge,

	InternalServerError: http.StatusInternalServerError,
}

// Status returns the HTTP status implied by code. Unknown codes map to 500.
func (c ErrorCode) Status() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a single error entry in a response envelope.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

// Error implements the error interface so an *Error can travel through
// ordinary error returns.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError creates an error entry without details.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorWithDetails creates an error entry carrying extra context that is
// safe to show to clients.
func NewErrorWithDetails(code ErrorCode, message string, details any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Response is the envelope shared by all JSON responses. Success responses
// carry Data; failures carry at least one entry in Errors.
type Response struct {
	Success bool    `json:"success"`
	Data    any     `json:"data,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// Ok wraps data in a success envelope.
func Ok(data any) Response {
	return Response{Success: true, Data: data}
}

// Err wraps one or more errors in a failure envelope.
func Err(errs ...*Error) Response {
	out := Response{Success: false}
	for _, e := range errs {
		out.Errors = append(out.Errors, *e)
	}
	return out
}

// WriteJSON writes a success envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Ok(data))
}

// WriteError writes a failure envelope. The HTTP status is derived from the
// first error's code.
func WriteError(w http.ResponseWriter, errs ...*Error) {
	status := http.StatusInternalServerError
	if len(errs) > 0 {
		status = errs[0].Code.Status()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Err(errs...))
}
