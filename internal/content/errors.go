// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "errors"

// Kind classifies data access failures. Kinds are comparable with errors.Is.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

const (
	// ErrNotFound means the requested record does not exist or is not visible.
	ErrNotFound Kind = "not found"

	// ErrUnauthenticated means the operation needs a valid session.
	ErrUnauthenticated Kind = "unauthenticated"

	// ErrUnconfigured means no backend client is available.
	ErrUnconfigured Kind = "backend not configured"

	// ErrUnavailable covers transport and unexpected backend failures.
	ErrUnavailable Kind = "backend unavailable"

	// ErrInvalid means the input failed local validation.
	ErrInvalid Kind = "invalid input"

	// ErrRejected means the backend refused a mutation with a message.
	ErrRejected Kind = "rejected by backend"
)

// Error is returned by every Store operation. Message is safe to show to
// the visitor; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Message returns the user-facing message carried by err.
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	if err == nil {
		return ""
	}
	return "Something went wrong. Please try again later."
}

const (
	msgUnconfigured   = "Backend client not configured. Check that OSITES_PB_URL is set."
	msgSiteGeneric    = "Unable to load site details. Please try again later."
	msgPageNotFound   = "Page not found."
	msgPageGeneric    = "Unable to load page content. Please try again later."
	msgEditGeneric    = "Unable to load page for editing. Please try again."
	msgUserGeneric    = "Unable to load user details. Please try again later."
	msgInvalidLogin   = "Invalid username or password."
	msgLoginGeneric   = "Unable to sign in right now. Please try again later."
	msgListGeneric    = "Unable to list pages. Please try again later."
	msgTitleRequired  = "Title is required."
	msgScopeRequired  = "A page must belong to a site or an owner."
	msgFormatInvalid  = `Content format must be "md" or "html".`
	msgNothingToWrite = "No changes to save."
	msgSessionExpired = "Your session has expired. Please log in again."
)

func unconfigured() *Error {
	return newError(ErrUnconfigured, msgUnconfigured, nil)
}
