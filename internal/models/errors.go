// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details string         `json:"details,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
	// Meta carries structured fields for business-rule refusals
	// (e.g. debt totals on a PENDING_DEBTS rejection).
	Meta map[string]any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// NewDuplicateRequestError signals that a pending friend request already
// exists for the ordered pair.
func NewDuplicateRequestError() *AppError {
	return &AppError{
		Code:    "DUPLICATE_REQUEST",
		Message: "Friend request already sent",
	}
}

// NewAlreadyFriendsError signals that a friendship edge already exists
// between the two users.
func NewAlreadyFriendsError() *AppError {
	return &AppError{
		Code:    "ALREADY_FRIENDS",
		Message: "You are already friends",
	}
}

// NewPendingDebtsError refuses friend removal while unpaid debts remain
// between the pair. Totals are in cents from the caller's perspective.
func NewPendingDebtsError(totalToReceive, totalToPay int64) *AppError {
	return &AppError{
		Code:    "PENDING_DEBTS",
		Message: "Cannot remove friend while debts are unsettled",
		Meta: map[string]any{
			"total_to_receive": totalToReceive,
			"total_to_pay":     totalToPay,
			"final_balance":    totalToReceive - totalToPay,
		},
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Meta:  appErr.Meta,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
