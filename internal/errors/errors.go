// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input such as an unknown targeting rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is returned when a campaign, template, user or tracking token does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// InvalidStateError is returned when an operation is not allowed for the campaign's current status.
type InvalidStateError struct {
	Operation string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s campaign in status %s", e.Operation, e.Status)
}

// DeliveryError wraps a failed send to one recipient. It is recorded on the target
// and never returned from a launch.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// UnauthorizedError is returned for bad credentials. Message is safe to show the caller.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewInvalidState(operation, status string) error {
	return &InvalidStateError{Operation: operation, Status: status}
}

func NewUnauthorized(message string) error {
	return &UnauthorizedError{Message: message}
}

func NewDelivery(recipient string, err error) error {
	return &DeliveryError{Recipient: recipient, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}
