package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskdeck/internal/repo"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
)

// ValidationError is a client mistake in the request content.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e ValidationError) Error() string { return e.Message }

func invalid(msg string) ValidationError { return ValidationError{Message: msg} }

// NotFoundError names the missing entity ("Task not found").
type NotFoundError struct {
	Entity string
}

func (e NotFoundError) Error() string { return e.Entity + " not found" }
func (e NotFoundError) Unwrap() error { return repo.ErrNotFound }

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// storeErr classifies a repository error: not-found becomes NotFoundError for
// entity, everything else a StoreError.
func storeErr(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Entity: entity}
	}
	return &StoreError{Op: op, Err: err}
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrUnauthenticated
	}
	return nil
}

// validationFailure turns validator output into a ValidationError whose
// message comes from the first failing field.
func validationFailure(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeField(fe)
	}
	return ValidationError{Message: describeField(verrs[0]), Fields: fields}
}

func describeField(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return "Passwords do not match"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
