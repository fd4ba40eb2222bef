package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransientIO marks storage failures that are retried next cycle.
	ErrTransientIO = errors.New("transient io error")
	// ErrTransientNetwork marks connect, timeout, and non-2xx failures.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrThresholdExceeded marks a failure streak past its configured limit.
	ErrThresholdExceeded = errors.New("failure threshold exceeded")
	// ErrFatalInit marks boot-time failures that prevent normal operation.
	ErrFatalInit = errors.New("fatal initialization error")
)

// Wrap builds an error message carrying component context while tagging it
// with the provided class marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransientIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the error is retryable on the next pass.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO) || errors.Is(err, ErrTransientNetwork)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "task failure"
	}
	return strings.Join(parts, ": ")
}
