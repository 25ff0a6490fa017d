package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var te *TutorError
	if !errors.As(err, &te) {
		te = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", te.Message))
	if te.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", te.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", te.Code))

	return sb.String()
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var te *TutorError
	if !errors.As(err, &te) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": te.Code,
		"message":    te.Message,
		"category":   string(te.Category),
		"severity":   string(te.Severity),
		"retryable":  te.Retryable,
	}
	if te.Cause != nil {
		result["cause"] = te.Cause.Error()
	}
	if te.Suggestion != "" {
		result["suggestion"] = te.Suggestion
	}
	for k, v := range te.Details {
		result["detail_"+k] = v
	}

	return result
}
