package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid             = "CONFIG_INVALID"
	CodeDataFormat                = "DATA_FORMAT"
	CodeInvalidModel              = "INVALID_MODEL"
	CodeNonPositiveLatentVariance = "NONPOSITIVE_LATENT_VARIANCE"
	CodeUnderidentifiedModel      = "UNDERIDENTIFIED_MODEL"
	CodeNonConvergence            = "NON_CONVERGENCE"
	CodeInternalError             = "INTERNAL_ERROR"
)

// Common error constructors

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DataFormat(message string) *AppError {
	return New(CodeDataFormat, message)
}

// InvalidModel wraps a model-graph validation failure under its code.
func InvalidModel(cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidModel,
		Message: "model validation failed",
		Cause:   cause,
	}
}

// NonPositiveLatentVariance reports an indicator whose sample variance does not
// exceed its fixed residual, leaving nothing for the latent variable to explain.
func NonPositiveLatentVariance(indicator string, sampleVariance, fixedResidual float64) *AppError {
	return New(CodeNonPositiveLatentVariance,
		fmt.Sprintf("indicator %s: sample variance %.6f <= fixed residual %.6f, implied latent variance is non-positive",
			indicator, sampleVariance, fixedResidual))
}

// UnderidentifiedModel reports more free parameters than available moments.
func UnderidentifiedModel(freeParams, moments int) *AppError {
	return New(CodeUnderidentifiedModel,
		fmt.Sprintf("model has %d free parameters but only %d sample moments (df = %d)",
			freeParams, moments, moments-freeParams))
}

// NonConvergence reports optimizer failure with its final state.
func NonConvergence(iterations int, lastDiscrepancy float64, cause error) *AppError {
	return &AppError{
		Code: CodeNonConvergence,
		Message: fmt.Sprintf("estimator did not converge after %d iterations (last discrepancy %.6g)",
			iterations, lastDiscrepancy),
		Cause: cause,
	}
}
