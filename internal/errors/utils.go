package errors

import (
	"errors"
)

// Wrap wraps an error with a kind, preserving view context when err is already a ViewError.
func Wrap(err error, kind Kind, code, message string) *ViewError {
	if err == nil {
		return nil
	}

	var ve *ViewError
	if errors.As(err, &ve) {
		return &ViewError{
			Kind:        kind,
			Code:        code,
			Message:     message,
			Cause:       ve,
			View:        ve.View,
			Source:      ve.Source,
			Line:        ve.Line,
			Column:      ve.Column,
			Recoverable: ve.Recoverable,
		}
	}

	return &ViewError{
		Kind:        kind,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: kind == KindPartialRender,
	}
}

// WrapIO wraps an error as an I/O error.
func WrapIO(err error, code, message string) *ViewError {
	return Wrap(err, KindIO, code, message)
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *ViewError {
	return Wrap(err, KindConfig, code, message)
}

// SourceOf returns the first non-empty Source found along the chain.
func SourceOf(err error) string {
	for err != nil {
		var ve *ViewError
		if !errors.As(err, &ve) {
			return ""
		}
		if ve.Source != "" {
			return ve.Source
		}
		err = ve.Cause
	}
	return ""
}
