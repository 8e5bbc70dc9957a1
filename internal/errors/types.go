// Package errors defines the structured error taxonomy of the view engine.
//
// Every failure produced while generating, compiling, composing or executing
// a view is a *ViewError carrying a Kind. Kinds decide propagation: entry view
// failures surface to the caller, while partial failures are recovered and
// rendered as an inline fragment (see Fragment).
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a view engine failure.
type Kind string

const (
	KindViewNotFound       Kind = "view_not_found"
	KindLayoutCycle        Kind = "layout_cycle"
	KindRenderBodyContract Kind = "render_body_contract"
	KindCodeGeneration     Kind = "code_generation"
	KindCreateFunction     Kind = "create_function"
	KindPersist            Kind = "persist"
	KindPartialRender      Kind = "partial_render"
	KindExecute            Kind = "execute"
	KindConfig             Kind = "config"
	KindIO                 Kind = "io"
)

// ViewError is a structured error with view context.
type ViewError struct {
	Kind        Kind
	Code        string
	View        string
	Message     string
	Source      string
	Line        int
	Column      int
	Cause       error
	Recoverable bool
}

// Error implements the error interface.
func (e *ViewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.View != "" {
		location := "view:" + e.View
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ViewError) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, and on Code when the target carries one.
func (e *ViewError) Is(target error) bool {
	var t *ViewError
	if !errors.As(target, &t) {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithView sets the view the error belongs to.
func (e *ViewError) WithView(view string) *ViewError {
	e.View = view
	return e
}

// WithSource attaches the offending source text.
func (e *ViewError) WithSource(source string) *ViewError {
	e.Source = source
	return e
}

// WithLocation adds a line/column position inside the view.
func (e *ViewError) WithLocation(line, column int) *ViewError {
	e.Line = line
	e.Column = column
	return e
}

// Sentinels for errors.Is checks. They match any ViewError of the same kind.
var (
	ErrViewNotFound       = &ViewError{Kind: KindViewNotFound}
	ErrLayoutCycle        = &ViewError{Kind: KindLayoutCycle}
	ErrRenderBodyContract = &ViewError{Kind: KindRenderBodyContract}
	ErrCodeGeneration     = &ViewError{Kind: KindCodeGeneration}
	ErrCreateFunction     = &ViewError{Kind: KindCreateFunction}
	ErrPersist            = &ViewError{Kind: KindPersist}
	ErrPartialRender      = &ViewError{Kind: KindPartialRender}
	ErrExecute            = &ViewError{Kind: KindExecute}
	ErrConfig             = &ViewError{Kind: KindConfig}
)

// NewViewNotFoundError reports a view no locator could resolve.
func NewViewNotFoundError(view string) *ViewError {
	return &ViewError{
		Kind:    KindViewNotFound,
		Code:    "VIEW_NOT_FOUND",
		View:    view,
		Message: fmt.Sprintf("view '%s' not found", view),
	}
}

// NewLayoutCycleError reports a layout chain that re-enters itself.
func NewLayoutCycleError(view string, chain []string) *ViewError {
	return &ViewError{
		Kind:    KindLayoutCycle,
		Code:    "LAYOUT_CYCLE",
		View:    view,
		Message: fmt.Sprintf("layout cycle: %s", strings.Join(chain, " -> ")),
	}
}

// NewRenderBodyContractError reports a layout that did not call renderBody exactly once.
func NewRenderBodyContractError(view string, calls int) *ViewError {
	msg := fmt.Sprintf("layout must call renderBody exactly once, called %d times", calls)
	if calls < 0 {
		msg = "renderBody called outside of a layout"
	}
	return &ViewError{
		Kind:    KindRenderBodyContract,
		Code:    "RENDER_BODY",
		View:    view,
		Message: msg,
	}
}

// NewCodeGenerationError reports a splitter/generator failure.
func NewCodeGenerationError(message, source string) *ViewError {
	return &ViewError{
		Kind:    KindCodeGeneration,
		Code:    "CODEGEN",
		Message: message,
		Source:  source,
	}
}

// NewCreateFunctionError reports generated code that does not parse.
func NewCreateFunctionError(view, generated string, cause error) *ViewError {
	return &ViewError{
		Kind:    KindCreateFunction,
		Code:    "CREATE_FUNCTION",
		View:    view,
		Message: "generated code does not compile",
		Source:  generated,
		Cause:   cause,
	}
}

// NewPersistError reports a durable write or reload failure.
func NewPersistError(view, generated string, cause error) *ViewError {
	return &ViewError{
		Kind:    KindPersist,
		Code:    "PERSIST",
		View:    view,
		Message: "persisting compiled view failed",
		Source:  generated,
		Cause:   cause,
	}
}

// NewPartialRenderError wraps a nested failure that is recovered inline.
// Cancellation of the render is never recoverable.
func NewPartialRenderError(view string, cause error) *ViewError {
	cancelled := errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)
	return &ViewError{
		Kind:        KindPartialRender,
		Code:        "PARTIAL",
		View:        view,
		Message:     fmt.Sprintf("partial '%s' failed to render", view),
		Cause:       cause,
		Recoverable: !cancelled,
	}
}

// NewExecuteError wraps a failure raised while running a compiled view.
func NewExecuteError(view string, cause error) *ViewError {
	return &ViewError{
		Kind:    KindExecute,
		Code:    "EXECUTE",
		View:    view,
		Message: "executing view failed",
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ViewError {
	return &ViewError{
		Kind:    KindConfig,
		Code:    code,
		Message: message,
	}
}

// KindOf returns the Kind of the outermost ViewError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ve *ViewError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}

// IsRecoverable checks if an error may be substituted inline.
func IsRecoverable(err error) bool {
	var ve *ViewError
	if errors.As(err, &ve) {
		return ve.Recoverable
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
