package model

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage that produced an error, a warning, or a
// state transition. The driver prints the stage name with every failure so
// operators can re-run the corresponding standalone subcommand.
type Stage string

const (
	StagePrereq   Stage = "prereq"
	StageClean    Stage = "clean"
	StageCompile  Stage = "compile"
	StageMerge    Stage = "merge"
	StageIcon     Stage = "icon"
	StageAssemble Stage = "assemble"
	StageVerify   Stage = "verify"
)

// Kind classifies a stage failure. Fatal kinds unwind the pipeline driver to
// the Failed state; non-fatal kinds are collected as warnings and surfaced in
// the final report without blocking progress.
type Kind string

const (
	// PrereqMissing: a required external tool is absent from PATH.
	// The pipeline aborts before any mutation.
	PrereqMissing Kind = "prereq-missing"

	// FetchError: a tool-cache download failed, or the downloaded file did
	// not pass the executable smoke test.
	FetchError Kind = "fetch-error"

	// CleanError: previous build output or a stale image could not be
	// removed. A filesystem problem, not a build failure, so it exits with
	// the general code.
	CleanError Kind = "clean-error"

	// CompileError: the bundler ran but the expected output bundle is
	// absent. Detected by an existence check, not the exit code alone.
	CompileError Kind = "compile-error"

	// MergeError: the fused executable's architecture set does not match
	// the requested set, or fewer than two distinct inputs were given.
	MergeError Kind = "merge-error"

	// IconError: a converter tool is available but a specific size
	// conversion failed. Fatal, since a partial icon set would ship a
	// malformed container.
	IconError Kind = "icon-error"

	// MountTimeout: the transient volume did not appear within the
	// readiness poll window after attach.
	MountTimeout Kind = "mount-timeout"

	// AssemblyError: the final image file is absent or zero-length after
	// finalization.
	AssemblyError Kind = "assembly-error"

	// VerifyError: post-build inspection found a broken bundle (missing or
	// non-executable binary, wrong architecture set), or the bundle path
	// given to the verifier does not exist.
	VerifyError Kind = "verify-error"

	// IconUnavailable: no icon converter tool exists on this host.
	// Non-fatal; downstream stages substitute the default icon.
	IconUnavailable Kind = "icon-unavailable"

	// PresentationWarning: the cosmetic window/icon arrangement step
	// failed. Non-fatal, logged only.
	PresentationWarning Kind = "presentation-warning"
)

// Fatal reports whether the kind aborts the pipeline.
func (k Kind) Fatal() bool {
	switch k {
	case IconUnavailable, PresentationWarning:
		return false
	default:
		return true
	}
}

// ExitCode defines process exit codes for CLI consumers and CI systems.
type ExitCode int

const (
	ExitSuccess       ExitCode = 0
	ExitGeneralError  ExitCode = 1
	ExitPrereqMissing ExitCode = 2
	ExitFetchError    ExitCode = 3
	ExitCompileError  ExitCode = 4
	ExitMergeError    ExitCode = 5
	ExitIconError     ExitCode = 6
	ExitAssemblyError ExitCode = 7
	ExitVerifyError   ExitCode = 8
)

// ExitCode maps an error kind to its process exit code. MountTimeout is an
// assembly-stage failure and shares the assembly exit code.
func (k Kind) ExitCode() ExitCode {
	switch k {
	case PrereqMissing:
		return ExitPrereqMissing
	case FetchError:
		return ExitFetchError
	case CompileError:
		return ExitCompileError
	case MergeError:
		return ExitMergeError
	case IconError:
		return ExitIconError
	case MountTimeout, AssemblyError:
		return ExitAssemblyError
	case VerifyError:
		return ExitVerifyError
	default:
		return ExitGeneralError
	}
}

// StageError is the error type returned by every pipeline stage. It carries
// the stage name, the taxonomy kind, and a remediation hint printed alongside
// the failure so the operator knows what to fix before re-running.
type StageError struct {
	// Stage is the pipeline stage that failed.
	Stage Stage

	// Kind classifies the failure and determines the exit code.
	Kind Kind

	// Message is the human-readable failure description.
	Message string

	// Hint suggests a remediation ("install Xcode command line tools",
	// "check network connectivity"). May be empty.
	Hint string

	// Err is the underlying cause, if any.
	Err error
}

// Error satisfies the error interface.
func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError without an underlying cause.
func NewStageError(stage Stage, kind Kind, message, hint string) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: message, Hint: hint}
}

// WrapStageError creates a StageError wrapping an underlying cause.
func WrapStageError(stage Stage, kind Kind, message, hint string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: message, Hint: hint, Err: err}
}

// AsStageError extracts a *StageError from an error chain, or nil.
func AsStageError(err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// Warning records a non-fatal stage outcome. The driver collects warnings
// and prints them in the final report.
type Warning struct {
	Stage   Stage
	Kind    Kind
	Message string
}

// String renders the warning for the final report.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
