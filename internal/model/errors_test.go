package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKindFatal pins down which kinds abort the pipeline. The two cosmetic
// kinds are the only non-fatal ones.
func TestKindFatal(t *testing.T) {
	fatal := []Kind{
		PrereqMissing, FetchError, CleanError, CompileError, MergeError,
		IconError, MountTimeout, AssemblyError, VerifyError,
	}
	for _, k := range fatal {
		assert.True(t, k.Fatal(), "%s should be fatal", k)
	}

	assert.False(t, IconUnavailable.Fatal())
	assert.False(t, PresentationWarning.Fatal())
}

// TestKindExitCode verifies the kind → exit code mapping, in particular that
// MountTimeout is reported under the assembly exit code and that non-fatal
// kinds (which should never reach Execute) fall back to the general code.
func TestKindExitCode(t *testing.T) {
	assert.Equal(t, ExitPrereqMissing, PrereqMissing.ExitCode())
	assert.Equal(t, ExitFetchError, FetchError.ExitCode())
	assert.Equal(t, ExitCompileError, CompileError.ExitCode())
	assert.Equal(t, ExitMergeError, MergeError.ExitCode())
	assert.Equal(t, ExitIconError, IconError.ExitCode())
	assert.Equal(t, ExitAssemblyError, AssemblyError.ExitCode())
	assert.Equal(t, ExitAssemblyError, MountTimeout.ExitCode())
	assert.Equal(t, ExitVerifyError, VerifyError.ExitCode())
	assert.Equal(t, ExitGeneralError, CleanError.ExitCode(),
		"a clean failure is a filesystem problem, not a compile failure")
	assert.Equal(t, ExitGeneralError, PresentationWarning.ExitCode())
}

// TestStageErrorWrapping verifies the error chain behavior: message
// formatting, Unwrap, and AsStageError extraction through fmt wrapping.
func TestStageErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapStageError(StageAssemble, AssemblyError, "hdiutil convert failed", "check disk space", cause)

	assert.Contains(t, err.Error(), "assemble")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause), "Unwrap should expose the cause")

	// AsStageError must see through further wrapping.
	wrapped := fmt.Errorf("pipeline failed: %w", err)
	se := AsStageError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, AssemblyError, se.Kind)
	assert.Equal(t, "check disk space", se.Hint)

	assert.Nil(t, AsStageError(errors.New("plain")))
}
