package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatIncludesLocation(t *testing.T) {
	r := NewReporter("test.kiln", "fn f() {\n  bogus\n}\n")
	err := &CompilerError{
		Kind:     ParseErrorKind,
		Message:  "unexpected token",
		Position: Position{Line: 2, Column: 3, Offset: 12},
		Length:   5,
	}
	out := r.Format(err)
	assert.True(t, strings.Contains(out, "test.kiln:2:3"), "expected location in output, got: %s", out)
	assert.True(t, strings.Contains(out, "unexpected token"), "expected message in output, got: %s", out)
}

func TestNewInternalInvariantCarriesStack(t *testing.T) {
	err := NewInternalInvariant("analyzer queried on torn state %s", "fn")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "torn state"), "expected message embedded, got %s", err.Error())
}
