package caller

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallerdumpWritesAtLeastOneFrame(t *testing.T) {
	var buf bytes.Buffer
	old := CallerdumpOut
	CallerdumpOut = &buf
	defer func() { CallerdumpOut = old }()

	Callerdump(0)
	require.NotEmpty(t, buf.String())
}

func TestDistinctCallerReportsFirstSeenOnly(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: true}
	first, trace := dc.Distinct()
	require.True(t, first)
	require.NotEmpty(t, trace)

	second, _ := dc.Distinct()
	require.False(t, second)
}

func TestDistinctCallerDisabledNeverReports(t *testing.T) {
	dc := &Distinct_caller_t{Enabled: false}
	seen, trace := dc.Distinct()
	require.False(t, seen)
	require.Empty(t, trace)
	require.Equal(t, 0, dc.Len())
}
