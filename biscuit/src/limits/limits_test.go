package limits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTakenRefusesBeyondBudget(t *testing.T) {
	var s Sysatomic_t
	s.Given(10)
	require.True(t, s.Taken(10))
	require.False(t, s.Taken(1))
	require.EqualValues(t, 0, s.Remaining())
}

func TestGiveRestoresBudget(t *testing.T) {
	var s Sysatomic_t
	s.Given(5)
	require.True(t, s.Take())
	s.Give()
	require.EqualValues(t, 5, s.Remaining())
}

func TestDefaultSyslimitHasPositiveBudgets(t *testing.T) {
	l := MkSysLimit()
	require.Positive(t, l.Sysprocs.Remaining())
	require.Positive(t, l.Blocks.Remaining())
}
