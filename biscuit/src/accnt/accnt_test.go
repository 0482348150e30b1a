package accnt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUtaddAccumulates(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(250)
	require.EqualValues(t, 350, a.Userns)
}

func TestAddMergesTwoRecords(t *testing.T) {
	a := &Accnt_t{Userns: 10, Sysns: 20}
	b := &Accnt_t{Userns: 5, Sysns: 7}
	a.Add(b)
	require.EqualValues(t, 15, a.Userns)
	require.EqualValues(t, 27, a.Sysns)
}

func TestToRusageEncodesFourWords(t *testing.T) {
	a := &Accnt_t{Userns: 2_000_000_000, Sysns: 1_500_000_000}
	buf := a.To_rusage()
	require.Len(t, buf, 32)
}
