package accnt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUtaddSystadd(t *testing.T) {
	var a Accnt_t
	a.Utadd(1500)
	a.Systadd(2500)
	require.EqualValues(t, 1500, a.Userns)
	require.EqualValues(t, 2500, a.Sysns)

	a.Utadd(500)
	require.EqualValues(t, 2000, a.Userns)
}

func TestAddMergesTwoRecords(t *testing.T) {
	var a, b Accnt_t
	a.Utadd(100)
	a.Systadd(200)
	b.Utadd(10)
	b.Systadd(20)

	a.Add(&b)
	require.EqualValues(t, 110, a.Userns)
	require.EqualValues(t, 220, a.Sysns)
}

func TestToRusageLayout(t *testing.T) {
	var a Accnt_t
	a.Utadd(2_500_000_000) // 2.5s
	a.Systadd(1_000_000)   // 1ms

	ru := a.To_rusage()
	require.Len(t, ru, 32)

	type testcase struct {
		name string
		off  int
		exp  int
	}
	testcases := []testcase{
		{name: "user seconds", off: 0, exp: 2},
		{name: "user microseconds", off: 8, exp: 500000},
		{name: "sys seconds", off: 16, exp: 0},
		{name: "sys microseconds", off: 24, exp: 1000},
	}
	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			got := int64(0)
			for i := 7; i >= 0; i-- {
				got = got<<8 | int64(ru[tcase.off+i])
			}
			require.EqualValues(t, tcase.exp, got)
		})
	}
}

func TestFetchLocksAndReturnsRusage(t *testing.T) {
	var a Accnt_t
	a.Utadd(1_000_000_000)
	got := a.Fetch()
	require.Len(t, got, 32)
}

func TestFinishAddsElapsedToSysns(t *testing.T) {
	var a Accnt_t
	start := a.Now()
	a.Finish(start)
	require.GreaterOrEqual(t, a.Sysns, int64(0))
}
