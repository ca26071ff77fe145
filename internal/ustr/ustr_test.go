package ustr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEq(t *testing.T) {
	type testcase struct {
		name string
		a    Ustr
		b    Ustr
		exp  bool
	}

	testcases := []testcase{
		{name: "equal", a: Ustr("/a/b"), b: Ustr("/a/b"), exp: true},
		{name: "different length", a: Ustr("/a"), b: Ustr("/a/b"), exp: false},
		{name: "different bytes", a: Ustr("/a/b"), b: Ustr("/a/c"), exp: false},
		{name: "both empty", a: Ustr{}, b: Ustr{}, exp: true},
	}

	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			require.Equal(t, tcase.exp, tcase.a.Eq(tcase.b))
		})
	}
}

func TestIsAbsolute(t *testing.T) {
	require.True(t, Ustr("/a").IsAbsolute())
	require.False(t, Ustr("a").IsAbsolute())
	require.False(t, Ustr{}.IsAbsolute())
}

func TestIsdotIsdotdot(t *testing.T) {
	require.True(t, Ustr(".").Isdot())
	require.False(t, Ustr("..").Isdot())
	require.True(t, Ustr("..").Isdotdot())
	require.False(t, Ustr(".").Isdotdot())
}

func TestMkUstrSliceTruncatesAtNUL(t *testing.T) {
	buf := []byte{'i', 'n', 'i', 't', 0, 'g', 'a', 'r', 'b', 'a', 'g', 'e'}
	got := MkUstrSlice(buf)
	require.Equal(t, "init", got.String())
}

func TestMkUstrSliceNoNUL(t *testing.T) {
	buf := []byte{'a', 'b', 'c'}
	got := MkUstrSlice(buf)
	require.Equal(t, "abc", got.String())
}

func TestExtend(t *testing.T) {
	got := Ustr("/a").Extend(Ustr("b"))
	require.Equal(t, "/a/b", got.String())
}

func TestExtendStr(t *testing.T) {
	got := Ustr("/a").ExtendStr("b")
	require.Equal(t, "/a/b", got.String())
}

func TestIndexByteReverse(t *testing.T) {
	require.Equal(t, 4, Ustr("/a/b/c").IndexByteReverse('/'))
	require.Equal(t, -1, Ustr("abc").IndexByteReverse('/'))
}

func TestIndexByte(t *testing.T) {
	require.Equal(t, 0, Ustr("/a/b").IndexByte('/'))
	require.Equal(t, -1, Ustr("abc").IndexByte('/'))
}

func TestMkUstrRootAndDot(t *testing.T) {
	require.Equal(t, "/", MkUstrRoot().String())
	require.Equal(t, ".", MkUstrDot().String())
	require.Equal(t, "..", DotDot.String())
	require.Equal(t, "", MkUstr().String())
}
