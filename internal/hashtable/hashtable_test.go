package hashtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mystyy01/VANTA/internal/ustr"
)

func TestSetGetInt(t *testing.T) {
	ht := MkHash(8)
	v, inserted := ht.Set(42, "hello")
	require.True(t, inserted)
	require.Equal(t, "hello", v)

	got, ok := ht.Get(42)
	require.True(t, ok)
	require.Equal(t, "hello", got)
}

func TestSetExistingKeyReturnsFalse(t *testing.T) {
	ht := MkHash(8)
	ht.Set(1, "a")
	v, inserted := ht.Set(1, "b")
	require.False(t, inserted)
	require.Equal(t, "a", v, "Set on an existing key returns the old value and does not overwrite")

	got, _ := ht.Get(1)
	require.Equal(t, "a", got)
}

func TestGetMissingKey(t *testing.T) {
	ht := MkHash(8)
	_, ok := ht.Get(99)
	require.False(t, ok)
}

func TestDel(t *testing.T) {
	ht := MkHash(8)
	ht.Set(5, "five")
	ht.Del(5)
	_, ok := ht.Get(5)
	require.False(t, ok)
}

func TestDelMissingKeyPanics(t *testing.T) {
	ht := MkHash(8)
	require.Panics(t, func() { ht.Del(123) })
}

func TestSizeAndElems(t *testing.T) {
	ht := MkHash(8)
	ht.Set(1, "a")
	ht.Set(2, "b")
	ht.Set(3, "c")
	require.Equal(t, 3, ht.Size())
	require.Len(t, ht.Elems(), 3)
}

func TestUstrKeys(t *testing.T) {
	ht := MkHash(8)
	ht.Set(ustr.Ustr("/bin/init"), 1)
	got, ok := ht.Get(ustr.Ustr("/bin/init"))
	require.True(t, ok)
	require.Equal(t, 1, got)

	_, ok = ht.Get(ustr.Ustr("/bin/other"))
	require.False(t, ok)
}

func TestStringKeys(t *testing.T) {
	ht := MkHash(8)
	ht.Set("name", "value")
	got, ok := ht.Get("name")
	require.True(t, ok)
	require.Equal(t, "value", got)
}

func TestUnsupportedKeyTypePanics(t *testing.T) {
	ht := MkHash(8)
	require.Panics(t, func() { ht.Set(3.14, "x") })
}

func TestIterStopsOnTrue(t *testing.T) {
	ht := MkHash(8)
	ht.Set(1, "a")
	ht.Set(2, "b")
	visited := 0
	stopped := ht.Iter(func(k, v interface{}) bool {
		visited++
		return true
	})
	require.True(t, stopped)
	require.Equal(t, 1, visited)
}
