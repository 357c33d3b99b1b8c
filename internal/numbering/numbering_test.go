package numbering

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "I-7-000042", Format("I", 7, 42))
	require.Equal(t, "PO-12-000001", Format(PurchaseOrderPrefix, 12, 1))
	require.True(t, IsDocumentCode(Format("Q", 3, 999999)))
	require.True(t, IsPurchaseOrderCode(Format(PurchaseOrderPrefix, 3, 5)))
	require.False(t, IsDocumentCode("INV-3-000001"))
	require.False(t, IsPurchaseOrderCode("I-3-000001"))
}

func TestNext(t *testing.T) {
	cases := map[string]int64{
		"":            1,
		"I-7-000041":  42,
		"legacy":      1,
		"I-7-":        1,
		"INV-2024-17": 18,
		"I-7-00x1":    1,
	}
	for code, want := range cases {
		require.Equal(t, want, Next(code), code)
	}
}

func TestSequentialCodesAreDistinctAndIncreasing(t *testing.T) {
	last := ""
	var prev int64
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := Format("I", 9, Next(last))
		require.True(t, IsDocumentCode(code))
		require.False(t, seen[code])
		seen[code] = true
		tail, ok := Tail(code)
		require.True(t, ok)
		require.Greater(t, tail, prev)
		prev = tail
		last = code
	}
}

func TestRebase(t *testing.T) {
	code, ok := Rebase("Q-4-000017", "I", 4)
	require.True(t, ok)
	require.Equal(t, "I-4-000017", code)

	_, ok = Rebase("draft", "I", 4)
	require.False(t, ok)
}
