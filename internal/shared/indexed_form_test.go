package shared

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexedRowsOrdersByNumericIndex(t *testing.T) {
	values := url.Values{
		"items[10][description]": {"ten"},
		"items[2][description]":  {"two"},
		"items[2][quantity]":     {" 3 "},
		"items[x][description]":  {"ignored"},
		"items[1]description":    {"ignored"},
		"other[0][description]":  {"ignored"},
		"client_id":              {"4"},
	}
	rows := IndexedRows(values, "items")
	require.Len(t, rows, 2)
	require.Equal(t, 2, rows[0].Index)
	require.Equal(t, "two", rows[0].Get("description"))
	require.Equal(t, "3", rows[0].Get("quantity"))
	require.Equal(t, 10, rows[1].Index)
	require.Equal(t, "", rows[1].Get("quantity"))
}

func TestUserSafeMessage(t *testing.T) {
	require.Equal(t, "line 2: validation failed", UserSafeMessage(fmt.Errorf("line 2: %w", ErrValidation)))
	require.Equal(t, "An unexpected error occurred. Please try again.", UserSafeMessage(errors.New("pq: connection refused")))
	require.Empty(t, UserSafeMessage(nil))
}

func TestPagination(t *testing.T) {
	p := NewPagination(3, 0, 45)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 40, p.Offset())

	page, perPage := PageFromQuery(url.Values{"page": {"-1"}, "per_page": {"1000"}})
	require.Equal(t, 1, page)
	require.Equal(t, 200, perPage)
}
