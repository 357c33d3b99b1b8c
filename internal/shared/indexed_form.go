package shared

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// IndexedRow is one group of fields submitted as prefix[index][field].
type IndexedRow struct {
	Index  int
	Fields map[string]string
}

// Get returns the trimmed value of field.
func (r IndexedRow) Get(field string) string {
	return strings.TrimSpace(r.Fields[field])
}

// IndexedRows groups keys shaped like prefix[3][quantity] by index and returns
// the rows ordered by numeric index. Keys with a non-numeric index are ignored.
func IndexedRows(values url.Values, prefix string) []IndexedRow {
	rows := map[int]map[string]string{}
	lead := prefix + "["
	for key, vals := range values {
		if !strings.HasPrefix(key, lead) || len(vals) == 0 {
			continue
		}
		rest := key[len(lead):]
		closeIdx := strings.Index(rest, "]")
		if closeIdx <= 0 {
			continue
		}
		index, err := strconv.Atoi(rest[:closeIdx])
		if err != nil || index < 0 {
			continue
		}
		rest = rest[closeIdx+1:]
		if !strings.HasPrefix(rest, "[") || !strings.HasSuffix(rest, "]") || len(rest) < 3 {
			continue
		}
		field := rest[1 : len(rest)-1]
		if rows[index] == nil {
			rows[index] = map[string]string{}
		}
		rows[index][field] = vals[0]
	}
	indexes := make([]int, 0, len(rows))
	for idx := range rows {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([]IndexedRow, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, IndexedRow{Index: idx, Fields: rows[idx]})
	}
	return out
}
