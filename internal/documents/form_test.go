package documents

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

func TestParseFormOrdersAndSkipsBlankLines(t *testing.T) {
	values := url.Values{
		"type":                        {"invoice"},
		"status":                      {"Sent"},
		"client_id":                   {"12"},
		"issued_date":                 {"2026-03-01"},
		"due_date":                    {"2026-03-31"},
		"items[10][description]":      {"Delivery"},
		"items[10][quantity]":         {"1"},
		"items[10][unit_price]":       {"25"},
		"items[2][inventory_item_id]": {"4"},
		"items[2][quantity]":          {"3"},
		"items[2][unit_price]":        {"100.00"},
		"items[2][discount]":          {"10"},
		"items[5][description]":       {"   "},
		"items[5][quantity]":          {"9"},
		"items[abc][description]":     {"ignored"},
	}

	input, err := ParseForm(values, Lenient)
	require.NoError(t, err)
	require.Equal(t, TypeInvoice, input.Type)
	require.Equal(t, StatusSent, input.Status)
	require.Equal(t, int64(12), input.ClientID)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), input.IssuedDate)
	require.NotNil(t, input.DueDate)
	require.Len(t, input.Lines, 2)
	require.Equal(t, int64(4), input.Lines[0].InventoryItemID)
	require.Equal(t, int64(3), input.Lines[0].Quantity)
	require.Equal(t, "Delivery", input.Lines[1].Description)
}

func TestParseLinesQuantityModes(t *testing.T) {
	values := url.Values{
		"items[0][description]": {"Labour"},
		"items[0][quantity]":    {"-2"},
		"items[0][unit_price]":  {"10"},
		"items[1][description]": {"Parts"},
		"items[1][quantity]":    {"abc"},
	}

	lines, err := ParseLines(values, Lenient)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, int64(1), lines[0].Quantity)
	require.Equal(t, int64(1), lines[1].Quantity)

	_, err = ParseLines(values, Strict)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestParseLinesRejectsBadAmounts(t *testing.T) {
	cases := []url.Values{
		{"items[0][description]": {"x"}, "items[0][unit_price]": {"-1"}},
		{"items[0][description]": {"x"}, "items[0][discount]": {"101"}},
		{"items[0][description]": {"x"}, "items[0][unit_price]": {"ten"}},
		{"items[0][inventory_item_id]": {"abc"}},
	}
	for _, values := range cases {
		_, err := ParseLines(values, Lenient)
		require.ErrorIs(t, err, shared.ErrValidation, values)
	}
}

func TestParseFormRejectsUnknownTypeAndStatus(t *testing.T) {
	_, err := ParseForm(url.Values{"type": {"receipt"}}, Lenient)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseForm(url.Values{"status": {"archived"}}, Lenient)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ParseForm(url.Values{"due_date": {"31/03/2026"}}, Lenient)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, StatusDraft.CanTransition(StatusSent))
	require.True(t, StatusSent.CanTransition(StatusPaid))
	require.True(t, StatusPaid.CanTransition(StatusSent))
	require.True(t, StatusOverdue.CanTransition(StatusOverdue))
	require.False(t, StatusConverted.CanTransition(StatusDraft))
	require.False(t, StatusIssued.CanTransition(StatusConverted))
	require.False(t, StatusCredit.CanTransition(StatusPaid))

	for _, s := range []Status{StatusCancelled, StatusConverted, StatusCredit} {
		require.True(t, s.Terminal())
	}
	require.False(t, StatusOverdue.Terminal())
}

func TestTypeCodes(t *testing.T) {
	require.Equal(t, "I", TypeInvoice.Prefix())
	require.Equal(t, "Q", TypeQuote.Prefix())
	require.True(t, TypeInvoice.ConsumesStock())
	require.False(t, TypeQuote.ConsumesStock())

	typ, err := ParseType(" Quote ")
	require.NoError(t, err)
	require.Equal(t, TypeQuote, typ)
}
