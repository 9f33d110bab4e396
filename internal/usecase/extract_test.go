package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"shop-assistant/internal/llm"
)

func TestParseAddToCart(t *testing.T) {
	cases := []struct {
		raw        string
		name       string
		qty        int64
		incomplete bool
	}{
		{"Blue Widget|2", "Blue Widget", 2, false},
		{"  \"Blue Widget | 3\"\nextra line", "Blue Widget", 3, false},
		{"- Blue Widget|", "Blue Widget", 1, false},
		{"Blue Widget|two", "Blue Widget", 1, false},
		{"Blue Widget|0", "Blue Widget", 1, false},
		{"Blue Widget", "Blue Widget", 1, false},
		{"none", "", 0, true},
		{"", "", 0, true},
		{"N/A|3", "", 0, true},
	}
	for _, tc := range cases {
		got := parseAddToCart(tc.raw)
		require.Equal(t, tc.incomplete, got.Incomplete, tc.raw)
		if !tc.incomplete {
			require.Equal(t, ProductQuantity{Name: tc.name, Quantity: tc.qty}, got.Value, tc.raw)
		}
		require.Equal(t, tc.raw, got.Raw)
	}
}

func TestParseQuantityChange(t *testing.T) {
	cases := []struct {
		raw        string
		qty        int64
		incomplete bool
	}{
		{"Blue Widget|4", 4, false},
		{"Blue Widget|0", 0, false},
		{"Blue Widget|-2", 0, true},
		{"Blue Widget|lots", 0, true},
		{"Blue Widget|", 0, true},
		{"Blue Widget", 0, true},
		{"none|2", 0, true},
	}
	for _, tc := range cases {
		got := parseQuantityChange(tc.raw)
		require.Equal(t, tc.incomplete, got.Incomplete, tc.raw)
		if !tc.incomplete {
			require.Equal(t, "Blue Widget", got.Value.Name)
			require.Equal(t, tc.qty, got.Value.Quantity)
		}
	}
}

func TestParseSelection(t *testing.T) {
	require.True(t, parseSelection("ALL").Value.All)
	require.True(t, parseSelection("'all'").Value.All)
	require.Equal(t, "Blue Widget", parseSelection("Blue Widget.").Value.ProductName)
	require.True(t, parseSelection("none").Incomplete)
	require.True(t, parseSelection("  \n ").Incomplete)
}

func TestParseProfilePatch(t *testing.T) {
	got := parseProfilePatch("name|Ann Lee, phone number|555-0100, address|1 Main St, Apt 4")
	require.False(t, got.Incomplete)
	require.Equal(t, "Ann Lee", *got.Value.Name)
	require.Equal(t, "555-0100", *got.Value.Phone)
	require.Equal(t, "1 Main St, Apt 4", *got.Value.Address)

	got = parseProfilePatch("Phone|555-0199")
	require.False(t, got.Incomplete)
	require.Nil(t, got.Value.Name)
	require.Nil(t, got.Value.Address)
	require.Equal(t, "555-0199", *got.Value.Phone)

	got = parseProfilePatch("name|none, phone|")
	require.True(t, got.Incomplete)

	require.True(t, parseProfilePatch("none").Incomplete)
	require.True(t, parseProfilePatch("email|a@b.c").Incomplete)
}

func TestExtraction_UpstreamFailureIsFlagged(t *testing.T) {
	m := seededStore()
	l := &fakeLLM{extractErr: llm.ErrUnavailable}
	svc := newTestService(t, l, m)
	tt := turn{prompt: "add two widgets"}

	ex := svc.extractAddToCart(context.Background(), tt)
	require.True(t, ex.Upstream)
	require.True(t, ex.Incomplete)

	sel := svc.extractSelection(context.Background(), tt)
	require.True(t, sel.Upstream)
}
