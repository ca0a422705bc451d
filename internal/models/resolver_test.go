package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEndpointFlags(t *testing.T) {
	cases := []struct {
		name       string
		col        sql.NullString
		chat       bool
		completion bool
	}{
		{"null column", sql.NullString{}, true, true},
		{"empty string", sql.NullString{Valid: true}, true, true},
		{"bad json", sql.NullString{Valid: true, String: "{"}, true, true},
		{"chat only", sql.NullString{Valid: true, String: `["chat"]`}, true, false},
		{"completion only", sql.NullString{Valid: true, String: `["completion"]`}, false, true},
		{"both", sql.NullString{Valid: true, String: `["chat","completion"]`}, true, true},
		{"unknown entries ignored", sql.NullString{Valid: true, String: `["embedding"]`}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chat, completion := parseEndpointFlags(tc.col)
			require.Equal(t, tc.chat, chat)
			require.Equal(t, tc.completion, completion)
		})
	}
}
