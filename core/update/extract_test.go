package update_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	null "gopkg.in/guregu/null.v3"

	"minigram/core/update"
)

func TestExtract(t *testing.T) {
	data := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": "deep",
			},
			"s": "leaf",
		},
		"n": nil,
	}

	tests := []struct {
		name string
		path string
		def  interface{}
		want interface{}
	}{
		{"top level", "n", "def", nil},
		{"deep", "a.b.c", nil, "deep"},
		{"missing leaf", "a.b.x", "def", "def"},
		{"missing middle", "a.x.c", "def", "def"},
		{"missing root", "x.b.c", nil, nil},
		{"through scalar", "a.s.c", "def", "def"},
		{"through nil", "n.c", 7, 7},
		{"intermediate map", "a.b", nil, map[string]interface{}{"c": "deep"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, update.Extract(data, tt.path, tt.def))
		})
	}

	assert.Equal(t, "def", update.Extract(nil, "a", "def"))
}

func TestExtractInt(t *testing.T) {
	data := map[string]interface{}{
		"number": json.Number("12"),
		"float":  float64(13),
		"frac":   1.5,
		"text":   "14",
	}

	assert.Equal(t, null.IntFrom(12), update.ExtractInt(data, "number"))
	assert.Equal(t, null.IntFrom(13), update.ExtractInt(data, "float"))
	assert.False(t, update.ExtractInt(data, "frac").Valid)
	assert.False(t, update.ExtractInt(data, "text").Valid)
	assert.False(t, update.ExtractInt(data, "missing").Valid)
}
