package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "", expected: nil},
		{name: "blank", raw: "  ", expected: nil},
		{name: "single broker", raw: "localhost:9092", expected: []string{"localhost:9092"}},
		{name: "trims and drops empties", raw: " a:9092 , ,b:9092,", expected: []string{"a:9092", "b:9092"}},
		{name: "keeps first of duplicates", raw: "b:9092,a:9092,b:9092", expected: []string{"b:9092", "a:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.raw, ","))
		})
	}
}
