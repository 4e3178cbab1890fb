package library_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/blockjit/internal/ir"
)

func TestStringBlocks(t *testing.T) {
	tests := []struct {
		name   string
		blocks []string
		want   ir.Value
	}{
		{
			name: "exactly is case sensitive",
			blocks: []string{
				block("expr", "string_exactly", inputs("STRING1", "a", "STRING2", "b")),
				txt("a", "Apple"), txt("b", "apple"),
			},
			want: ir.Bool(false),
		},
		{
			name: "exactly",
			blocks: []string{
				block("expr", "string_exactly", inputs("STRING1", "a", "STRING2", "b")),
				txt("a", "apple"), txt("b", "apple"),
			},
			want: ir.Bool(true),
		},
		{
			name: "is uppercase",
			blocks: []string{
				block("expr", "string_is", inputs("STRING", "s"), fields("CONVERT", "UPPERCASE")),
				txt("s", "LOUD"),
			},
			want: ir.Bool(true),
		},
		{
			name: "is lowercase",
			blocks: []string{
				block("expr", "string_is", inputs("STRING", "s"), fields("CONVERT", "lowercase")),
				txt("s", "Mixed"),
			},
			want: ir.Bool(false),
		},
		{
			name: "repeat",
			blocks: []string{
				block("expr", "string_repeat", inputs("STRING", "s", "NUMBER", "n")),
				txt("s", "ab"), num("n", "3"),
			},
			want: ir.String("ababab"),
		},
		{
			name: "replace",
			blocks: []string{
				block("expr", "string_replace", inputs("REPLACE", "old", "WITH", "new", "STRING", "s")),
				txt("old", "o"), txt("new", "0"), txt("s", "foo boo"),
			},
			want: ir.String("f00 b00"),
		},
		{
			name: "reverse",
			blocks: []string{
				block("expr", "string_reverse", inputs("STRING", "s")),
				txt("s", "stressed"),
			},
			want: ir.String("desserts"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval(t, nil, tt.blocks...))
		})
	}
}
