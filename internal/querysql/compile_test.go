package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/ir"
	"github.com/roach88/blockjit/internal/queryir"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name   string
		query  *queryir.Select
		sql    string
		params []any
	}{
		{
			name:   "no filter",
			query:  &queryir.Select{From: queryir.TableCompiles, Columns: []string{"seq", "code"}},
			sql:    "SELECT seq, code FROM compiles ORDER BY seq ASC",
			params: nil,
		},
		{
			name: "equals",
			query: &queryir.Select{
				From:    queryir.TableThreadEvents,
				Filter:  &queryir.Equals{Field: "kind", Value: ir.String("done")},
				Columns: []string{"seq"},
			},
			sql:    "SELECT seq FROM thread_events WHERE kind = ? ORDER BY seq ASC",
			params: []any{"done"},
		},
		{
			name: "one of",
			query: &queryir.Select{
				From:    queryir.TableThreadEvents,
				Filter:  &queryir.OneOf{Field: "kind", Values: []ir.Value{ir.String("done"), ir.String("failed")}},
				Columns: []string{"seq"},
			},
			sql:    "SELECT seq FROM thread_events WHERE kind IN (?, ?) ORDER BY seq ASC",
			params: []any{"done", "failed"},
		},
		{
			name: "empty one of matches nothing",
			query: &queryir.Select{
				From:    queryir.TableThreadEvents,
				Filter:  &queryir.OneOf{Field: "kind"},
				Columns: []string{"seq"},
			},
			sql: "SELECT seq FROM thread_events WHERE 1 = 0 ORDER BY seq ASC",
		},
		{
			name: "nested and",
			query: &queryir.Select{
				From: queryir.TableCompiles,
				Filter: &queryir.And{Predicates: []queryir.Predicate{
					&queryir.Equals{Field: "run_id", Value: ir.String("r")},
					&queryir.And{Predicates: []queryir.Predicate{
						&queryir.Equals{Field: "ok", Value: ir.Bool(false)},
						&queryir.Equals{Field: "seq", Value: ir.Number(7)},
					}},
				}},
				Columns: []string{"seq", "message"},
			},
			sql:    "SELECT seq, message FROM compiles WHERE run_id = ? AND (ok = ? AND seq = ?) ORDER BY seq ASC",
			params: []any{"r", false, int64(7)},
		},
		{
			name: "empty and",
			query: &queryir.Select{
				From:    queryir.TableCompiles,
				Filter:  &queryir.And{},
				Columns: []string{"seq"},
			},
			sql: "SELECT seq FROM compiles WHERE 1 = 1 ORDER BY seq ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := Compile(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_ValuesAreNeverInterpolated(t *testing.T) {
	evil := "x'; DROP TABLE runs; --"
	sql, params, err := Compile(&queryir.Select{
		From:    queryir.TableThreadEvents,
		Filter:  &queryir.Equals{Field: "target", Value: ir.String(evil)},
		Columns: []string{"seq"},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{evil}, params)
}

func TestCompile_RejectsInvalid(t *testing.T) {
	_, _, err := Compile(&queryir.Select{
		From:    queryir.TableThreadEvents,
		Filter:  &queryir.Equals{Field: "target; DROP TABLE runs", Value: ir.String("x")},
		Columns: []string{"seq"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")

	_, _, err = Compile(nil)
	require.Error(t, err)
}

func TestValueToParam(t *testing.T) {
	tests := []struct {
		name string
		in   ir.Value
		want any
	}{
		{name: "string", in: ir.String("a"), want: "a"},
		{name: "whole number", in: ir.Number(3), want: int64(3)},
		{name: "fraction", in: ir.Number(2.5), want: 2.5},
		{name: "bool", in: ir.Bool(true), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := valueToParam(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := valueToParam(ir.Color{})
	require.Error(t, err)
}
