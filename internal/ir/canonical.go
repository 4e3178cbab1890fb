package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces deterministic JSON for IR dumps and golden
// files: object keys sorted by UTF-16 code units, no HTML escaping, strings
// NFC normalized. Non-finite numbers are written as strings since JSON has
// no literal for them.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		return marshalCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return marshalCanonicalString(buf, FormatNumber(val))
		}
		if val == 0 && math.Signbit(val) {
			buf.WriteString("-0")
			return nil
		}
		buf.WriteString(FormatNumber(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return compareUTF16(keys[i], keys[j]) < 0 })
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := marshalCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// compareUTF16 orders strings by UTF-16 code units.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// DumpRepresentation converts a representation into a plain tree suitable
// for MarshalCanonical.
func DumpRepresentation(rep *Representation) map[string]any {
	procs := make(map[string]any, len(rep.Procedures))
	for variant, s := range rep.Procedures {
		procs[variant] = DumpScript(s)
	}
	return map[string]any{
		"ir_version": IRVersion,
		"entry":      DumpScript(rep.Entry),
		"procedures": procs,
	}
}

// DumpScript converts one script into a plain tree.
func DumpScript(s *Script) map[string]any {
	out := map[string]any{
		"top_block_id":   s.TopBlockID,
		"is_procedure":   s.IsProcedure,
		"is_warp":        s.IsWarp,
		"warp_timer":     s.WarpTimer,
		"yields":         s.Yields,
		"executable_hat": s.ExecutableHat,
	}
	if s.IsProcedure {
		out["procedure_code"] = s.ProcedureCode
		out["procedure_variant"] = s.ProcedureVariant
		out["arguments"] = stringsToAny(s.Arguments)
	}
	if len(s.DependedProcedures) > 0 {
		out["depended_procedures"] = stringsToAny(s.DependedProcedures)
	}
	if s.Stack != nil {
		out["stack"] = dumpStack(s.Stack)
	}
	return out
}

func dumpStack(s *Stack) []any {
	blocks := make([]any, len(s.Blocks))
	for i, b := range s.Blocks {
		node := map[string]any{"opcode": string(b.Opcode)}
		if b.Yields {
			node["yields"] = true
		}
		if len(b.Args) > 0 {
			node["args"] = dumpArgs(b.Args)
		}
		blocks[i] = node
	}
	return blocks
}

func dumpInput(in *Input) map[string]any {
	node := map[string]any{
		"opcode": string(in.Opcode),
		"type":   in.Type.String(),
	}
	if in.Yields {
		node["yields"] = true
	}
	if len(in.Args) > 0 {
		node["args"] = dumpArgs(in.Args)
	}
	return node
}

func dumpArgs(args Args) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = dumpArg(v)
	}
	return out
}

func dumpArg(v any) any {
	switch x := v.(type) {
	case *Input:
		return dumpInput(x)
	case *Stack:
		return dumpStack(x)
	case []*Input:
		list := make([]any, len(x))
		for i, in := range x {
			list[i] = dumpInput(in)
		}
		return list
	case map[int]*Stack:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[strconv.Itoa(k)] = dumpStack(s)
		}
		return out
	case map[string]*Input:
		out := make(map[string]any, len(x))
		for k, in := range x {
			out[k] = dumpInput(in)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	case *Variable:
		if x == nil {
			return nil
		}
		return map[string]any{"scope": string(x.Scope), "id": x.ID, "name": x.Name}
	case Number:
		return float64(x)
	case String:
		return string(x)
	case Bool:
		return bool(x)
	case Color:
		return []any{x[0], x[1], x[2]}
	case string, bool, int, float64, nil:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
