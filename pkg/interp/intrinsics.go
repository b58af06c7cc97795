package interp

import (
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/telagod/kooixc/pkg/diagnostic"
	"github.com/telagod/kooixc/pkg/hir"
	"github.com/telagod/kooixc/pkg/loader"
)

// evalIntrinsic runs a host-provided function by name when fn has no body.
// handled is false when name matches no known intrinsic, letting the caller
// report "has no body to execute" instead.
func evalIntrinsic(fn *hir.Function, args []Value) (Value, *diagnostic.Diagnostic, bool) {
	switch fn.Name {
	case "text_len":
		s, ok := text1(args)
		if !ok {
			return Value{}, errf(fn.Span, "text_len expects (Text)"), true
		}
		return IntValue(int64(len(s))), nil, true

	case "text_byte_at":
		s, idx, ok := textInt(args)
		if !ok {
			return Value{}, errf(fn.Span, "text_byte_at expects (Text, Int)"), true
		}
		if idx < 0 || idx >= int64(len(s)) {
			return OptionNone(), nil, true
		}
		return OptionSome(IntValue(int64(s[idx]))), nil, true

	case "text_slice":
		s, start, end, ok := textIntInt(args)
		if !ok {
			return Value{}, errf(fn.Span, "text_slice expects (Text, Int, Int)"), true
		}
		if start < 0 || end < 0 || start > end || end > int64(len(s)) {
			return OptionNone(), nil, true
		}
		if !utf8.RuneStart(byteAt(s, start)) || (end < int64(len(s)) && !utf8.RuneStart(byteAt(s, end))) {
			return OptionNone(), nil, true
		}
		return OptionSome(TextValue(s[start:end])), nil, true

	case "text_starts_with":
		s, prefix, ok := text2(args)
		if !ok {
			return Value{}, errf(fn.Span, "text_starts_with expects (Text, Text)"), true
		}
		return BoolValue(len(s) >= len(prefix) && s[:len(prefix)] == prefix), nil, true

	case "text_concat":
		a, b, ok := text2(args)
		if !ok {
			return Value{}, errf(fn.Span, "text_concat expects (Text, Text)"), true
		}
		return TextValue(a + b), nil, true

	case "int_to_text":
		n, ok := int1(args)
		if !ok {
			return Value{}, errf(fn.Span, "int_to_text expects (Int)"), true
		}
		return TextValue(strconv.FormatInt(n, 10)), nil, true

	case "byte_is_ascii_whitespace":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_whitespace", isASCIIWhitespace)
	case "byte_is_ascii_digit":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_digit", isASCIIDigit)
	case "byte_is_ascii_alpha":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_alpha", isASCIIAlpha)
	case "byte_is_ascii_alnum":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_alnum", isASCIIAlnum)
	case "byte_is_ascii_ident_start":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_ident_start", isASCIIIdentStart)
	case "byte_is_ascii_ident_continue":
		return intrinsicBytePredicate(fn, args, "byte_is_ascii_ident_continue", isASCIIIdentContinue)

	case "host_load_source_map":
		path, ok := text1(args)
		if !ok {
			return Value{}, errf(fn.Span, "host_load_source_map expects (Text)"), true
		}
		sourceMap, _, diags := loader.Load(path)
		if len(diags) > 0 {
			return ResultErr(TextValue(diags[0].Message)), nil, true
		}
		return ResultOk(TextValue(sourceMap.Combined)), nil, true

	case "host_eprintln":
		s, ok := text1(args)
		if !ok {
			return Value{}, errf(fn.Span, "host_eprintln expects (Text)"), true
		}
		fmt.Fprintln(os.Stderr, s)
		return UnitValue(), nil, true

	case "host_write_file":
		path, content, ok := text2(args)
		if !ok {
			return Value{}, errf(fn.Span, "host_write_file expects (Text, Text)"), true
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return ResultErr(TextValue(fmt.Sprintf("failed to write file '%s': %s", path, err))), nil, true
		}
		return ResultOk(IntValue(0)), nil, true

	case "host_argc":
		if len(args) != 0 {
			return Value{}, errf(fn.Span, "host_argc expects ()"), true
		}
		return IntValue(1), nil, true

	case "host_argv":
		if len(args) != 1 || args[0].Kind != KindInt {
			return Value{}, errf(fn.Span, "host_argv expects (Int)"), true
		}
		return TextValue(""), nil, true

	default:
		return Value{}, nil, false
	}
}

func intrinsicBytePredicate(fn *hir.Function, args []Value, name string, pred func(int64) bool) (Value, *diagnostic.Diagnostic, bool) {
	n, ok := int1(args)
	if !ok {
		return Value{}, errf(fn.Span, "%s expects (Int)", name), true
	}
	return BoolValue(pred(n)), nil, true
}

func byteAt(s string, i int64) byte {
	if i < 0 || i >= int64(len(s)) {
		return 0
	}
	return s[i]
}

func text1(args []Value) (string, bool) {
	if len(args) != 1 || args[0].Kind != KindText {
		return "", false
	}
	return args[0].Text, true
}

func int1(args []Value) (int64, bool) {
	if len(args) != 1 || args[0].Kind != KindInt {
		return 0, false
	}
	return args[0].Int, true
}

func text2(args []Value) (string, string, bool) {
	if len(args) != 2 || args[0].Kind != KindText || args[1].Kind != KindText {
		return "", "", false
	}
	return args[0].Text, args[1].Text, true
}

func textInt(args []Value) (string, int64, bool) {
	if len(args) != 2 || args[0].Kind != KindText || args[1].Kind != KindInt {
		return "", 0, false
	}
	return args[0].Text, args[1].Int, true
}

func textIntInt(args []Value) (string, int64, int64, bool) {
	if len(args) != 3 || args[0].Kind != KindText || args[1].Kind != KindInt || args[2].Kind != KindInt {
		return "", 0, 0, false
	}
	return args[0].Text, args[1].Int, args[2].Int, true
}

func normalizeByte(b int64) (byte, bool) {
	if b < 0 || b > 255 {
		return 0, false
	}
	return byte(b), true
}

func isASCIIWhitespace(b int64) bool {
	nb, ok := normalizeByte(b)
	return ok && (nb == ' ' || nb == '\n' || nb == '\r' || nb == '\t')
}

func isASCIIDigit(b int64) bool {
	nb, ok := normalizeByte(b)
	return ok && nb >= '0' && nb <= '9'
}

func isASCIIAlpha(b int64) bool {
	nb, ok := normalizeByte(b)
	return ok && ((nb >= 'a' && nb <= 'z') || (nb >= 'A' && nb <= 'Z'))
}

func isASCIIAlnum(b int64) bool {
	return isASCIIAlpha(b) || isASCIIDigit(b)
}

func isASCIIIdentStart(b int64) bool {
	nb, ok := normalizeByte(b)
	return isASCIIAlpha(b) || (ok && nb == '_')
}

func isASCIIIdentContinue(b int64) bool {
	nb, ok := normalizeByte(b)
	return isASCIIAlnum(b) || (ok && nb == '_')
}
