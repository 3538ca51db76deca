package model

import (
	"strconv"
	"strings"
)

// looksHex reports whether s should be parsed as hexadecimal under
// spec.md §4.7's auto-base rule: prefixed with "0x", or containing any
// alphabetic hex digit (a-f, case-insensitive). Adapted from
// utils/decoder.go's ParseTValue type-prefix dispatch, simplified here
// to a plain two-way decimal/hex choice since nothing in the model
// builder needs decoder.go's binary/octal/string branches or its
// byte-sized output.
func looksHex(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			return true
		}
	}
	return false
}

// parseAutoBaseUint32 parses s as decimal, or as hex if looksHex(s),
// per spec.md §4.7's "unsigned fields may accept auto-base" rule (used
// for vlan_id and general unsigned-from-string coercion).
func parseAutoBaseUint32(s string) (uint32, bool) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	base := 10
	if looksHex(s) {
		base = 16
	}
	v, err := strconv.ParseUint(trimmed, base, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// parseAutoBaseInt64 is parseAutoBaseUint32's signed, 64-bit counterpart,
// used for general integer-from-string attribute coercion.
func parseAutoBaseInt64(s string) (int64, bool) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	base := 10
	if looksHex(s) {
		base = 16
	}
	v, err := strconv.ParseInt(trimmed, base, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseHexDefaultUint32 always parses s as hex, with or without a "0x"
// prefix, per spec.md §4.7's "appid (hex-default-base u32)": appid
// values are conventionally written without a "0x" prefix but are still
// hex digits (e.g. "3C01"), so the base is 16, never 10.
func parseHexDefaultUint32(s string) (uint32, bool) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// parseMAC normalizes s to 12 hex nibbles by stripping any character
// that is not a hex digit (colons, dashes, whitespace), per spec.md
// §4.7's "mac_address (12 hex nibbles, any non-hex stripped)".
func parseMAC(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 12 {
		out = out[:12]
	}
	return out
}

// isTruthyString reports whether s (case-insensitive) is one of the
// boolean-truthy string forms spec.md §4.7 lists: "true", "1", "yes",
// "on".
func isTruthyString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
