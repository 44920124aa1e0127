package repository

import (
	"encoding/json"
	"testing"
)

func TestSanitizeForPG(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "no change", in: `{"k":"v"}`, want: `{"k":"v"}`},
		{name: "raw null byte", in: "ab\x00cd", want: "abcd"},
		{name: "valid utf8 passthrough", in: "voted yes ✅", want: "voted yes ✅"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := sanitizeForPG(tc.in)
			if got != tc.want {
				t.Fatalf("sanitizeForPG(%q)=%q want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeJSONBRejectsInvalidJSON(t *testing.T) {
	t.Parallel()
	if got := sanitizeJSONB(json.RawMessage("not json")); got != nil {
		t.Fatalf("expected nil for invalid json, got %v", got)
	}
}

func TestSanitizeJSONBEmptyIsNil(t *testing.T) {
	t.Parallel()
	if got := sanitizeJSONB(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestSanitizeJSONBPassesValidJSON(t *testing.T) {
	t.Parallel()
	got := sanitizeJSONB(json.RawMessage(`[1,2]`))
	b, ok := got.([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", got)
	}
	if string(b) != "[1,2]" {
		t.Fatalf("unexpected output: %s", b)
	}
}
