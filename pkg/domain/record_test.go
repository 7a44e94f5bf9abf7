package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFieldText(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    *string
		wantErr bool
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string", in: "Alice", want: Text("Alice")},
		{name: "empty string", in: "", want: Text("")},
		{name: "bool", in: true, want: Text("true")},
		{name: "whole float", in: float64(5), want: Text("5")},
		{name: "fractional float", in: 2.5, want: Text("2.5")},
		{name: "int64", in: int64(-12), want: Text("-12")},
		{name: "json number", in: json.Number("7"), want: Text("7")},
		{name: "object", in: map[string]any{"a": 1}, wantErr: true},
		{name: "array", in: []any{"x"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FieldText(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("FieldText(%v) error = nil, want error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("FieldText(%v): %v", tc.in, err)
			}
			if tc.want == nil {
				if got != nil {
					t.Fatalf("FieldText(%v) = %q, want nil", tc.in, *got)
				}
				return
			}
			if got == nil || *got != *tc.want {
				t.Fatalf("FieldText(%v) = %v, want %q", tc.in, got, *tc.want)
			}
		})
	}
}

func TestCanonicalRecordID(t *testing.T) {
	lower := NewRecordID()
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{name: "lowercase", in: lower, want: lower, valid: true},
		{name: "uppercase", in: strings.ToUpper(lower), want: lower, valid: true},
		{name: "malformed", in: "bad-id"},
		{name: "non hex", in: strings.Repeat("z", 24)},
		{name: "too long", in: lower + "a"},
		{name: "empty", in: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidRecordID(tc.in); got != tc.valid {
				t.Fatalf("ValidRecordID(%q) = %v, want %v", tc.in, got, tc.valid)
			}
			got, ok := CanonicalRecordID(tc.in)
			if ok != tc.valid {
				t.Fatalf("CanonicalRecordID(%q) ok = %v, want %v", tc.in, ok, tc.valid)
			}
			if got != tc.want {
				t.Fatalf("CanonicalRecordID(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFieldsEqual(t *testing.T) {
	base := Fields{Name: Text("A"), City: Text("")}
	tests := []struct {
		name  string
		other Fields
		want  bool
	}{
		{name: "same values", other: Fields{Name: Text("A"), City: Text("")}, want: true},
		{name: "nil against empty", other: Fields{Name: Text("A")}, want: false},
		{name: "different value", other: Fields{Name: Text("B"), City: Text("")}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Equal(tc.other); got != tc.want {
				t.Fatalf("Equal = %v, want %v", got, tc.want)
			}
		})
	}
}
