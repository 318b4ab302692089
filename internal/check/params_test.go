package check

import (
	"reflect"
	"testing"
)

func TestRequireString(t *testing.T) {
	params := map[string]interface{}{"key": "net.ipv4.ip_forward", "num": 5, "empty": ""}

	got, err := requireString(params, "key")
	if err != nil {
		t.Fatalf("requireString(key) error = %v", err)
	}
	if got != "net.ipv4.ip_forward" {
		t.Errorf("requireString(key) = %q", got)
	}

	for _, key := range []string{"missing", "num", "empty"} {
		if _, err := requireString(params, key); err == nil {
			t.Errorf("requireString(%q) expected error", key)
		}
	}
}

func TestOptionalInt(t *testing.T) {
	params := map[string]interface{}{
		"yamlInt": 4,
		"jsonNum": float64(7),
		"not":     "four",
	}

	tests := []struct {
		key  string
		want int
	}{
		{"yamlInt", 4},
		{"jsonNum", 7},
		{"not", 9},
		{"missing", 9},
	}
	for _, tt := range tests {
		if got := optionalInt(params, tt.key, 9); got != tt.want {
			t.Errorf("optionalInt(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestStringValue(t *testing.T) {
	params := map[string]interface{}{
		"str":   "0",
		"int":   0,
		"float": float64(2),
		"frac":  1.5,
		"bool":  true,
	}

	tests := []struct {
		key  string
		want string
	}{
		{"str", "0"},
		{"int", "0"},
		{"float", "2"},
		{"frac", "1.5"},
		{"bool", "true"},
	}
	for _, tt := range tests {
		got, ok := stringValue(params, tt.key)
		if !ok {
			t.Errorf("stringValue(%q) not found", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("stringValue(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}

	if _, ok := stringValue(params, "missing"); ok {
		t.Error("stringValue(missing) = ok, want not found")
	}
}

func TestStringSlice(t *testing.T) {
	params := map[string]interface{}{
		"single": "noexec",
		"list":   []interface{}{"noexec", "nosuid"},
		"mixed":  []interface{}{"noexec", 5},
		"empty":  []interface{}{},
	}

	got, err := stringSlice(params, "single")
	if err != nil || !reflect.DeepEqual(got, []string{"noexec"}) {
		t.Errorf("stringSlice(single) = %v, %v", got, err)
	}

	got, err = stringSlice(params, "list")
	if err != nil || !reflect.DeepEqual(got, []string{"noexec", "nosuid"}) {
		t.Errorf("stringSlice(list) = %v, %v", got, err)
	}

	for _, key := range []string{"mixed", "empty", "missing"} {
		if _, err := stringSlice(params, key); err == nil {
			t.Errorf("stringSlice(%q) expected error", key)
		}
	}
}
