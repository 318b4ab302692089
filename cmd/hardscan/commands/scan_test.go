package commands

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"simple", "ssh,sysctl", []string{"ssh", "sysctl"}},
		{"spaces", " ssh , sysctl ", []string{"ssh", "sysctl"}},
		{"trailing comma", "ssh,", []string{"ssh"}},
		{"empty", "", nil},
		{"only commas", ",,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAddAttrPair(t *testing.T) {
	pairs := map[string]string{}

	if !addAttrPair(pairs, "ssh_port=2222") {
		t.Fatal("addAttrPair rejected a valid pair")
	}
	if pairs["ssh_port"] != "2222" {
		t.Errorf("pairs[ssh_port] = %q, want 2222", pairs["ssh_port"])
	}

	// Values may contain '='
	if !addAttrPair(pairs, "banner=warn=yes") {
		t.Fatal("addAttrPair rejected a value containing '='")
	}
	if pairs["banner"] != "warn=yes" {
		t.Errorf("pairs[banner] = %q, want warn=yes", pairs["banner"])
	}

	if addAttrPair(pairs, "no-separator") {
		t.Error("addAttrPair accepted a pair without '='")
	}
	if addAttrPair(pairs, "=value") {
		t.Error("addAttrPair accepted an empty key")
	}
}
