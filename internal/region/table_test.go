package region

import (
	"os"
	"path/filepath"
	"testing"
)

const testDocument = `{
  "DE": {"region": "EU", "name": "Germany"},
  "SE": {"region": "EU"},
  "BR": {"region": "SA"},
  "US": {
    "name": "United States",
    "CA": {"region": "USW"},
    "NY": {"region": "USE"}
  },
  "XX": "not a mapping"
}`

func TestLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lobbybot-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "locs.json")
	if err := os.WriteFile(path, []byte(testDocument), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Len() != 5 {
		t.Errorf("Expected 5 entries, got %d", table.Len())
	}
}

func TestRegionFor(t *testing.T) {
	table, err := Parse([]byte(testDocument))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		country, state string
		want           string
	}{
		{"DE", "", "EU"},
		{"de", "", "EU"},
		{"DE", "BY", "EU"},
		{"US", "CA", "USW"},
		{"us", "ny", "USE"},
		{"US", "", Unknown},
		{"US", "TX", Unknown},
		{"ZZ", "", Unknown},
		{"XX", "", Unknown},
		{"", "", Unknown},
	}
	for _, tt := range tests {
		if got := table.RegionFor(tt.country, tt.state); got != tt.want {
			t.Errorf("RegionFor(%q, %q) = %q, want %q", tt.country, tt.state, got, tt.want)
		}
	}
}

func TestParseYAML(t *testing.T) {
	table, err := Parse([]byte("FR:\n  region: EU\nUS:\n  WA:\n    region: USW\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := table.RegionFor("FR", ""); got != "EU" {
		t.Errorf("Expected EU for FR, got %q", got)
	}
	if got := table.RegionFor("US", "WA"); got != "USW" {
		t.Errorf("Expected USW for US/WA, got %q", got)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("[1, 2")); err == nil {
		t.Error("Expected error for malformed document")
	}
}

func TestLoadMissing(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "lobbybot-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	table, err := Load(filepath.Join(tmpDir, "locs.json"))
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}

	if got := table.RegionFor("DE", ""); got != Unknown {
		t.Errorf("Expected %q from empty table, got %q", Unknown, got)
	}
}
