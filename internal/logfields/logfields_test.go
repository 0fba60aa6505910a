package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"BuildID", KeyBuildID, "b1", BuildID("b1")},
		{"Version", KeyVersion, "v2", Version("v2")},
		{"Processor", KeyProcessor, "ConceptualDocumentProcessor", Processor("ConceptualDocumentProcessor")},
		{"Step", KeyStep, "BuildConceptualDocument", Step("BuildConceptualDocument")},
		{"Path", KeyPath, "docs/a.md", Path("docs/a.md")},
		{"Node", KeyNode, "docs/b.md", Node("docs/b.md")},
		{"EdgeType", KeyEdgeType, "include", EdgeType("include")},
		{"Reporter", KeyReporter, "docs/a.md", Reporter("docs/a.md")},
		{"ChangeKind", KeyChangeKind, "Updated", ChangeKind("Updated")},
		{"GateLevel", KeyGateLevel, "version", GateLevel("version")},
		{"Reason", KeyReason, "tool version changed", Reason("tool version changed")},
		{"Hash", KeyHash, "abc", Hash("abc")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Count(5); v.Key != KeyCount || v.Value.Int64() != 5 {
		t.Fatalf("Count mismatch: %v", v)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
