package output

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(nil).FormatReport(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatReport() error = %v", err)
	}

	var doc reportDoc
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if len(doc.Results) != 3 || doc.Results[1].Result != "MEM-LEAK" {
		t.Errorf("unexpected results: %+v", doc.Results)
	}
	if doc.Summary.ByKind["PASS"] != 1 {
		t.Errorf("unexpected summary: %+v", doc.Summary)
	}

	for _, s := range []string{"runId: 01HQ3Z5B6J8K9M0N1P2Q3R4S5T", "  - name: a_test", "    result: PASS"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("output missing %q:\n%s", s, buf.String())
		}
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(nil).Format(&buf, map[string]string{"version": "1.0.0"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf.String() != "version: 1.0.0\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
