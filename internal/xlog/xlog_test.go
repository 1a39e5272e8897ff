package xlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAppendsOneJSONLinePerCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candy.logs")
	sink := New(path)

	if err := sink.Write("info", "xray started"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Write("error", "sing-box exited"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("line not valid JSON: %v: %s", err, scanner.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["message"] != "xray started" || lines[0]["level"] != "info" {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1]["message"] != "sing-box exited" || lines[1]["level"] != "error" {
		t.Errorf("line 1 = %+v", lines[1])
	}
	if _, ok := lines[0]["timestamp"]; !ok {
		t.Error("line 0 missing timestamp")
	}
}

func TestLogfFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candy.logs")
	sink := New(path)
	sink.Logf("info", "[%s] pid=%d", "xray", 1234)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if m["message"] != "[xray] pid=1234" {
		t.Errorf("message = %q", m["message"])
	}
}
