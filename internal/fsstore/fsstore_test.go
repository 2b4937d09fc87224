package fsstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "history.json")
	type payload struct {
		Name string `json:"name"`
	}
	in := payload{Name: "alpha"}
	if err := WriteJSONAtomic(path, in); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}
	var out payload
	ok, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadJSON() exists = false, want true")
	}
	if out.Name != in.Name {
		t.Fatalf("ReadJSON() value = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissing(t *testing.T) {
	t.Parallel()

	var out map[string]any
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ok {
		t.Fatalf("ReadJSON() exists = true, want false")
	}
}

func TestReadJSONEmptyPath(t *testing.T) {
	t.Parallel()

	var out map[string]any
	_, err := ReadJSON("  ", &out)
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("ReadJSON() error = %v, want ErrInvalidPath", err)
	}
}

func TestReadWriteTextAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "NOTES.md")
	in := "hello\nworld\n"
	if err := WriteTextAtomic(path, in); err != nil {
		t.Fatalf("WriteTextAtomic() error = %v", err)
	}
	got, ok, err := ReadText(path)
	if err != nil {
		t.Fatalf("ReadText() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadText() exists = false, want true")
	}
	if got != in {
		t.Fatalf("ReadText() = %q, want %q", got, in)
	}
}

func TestAppendJSONLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "topic", "log.jsonl")
	type record struct {
		TS   string `json:"ts"`
		Text string `json:"text"`
	}
	for _, r := range []record{{TS: "1", Text: "one"}, {TS: "2", Text: "two"}} {
		if err := AppendJSONLine(path, r); err != nil {
			t.Fatalf("AppendJSONLine() error = %v", err)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open() error = %v", err)
	}
	defer file.Close()

	var got []record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("json.Unmarshal(%q) error = %v", scanner.Text(), err)
		}
		got = append(got, r)
	}
	if len(got) != 2 || got[0].TS != "1" || got[1].TS != "2" {
		t.Fatalf("log lines = %+v, want ts 1 then 2", got)
	}
}
