package problems

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProblemFile(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "problems.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_NormalizesFields(t *testing.T) {
	path := writeProblemFile(t, []string{
		`{"task_id": 2, "text": "Write a function", "code": "def f(): pass", "test_list": ["assert f() is None"]}`,
		`{"task_id": "1", "prompt": "Add two numbers", "reference_code": "def add(a,b): return a+b"}`,
	})

	tasks, err := Load(path, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}

	// Sorted numerically: task 1 first despite file order
	if tasks[0].ID != "1" {
		t.Errorf("tasks[0].ID = %q, want %q", tasks[0].ID, "1")
	}
	if tasks[0].Description != "Add two numbers" {
		t.Errorf("Description = %q", tasks[0].Description)
	}
	if tasks[0].ReferenceCode != "def add(a,b): return a+b" {
		t.Errorf("ReferenceCode = %q", tasks[0].ReferenceCode)
	}

	// text/code spellings normalize to the same fields
	if tasks[1].Description != "Write a function" {
		t.Errorf("tasks[1].Description = %q", tasks[1].Description)
	}
	if tasks[1].ReferenceCode != "def f(): pass" {
		t.Errorf("tasks[1].ReferenceCode = %q", tasks[1].ReferenceCode)
	}
	if len(tasks[1].ExistingTests) != 1 {
		t.Errorf("ExistingTests count = %d, want 1", len(tasks[1].ExistingTests))
	}
}

func TestLoad_SkipsRecordsWithoutID(t *testing.T) {
	path := writeProblemFile(t, []string{
		`{"prompt": "no id here"}`,
		``,
		`{"task_id": 7, "prompt": "ok"}`,
	})

	tasks, err := Load(path, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	if tasks[0].ID != "7" {
		t.Errorf("ID = %q, want %q", tasks[0].ID, "7")
	}
}

func TestLoad_RangeSlicing(t *testing.T) {
	path := writeProblemFile(t, []string{
		`{"task_id": 10, "prompt": "a"}`,
		`{"task_id": 11, "prompt": "b"}`,
		`{"task_id": 12, "prompt": "c"}`,
		`{"task_id": 13, "prompt": "d"}`,
	})

	tasks, err := Load(path, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].ID != "11" || tasks[1].ID != "12" {
		t.Errorf("got IDs %q, %q, want 11, 12", tasks[0].ID, tasks[1].ID)
	}

	// Start beyond the end yields nothing, not an error
	none, err := Load(path, 100, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("len = %d, want 0", len(none))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonl"), 0, 10); err == nil {
		t.Error("expected error for missing problem file")
	}
}

func TestLoad_MalformedLine(t *testing.T) {
	path := writeProblemFile(t, []string{`{"task_id": 1, "prompt":`})
	if _, err := Load(path, 0, 10); err == nil {
		t.Error("expected error for malformed JSON line")
	}
}
