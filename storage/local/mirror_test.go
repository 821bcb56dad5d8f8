package localstore

import (
	"path/filepath"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core"
)

type snapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func testMirror(t *testing.T, mirror core.Mirror) {
	t.Helper()

	var missing []snapshot
	ok, err := mirror.Load("tasks", &missing)
	if err != nil {
		t.Fatalf("Load() before save: %v", err)
	}
	if ok {
		t.Fatal("Load() reported a snapshot that was never saved")
	}

	rows := []snapshot{{ID: "t1", Title: "first"}, {ID: "t2", Title: "second"}}
	if err = mirror.Save("tasks", rows); err != nil {
		t.Fatalf("Save(): %v", err)
	}

	var loaded []snapshot
	ok, err = mirror.Load("tasks", &loaded)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if !ok || len(loaded) != 2 || loaded[0] != rows[0] || loaded[1] != rows[1] {
		t.Fatalf("Load() = %v, %v, want the saved rows", loaded, ok)
	}

	// a re-save replaces the snapshot wholesale
	if err = mirror.Save("tasks", rows[:1]); err != nil {
		t.Fatalf("Save() again: %v", err)
	}
	loaded = nil
	if _, err = mirror.Load("tasks", &loaded); err != nil {
		t.Fatalf("Load() after re-save: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != rows[0] {
		t.Errorf("Load() = %v, want only the latest snapshot", loaded)
	}

	// names are independent keys
	if err = mirror.Save("notes", []snapshot{{ID: "n1"}}); err != nil {
		t.Fatalf("Save() second name: %v", err)
	}
	loaded = nil
	if _, err = mirror.Load("tasks", &loaded); err != nil {
		t.Fatalf("Load() first name: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "t1" {
		t.Errorf("Load() = %v, names must not collide", loaded)
	}
}

func TestMemoryMirror(t *testing.T) {
	testMirror(t, NewMemoryMirror())
}

func TestSQLiteMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	mirror, err := Open(path)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	defer mirror.Close()

	testMirror(t, mirror)
}

func TestSQLiteMirror_survivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	mirror, err := Open(path)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	if err = mirror.Save("tasks", []snapshot{{ID: "t1", Title: "durable"}}); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	if err = mirror.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() again: %v", err)
	}
	defer reopened.Close()

	var loaded []snapshot
	ok, err := reopened.Load("tasks", &loaded)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if !ok || len(loaded) != 1 || loaded[0].Title != "durable" {
		t.Errorf("Load() = %v, %v, want the snapshot to survive a reopen", loaded, ok)
	}
}
