package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempBanStore(t *testing.T) (*BanStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), BansFile)
	bs, err := OpenBanStore(path)
	if err != nil {
		t.Fatalf("OpenBanStore: %v", err)
	}
	return bs, path
}

func TestBanStoreBanAndUnban(t *testing.T) {
	bs, _ := tempBanStore(t)

	if bs.IsBanned("bob") {
		t.Fatal("fresh store has bob banned")
	}

	if err := bs.Ban("bob"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if !bs.IsBanned("bob") {
		t.Fatal("bob not banned after Ban")
	}

	// Banning again is a no-op, not an error.
	if err := bs.Ban("bob"); err != nil {
		t.Fatalf("repeat Ban: %v", err)
	}

	removed, err := bs.Unban("bob")
	if err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if !removed {
		t.Fatal("Unban reported bob as not banned")
	}
	if bs.IsBanned("bob") {
		t.Fatal("bob still banned after Unban")
	}

	removed, err = bs.Unban("bob")
	if err != nil {
		t.Fatalf("second Unban: %v", err)
	}
	if removed {
		t.Fatal("second Unban reported a removal")
	}
}

func TestBanStoreSurvivesReopen(t *testing.T) {
	bs, path := tempBanStore(t)

	bs.Ban("mallory")
	bs.Ban("trudy")

	reopened, err := OpenBanStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}

	if !reopened.IsBanned("mallory") || !reopened.IsBanned("trudy") {
		t.Fatal("bans lost across reopen")
	}
}

func TestBanStoreListIsSorted(t *testing.T) {
	bs, _ := tempBanStore(t)

	for _, name := range []string{"trudy", "mallory", "eve"} {
		bs.Ban(name)
	}

	want := []string{"eve", "mallory", "trudy"}
	if got := bs.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}

func TestBanStoreFileFormat(t *testing.T) {
	bs, path := tempBanStore(t)

	bs.Ban("trudy")
	bs.Ban("eve")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading ban file: %v", err)
	}
	if string(data) != "eve\ntrudy\n" {
		t.Fatalf("ban file = %q, want one sorted name per line", data)
	}
}

func TestBanStoreIgnoresBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), BansFile)
	if err := os.WriteFile(path, []byte("\n  mallory  \n\n\ntrudy\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	bs, err := OpenBanStore(path)
	if err != nil {
		t.Fatalf("OpenBanStore: %v", err)
	}

	want := []string{"mallory", "trudy"}
	if got := bs.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}
