package pvinstall

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testConfig() *Config {
	return &Config{
		Product: "PVGeo",
		Version: "2.1.0",
		EnvVar:  "PVPATH",
		Links: []LinkSpec{
			{Name: "site-packages", Source: "PVGeo", Target: "bin/Lib/site-packages/PVGeo"},
			{Name: "plugins", Source: "PVPlugins", Target: "bin/plugins/PVGeo_Plugins"},
		},
	}
}

// testTree lays out a suite checkout and a ParaView-shaped installation
// root in temp dirs.
func testTree(t *testing.T) (source, root string) {
	t.Helper()
	source = t.TempDir()
	root = t.TempDir()
	for _, dir := range []string{
		filepath.Join(source, "PVGeo"),
		filepath.Join(source, "PVPlugins"),
		filepath.Join(root, "bin", "Lib", "site-packages"),
		filepath.Join(root, "bin", "plugins"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return source, root
}

func testInstaller(t *testing.T, source string) *Installer {
	t.Helper()
	installer, err := NewInstaller(testConfig(), source, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return installer
}

func entryCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestUnsetRootMutatesNothing(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(""); !errors.Is(err, ErrNoInstallRoot) {
		t.Fatalf("CheckInstallRoot(\"\") = %v, want ErrNoInstallRoot", err)
	}
	if err := installer.Install(); !errors.Is(err, ErrNoInstallRoot) {
		t.Fatalf("Install without root = %v, want ErrNoInstallRoot", err)
	}
	if n := entryCount(t, filepath.Join(root, "bin", "Lib", "site-packages")); n != 0 {
		t.Errorf("site-packages has %d entries, want 0", n)
	}
	if n := entryCount(t, filepath.Join(root, "bin", "plugins")); n != 0 {
		t.Errorf("plugins has %d entries, want 0", n)
	}
}

func TestRootMustBeDir(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	file := filepath.Join(root, "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := installer.CheckInstallRoot(file); !errors.Is(err, ErrRootNotDir) {
		t.Fatalf("CheckInstallRoot(file) = %v, want ErrRootNotDir", err)
	}
	if err := installer.CheckInstallRoot(filepath.Join(root, "missing")); !errors.Is(err, ErrRootNotDir) {
		t.Fatalf("CheckInstallRoot(missing) = %v, want ErrRootNotDir", err)
	}
}

func TestMissingSourceRejected(t *testing.T) {
	source, root := testTree(t)
	if err := os.RemoveAll(filepath.Join(source, "PVPlugins")); err != nil {
		t.Fatal(err)
	}
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("CheckInstallRoot = %v, want ErrSourceMissing", err)
	}
}

func TestMissingTargetParentRejected(t *testing.T) {
	source, root := testTree(t)
	if err := os.RemoveAll(filepath.Join(root, "bin", "plugins")); err != nil {
		t.Fatal(err)
	}
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); !errors.Is(err, ErrTargetNotWritable) {
		t.Fatalf("CheckInstallRoot = %v, want ErrTargetNotWritable", err)
	}
}

func TestInstallCreatesExactlyTwoLinks(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := installer.Install(); err != nil {
		t.Fatal(err)
	}
	wantLinks := map[string]string{
		filepath.Join(root, "bin", "Lib", "site-packages", "PVGeo"): filepath.Join(source, "PVGeo"),
		filepath.Join(root, "bin", "plugins", "PVGeo_Plugins"):      filepath.Join(source, "PVPlugins"),
	}
	for target, wantSource := range wantLinks {
		dest, err := os.Readlink(target)
		if err != nil {
			t.Fatalf("Readlink(%s): %v", target, err)
		}
		// Source dirs live in temp dirs that may themselves be symlinked
		// (macOS /tmp), so compare resolved paths.
		resolvedDest, _ := filepath.EvalSymlinks(dest)
		resolvedWant, _ := filepath.EvalSymlinks(wantSource)
		if resolvedDest != resolvedWant {
			t.Errorf("link %s points to %s, want %s", target, dest, wantSource)
		}
	}
	if n := entryCount(t, filepath.Join(root, "bin", "Lib", "site-packages")); n != 1 {
		t.Errorf("site-packages has %d entries, want 1", n)
	}
	if n := entryCount(t, filepath.Join(root, "bin", "plugins")); n != 1 {
		t.Errorf("plugins has %d entries, want 1", n)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := installer.Install(); err != nil {
		t.Fatal(err)
	}
	again := testInstaller(t, source)
	if err := again.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := again.Install(); err != nil {
		t.Fatalf("second install: %v", err)
	}
	for _, entry := range again.Entries() {
		if entry.State != StateLinked {
			t.Errorf("entry %s state = %s, want linked", entry.Spec.Name, entry.State)
		}
	}
}

func TestOccupiedTargetAbortsAndRollsBack(t *testing.T) {
	source, root := testTree(t)
	// A real directory sits where the second link would go.
	occupied := filepath.Join(root, "bin", "plugins", "PVGeo_Plugins")
	if err := os.Mkdir(occupied, 0o755); err != nil {
		t.Fatal(err)
	}
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	err := installer.Install()
	if !errors.Is(err, ErrPathOccupied) {
		t.Fatalf("Install = %v, want ErrPathOccupied", err)
	}
	// The first link was created before the conflict and must be gone.
	first := filepath.Join(root, "bin", "Lib", "site-packages", "PVGeo")
	if _, lerr := os.Lstat(first); !os.IsNotExist(lerr) {
		t.Errorf("first link %s still present after rollback", first)
	}
	// The occupied directory is untouched.
	if info, serr := os.Stat(occupied); serr != nil || !info.IsDir() {
		t.Errorf("occupied dir was disturbed: %v", serr)
	}
}

func TestForeignLinkDetected(t *testing.T) {
	source, root := testTree(t)
	elsewhere := t.TempDir()
	target := filepath.Join(root, "bin", "Lib", "site-packages", "PVGeo")
	if err := os.Symlink(elsewhere, target); err != nil {
		t.Fatal(err)
	}
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := installer.Refresh(); err != nil {
		t.Fatal(err)
	}
	if state := installer.Entries()[0].State; state != StateForeign {
		t.Fatalf("state = %s, want foreign link", state)
	}
	if err := installer.Install(); !errors.Is(err, ErrPathOccupied) {
		t.Fatalf("Install over foreign link = %v, want ErrPathOccupied", err)
	}
	// The foreign link survives.
	if dest, err := os.Readlink(target); err != nil || dest != elsewhere {
		t.Errorf("foreign link was disturbed: %q, %v", dest, err)
	}
}

func TestUninstallRemovesOnlyOurLinks(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	if err := installer.Install(); err != nil {
		t.Fatal(err)
	}
	// Replace the plugins link with a foreign one.
	pluginsLink := filepath.Join(root, "bin", "plugins", "PVGeo_Plugins")
	if err := os.Remove(pluginsLink); err != nil {
		t.Fatal(err)
	}
	elsewhere := t.TempDir()
	if err := os.Symlink(elsewhere, pluginsLink); err != nil {
		t.Fatal(err)
	}
	removed, err := installer.Uninstall()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Lstat(filepath.Join(root, "bin", "Lib", "site-packages", "PVGeo")); !os.IsNotExist(err) {
		t.Error("our link was not removed")
	}
	if dest, err := os.Readlink(pluginsLink); err != nil || dest != elsewhere {
		t.Error("foreign link was removed")
	}
}

func TestUninstallOnCleanTree(t *testing.T) {
	source, root := testTree(t)
	installer := testInstaller(t, source)
	if err := installer.CheckInstallRoot(root); err != nil {
		t.Fatal(err)
	}
	removed, err := installer.Uninstall()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}
