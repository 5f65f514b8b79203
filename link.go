package pvinstall

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// The installer's failure taxonomy. Everything it returns wraps one of
// these.
var (
	ErrNoInstallRoot     = errors.New("installation root not set")
	ErrRootNotDir        = errors.New("installation root is not a directory")
	ErrTargetNotWritable = errors.New("link location not writable")
	ErrSourceMissing     = errors.New("source directory missing")
	ErrPathOccupied      = errors.New("path exists and is not our link")
	ErrLinkFailed        = errors.New("link creation failed")
)

// LinkState classifies what currently sits at a link's target path.
type LinkState int

const (
	// StateMissing: nothing at the target path.
	StateMissing LinkState = iota
	// StateLinked: a link resolving to our source directory.
	StateLinked
	// StateForeign: a link pointing somewhere else.
	StateForeign
	// StateOccupied: a regular file or directory, not a link.
	StateOccupied
)

func (s LinkState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateLinked:
		return "linked"
	case StateForeign:
		return "foreign link"
	case StateOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

type (
	// LinkEntry is a LinkSpec resolved against a concrete source checkout
	// and installation root, plus its observed state.
	LinkEntry struct {
		Spec    LinkSpec
		Source  string
		Target  string
		State   LinkState
		LinksTo string
		created bool
	}
	// Installer maintains the set of directory links registering the
	// suite with a ParaView installation. The root stays unset until
	// CheckInstallRoot accepts one; no method mutates the filesystem
	// before that.
	Installer struct {
		Root             string
		SourceDir        string
		entries          []*LinkEntry
		actionLock       sync.Mutex
		log              zerolog.Logger
		progressFunction func(LinkEntry)
	}
)

// NewInstaller creates an Installer for the given suite checkout directory.
// You still need to set and validate the installation root:
//
//	installer, _ := NewInstaller(config, ".", logger)
//	if err := installer.CheckInstallRoot(os.Getenv(config.EnvVar)); err != nil { ... }
//	err := installer.Install()
func NewInstaller(config *Config, sourceDir string, log zerolog.Logger) (*Installer, error) {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir: %w", err)
	}
	i := Installer{
		SourceDir:        absSource,
		log:              log,
		progressFunction: func(LinkEntry) {},
	}
	for _, spec := range config.Links {
		i.entries = append(i.entries, &LinkEntry{
			Spec:   spec,
			Source: filepath.Join(absSource, filepath.FromSlash(spec.Source)),
		})
	}
	return &i, nil
}

// ResolveRoot validates that the given installation root is an existing
// directory and resolves all link targets against it. Nothing is modified
// and no write access is required, so read-only queries work against roots
// the user cannot touch.
func (i *Installer) ResolveRoot(root string) error {
	if root == "" {
		return ErrNoInstallRoot
	}
	rootInfo, err := os.Stat(root)
	if err != nil || !rootInfo.IsDir() {
		return fmt.Errorf("%w: %q", ErrRootNotDir, root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrRootNotDir, root)
	}
	for _, entry := range i.entries {
		entry.Target = filepath.Join(absRoot, filepath.FromSlash(entry.Spec.Target))
	}
	i.Root = absRoot
	return nil
}

// CheckInstallRoot is the full preflight before any mutating action:
// ResolveRoot, plus every link's source directory must exist in the
// checkout and every link's parent directory inside the root must exist
// and be writable. Nothing is modified.
func (i *Installer) CheckInstallRoot(root string) error {
	if err := i.ResolveRoot(root); err != nil {
		return err
	}
	for _, entry := range i.entries {
		sourceInfo, err := os.Stat(entry.Source)
		if err != nil || !sourceInfo.IsDir() {
			return fmt.Errorf("%w: %q", ErrSourceMissing, entry.Source)
		}
		parent := filepath.Dir(entry.Target)
		parentInfo, err := os.Stat(parent)
		if err != nil || !parentInfo.IsDir() {
			return fmt.Errorf("%w: %q has no %q", ErrTargetNotWritable, root, parent)
		}
		if !osFileWriteAccess(parent) {
			return fmt.Errorf("%w: %q", ErrTargetNotWritable, parent)
		}
	}
	return nil
}

// Refresh re-reads the state of every link entry from the filesystem.
// CheckInstallRoot must have accepted a root first.
func (i *Installer) Refresh() error {
	if i.Root == "" {
		return ErrNoInstallRoot
	}
	for _, entry := range i.entries {
		entry.resolve()
	}
	return nil
}

// Install creates the configured links. Entries already linked to our
// source are skipped, so re-running against an installed tree is a no-op.
// A target occupied by anything else aborts the run and rolls back links
// created by it; pre-existing links are never touched.
func (i *Installer) Install() error {
	i.actionLock.Lock()
	defer i.actionLock.Unlock()
	if err := i.Refresh(); err != nil {
		return err
	}
	for _, entry := range i.entries {
		i.progressFunction(*entry)
		switch entry.State {
		case StateLinked:
			i.log.Info().Str("link", entry.Spec.Name).Str("target", entry.Target).
				Msg("already linked, skipping")
		case StateForeign, StateOccupied:
			i.rollback()
			return fmt.Errorf("%w: %q (%s)", ErrPathOccupied, entry.Target, entry.State)
		case StateMissing:
			if err := osCreateDirLink(entry.Source, entry.Target); err != nil {
				i.rollback()
				return fmt.Errorf("%w: %q: %v", ErrLinkFailed, entry.Target, err)
			}
			entry.created = true
			entry.State = StateLinked
			entry.LinksTo = entry.Source
			i.log.Info().Str("link", entry.Spec.Name).Str("target", entry.Target).
				Str("source", entry.Source).Msg("linked")
		}
		i.progressFunction(*entry)
	}
	return nil
}

// Uninstall removes the configured links. Only links that resolve to our
// source directory are removed; occupied or foreign paths are left alone
// and reported. Returns how many links were removed.
func (i *Installer) Uninstall() (int, error) {
	i.actionLock.Lock()
	defer i.actionLock.Unlock()
	if err := i.Refresh(); err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range i.entries {
		i.progressFunction(*entry)
		switch entry.State {
		case StateLinked:
			if err := osRemoveDirLink(entry.Target); err != nil {
				return removed, fmt.Errorf("remove %q: %w", entry.Target, err)
			}
			entry.State = StateMissing
			entry.LinksTo = ""
			removed++
			i.log.Info().Str("link", entry.Spec.Name).Str("target", entry.Target).Msg("unlinked")
		case StateForeign, StateOccupied:
			i.log.Warn().Str("target", entry.Target).Stringer("state", entry.State).
				Msg("not ours, leaving in place")
		}
		i.progressFunction(*entry)
	}
	return removed, nil
}

// Entries returns a snapshot of the link entries with their last observed
// state.
func (i *Installer) Entries() []LinkEntry {
	entries := make([]LinkEntry, len(i.entries))
	for n, entry := range i.entries {
		entries[n] = *entry
	}
	return entries
}

// SetProgressFunction registers a callback invoked before and after each
// entry is acted on.
func (i *Installer) SetProgressFunction(function func(LinkEntry)) {
	i.progressFunction = function
}

// rollback deletes the links created during the current action, in reverse
// order. It never removes anything it did not create.
func (i *Installer) rollback() {
	for n := len(i.entries) - 1; n >= 0; n-- {
		entry := i.entries[n]
		if !entry.created {
			continue
		}
		if err := osRemoveDirLink(entry.Target); err != nil {
			i.log.Error().Err(err).Str("target", entry.Target).Msg("rollback failed")
			continue
		}
		entry.created = false
		entry.State = StateMissing
		entry.LinksTo = ""
		i.log.Info().Str("target", entry.Target).Msg("rolled back")
	}
}

// resolve classifies what sits at the entry's target path.
func (e *LinkEntry) resolve() {
	e.LinksTo = ""
	info, err := os.Lstat(e.Target)
	if err != nil {
		e.State = StateMissing
		return
	}
	dest, isLink := osReadDirLink(e.Target, info)
	if !isLink {
		e.State = StateOccupied
		return
	}
	e.LinksTo = dest
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(e.Target), dest)
	}
	if filepath.Clean(dest) == filepath.Clean(e.Source) {
		e.State = StateLinked
		return
	}
	// Tolerate paths that differ textually but resolve to the same
	// directory, e.g. through a linked parent.
	if resolved, err := filepath.EvalSymlinks(dest); err == nil {
		if resolvedSource, err := filepath.EvalSymlinks(e.Source); err == nil && resolved == resolvedSource {
			e.State = StateLinked
			return
		}
	}
	e.State = StateForeign
}
