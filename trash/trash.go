// Package trash moves folders to a recoverable location instead of deleting
// them: the user's trash or recycle bin, or a quarantine directory.
package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/Bios-Marcel/wastebasket/v2"
)

// ErrCrossDevice is returned when the destination is on another filesystem
// and the entry would have to be copied.
var ErrCrossDevice = errors.New("destination is on a different device")

// QuarantineDirName is used by Dir when no root is configured. It lives next
// to the quarantined entry so the move never crosses devices.
const QuarantineDirName = ".exrmatte-quarantine"

// Quarantiner moves path out of the way and returns where it can be
// recovered from.
type Quarantiner interface {
	Quarantine(path string) (string, error)
}

// move renames src to dst without copying.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			return fmt.Errorf("move %s: %w", src, ErrCrossDevice)
		}
		return fmt.Errorf("move %s: %w", src, err)
	}
	return nil
}

// uniquePath returns dir/name, or dir/name.N for the first N that is free.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	for i := 2; ; i++ {
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = filepath.Join(dir, name+"."+strconv.Itoa(i))
	}
}

// Dir quarantines entries under Root/RunID. With an empty Root the
// quarantine directory is created next to each entry.
type Dir struct {
	Root  string
	RunID string
}

func (d Dir) Quarantine(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	root := d.Root
	if root == "" {
		root = filepath.Join(filepath.Dir(abs), QuarantineDirName)
	}
	bucket := root
	if d.RunID != "" {
		bucket = filepath.Join(root, d.RunID)
	}
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine folder: %w", err)
	}

	dst := uniquePath(bucket, filepath.Base(abs))
	if err := move(abs, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// SystemTrashLocation is reported as the destination of entries moved to
// the user's trash, which does not expose where it put them.
const SystemTrashLocation = "system trash"

// ErrTrashUnavailable is returned when the user's trash rejected an entry
// and left it in place.
var ErrTrashUnavailable = errors.New("trash unavailable")

// System moves entries to the user's trash or recycle bin.
type System struct {
	// Trash defaults to wastebasket.Trash.
	Trash func(paths ...string) error
}

func (s System) Quarantine(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(abs); err != nil {
		return "", fmt.Errorf("move %s to trash: %w", abs, err)
	}

	moveToTrash := s.Trash
	if moveToTrash == nil {
		moveToTrash = wastebasket.Trash
	}
	if err := moveToTrash(abs); err != nil {
		if _, statErr := os.Lstat(abs); statErr == nil {
			return "", fmt.Errorf("move %s to trash: %w: %w", abs, ErrTrashUnavailable, err)
		}
		return "", fmt.Errorf("move %s to trash: %w", abs, err)
	}
	return fmt.Sprintf("%s (%s)", SystemTrashLocation, filepath.Base(abs)), nil
}

// Fallback tries each quarantiner in order. A later one is only tried when
// the previous one left the entry in place: the trash was unavailable or the
// move would have crossed devices.
type Fallback []Quarantiner

func (f Fallback) Quarantine(path string) (string, error) {
	var errs []error
	for _, q := range f {
		dst, err := q.Quarantine(path)
		if err == nil {
			return dst, nil
		}
		errs = append(errs, err)
		if !errors.Is(err, ErrCrossDevice) && !errors.Is(err, ErrTrashUnavailable) {
			break
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no quarantine location configured")
	}
	return "", errors.Join(errs...)
}

// Default returns the quarantiner for this platform. A configured
// quarantine directory always wins. Otherwise the user trash is used, falling
// back to a quarantine folder next to the entry when the trash cannot take it.
func Default(quarantineDir, runID string) Quarantiner {
	if quarantineDir != "" {
		return Dir{Root: quarantineDir, RunID: runID}
	}
	return Fallback{System{}, Dir{RunID: runID}}
}
