package sequence

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// makeSequence creates folder under root with one empty file per name.
func makeSequence(t *testing.T, root, folder string, names ...string) string {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("exr"), 0o644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	return dir
}

func frames(prefix string, ids ...string) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = prefix + "." + id + ".exr"
	}
	return names
}

func hasWarning(warnings []string, parts ...string) bool {
	for _, w := range warnings {
		all := true
		for _, p := range parts {
			if !strings.Contains(w, p) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func TestDiscover_EmptyRoot(t *testing.T) {
	report, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Errorf("Expected 0 groups, got %d", len(report.Groups))
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Expected 0 warnings, got %v", report.Warnings)
	}
	if report.TotalFiles() != 0 {
		t.Errorf("Expected 0 total files, got %d", report.TotalFiles())
	}
}

func TestDiscover_NonExistentRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for non-existent root")
	}
}

func TestDiscover_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.exr")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Discover(file); err == nil {
		t.Error("Expected error when root is a file")
	}
}

func TestDiscover_SingleChannel(t *testing.T) {
	root := t.TempDir()
	base := makeSequence(t, root, "Seq", frames("beauty", "1001", "1002", "1003")...)
	matte := makeSequence(t, root, "Seq_matte", frames("holdout", "1001", "1002", "1003")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}

	group := report.Groups[0]
	if group.BaseFolder != base {
		t.Errorf("BaseFolder = %q, want %q", group.BaseFolder, base)
	}
	if group.MatteFolders[BaseChannel] != matte {
		t.Errorf("MatteFolders[base] = %q, want %q", group.MatteFolders[BaseChannel], matte)
	}
	if got := group.SequenceType(); got != "Single Channel Matte" {
		t.Errorf("SequenceType() = %q, want Single Channel Matte", got)
	}
	if group.ChannelNames[BaseChannel] != "matte" {
		t.Errorf("ChannelNames[base] = %q, want matte", group.ChannelNames[BaseChannel])
	}
	if report.TotalSequences() != 1 || report.TotalFiles() != 3 {
		t.Errorf("Totals = (%d, %d), want (1, 3)", report.TotalSequences(), report.TotalFiles())
	}
}

func TestDiscover_MultiChannel(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001", "1002")...)
	makeSequence(t, root, "Seq_matteR", frames("r", "1001", "1002")...)
	makeSequence(t, root, "Seq_matteG", frames("g", "1001", "1002")...)
	makeSequence(t, root, "Seq_mattedepth", frames("z", "1001", "1002")...)

	report, err := (&Discoverer{ChannelBasename: "mask"}).Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}

	group := report.Groups[0]
	want := map[ChannelKey]string{"r": "mask.matte_r", "g": "mask.matte_g", "depth": "mask.depth"}
	if !reflect.DeepEqual(group.ChannelNames, want) {
		t.Errorf("ChannelNames = %v, want %v", group.ChannelNames, want)
	}
	if got := group.SequenceType(); got != "Multi-Channel (mask.depth, mask.matte_g, mask.matte_r)" {
		t.Errorf("SequenceType() = %q", got)
	}
	for key, files := range group.MatteFiles {
		if len(files) != len(group.BaseFiles) {
			t.Errorf("Channel %s has %d files, want %d", key, len(files), len(group.BaseFiles))
		}
	}
}

func TestDiscover_BaseAndSuffixChannels(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001")...)
	makeSequence(t, root, "Seq_matte", frames("m", "1001")...)
	makeSequence(t, root, "Seq_matteA", frames("a", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(report.Groups))
	}
	group := report.Groups[0]
	if group.IsSingleChannel() {
		t.Error("Group with two channels must not be single channel")
	}
	if got := group.SequenceType(); got != "Multi-Channel (matte, matte.matte_a)" {
		t.Errorf("SequenceType() = %q", got)
	}
}

func TestDiscover_FrameMismatchRejectsGroup(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteR", frames("r", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteG", frames("g", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteB", frames("b", "1001", "1002", "1004")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Fatalf("Expected group to be rejected, got %d groups", len(report.Groups))
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("Expected exactly one warning, got %v", report.Warnings)
	}
	if !hasWarning(report.Warnings, "channel b", "extra frames 1004", "missing frames 1003") {
		t.Errorf("Warning does not cite the mismatched frames: %v", report.Warnings)
	}
}

func TestDiscover_ExtraFrameCountMismatch(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteR", frames("r", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteG", frames("g", "1001", "1002", "1003")...)
	makeSequence(t, root, "Seq_matteB", frames("b", "1001", "1002", "1003", "1004")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Fatalf("Expected group to be rejected, got %d groups", len(report.Groups))
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("Expected exactly one warning, got %v", report.Warnings)
	}
	if !hasWarning(report.Warnings, "Seq_matteB", "expected 3, found 4", "channel b", "extra frames 1004") {
		t.Errorf("Warning does not describe the count mismatch: %v", report.Warnings)
	}
}

func TestDiscover_PaddingMismatchRejectsGroup(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "0100", "0101")...)
	makeSequence(t, root, "Seq_matte", "m_100.exr", "m_101.exr")

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Error("Expected padding mismatch to reject the group")
	}
	if !hasWarning(report.Warnings, "missing frames 0100, 0101") {
		t.Errorf("Expected missing frame warning, got %v", report.Warnings)
	}
}

func TestDiscover_DuplicateFrameIDsRejectGroup(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", "a.1001.exr", "b.1001.exr", "a.1002.exr")
	makeSequence(t, root, "Seq_matte", "m.1001.exr", "m.1002.exr", "n.1002.exr")

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Error("Expected differing frame multiplicity to reject the group")
	}
}

func TestDiscover_MissingBaseFolder(t *testing.T) {
	root := t.TempDir()
	orphan := makeSequence(t, root, "Orphan_matte", frames("m", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Errorf("Expected 0 groups, got %d", len(report.Groups))
	}
	if !hasWarning(report.Warnings, "Base folder not found", orphan) {
		t.Errorf("Expected missing base warning, got %v", report.Warnings)
	}
}

func TestDiscover_EmptyBaseFolder(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq")
	makeSequence(t, root, "Seq_matte", frames("m", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Errorf("Expected 0 groups, got %d", len(report.Groups))
	}
	if !hasWarning(report.Warnings, "No EXR files found in base folder") {
		t.Errorf("Expected empty base warning, got %v", report.Warnings)
	}
}

func TestDiscover_IgnoresNonImageAndHiddenFiles(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", append(frames("beauty", "1001", "1002"), "notes.txt", "._beauty.1001.exr")...)
	makeSequence(t, root, "Seq_matte", append(frames("m", "1001", "1002"), "Thumbs.db")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}
	if got := report.Groups[0].FrameCount(); got != 2 {
		t.Errorf("Expected 2 frames, got %d", got)
	}
}

func TestDiscover_SkipsHiddenFolders(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001")...)
	makeSequence(t, root, "Seq_matte", frames("m", "1001")...)
	makeSequence(t, root, filepath.Join(".exrmatte-quarantine", "run1", "Old"), frames("beauty", "1001")...)
	makeSequence(t, root, filepath.Join(".exrmatte-quarantine", "run1", "Old_matte"), frames("m", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 || report.Groups[0].Name() != "Seq" {
		t.Errorf("Expected only Seq, got %+v", report.Groups)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", report.Warnings)
	}
}

func TestDiscover_UppercaseExtension(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", "beauty.1001.EXR")
	makeSequence(t, root, "Seq_matte", "m.1001.exr")

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Errorf("Expected 1 group, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}
}

func TestDiscover_DuplicateChannelKey(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001")...)
	makeSequence(t, root, "Seq_matteR", frames("upper", "1001")...)
	lower := makeSequence(t, root, "Seq_matter", frames("lower", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !hasWarning(report.Warnings, "Channel r", "Seq_matteR", "Seq_matter") {
		t.Errorf("Expected duplicate channel warning, got %v", report.Warnings)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(report.Groups))
	}
	// WalkDir visits entries in lexical order, so the later folder wins
	if got := report.Groups[0].MatteFolders["r"]; got != lower {
		t.Errorf("MatteFolders[r] = %q, want %q", got, lower)
	}
}

func TestDiscover_ReservedBaseSuffix(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001")...)
	makeSequence(t, root, "Seq_mattebase", frames("m", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Errorf("Expected 0 groups, got %d", len(report.Groups))
	}
	if !hasWarning(report.Warnings, "reserved") {
		t.Errorf("Expected reserved suffix warning, got %v", report.Warnings)
	}
}

func TestDiscover_ChannelNameCollision(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "Seq", frames("beauty", "1001")...)
	makeSequence(t, root, "Seq_matteR", frames("r", "1001")...)
	makeSequence(t, root, "Seq_mattematte_r", frames("x", "1001")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 0 {
		t.Errorf("Expected colliding group to be rejected")
	}
	if !hasWarning(report.Warnings, "collision", "matte.matte_r") {
		t.Errorf("Expected collision warning, got %v", report.Warnings)
	}
}

func TestDiscover_NestedFolders(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, filepath.Join("show", "sh010", "Seq"), frames("b", "1001")...)
	makeSequence(t, root, filepath.Join("show", "sh010", "Seq_matte"), frames("m", "1001")...)
	makeSequence(t, root, filepath.Join("show", "sh020", "Seq"), frames("b", "1001", "1002")...)
	makeSequence(t, root, filepath.Join("show", "sh020", "Seq_matte"), frames("m", "1001", "1002")...)

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}
	if report.TotalFiles() != 3 {
		t.Errorf("Expected 3 total files, got %d", report.TotalFiles())
	}
}

func TestDiscover_Idempotent(t *testing.T) {
	root := t.TempDir()
	makeSequence(t, root, "A", frames("b", "1001", "1002")...)
	makeSequence(t, root, "A_matte", frames("m", "1001", "1002")...)
	makeSequence(t, root, "B", frames("b", "1001")...)
	makeSequence(t, root, "B_matteR", frames("r", "1001")...)
	makeSequence(t, root, "C_matte", frames("m", "1001")...)

	first, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	second, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Discover is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDiscover_PairsByFrameNotFilename(t *testing.T) {
	root := t.TempDir()
	// Lexical order of the base differs from frame order
	makeSequence(t, root, "Seq", "x.10000.exr", "x.9999.exr")
	makeSequence(t, root, "Seq_matte", "m.09999.exr", "m.10000.exr")

	report, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	// 9999 and 09999 are different identifiers, so this is rejected
	if len(report.Groups) != 0 {
		t.Fatalf("Expected rejection, got %d groups", len(report.Groups))
	}

	root = t.TempDir()
	makeSequence(t, root, "Seq", "x.10000.exr", "x.9999.exr")
	makeSequence(t, root, "Seq_matte", "a_m.10000.exr", "b_m.9999.exr")

	report, err = Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d (warnings: %v)", len(report.Groups), report.Warnings)
	}
	g := report.Groups[0]
	for i := range g.BaseFiles {
		if FrameID(g.BaseFiles[i]) != FrameID(g.MatteFiles[BaseChannel][i]) {
			t.Errorf("Index %d pairs %s with %s", i, g.BaseFiles[i], g.MatteFiles[BaseChannel][i])
		}
	}
}

func TestReportFilter(t *testing.T) {
	report := Report{
		Groups:   []Group{{BaseFolder: "/a"}, {BaseFolder: "/b"}},
		Warnings: []string{"w"},
	}
	filtered := report.Filter(func(g Group) bool { return g.BaseFolder == "/b" })
	if len(filtered.Groups) != 1 || filtered.Groups[0].BaseFolder != "/b" {
		t.Errorf("Filter() groups = %+v", filtered.Groups)
	}
	if len(filtered.Warnings) != 1 {
		t.Errorf("Filter() must keep warnings, got %v", filtered.Warnings)
	}
}
