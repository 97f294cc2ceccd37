package utils

import (
	"path/filepath"
	"runtime"
	"strings"
)

// networkPrefixes are common network mount points on different platforms
var networkPrefixes = []string{
	"/mnt/",     // Linux NFS/SMB mounts
	"/media/",   // Linux removable/network media
	"/net/",     // autofs
	"/Volumes/", // macOS network volumes
}

// networkIndicators are filesystem names that show up in mount paths
var networkIndicators = []string{
	"nfs", "cifs", "smb", "webdav", "ftp", "sftp",
}

// IsNetworkDrive detects if a path is on a network-mounted drive
func IsNetworkDrive(path string) bool {
	// Check Windows UNC paths first, before converting to absolute path
	if strings.HasPrefix(path, "//") || strings.HasPrefix(path, "\\\\") {
		return true
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	for _, prefix := range networkPrefixes {
		if strings.HasPrefix(absPath, prefix) {
			return true
		}
	}

	lowerPath := strings.ToLower(absPath)
	for _, indicator := range networkIndicators {
		if strings.Contains(lowerPath, indicator) {
			return true
		}
	}

	return false
}

// DefaultWorkers picks a worker count for processing folders under root:
// half the CPUs, or a single worker when root is on a network drive. The
// second return value reports whether a network drive was detected.
func DefaultWorkers(root string) (int, bool) {
	if IsNetworkDrive(root) {
		return 1, true
	}
	return max(runtime.NumCPU()/2, 1), false
}
