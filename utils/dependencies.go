package utils

import (
	"fmt"
	"os/exec"
	"runtime"
)

// ValidateOIIOToolDependency checks that the oiiotool binary is available,
// either as a path or on PATH.
func ValidateOIIOToolDependency(binary string) error {
	if binary == "" {
		binary = "oiiotool"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s not found in PATH. %s", binary, getInstallationInstructions())
	}
	return nil
}

// getInstallationInstructions returns platform-specific installation instructions
func getInstallationInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install with: brew install openimageio"
	case "linux":
		return "Install with: apt-get install openimageio-tools (Ubuntu/Debian) or dnf install OpenImageIO-utils (Fedora/RHEL)"
	case "windows":
		return "Install with: vcpkg install openimageio[tools] and add oiiotool to PATH"
	default:
		return "Download from https://github.com/AcademySoftwareFoundation/OpenImageIO"
	}
}
