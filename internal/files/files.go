// Package files holds small file-system helpers shared across packages.
package files

import "os"

// Exists returns whether the file or directory exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNewer reports whether path exists and was modified at or after the
// modification time of reference. A missing reference counts as older.
func IsNewer(path, reference string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	refInfo, err := os.Stat(reference)
	if err != nil {
		return true
	}
	return !info.ModTime().Before(refInfo.ModTime())
}
