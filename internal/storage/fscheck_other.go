//go:build !darwin && !linux

package storage

// No detection on this platform; the path is treated as local.
func filesystemType(string) (string, error) {
	return "unknown", nil
}
