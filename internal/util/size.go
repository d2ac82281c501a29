package util

import "fmt"

// Binary size units.
const (
	KiB uint64 = 1024
	MiB        = KiB * 1024
	GiB        = MiB * 1024
)

// FormatSize renders a byte count with a 1024 base, using two decimals for
// KB, MB and GB and a plain integer below one KB.
//
// Parameters:
//   - bytes: Size in bytes.
//
// Returns:
//   - string: Formatted size, e.g. "512 B" or "1.50 MB".
func FormatSize(bytes uint64) string {
	switch {
	case bytes >= GiB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GiB))
	case bytes >= MiB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MiB))
	case bytes >= KiB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KiB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
