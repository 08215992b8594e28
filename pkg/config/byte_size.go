package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is an int64 byte count parsed from human-readable strings like
// "256kb", "16MiB", or a plain digit count. It implements flag.Value so the
// COPY batch thresholds can be set directly from the command line.
type ByteSize int64

// Common byte size units. IEC units (KiB, MiB, GiB) are powers of 1024, SI
// units (KB, MB, GB) powers of 1000.
const (
	Byte ByteSize = 1
	KB   ByteSize = 1000
	KiB  ByteSize = 1024
	MB   ByteSize = 1000 * 1000
	MiB  ByteSize = 1024 * 1024
	GB   ByteSize = 1000 * 1000 * 1000
	GiB  ByteSize = 1024 * 1024 * 1024
)

// Int64 returns the byte size as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String renders the size with the largest unit that divides it evenly,
// preferring IEC units.
func (b ByteSize) String() string {
	switch {
	case b >= GiB && b%GiB == 0:
		return fmt.Sprintf("%dGiB", b/GiB)
	case b >= MiB && b%MiB == 0:
		return fmt.Sprintf("%dMiB", b/MiB)
	case b >= KiB && b%KiB == 0:
		return fmt.Sprintf("%dKiB", b/KiB)
	case b >= GB && b%GB == 0:
		return fmt.Sprintf("%dGB", b/GB)
	case b >= MB && b%MB == 0:
		return fmt.Sprintf("%dMB", b/MB)
	case b >= KB && b%KB == 0:
		return fmt.Sprintf("%dKB", b/KB)
	default:
		return fmt.Sprintf("%d", b)
	}
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	parsed, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseByteSize parses a human-readable byte size string: "256", "256b",
// "256kb", "256KiB", "1m", "1.5gib", etc. Unit matching is case insensitive.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := len(s)
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			split = i
			break
		}
	}
	numStr := s[:split]
	unit := strings.ToLower(strings.TrimSpace(s[split:]))

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: expected format like '256kb', '1MiB', or '1024'", s)
	}

	var multiplier ByteSize
	switch unit {
	case "", "b":
		multiplier = Byte
	case "k", "kb":
		multiplier = KB
	case "kib":
		multiplier = KiB
	case "m", "mb":
		multiplier = MB
	case "mib":
		multiplier = MiB
	case "g", "gb":
		multiplier = GB
	case "gib":
		multiplier = GiB
	default:
		return 0, fmt.Errorf("invalid byte size unit %q", unit)
	}

	return ByteSize(num * float64(multiplier)), nil
}
