package utils

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func ParseCredentials(auth string) (string, string, error) {
	user, pass, ok := strings.Cut(auth, ":")
	if !ok || user == "" {
		return "", "", ErrInvalidCredentials
	}
	return user, pass, nil
}

// FormatUnits renders a byte count on a base-1024 ladder using the largest unit
// with a magnitude of at least 1, rounded to a whole number (2048 -> "2KB").
func FormatUnits(bytes float64) string {
	if math.IsNaN(bytes) || math.IsInf(bytes, 0) || bytes <= 0 {
		return "0 Byte"
	}
	value, exp := bytes, 0
	for value >= 1024 && exp < len(sizeUnits)-1 {
		value /= 1024
		exp++
	}
	rounded := math.Round(value)
	if rounded == 0 {
		return "0 Byte"
	}
	return fmt.Sprintf("%d%s", int64(rounded), sizeUnits[exp])
}

func FormatRate(bytesPerSecond float64) string {
	return FormatUnits(bytesPerSecond) + "/s"
}

// FormatETA renders seconds as MM:SS; minutes keep counting past 99.
func FormatETA(seconds float64, known bool) string {
	if !known || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--:--"
	}
	total := int64(math.Round(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// ParseByteSize parses sizes like "512", "64KB", "1.5GiB" with base-1024 multipliers.
func ParseByteSize(s string) (int64, error) {
	matches := byteSizeRegex.FindStringSubmatch(strings.ToUpper(s))
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidByteSize, s)
	}
	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidByteSize, s)
	}
	multiplier := float64(1)
	switch matches[2] {
	case "K":
		multiplier = 1 << 10
	case "M":
		multiplier = 1 << 20
	case "G":
		multiplier = 1 << 30
	case "T":
		multiplier = 1 << 40
	}
	return int64(value * multiplier), nil
}

func TempName(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+TempSuffix)
}

// CleanTempFiles removes leftover temp and stub artifacts in dir and returns their paths.
func CleanTempFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasSuffix(name, TempSuffix) && !strings.HasSuffix(name, StubSuffix) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}
