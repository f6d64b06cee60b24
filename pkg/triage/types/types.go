// Package types provides core data types for the triage file classifier.
// It includes the file reference passed through processing jobs, the file
// category taxonomy, and utility functions for parsing and formatting
// file sizes.
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Category classifies the storage origin of a file flowing through a job.
type Category int

const (
	// CategoryRegular is an ordinary file system file.
	CategoryRegular Category = iota

	// CategorySlack is a reserved storage-artifact file reconstructed from
	// slack space. Slack files are excluded from rule evaluation.
	CategorySlack

	// CategoryVirtual is a synthetic file created by an upstream stage
	// (e.g. an extracted archive member).
	CategoryVirtual
)

// Category string constants.
const (
	categoryRegular = "regular"
	categorySlack   = "slack"
	categoryVirtual = "virtual"
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryRegular:
		return categoryRegular
	case CategorySlack:
		return categorySlack
	case CategoryVirtual:
		return categoryVirtual
	default:
		return categoryRegular
	}
}

// ErrInvalidCategory indicates that the category string could not be parsed.
var ErrInvalidCategory = errors.New("invalid file category")

// ParseCategory parses a string into a Category.
// Valid values are "regular", "slack", and "virtual" (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case categoryRegular:
		return CategoryRegular, nil
	case categorySlack:
		return CategorySlack, nil
	case categoryVirtual:
		return CategoryVirtual, nil
	default:
		return CategoryRegular, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// FileRef identifies one file handed to the classification stage by the
// active processing job. It carries the metadata rules match against.
type FileRef struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`

	// Category is the storage origin of the file.
	Category Category `json:"category"`
}

// Name returns the base name of the file.
func (f FileRef) Name() string {
	return filepath.Base(f.Path)
}

// Dir returns the directory containing the file.
func (f FileRef) Dir() string {
	return filepath.Dir(f.Path)
}

// Ext returns the lowercased file extension including the dot (e.g. ".txt").
func (f FileRef) Ext() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

// HumanSize returns the file size formatted as a human-readable string.
// It uses binary (IEC) units (KiB, MiB, GiB, TiB).
func (f FileRef) HumanSize() string {
	return FormatSize(f.Size)
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports plain bytes ("1024"), and K/M/G/T suffixes with optional B or iB
// ("100K", "50MB", "2GiB"). Decimal values are supported and truncated to the
// nearest byte. Leading and trailing whitespace is ignored.
//
// Returns ErrInvalidSize if the format is not recognized.
// Returns ErrNegativeSize if the value is negative.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
