// Package types provides the core data types shared across shelf: the
// read-only file descriptor produced by the scanner, its metadata helpers,
// the error taxonomy used by the executor and undo engine, and a clock
// abstraction for deterministic tests.
package types

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Category is a coarse classification of a file's content.
type Category string

// Known categories. The scanner assigns one of these; rules compare against
// them case-insensitively.
const (
	CategoryImage     Category = "image"
	CategoryVideo     Category = "video"
	CategoryAudio     Category = "audio"
	CategoryDocument  Category = "document"
	CategoryArchive   Category = "archive"
	CategoryInstaller Category = "installer"
	CategoryCode      Category = "code"
	CategoryOther     Category = "other"
)

// Categories returns the known categories.
func Categories() []Category {
	return []Category{
		CategoryImage, CategoryVideo, CategoryAudio, CategoryDocument,
		CategoryArchive, CategoryInstaller, CategoryCode, CategoryOther,
	}
}

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// Metadata keys understood by the rule matcher and destination resolver.
const (
	MetaExif         = "exif"
	MetaExifDate     = "exif.date"
	MetaArtist       = "artist"
	MetaAlbum        = "album"
	MetaAuthor       = "author"
	MetaTitle        = "title"
	exifKeyPrefix    = "exif."
	exifDateLayout   = "2006:01:02 15:04:05"
	exifDateFallback = "2006-01-02"
)

// FileDescriptor describes one filesystem entry plus enrichment metadata.
// It is supplied by an upstream collaborator and is never mutated by shelf.
type FileDescriptor struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Filename is the base name including extension.
	Filename string `json:"filename"`

	// Extension is the lowercase extension without the leading dot.
	Extension string `json:"extension"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Accessed time.Time `json:"accessed"`

	// Category is the coarse content classification.
	Category Category `json:"category"`

	// Metadata holds flat, dotted-key enrichment values (EXIF, audio tags).
	Metadata Metadata `json:"metadata,omitempty"`

	// Text is optional extracted text content.
	Text string `json:"text,omitempty"`
}

// NewFileDescriptor fills Filename and Extension from path.
func NewFileDescriptor(path string) FileDescriptor {
	name := filepath.Base(path)
	return FileDescriptor{
		Path:      path,
		Filename:  name,
		Extension: NormalizeExtension(filepath.Ext(name)),
	}
}

// Dir returns the directory containing the file.
func (f *FileDescriptor) Dir() string {
	return filepath.Dir(f.Path)
}

// Stem returns the filename without its extension.
func (f *FileDescriptor) Stem() string {
	return strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename))
}

// ReferenceTime returns the timestamp used for date-derived destinations:
// the modification time, or the creation time when it is unset.
func (f *FileDescriptor) ReferenceTime() time.Time {
	if !f.Modified.IsZero() {
		return f.Modified
	}
	return f.Created
}

// HumanSize returns the file size formatted with binary units.
func (f *FileDescriptor) HumanSize() string {
	return FormatSize(f.Size)
}

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Metadata is a flat map of enrichment values keyed by dotted names
// such as "exif.date" or "artist".
type Metadata map[string]any

// String returns the value for key rendered as a string, and whether it was present
// and non-empty.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		s = val.Format(time.RFC3339)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// HasExif reports whether any EXIF data is attached.
func (m Metadata) HasExif() bool {
	if v, ok := m[MetaExif]; ok && v != nil {
		if b, isBool := v.(bool); isBool {
			return b
		}
		return true
	}
	for k := range m {
		if strings.HasPrefix(k, exifKeyPrefix) {
			return true
		}
	}
	return false
}

// ExifDate returns the EXIF capture date when one is present and parseable.
func (m Metadata) ExifDate() (time.Time, bool) {
	v, ok := m[MetaExifDate]
	if !ok {
		return time.Time{}, false
	}
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		for _, layout := range []string{exifDateLayout, time.RFC3339, exifDateFallback} {
			if t, err := time.Parse(layout, strings.TrimSpace(val)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
