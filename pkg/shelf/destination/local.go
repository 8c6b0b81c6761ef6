package destination

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// Top-level folders used in local mode.
const (
	FolderPhotos      = "Photos"
	FolderScreenshots = "Screenshots"
	FolderMusic       = "Music"
	FolderDocuments   = "Documents"
	FolderVideos      = "Videos"
	FolderArchives    = "Archives"
	FolderOther       = "Other"
)

// documentEntities maps a document folder to the filename keywords that
// select it. Order matters: the first entity with a matching word wins.
var documentEntities = []struct {
	folder   string
	keywords []string
}{
	{"Invoices", []string{"invoice", "bill"}},
	{"Receipts", []string{"receipt"}},
	{"Statements", []string{"statement"}},
	{"Contracts", []string{"contract", "agreement", "lease"}},
	{"Taxes", []string{"tax", "w2", "1099"}},
	{"Resumes", []string{"resume", "cv"}},
	{"Manuals", []string{"manual", "handbook", "guide"}},
}

var yearPattern = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)[0-9]{2})(?:[^0-9]|$)`)

var screenshotPrefixes = []string{"screenshot", "screen shot", "cleanshot"}

// localDir picks the directory, relative to the local base, for f.
func (r *Resolver) localDir(f *types.FileDescriptor, rule *rules.Rule, vars *Vars) string {
	year, hasYear := vars.Get("year")
	month, _ := vars.Get("month")

	switch {
	case rule.Action.LocalTo != "":
		return vars.Interpolate(rule.Action.LocalTo)

	case f.Category == types.CategoryImage && f.Metadata.HasExif():
		ey, ok := vars.Get("exif.year")
		if !ok {
			return FolderPhotos
		}
		em, _ := vars.Get("exif.month")
		return filepath.Join(FolderPhotos, ey, em)

	case isScreenshot(f, rule):
		if !hasYear {
			return FolderScreenshots
		}
		return filepath.Join(FolderScreenshots, year+"-"+month)

	case f.Category == types.CategoryAudio:
		artist, okArtist := f.Metadata.String(types.MetaArtist)
		album, okAlbum := f.Metadata.String(types.MetaAlbum)
		artist, album = Sanitize(artist), Sanitize(album)
		if okArtist && okAlbum && artist != "" && album != "" {
			return filepath.Join(FolderMusic, artist, album)
		}
		return FolderMusic

	case f.Category == types.CategoryDocument:
		return documentDir(f, year)

	case f.Category == types.CategoryVideo:
		if !hasYear {
			return FolderVideos
		}
		return filepath.Join(FolderVideos, year)

	case f.Category == types.CategoryArchive:
		return FolderArchives

	default:
		return FolderOther
	}
}

func isScreenshot(f *types.FileDescriptor, rule *rules.Rule) bool {
	if strings.EqualFold(rule.Name, rules.RuleScreenshots) {
		return true
	}
	name := strings.ToLower(f.Filename)
	for _, p := range screenshotPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// documentDir derives Documents/<Entity>/<Year> from the filename. The
// year is the first plausible one in the name, else the file's own year.
func documentDir(f *types.FileDescriptor, fallbackYear string) string {
	parts := []string{FolderDocuments}
	if entity := documentEntity(f.Stem()); entity != "" {
		parts = append(parts, entity)
	}
	if y := filenameYear(f.Stem()); y != "" {
		parts = append(parts, y)
	} else if fallbackYear != "" {
		parts = append(parts, fallbackYear)
	}
	return filepath.Join(parts...)
}

func documentEntity(stem string) string {
	words := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, e := range documentEntities {
		for _, kw := range e.keywords {
			for _, w := range words {
				if w == kw || (len(kw) > 3 && strings.HasPrefix(w, kw)) {
					return e.folder
				}
			}
		}
	}
	return ""
}

func filenameYear(stem string) string {
	for _, m := range yearPattern.FindAllStringSubmatch(stem, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil && y >= 1970 {
			return m[1]
		}
	}
	return ""
}
