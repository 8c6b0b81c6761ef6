// Package destination turns a matched rule and a file into a concrete
// target path.
//
// Two modes exist. Global mode interpolates the rule's destination template
// against file-derived variables and named aliases such as {pictures}. Local
// mode ignores the template and files everything under a caller-supplied base
// directory using a fixed layout (Photos, Screenshots, Music, Documents, ...),
// unless the rule carries an explicit local_to template.
package destination

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// ModeKind selects how destinations are resolved.
type ModeKind int

const (
	// Global resolves rule templates against aliases.
	Global ModeKind = iota
	// Local files everything below a base directory.
	Local
)

func (k ModeKind) String() string {
	if k == Local {
		return "local"
	}
	return "global"
}

// Mode is a resolution mode. In Local mode everything lands below Base. In
// Global mode Base anchors templates that expand to a relative path; an
// empty Base leaves them relative.
type Mode struct {
	Kind ModeKind
	Base string
}

// GlobalMode returns the alias-based resolution mode.
func GlobalMode() Mode { return Mode{Kind: Global} }

// GlobalModeAt returns the alias-based mode with relative templates
// anchored at root.
func GlobalModeAt(root string) Mode { return Mode{Kind: Global, Base: root} }

// LocalMode returns the directory-relative mode rooted at base.
func LocalMode(base string) Mode { return Mode{Kind: Local, Base: base} }

// Resolver resolves destination paths. It is safe for concurrent use once
// constructed.
type Resolver struct {
	aliases map[string]string
	home    string
}

// NewResolver creates a resolver with the given aliases. Alias names are
// case-insensitive and values may start with ~/.
func NewResolver(aliases map[string]string) *Resolver {
	home, err := os.UserHomeDir()
	if err != nil {
		home = xdg.Home
	}
	r := &Resolver{aliases: make(map[string]string, len(aliases)), home: home}
	for name, path := range aliases {
		r.aliases[strings.ToLower(name)] = r.expandHome(path)
	}
	return r
}

// DefaultAliases returns the built-in aliases derived from the XDG user
// directories.
func DefaultAliases() map[string]string {
	return map[string]string{
		"home":      xdg.Home,
		"desktop":   xdg.UserDirs.Desktop,
		"documents": xdg.UserDirs.Documents,
		"downloads": xdg.UserDirs.Download,
		"music":     xdg.UserDirs.Music,
		"pictures":  xdg.UserDirs.Pictures,
		"videos":    xdg.UserDirs.Videos,
		"archive":   filepath.Join(xdg.Home, "Archive"),
	}
}

// MergeAliases overlays custom on defaults.
func MergeAliases(defaults, custom map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(custom))
	for k, v := range defaults {
		out[strings.ToLower(k)] = v
	}
	for k, v := range custom {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Alias returns the expanded path of a named alias.
func (r *Resolver) Alias(name string) (string, bool) {
	p, ok := r.aliases[strings.ToLower(name)]
	return p, ok
}

// Resolve returns the destination path for f under rule. The second result
// is false when the action has no destination (delete).
func (r *Resolver) Resolve(f *types.FileDescriptor, rule *rules.Rule, mode Mode) (string, bool) {
	if rule.Action.Delete {
		return "", false
	}

	vars := r.Vars(f)
	var dir string
	if mode.Kind == Local {
		dir = filepath.Join(mode.Base, r.localDir(f, rule, vars))
	} else {
		tmpl := rule.Action.Template()
		if tmpl == "" {
			return "", false
		}
		dir = r.expandHome(vars.Interpolate(tmpl))
		if mode.Base != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(mode.Base, dir)
		}
	}
	return withFilename(dir, f.Filename), true
}

// Vars builds the template variables for f.
func (r *Resolver) Vars(f *types.FileDescriptor) *Vars {
	v := NewVars()

	if ts := f.ReferenceTime(); !ts.IsZero() {
		v.Set("year", ts.Year())
		v.Set("month", fmt.Sprintf("%02d", int(ts.Month())))
		v.Set("day", fmt.Sprintf("%02d", ts.Day()))
	}

	v.Set("filename", f.Filename)
	v.Set("name", f.Stem())
	v.Set("ext", f.Extension)
	v.Set("extension", f.Extension)
	v.Set("category", string(f.Category))

	if date, ok := f.Metadata.ExifDate(); ok {
		v.Set("exif.year", date.Year())
		v.Set("exif.month", fmt.Sprintf("%02d", int(date.Month())))
	} else if f.Metadata.HasExif() {
		if y, ok := v.Get("year"); ok {
			m, _ := v.Get("month")
			v.Set("exif.year", y)
			v.Set("exif.month", m)
		}
	}

	for _, key := range []string{types.MetaArtist, types.MetaAlbum, types.MetaAuthor, types.MetaTitle} {
		if raw, ok := f.Metadata.String(key); ok {
			if clean := Sanitize(raw); clean != "" {
				v.Set(key, clean)
			}
		}
	}
	if f.Category == types.CategoryAudio {
		v.SetDefault(types.MetaArtist, "Unknown Artist")
		v.SetDefault(types.MetaAlbum, "Unknown Album")
	}

	for _, name := range slices.Sorted(maps.Keys(r.aliases)) {
		v.SetDefault(name, r.aliases[name])
	}
	return v
}

func (r *Resolver) expandHome(p string) string {
	switch {
	case p == "~":
		return r.home
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(r.home, p[2:])
	default:
		return p
	}
}

// withFilename appends name to dir unless dir already ends in it.
func withFilename(dir, name string) string {
	clean := filepath.Clean(dir)
	if filepath.Base(clean) == name {
		return clean
	}
	return filepath.Join(clean, name)
}
