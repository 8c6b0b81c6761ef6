package destination_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/destination"
	"github.com/jamesainslie/shelf/pkg/shelf/rules"
	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

func file(path string, cat types.Category, modified time.Time, meta types.Metadata) *types.FileDescriptor {
	f := types.NewFileDescriptor(path)
	f.Category = cat
	f.Modified = modified
	f.Metadata = meta
	return &f
}

var jan2024 = time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)

func TestResolveGlobalScreenshotExample(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(nil)
	rule := &rules.Rule{
		Name:     "Screenshots",
		Priority: 100,
		Match:    rules.Conditions{Extension: []string{"png"}, Filename: []string{"Screenshot*"}},
		Action:   rules.Action{MoveTo: "Pix/{year}-{month}/"},
	}
	f := file("/home/u/Desktop/Screenshot 2024-01-01.png", types.CategoryImage, jan2024, nil)

	dest, ok := r.Resolve(f, rule, destination.GlobalMode())
	require.True(t, ok)
	assert.Equal(t, filepath.Join("Pix", "2024-01", "Screenshot 2024-01-01.png"), dest)
}

func TestResolveGlobalAnchorsRelativeTemplates(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(map[string]string{"pictures": "/data/pictures"})
	f := file("/home/u/inbox/Screenshot 2024-01-01.png", types.CategoryImage, jan2024, nil)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "relative", tmpl: "Pix/{year}-{month}/", want: "/home/u/inbox/Pix/2024-01/Screenshot 2024-01-01.png"},
		{name: "absolute alias", tmpl: "{pictures}/{year}", want: "/data/pictures/2024/Screenshot 2024-01-01.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, ok := r.Resolve(f, &rules.Rule{Name: "t", Action: rules.Action{MoveTo: tt.tmpl}},
				destination.GlobalModeAt("/home/u/inbox"))
			require.True(t, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), dest)
		})
	}
}

func TestResolveGlobal(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(map[string]string{
		"Pictures": "/data/pictures",
		"music":    "/data/music",
		"year":     "/never/used",
	})

	tests := []struct {
		name string
		tmpl string
		f    *types.FileDescriptor
		want string
	}{
		{
			name: "alias is case-insensitive",
			tmpl: "{pictures}/{year}",
			f:    file("/in/a.jpg", types.CategoryImage, jan2024, nil),
			want: "/data/pictures/2024/a.jpg",
		},
		{
			name: "alias never shadows a file variable",
			tmpl: "/out/{year}",
			f:    file("/in/a.jpg", types.CategoryImage, jan2024, nil),
			want: "/out/2024/a.jpg",
		},
		{
			name: "unknown tokens stay verbatim",
			tmpl: "/out/{nope}/{exif.make}",
			f:    file("/in/a.jpg", types.CategoryImage, jan2024, nil),
			want: "/out/{nope}/{exif.make}/a.jpg",
		},
		{
			name: "exif date",
			tmpl: "{pictures}/{exif.year}/{exif.month}",
			f: file("/in/p.jpg", types.CategoryImage, jan2024, types.Metadata{
				types.MetaExifDate: "2019:07:04 12:00:00",
			}),
			want: "/data/pictures/2019/07/p.jpg",
		},
		{
			name: "sanitized artist and album",
			tmpl: "{music}/{artist}/{album}",
			f: file("/in/s.mp3", types.CategoryAudio, jan2024, types.Metadata{
				types.MetaArtist: "AC/DC",
				types.MetaAlbum:  "Back: In Black?",
			}),
			want: "/data/music/ACDC/Back In Black/s.mp3",
		},
		{
			name: "audio without tags",
			tmpl: "{music}/{artist}/{album}",
			f:    file("/in/s.mp3", types.CategoryAudio, jan2024, nil),
			want: "/data/music/Unknown Artist/Unknown Album/s.mp3",
		},
		{
			name: "filename variables",
			tmpl: "/out/{category}/{ext}/{name}",
			f:    file("/in/report.PDF", types.CategoryDocument, jan2024, nil),
			want: "/out/document/pdf/report/report.PDF",
		},
		{
			name: "template ending in filename is not doubled",
			tmpl: "/out/{filename}",
			f:    file("/in/x.txt", types.CategoryOther, jan2024, nil),
			want: "/out/x.txt",
		},
		{
			name: "missing dates keep tokens",
			tmpl: "/out/{year}",
			f:    file("/in/x.txt", types.CategoryOther, time.Time{}, nil),
			want: "/out/{year}/x.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest, ok := r.Resolve(tt.f, &rules.Rule{Name: "t", Action: rules.Action{MoveTo: tt.tmpl}}, destination.GlobalMode())
			require.True(t, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), dest)
		})
	}
}

func TestResolveExpandsHome(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(map[string]string{"stash": "~/Stash"})
	f := file("/in/a.zip", types.CategoryArchive, jan2024, nil)

	dest, ok := r.Resolve(f, &rules.Rule{Name: "t", Action: rules.Action{Archive: "{stash}/{year}"}}, destination.GlobalMode())
	require.True(t, ok)
	assert.False(t, strings.HasPrefix(dest, "~"))
	assert.True(t, strings.HasSuffix(dest, filepath.Join("Stash", "2024", "a.zip")))

	dest, ok = r.Resolve(f, &rules.Rule{Name: "t", Action: rules.Action{MoveTo: "~/Zips"}}, destination.GlobalMode())
	require.True(t, ok)
	assert.True(t, filepath.IsAbs(dest))
}

func TestResolveDeleteHasNoDestination(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(nil)
	f := file("/in/setup.dmg", types.CategoryInstaller, jan2024, nil)
	rule := &rules.Rule{Name: "Old Installers", Action: rules.Action{Delete: true}}

	_, ok := r.Resolve(f, rule, destination.GlobalMode())
	assert.False(t, ok)
	_, ok = r.Resolve(f, rule, destination.LocalMode("/base"))
	assert.False(t, ok)
}

func TestResolveLocal(t *testing.T) {
	t.Parallel()

	r := destination.NewResolver(nil)
	plain := &rules.Rule{Name: "Anything", Action: rules.Action{MoveTo: "/ignored"}}

	tests := []struct {
		name string
		f    *types.FileDescriptor
		rule *rules.Rule
		want string
	}{
		{
			name: "exif photo",
			f: file("/base/IMG_1.jpg", types.CategoryImage, jan2024, types.Metadata{
				types.MetaExifDate: "2021:03:15 08:00:00",
			}),
			rule: plain,
			want: "/base/Photos/2021/03/IMG_1.jpg",
		},
		{
			name: "screenshot by filename",
			f:    file("/base/Screenshot 2024-01-01.png", types.CategoryImage, jan2024, nil),
			rule: plain,
			want: "/base/Screenshots/2024-01/Screenshot 2024-01-01.png",
		},
		{
			name: "screenshot by rule name",
			f:    file("/base/capture.png", types.CategoryImage, jan2024, nil),
			rule: &rules.Rule{Name: "Screenshots", Action: rules.Action{MoveTo: "x"}},
			want: "/base/Screenshots/2024-01/capture.png",
		},
		{
			name: "music with tags",
			f: file("/base/01.flac", types.CategoryAudio, jan2024, types.Metadata{
				types.MetaArtist: "Miles Davis",
				types.MetaAlbum:  "Kind of Blue",
			}),
			rule: plain,
			want: "/base/Music/Miles Davis/Kind of Blue/01.flac",
		},
		{
			name: "music without album",
			f:    file("/base/01.flac", types.CategoryAudio, jan2024, types.Metadata{types.MetaArtist: "X"}),
			rule: plain,
			want: "/base/Music/01.flac",
		},
		{
			name: "invoice with year in name",
			f:    file("/base/Invoice_ACME_2022-11.pdf", types.CategoryDocument, jan2024, nil),
			rule: plain,
			want: "/base/Documents/Invoices/2022/Invoice_ACME_2022-11.pdf",
		},
		{
			name: "tax form falls back to file year",
			f:    file("/base/w2-employer.pdf", types.CategoryDocument, jan2024, nil),
			rule: plain,
			want: "/base/Documents/Taxes/2024/w2-employer.pdf",
		},
		{
			name: "plain document",
			f:    file("/base/notes.docx", types.CategoryDocument, jan2024, nil),
			rule: plain,
			want: "/base/Documents/2024/notes.docx",
		},
		{
			name: "video",
			f:    file("/base/clip.mp4", types.CategoryVideo, jan2024, nil),
			rule: plain,
			want: "/base/Videos/2024/clip.mp4",
		},
		{
			name: "archive",
			f:    file("/base/old.zip", types.CategoryArchive, jan2024, nil),
			rule: plain,
			want: "/base/Archives/old.zip",
		},
		{
			name: "other",
			f:    file("/base/thing.bin", types.CategoryOther, jan2024, nil),
			rule: plain,
			want: "/base/Other/thing.bin",
		},
		{
			name: "local override",
			f:    file("/base/a.txt", types.CategoryOther, jan2024, nil),
			rule: &rules.Rule{Name: "Custom", Action: rules.Action{MoveTo: "x", LocalTo: "Sorted/{ext}/{year}"}},
			want: "/base/Sorted/txt/2024/a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest, ok := r.Resolve(tt.f, tt.rule, destination.LocalMode("/base"))
			require.True(t, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), dest)
		})
	}
}

func TestDefaultAliases(t *testing.T) {
	t.Parallel()

	aliases := destination.DefaultAliases()
	for _, name := range []string{"home", "desktop", "documents", "downloads", "music", "pictures", "videos", "archive"} {
		assert.Contains(t, aliases, name)
	}

	merged := destination.MergeAliases(aliases, map[string]string{"Pictures": "/elsewhere", "nas": "/mnt/nas"})
	assert.Equal(t, "/elsewhere", merged["pictures"])
	assert.Equal(t, "/mnt/nas", merged["nas"])
	assert.Equal(t, aliases["music"], merged["music"])
}
