package scanner

import (
	"io"
	"os"

	"github.com/h2non/filetype"

	"github.com/jamesainslie/shelf/pkg/shelf/types"
)

// sniffLen is the header size filetype needs to recognize every format.
const sniffLen = 261

var extensionCategories = map[string]types.Category{}

func init() {
	register(types.CategoryImage, "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp",
		"heic", "heif", "svg", "raw", "cr2", "nef", "arw", "dng", "ico")
	register(types.CategoryVideo, "mp4", "m4v", "mov", "avi", "mkv", "webm", "wmv", "flv", "mpg", "mpeg", "3gp")
	register(types.CategoryAudio, "mp3", "m4a", "aac", "flac", "wav", "ogg", "oga", "opus", "wma", "aiff", "alac")
	register(types.CategoryDocument, "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "odt", "ods",
		"odp", "rtf", "txt", "md", "csv", "epub", "pages", "numbers", "key")
	register(types.CategoryArchive, "zip", "tar", "gz", "tgz", "bz2", "xz", "7z", "rar", "zst")
	register(types.CategoryInstaller, "dmg", "pkg", "msi", "exe", "deb", "rpm", "appimage", "apk")
	register(types.CategoryCode, "go", "py", "js", "ts", "tsx", "jsx", "rb", "rs", "java", "c", "h",
		"cpp", "hpp", "cs", "swift", "kt", "sh", "sql", "json", "yaml", "yml", "toml", "html", "css")
}

func register(c types.Category, exts ...string) {
	for _, ext := range exts {
		extensionCategories[ext] = c
	}
}

// CategoryForExtension classifies a normalized extension. ok is false for
// extensions missing from the table.
func CategoryForExtension(ext string) (types.Category, bool) {
	c, ok := extensionCategories[types.NormalizeExtension(ext)]
	return c, ok
}

// Sniff classifies a file header by its magic bytes.
func Sniff(head []byte) types.Category {
	switch {
	case filetype.IsImage(head):
		return types.CategoryImage
	case filetype.IsVideo(head):
		return types.CategoryVideo
	case filetype.IsAudio(head):
		return types.CategoryAudio
	case filetype.IsDocument(head):
		return types.CategoryDocument
	case filetype.IsArchive(head):
		return types.CategoryArchive
	}
	return types.CategoryOther
}

func sniffFile(path string) (types.Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.CategoryOther, err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return types.CategoryOther, err
	}
	return Sniff(head[:n]), nil
}
