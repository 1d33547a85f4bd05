package browser

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/h2non/filetype"
)

const (
	// TextPreviewMaxSize is the largest file previewed as text regardless of type.
	TextPreviewMaxSize = 1024 * 1024

	// TextPreviewLimit is how much of a text file the preview shows.
	TextPreviewLimit = 512 * 1024

	defaultMIME = "application/octet-stream"

	// filetype needs at most this many leading bytes
	sniffLen = 262
)

var mimeByExt = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "text/xml",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".java": "text/x-java-source",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".cpp":  "text/x-c",
	".py":   "text/x-python",
	".sh":   "text/x-script.sh",
	".go":   "text/x-go",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
}

// MIMEByExtension guesses a content type from the file name alone. The
// second result is false when the extension is unknown.
func MIMEByExtension(name string) (string, bool) {
	mime, ok := mimeByExt[strings.ToLower(path.Ext(name))]
	if !ok {
		return defaultMIME, false
	}

	return mime, true
}

// SniffMIME guesses a content type from the leading bytes of a file.
func SniffMIME(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return defaultMIME
	}

	return kind.MIME.Value
}

// IsText reports whether mime is rendered as text.
func IsText(mime string) bool {
	return strings.HasPrefix(mime, "text/") ||
		mime == "application/json" ||
		mime == "application/xml" ||
		mime == "application/javascript"
}

// PreviewKind selects how the console presents a file.
type PreviewKind string

const (
	PreviewImage    PreviewKind = "image"
	PreviewAudio    PreviewKind = "audio"
	PreviewVideo    PreviewKind = "video"
	PreviewText     PreviewKind = "text"
	PreviewDownload PreviewKind = "download"
)

// Preview picks the preview for a file of the given type and size. Small
// files of unknown type are still shown as text.
func Preview(mime string, size int64) PreviewKind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return PreviewImage
	case strings.HasPrefix(mime, "video/"):
		return PreviewVideo
	case strings.HasPrefix(mime, "audio/"):
		return PreviewAudio
	case IsText(mime) || size < TextPreviewMaxSize:
		return PreviewText
	default:
		return PreviewDownload
	}
}

// Blob is an open file at a commit. Close releases the reader.
type Blob struct {
	io.ReadCloser

	Name string
	Size int64
	MIME string
}

// Blob opens the file at p in commit.
func (r *Repository) Blob(commit *object.Commit, p string) (*Blob, error) {
	target, err := r.ResolvePath(commit, p)
	if err != nil {
		return nil, err
	}

	if target.IsDir || !target.Mode.IsFile() {
		return nil, ErrNotAFile
	}

	blob, err := r.repo.BlobObject(target.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", target.Path, err)
	}

	mime, known := MIMEByExtension(target.Path)
	if !known {
		mime, err = sniffBlob(blob)
		if err != nil {
			return nil, err
		}
	}

	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target.Path, err)
	}

	return &Blob{
		ReadCloser: rd,
		Name:       path.Base(target.Path),
		Size:       blob.Size,
		MIME:       mime,
	}, nil
}

func sniffBlob(blob *object.Blob) (string, error) {
	rd, err := blob.Reader()
	if err != nil {
		return "", fmt.Errorf("failed to read blob %s: %w", blob.Hash, err)
	}
	defer func() { _ = rd.Close() }()

	head := make([]byte, sniffLen)

	n, err := io.ReadFull(rd, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read blob %s: %w", blob.Hash, err)
	}

	return SniffMIME(head[:n]), nil
}

// ReadPreview reads up to TextPreviewLimit bytes of b. The second result
// reports whether the content was cut.
func ReadPreview(b *Blob) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(b, TextPreviewLimit))
	if err != nil {
		return nil, false, err
	}

	return data, b.Size > TextPreviewLimit, nil
}
