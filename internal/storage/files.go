package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sgaravatti/cantieri-docs/constants"
)

// FileManager owns the on-disk layout under the data directory. Uploaded
// documents land in uploads/, generated exports in exports/.
type FileManager struct {
	baseDir        string
	uploadsDir     string
	exportsDir     string
	maxUploadBytes int64
}

var sniffableContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
}

func NewFileManager(baseDir string, maxUploadBytes int64) (*FileManager, error) {
	fm := &FileManager{
		baseDir:        baseDir,
		uploadsDir:     filepath.Join(baseDir, "uploads"),
		exportsDir:     filepath.Join(baseDir, "exports"),
		maxUploadBytes: maxUploadBytes,
	}
	for _, dir := range []string{fm.baseDir, fm.uploadsDir, fm.exportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return fm, nil
}

// SavedFile describes an upload that was accepted and written to disk.
type SavedFile struct {
	FileName string // unique name on disk
	Path     string // absolute path under uploads/
	Size     int64
}

// SaveUpload sniffs the content, checks the extension against the allowed
// document formats, and writes the file under a uuid-prefixed name. The
// original filename is only used for its extension and for display.
func (fm *FileManager) SaveUpload(file multipart.File, originalName string) (*SavedFile, error) {
	sample := make([]byte, 512)
	n, err := file.Read(sample)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read upload sample: %w", err)
	}
	sample = sample[:n]

	ext := constants.NormalizeExt(filepath.Ext(originalName))
	contentType := strings.ToLower(http.DetectContentType(sample))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if ext == "" {
		ext = sniffableContentTypes[contentType]
	}
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported file type %q (content %q)", ext, contentType)
	}
	if sniffed, ok := sniffableContentTypes[contentType]; ok && sniffed != ext && !(sniffed == "jpg" && ext == "jpeg") {
		// keep the sniffed truth over a lying extension
		ext = sniffed
	}

	name := fmt.Sprintf("%s-%s.%s", uuid.NewString(), sanitizeBase(originalName), ext)
	path := filepath.Join(fm.uploadsDir, name)

	size, err := fm.writeWithLimit(path, sample, file)
	if err != nil {
		return nil, err
	}
	return &SavedFile{FileName: name, Path: path, Size: size}, nil
}

// UploadPath resolves a stored file name back to its absolute path, refusing
// names that would escape the uploads directory.
func (fm *FileManager) UploadPath(fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	return filepath.Join(fm.uploadsDir, fileName), nil
}

// ExportPath returns the path for a generated export artifact.
func (fm *FileManager) ExportPath(fileName string) string {
	return filepath.Join(fm.exportsDir, fileName)
}

// Remove deletes a stored upload. Missing files are not an error.
func (fm *FileManager) Remove(fileName string) error {
	path, err := fm.UploadPath(fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

func (fm *FileManager) writeWithLimit(path string, sample []byte, file multipart.File) (int64, error) {
	if fm.maxUploadBytes > 0 && int64(len(sample)) > fm.maxUploadBytes {
		return 0, fmt.Errorf("file exceeds maximum size")
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	cleanup := func(err error) (int64, error) {
		out.Close()
		os.Remove(path)
		return 0, err
	}

	total := int64(0)
	if len(sample) > 0 {
		if _, err := out.Write(sample); err != nil {
			return cleanup(fmt.Errorf("write upload sample: %w", err))
		}
		total += int64(len(sample))
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxUploadBytes > 0 && total > fm.maxUploadBytes {
				return cleanup(fmt.Errorf("file exceeds maximum size"))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write upload file: %w", werr))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read upload content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("close upload file: %w", err)
	}
	return total, nil
}

// sanitizeBase reduces the original name to a short, safe slug kept in the
// stored filename for operator readability.
func sanitizeBase(originalName string) string {
	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		s = "file"
	}
	return s
}
