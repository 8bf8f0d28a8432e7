// Package upload validates resume template files before they reach the state store.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// DefaultMaxBytes is the largest accepted template.
const DefaultMaxBytes int64 = 1 << 20

// AllowedExtension is the only template type the backend compiles.
const AllowedExtension = ".tex"

// ResumeMaxBytes is the largest resume accepted for an ATS check.
const ResumeMaxBytes int64 = 10 << 20

// ResumeExtensions are the document types the ATS check can read.
var ResumeExtensions = []string{".pdf", ".docx", ".doc", ".tex", ".latex"}

var (
	ErrUnsupportedExtension = errors.New("only .tex files are supported")
	ErrUnsupportedResume    = errors.New("unsupported file format, please upload a PDF, DOCX or LaTeX (.tex) file")
	ErrEmptyFile            = errors.New("file is empty")
	ErrFileTooLarge         = errors.New("file is too large")
	ErrNotText              = errors.New("file is not valid UTF-8 text")
)

// Error ties a validation failure to a file name.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CheckName rejects names without the allowed extension.
func CheckName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), AllowedExtension) {
		return &Error{Name: name, Err: ErrUnsupportedExtension}
	}
	return nil
}

// Validate checks a template's name and content. A non-positive maxBytes uses DefaultMaxBytes.
func Validate(name string, content []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := CheckName(name); err != nil {
		return err
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return &Error{Name: name, Err: ErrEmptyFile}
	}
	if int64(len(content)) > maxBytes {
		return &Error{Name: name, Err: fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, len(content), maxBytes)}
	}
	if !utf8.Valid(content) {
		return &Error{Name: name, Err: ErrNotText}
	}
	return nil
}

// CheckResumeName rejects names that are not a supported resume document.
func CheckResumeName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range ResumeExtensions {
		if ext == allowed {
			return nil
		}
	}
	return &Error{Name: name, Err: ErrUnsupportedResume}
}

// ValidateResume checks a resume document for an ATS check. The content may
// be binary. A non-positive maxBytes uses ResumeMaxBytes.
func ValidateResume(name string, content []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = ResumeMaxBytes
	}
	if err := CheckResumeName(name); err != nil {
		return err
	}
	if len(content) == 0 {
		return &Error{Name: name, Err: ErrEmptyFile}
	}
	if int64(len(content)) > maxBytes {
		return &Error{Name: name, Err: fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, len(content), maxBytes)}
	}
	return nil
}

// rules are the checks for one kind of file.
type rules struct {
	what     string
	def      int64
	check    func(name string) error
	validate func(name string, content []byte, maxBytes int64) error
}

var (
	templateRules = rules{what: "template", def: DefaultMaxBytes, check: CheckName, validate: Validate}
	resumeRules   = rules{what: "resume", def: ResumeMaxBytes, check: CheckResumeName, validate: ValidateResume}
)

// ReadTemplate reads and validates a template from fs. The size is checked before reading.
func ReadTemplate(fs afero.Fs, path string, maxBytes int64) (string, []byte, error) {
	return readFile(fs, path, maxBytes, templateRules)
}

// ReadResume reads and validates a resume document from fs.
func ReadResume(fs afero.Fs, path string, maxBytes int64) (string, []byte, error) {
	return readFile(fs, path, maxBytes, resumeRules)
}

// ReadMultipart reads and validates an uploaded template.
func ReadMultipart(fh *multipart.FileHeader, maxBytes int64) (string, []byte, error) {
	return readUpload(fh, maxBytes, templateRules)
}

// ReadResumeMultipart reads and validates an uploaded resume document.
func ReadResumeMultipart(fh *multipart.FileHeader, maxBytes int64) (string, []byte, error) {
	return readUpload(fh, maxBytes, resumeRules)
}

func readFile(fs afero.Fs, path string, maxBytes int64, r rules) (string, []byte, error) {
	if maxBytes <= 0 {
		maxBytes = r.def
	}
	name := filepath.Base(path)
	if err := r.check(name); err != nil {
		return "", nil, err
	}

	info, err := fs.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat %s %s: %w", r.what, path, err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%s %s is a directory", r.what, path)
	}
	if info.Size() > maxBytes {
		return "", nil, &Error{Name: name, Err: fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, info.Size(), maxBytes)}
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s %s: %w", r.what, path, err)
	}
	if err := r.validate(name, content, maxBytes); err != nil {
		return "", nil, err
	}
	return name, content, nil
}

func readUpload(fh *multipart.FileHeader, maxBytes int64, r rules) (string, []byte, error) {
	if maxBytes <= 0 {
		maxBytes = r.def
	}
	name := filepath.Base(fh.Filename)
	if err := r.check(name); err != nil {
		return "", nil, err
	}
	if fh.Size > maxBytes {
		return "", nil, &Error{Name: name, Err: fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, fh.Size, maxBytes)}
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload %s: %w", name, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload %s: %w", name, err)
	}
	if err := r.validate(name, content, maxBytes); err != nil {
		return "", nil, err
	}
	return name, content, nil
}
