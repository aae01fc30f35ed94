package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

type ConstraintKind string

const (
	TooManyFiles ConstraintKind = "too_many_files"
	FileTooLarge ConstraintKind = "file_too_large"
	InvalidType  ConstraintKind = "invalid_type"
)

// ConstraintError reports an upload rejected before anything was written.
type ConstraintError struct {
	Kind     ConstraintKind
	Filename string
	Limit    int64
}

func (e *ConstraintError) Error() string {
	switch e.Kind {
	case TooManyFiles:
		return fmt.Sprintf("too many files: at most %d allowed", e.Limit)
	case FileTooLarge:
		return fmt.Sprintf("file too large: %s exceeds %d bytes", e.Filename, e.Limit)
	default:
		return fmt.Sprintf("invalid upload: %s has a disallowed file type", e.Filename)
	}
}

// Archiver stores a copy of a staged file and returns its location.
type Archiver interface {
	Archive(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// Stager validates uploaded files and writes them to Dir for the duration of one dispatch.
type Stager struct {
	Dir         string
	MaxFiles    int
	MaxFileSize int64
	AllowedExt  []string
	Archiver    Archiver
	Logger      *logrus.Logger
}

func NewStager(dir string, maxFiles int, maxFileSize int64, allowedExt []string, archiver Archiver, logger *logrus.Logger) *Stager {
	return &Stager{
		Dir:         dir,
		MaxFiles:    maxFiles,
		MaxFileSize: maxFileSize,
		AllowedExt:  allowedExt,
		Archiver:    archiver,
		Logger:      logger,
	}
}

func (s *Stager) allowed(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, a := range s.AllowedExt {
		if a == ext {
			return true
		}
	}
	return false
}

func (s *Stager) validate(files []*multipart.FileHeader) error {
	if s.MaxFiles > 0 && len(files) > s.MaxFiles {
		return &ConstraintError{Kind: TooManyFiles, Limit: int64(s.MaxFiles)}
	}
	for _, fh := range files {
		if s.MaxFileSize > 0 && fh.Size > s.MaxFileSize {
			return &ConstraintError{Kind: FileTooLarge, Filename: fh.Filename, Limit: s.MaxFileSize}
		}
		if !s.allowed(filepath.Ext(fh.Filename)) {
			return &ConstraintError{Kind: InvalidType, Filename: fh.Filename}
		}
	}
	return nil
}

// Stage checks every constraint first, then writes the files under random
// names. With no files it returns an empty, releasable Staged.
func (s *Stager) Stage(ctx context.Context, userID string, files []*multipart.FileHeader) (*Staged, error) {
	staged := &Staged{logger: s.Logger}
	if len(files) == 0 {
		return staged, nil
	}
	if err := s.validate(files); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	for _, fh := range files {
		f, err := s.save(fh)
		if err != nil {
			staged.Release()
			return nil, err
		}
		staged.files = append(staged.files, f)
	}

	if s.Archiver != nil {
		for i := range staged.files {
			s.archive(ctx, userID, &staged.files[i])
		}
	}
	return staged, nil
}

func (s *Stager) save(fh *multipart.FileHeader) (stagedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return stagedFile{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst := filepath.Join(s.Dir, name)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return stagedFile{}, fmt.Errorf("stage %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return stagedFile{}, fmt.Errorf("stage %s: %w", fh.Filename, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return stagedFile{}, fmt.Errorf("stage %s: %w", fh.Filename, err)
	}

	contentType := fh.Header.Get("Content-Type")
	if mt, err := mimetype.DetectFile(dst); err == nil {
		contentType = mt.String()
	}

	return stagedFile{
		attachment: mailer.Attachment{Filename: fh.Filename, Path: dst, ContentType: contentType},
		descriptor: entity.AttachmentDescriptor{Filename: fh.Filename, Path: name},
	}, nil
}

// archive replaces the descriptor path with the archived location. Failures
// keep the staged name.
func (s *Stager) archive(ctx context.Context, userID string, f *stagedFile) {
	src, err := os.Open(f.attachment.Path)
	if err != nil {
		s.warn(err, f)
		return
	}
	defer func() { _ = src.Close() }()

	objectPath := path.Join("attachments", userID, f.descriptor.Path)
	loc, err := s.Archiver.Archive(ctx, objectPath, f.attachment.ContentType, src)
	if err != nil {
		s.warn(err, f)
		return
	}
	f.descriptor.Path = loc
}

func (s *Stager) warn(err error, f *stagedFile) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("filename", f.attachment.Filename).Warn("attachment archive failed")
	}
}

type stagedFile struct {
	attachment mailer.Attachment
	descriptor entity.AttachmentDescriptor
}

// Staged is the set of files written for one dispatch. A nil *Staged is empty.
type Staged struct {
	files  []stagedFile
	once   sync.Once
	logger *logrus.Logger
}

func (st *Staged) Attachments() []mailer.Attachment {
	if st == nil || len(st.files) == 0 {
		return nil
	}
	out := make([]mailer.Attachment, len(st.files))
	for i, f := range st.files {
		out[i] = f.attachment
	}
	return out
}

func (st *Staged) Descriptors() []entity.AttachmentDescriptor {
	if st == nil || len(st.files) == 0 {
		return nil
	}
	out := make([]entity.AttachmentDescriptor, len(st.files))
	for i, f := range st.files {
		out[i] = f.descriptor
	}
	return out
}

func (st *Staged) Len() int {
	if st == nil {
		return 0
	}
	return len(st.files)
}

// Release deletes the staged files. Only the first call has any effect;
// removal errors are logged.
func (st *Staged) Release() {
	if st == nil {
		return
	}
	st.once.Do(func() {
		for _, f := range st.files {
			if err := os.Remove(f.attachment.Path); err != nil && !os.IsNotExist(err) && st.logger != nil {
				st.logger.WithError(err).WithField("path", f.attachment.Path).Warn("failed to remove staged attachment")
			}
		}
	})
}
