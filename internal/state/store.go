package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
)

// Backend persists raw documents. Update must run fn and write its result atomically
// with respect to other Update calls for the same owner.
type Backend interface {
	// Load returns nil, nil when the owner has no document.
	Load(ctx context.Context, owner string) ([]byte, error)
	// Update passes the current document (nil if none) to fn and stores what fn returns.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, owner string, fn func(current []byte) ([]byte, error)) error
	Delete(ctx context.Context, owner string) error
}

// Sealer encrypts secret fields at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Options configures a Store.
type Options struct {
	Sealer           Sealer // nil stores secrets in plaintext
	MaxTemplates     int
	MaxTemplateBytes int64
	Logger           *slog.Logger
	Now              func() time.Time
}

// Store is the typed access point to per-owner state.
type Store struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts Options) *Store {
	if opts.MaxTemplates <= 0 {
		opts.MaxTemplates = 5
	}
	if opts.MaxTemplateBytes <= 0 {
		opts.MaxTemplateBytes = upload.DefaultMaxBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, opts: opts, logger: logger}
}

// MaxTemplates returns the per-owner template limit.
func (s *Store) MaxTemplates() int {
	return s.opts.MaxTemplates
}

// Get loads the owner's document, migrated to the current version.
func (s *Store) Get(ctx context.Context, owner string) (*Document, error) {
	raw, err := s.backend.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return s.decode(owner, raw)
}

// Mutate runs fn on the owner's document and persists the result atomically.
// When fn returns an error nothing is written and the error is returned as is.
func (s *Store) Mutate(ctx context.Context, owner string, fn func(*Document) error) (*Document, error) {
	var updated *Document
	err := s.backend.Update(ctx, owner, func(current []byte) ([]byte, error) {
		doc, err := s.decode(owner, current)
		if err != nil {
			return nil, err
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		updated = doc
		return s.encode(doc)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reset deletes the owner's document.
func (s *Store) Reset(ctx context.Context, owner string) error {
	if err := s.backend.Delete(ctx, owner); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

func (s *Store) decode(owner string, raw []byte) (*Document, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	for _, dropped := range decoded.Dropped {
		s.logger.Debug("ignored unreadable state field", "owner", owner, "error", dropped)
	}
	doc := decoded.Doc

	if doc.Session != nil {
		token, ok := s.openSecret(owner, "session credential", doc.Session.Token)
		if ok {
			doc.Session.Token = token
		} else {
			doc.Session = nil
		}
	}
	if doc.Provider != nil {
		key, ok := s.openSecret(owner, "provider key", doc.Provider.APIKey)
		if !ok {
			key = ""
		}
		doc.Provider.APIKey = key
	}
	return doc, nil
}

// openSecret reads one secret field. Unprefixed values are plaintext written
// before a sealing key was configured, or legacy ciphertext; both survive and
// are sealed again on the next write. A prefixed value that cannot be opened
// is dropped.
func (s *Store) openSecret(owner, field, v string) (string, bool) {
	if v == "" {
		return "", true
	}
	if s.opts.Sealer == nil {
		if config.IsSealed(v) {
			s.logger.Warn("dropping sealed secret, no sealing key configured", "owner", owner, "field", field)
			return "", false
		}
		return v, true
	}

	opened, err := s.opts.Sealer.Open(v)
	switch {
	case err == nil:
		return opened, true
	case config.IsSealed(v):
		s.logger.Warn("dropping unreadable secret", "owner", owner, "field", field, "error", err)
		return "", false
	default:
		s.logger.Debug("reading unsealed secret", "owner", owner, "field", field)
		return v, true
	}
}

func (s *Store) encode(doc *Document) ([]byte, error) {
	if s.opts.Sealer == nil {
		return Encode(doc)
	}

	sealed := doc.Clone()
	if sealed.Session != nil {
		token, err := s.opts.Sealer.Seal(sealed.Session.Token)
		if err != nil {
			return nil, err
		}
		sealed.Session.Token = token
	}
	if sealed.Provider != nil {
		key, err := s.opts.Sealer.Seal(sealed.Provider.APIKey)
		if err != nil {
			return nil, err
		}
		sealed.Provider.APIKey = key
	}
	return Encode(sealed)
}

// SetSession stores the backend credential.
func (s *Store) SetSession(ctx context.Context, owner, token string) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		d.SetSession(token, s.opts.Now())
		return nil
	})
	return err
}

// ClearSession forgets the backend credential.
func (s *Store) ClearSession(ctx context.Context, owner string) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		d.ClearSession()
		return nil
	})
	return err
}

// SetProvider stores a complete provider configuration in one write.
func (s *Store) SetProvider(ctx context.Context, owner string, cfg types.ProviderConfig) error {
	if !cfg.Complete() {
		return ErrIncompleteProvider
	}
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		return d.SetProvider(cfg)
	})
	return err
}

// DisconnectProvider clears every provider field in one write.
func (s *Store) DisconnectProvider(ctx context.Context, owner string) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		d.DisconnectProvider()
		return nil
	})
	return err
}

// AddTemplate validates and stores an uploaded template. Validation happens
// before the document is read, so a rejected upload never touches state.
func (s *Store) AddTemplate(ctx context.Context, owner, name string, content []byte) (*types.Template, error) {
	if err := upload.Validate(name, content, s.opts.MaxTemplateBytes); err != nil {
		return nil, err
	}

	t := types.Template{
		ID:         uuid.New(),
		Name:       name,
		Content:    string(content),
		SizeBytes:  int64(len(content)),
		UploadedAt: s.opts.Now().UTC(),
	}
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		return d.AddTemplate(t, s.opts.MaxTemplates)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTemplate removes a template and repairs the selection.
func (s *Store) DeleteTemplate(ctx context.Context, owner string, id uuid.UUID) (*Document, error) {
	return s.Mutate(ctx, owner, func(d *Document) error {
		return d.DeleteTemplate(id)
	})
}

// SelectTemplate marks a template as selected.
func (s *Store) SelectTemplate(ctx context.Context, owner string, id uuid.UUID) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		return d.SelectTemplate(id)
	})
	return err
}

// SaveDraft stores the in-progress form.
func (s *Store) SaveDraft(ctx context.Context, owner string, draft Draft) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		d.Draft = draft
		return nil
	})
	return err
}

// RecordJob remembers a submitted job.
func (s *Store) RecordJob(ctx context.Context, owner string, rec types.JobRecord) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		d.RecordJob(rec)
		return nil
	})
	return err
}

// UpdateJob changes a remembered job. A job that is no longer remembered is not an error.
func (s *Store) UpdateJob(ctx context.Context, owner, id string, fn func(*types.JobRecord)) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		return d.UpdateJob(id, fn)
	})
	if errors.Is(err, ErrJobNotFound) {
		return nil
	}
	return err
}

// FindJob returns a remembered job.
func (s *Store) FindJob(ctx context.Context, owner, id string) (types.JobRecord, error) {
	doc, err := s.Get(ctx, owner)
	if err != nil {
		return types.JobRecord{}, err
	}
	rec, ok := doc.FindJob(id)
	if !ok {
		return types.JobRecord{}, ErrJobNotFound
	}
	return rec, nil
}

// RemoveJob forgets a job.
func (s *Store) RemoveJob(ctx context.Context, owner, id string) error {
	_, err := s.Mutate(ctx, owner, func(d *Document) error {
		return d.RemoveJob(id)
	})
	return err
}
