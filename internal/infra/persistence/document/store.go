// Package document persists the clinic document as a single JSON object in a
// blob store. The filesystem driver writes through a temp file and rename, so
// readers never see a half-written document.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"clinicdesk/internal/blob"
	"clinicdesk/internal/infra/persistence/memory"
	"clinicdesk/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// DefaultKey is the object the document is stored under.
	DefaultKey = "hms_data.json"
	// BackupPrefix holds timestamped copies written by Backup.
	BackupPrefix = "backups/"

	contentType     = "application/json"
	stampLayout     = "20060102T150405Z"
	documentIndent  = "    "
	corruptInfix    = ".corrupt-"
	backupExtension = ".json"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	log    zerolog.Logger
	memory []memory.Option
}

// WithLogger sets the logger used for load fallbacks.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMemoryOptions forwards options to the wrapped in-memory store.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(o *options) { o.memory = append(o.memory, opts...) }
}

// Store keeps the document in memory and rewrites the blob after every
// committed transaction.
type Store struct {
	*memory.Store
	blobs blob.Store
	key   string
	log   zerolog.Logger
}

// NewStore loads the document at key (DefaultKey when empty) and returns a
// store that writes it back on every commit. A missing document starts empty.
// An unparseable one is copied aside to <key>.corrupt-<timestamp> and the
// store starts empty; only read failures are returned.
func NewStore(ctx context.Context, blobs blob.Store, key string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("document: blob store is required")
	}
	if key == "" {
		key = DefaultKey
	}
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		Store: memory.NewStore(engine, o.memory...),
		blobs: blobs,
		key:   key,
		log:   o.log.With().Str("component", "document").Str("key", key).Logger(),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.SetCommitHook(s.save)
	return s, nil
}

// Key returns the object key the document is written to.
func (s *Store) Key() string { return s.key }

func (s *Store) load(ctx context.Context) error {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		s.log.Info().Msg("no document found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.log.Warn().Msg("document is empty, starting empty")
		return nil
	}

	var doc memory.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.quarantine(ctx, data, err)
		return nil
	}
	if err := s.ImportDocument(doc); err != nil {
		return fmt.Errorf("load %s: %w", s.key, err)
	}
	s.log.Debug().
		Int("patients", len(doc.Patients)).
		Int("appointments", len(doc.Appointments)).
		Msg("document loaded")
	return nil
}

// quarantine keeps unreadable bytes next to the document so the next save
// does not destroy them.
func (s *Store) quarantine(ctx context.Context, data []byte, cause error) {
	aside := s.key + corruptInfix + s.NowFunc()().UTC().Format(stampLayout)
	if _, err := s.blobs.Put(ctx, aside, bytes.NewReader(data), blob.PutOptions{ContentType: contentType}); err != nil {
		s.log.Error().Err(cause).AnErr("preserve_error", err).Msg("document unreadable, starting empty")
		return
	}
	s.log.Warn().Err(cause).Str("preserved_as", aside).Msg("document unreadable, starting empty")
}

func (s *Store) save(ctx context.Context, doc memory.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if _, err := s.blobs.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

func encode(doc memory.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", documentIndent)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Backup writes the current document to a timestamped key under
// BackupPrefix and returns its info.
func (s *Store) Backup(ctx context.Context) (blob.Info, error) {
	data, err := encode(s.ExportDocument())
	if err != nil {
		return blob.Info{}, err
	}
	base := strings.TrimSuffix(path.Base(s.key), backupExtension)
	key := BackupPrefix + base + "-" + s.NowFunc()().UTC().Format(stampLayout) + backupExtension
	info, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"source": s.key},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write backup: %w", err)
	}
	s.log.Info().Str("backup", key).Int64("bytes", info.Size).Msg("backup written")
	return info, nil
}

// Backups lists the stored backups ordered by key, which sorts them oldest first.
func (s *Store) Backups(ctx context.Context) ([]blob.Info, error) {
	infos, err := s.blobs.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return infos, nil
}

// PruneBackups deletes all but the newest keep backups and returns the
// removed keys. A negative keep is treated as zero.
func (s *Store) PruneBackups(ctx context.Context, keep int) ([]string, error) {
	infos, err := s.Backups(ctx)
	if err != nil {
		return nil, err
	}
	keep = max(keep, 0)
	if len(infos) <= keep {
		return []string{}, nil
	}
	stale := infos[:len(infos)-keep]
	removed := make([]string, 0, len(stale))
	for _, info := range stale {
		ok, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			return removed, fmt.Errorf("delete backup %s: %w", info.Key, err)
		}
		if ok {
			removed = append(removed, info.Key)
		}
	}
	s.log.Info().Int("removed", len(removed)).Int("kept", keep).Msg("backups pruned")
	return removed, nil
}
