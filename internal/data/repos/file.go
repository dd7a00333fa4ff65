package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/platform/logger"
)

// fileDocumentRepo is the flat-file registry fallback: one JSON file holding
// every issued record, wire-compatible with registries written by earlier
// deployments ({"document": {...}, "issued_date": "..."} entries). It is
// selected once at startup, never fallen into silently mid-call.
type fileDocumentRepo struct {
	path string
	log  *logger.Logger

	mu sync.Mutex
}

type fileEntry struct {
	Document   *domain.DocumentRecord `json:"document"`
	IssuedDate string                 `json:"issued_date"`
}

func NewFileDocumentRepo(path string, baseLog *logger.Logger) DocumentRepo {
	return &fileDocumentRepo{
		path: path,
		log:  baseLog.With("repo", "DocumentRepo", "backend", "file"),
	}
}

func (r *fileDocumentRepo) Upsert(ctx context.Context, rec *domain.DocumentRecord) error {
	if rec == nil || rec.DocID == "" {
		return fmt.Errorf("document record requires doc_id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now()
	}
	entry := fileEntry{Document: rec, IssuedDate: rec.IssuedAt.Format(time.RFC3339)}

	replaced := false
	for i, e := range entries {
		if e.Document != nil && e.Document.DocID == rec.DocID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return r.save(entries)
}

func (r *fileDocumentRepo) FindByID(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	if docID == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Document != nil && e.Document.DocID == docID {
			return e.Document, nil
		}
	}
	return nil, nil
}

func (r *fileDocumentRepo) ListAll(ctx context.Context) ([]*domain.DocumentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	recs := make([]*domain.DocumentRecord, 0, len(entries))
	for _, e := range entries {
		if e.Document != nil {
			recs = append(recs, e.Document)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].IssuedAt.After(recs[j].IssuedAt)
	})
	return recs, nil
}

func (r *fileDocumentRepo) Backend() string { return "file" }

func (r *fileDocumentRepo) load() ([]fileEntry, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read registry file: %v", ErrRegistryUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []fileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", r.path, err)
	}
	return entries, nil
}

// save writes through a temp file and renames so a crash mid-write cannot
// truncate the registry.
func (r *fileDocumentRepo) save(entries []fileEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry file: %w", err)
	}
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp registry file: %v", ErrRegistryUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write registry file: %v", ErrRegistryUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close registry file: %v", ErrRegistryUnavailable, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace registry file: %v", ErrRegistryUnavailable, err)
	}
	return nil
}
