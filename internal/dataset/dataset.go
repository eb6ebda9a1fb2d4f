// Package dataset implements the content-addressed blob store backing
// uploaded dataset files (spec §4.8): SHA-256 blob storage with an
// atomic rename, a JSON sidecar, and a by-name symlink index.
package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
	"github.com/llamafarm/llamafarm-core/internal/identity"
	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Store manages the raw/meta/index layout for one project's
// lf_data/datasets root.
type Store struct {
	root string // <project-data-root>/lf_data/datasets
	now  func() time.Time
}

// New returns a Store rooted at root (created lazily on first write).
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Root returns the store's dataset root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) datasetDir(dataset string) (string, error) {
	return identity.SafeJoin(s.root, dataset)
}

func rawPath(datasetDir, hash string) (string, error) {
	return identity.SafeJoin(filepath.Join(datasetDir, "raw"), hash)
}

func metaPath(datasetDir, hash string) (string, error) {
	return identity.SafeJoin(filepath.Join(datasetDir, "meta"), hash+".json")
}

func indexPath(datasetDir, resolvedFilename string) (string, error) {
	return identity.SafeJoin(filepath.Join(datasetDir, "index", "by_name"), resolvedFilename)
}

// Put hashes upload, stores it content-addressed under raw/<hash>,
// writes its sidecar under meta/<hash>.json, and creates (or
// re-resolves, on collision) a by-name symlink index entry.
// originalFilename may be a nested upload path; only its basename is
// used (spec §4.8 folder-upload reduction).
func (s *Store) Put(ctx context.Context, dataset, originalFilename, mimeType string, upload io.Reader) (types.DatasetBlobMeta, error) {
	datasetDir, err := s.datasetDir(dataset)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}

	if err := os.MkdirAll(filepath.Join(datasetDir, "raw"), 0o755); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to create dataset directory", err)
	}
	tmp, err := os.CreateTemp(datasetDir, "upload-*.tmp")
	if err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to create temp upload file", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), upload)
	if err != nil {
		tmp.Close()
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to write upload", err)
	}
	if err := tmp.Close(); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to finalize upload", err)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	rawFile, err := rawPath(datasetDir, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(rawFile), 0o755); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to create raw directory", err)
	}
	if err := os.Rename(tmp.Name(), rawFile); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to commit blob", err)
	}

	basename := identity.Basename(originalFilename)
	resolved, err := s.resolveNameCollision(datasetDir, basename, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}

	meta := types.DatasetBlobMeta{
		OriginalFilename: originalFilename,
		ResolvedFilename: resolved,
		Timestamp:        s.now().UnixMilli(),
		Size:             size,
		MimeType:         mimeType,
		Hash:             hash,
	}

	mf, err := metaPath(datasetDir, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := writeJSONAtomic(mf, meta); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to write sidecar metadata", err)
	}

	idxFile, err := indexPath(datasetDir, resolved)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(idxFile), 0o755); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to create index directory", err)
	}
	linkTarget := filepath.Join("..", "..", "raw", hash)
	if err := os.Symlink(linkTarget, idxFile); err != nil && !os.IsExist(err) {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to create name index symlink", err)
	}

	return meta, nil
}

// resolveNameCollision returns basename unchanged if no index entry
// exists for it yet, or for an existing entry that already points at
// hash (re-upload of identical content); otherwise it appends
// "_<epoch>" to the stem until the name is free.
func (s *Store) resolveNameCollision(datasetDir, basename, hash string) (string, error) {
	candidate := basename
	for attempt := 0; ; attempt++ {
		idxFile, err := indexPath(datasetDir, candidate)
		if err != nil {
			return "", err
		}
		target, err := os.Readlink(idxFile)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err == nil && filepath.Base(target) == hash {
			return candidate, nil
		}
		ext := filepath.Ext(basename)
		stem := strings.TrimSuffix(basename, ext)
		candidate = fmt.Sprintf("%s_%d%s", stem, s.now().UnixNano(), ext)
		if attempt > 16 {
			return "", apperr.New(apperr.Internal, "could not resolve filename collision after repeated attempts")
		}
	}
}

// GetMetadata returns the sidecar for hash, or a not-found error.
func (s *Store) GetMetadata(ctx context.Context, dataset, hash string) (types.DatasetBlobMeta, error) {
	datasetDir, err := s.datasetDir(dataset)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	mf, err := metaPath(datasetDir, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	data, err := os.ReadFile(mf)
	if err != nil {
		if os.IsNotExist(err) {
			return types.DatasetBlobMeta{}, apperr.New(apperr.NotFound, "blob metadata not found: "+hash)
		}
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to read sidecar metadata", err)
	}
	var meta types.DatasetBlobMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to parse sidecar metadata", err)
	}
	return meta, nil
}

// Delete removes the symlink, then the blob, then the sidecar, in that
// order (spec §4.8). A failure partway through is surfaced as-is; the
// store performs no rollback of the steps already completed.
func (s *Store) Delete(ctx context.Context, dataset, hash string) (types.DatasetBlobMeta, error) {
	meta, err := s.GetMetadata(ctx, dataset, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}

	datasetDir, err := s.datasetDir(dataset)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}

	idxFile, err := indexPath(datasetDir, meta.ResolvedFilename)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := os.Remove(idxFile); err != nil && !os.IsNotExist(err) {
		return types.DatasetBlobMeta{}, apperr.Wrap(apperr.Internal, "failed to remove name index symlink", err)
	}

	rawFile, err := rawPath(datasetDir, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := os.Remove(rawFile); err != nil && !os.IsNotExist(err) {
		return meta, apperr.Wrap(apperr.Internal, "failed to remove blob after removing its name index entry; store is now inconsistent", err)
	}

	mf, err := metaPath(datasetDir, hash)
	if err != nil {
		return types.DatasetBlobMeta{}, err
	}
	if err := os.Remove(mf); err != nil && !os.IsNotExist(err) {
		return meta, apperr.Wrap(apperr.Internal, "failed to remove sidecar after removing its blob; store is now inconsistent", err)
	}

	return meta, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
