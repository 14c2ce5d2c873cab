package shardstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gnana997/symgraph/pkg/indexerrors"
	"github.com/gnana997/symgraph/pkg/model"
)

const metadataFileName = "metadata.json"

// Metadata is the single persisted bookkeeping file beside the shard tree:
// the resident ShardMetadata table plus the folder-digest table, stamped
// with the shard format version so a format bump forces a full rebuild.
type Metadata struct {
	Version       int                   `json:"version"`
	Shards        []model.ShardMetadata `json:"shards"`
	FolderDigests map[string]string     `json:"folderDigests,omitempty"`
}

// SaveMetadata writes the metadata file atomically (write temp + rename),
// the same discipline Save applies to shard bodies.
func (s *ShardStore) SaveMetadata(meta Metadata) error {
	meta.Version = ShardVersion

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(s.cacheDir, "metadata-*.tmp")
	if err != nil {
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}

	dest := filepath.Join(s.cacheDir, metadataFileName)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return &indexerrors.IoError{URI: metadataFileName, Op: "write", Err: err}
	}
	return nil
}

// LoadMetadata reads the metadata file. ok is false when the file is
// absent or corrupt; a version mismatch returns a VersionMismatchError so
// the caller can force a full rebuild rather than silently re-indexing.
func (s *ShardStore) LoadMetadata() (Metadata, bool, error) {
	path := filepath.Join(s.cacheDir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, &indexerrors.IoError{URI: metadataFileName, Op: "read", Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("corrupt metadata file, treating as missing", "error", err)
		return Metadata{}, false, nil
	}

	if meta.Version != ShardVersion {
		return Metadata{}, false, &indexerrors.VersionMismatchError{
			URI:      metadataFileName,
			Got:      meta.Version,
			Expected: ShardVersion,
		}
	}

	return meta, true, nil
}
