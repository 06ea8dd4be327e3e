package page

import (
	"encoding/json"

	"bindery/internal/errors"
)

// SnapshotSchemaVersion is the latest snapshot blob schema.
// Bump when adding fields; decoding stays tolerant of older blobs.
const SnapshotSchemaVersion = 1

// Snapshot is an immutable bundle of tag ids and variable values captured on
// a version at create time. Mutating the page's live metadata later never
// touches an already-stored snapshot.
type Snapshot struct {
	Tags []string   `json:"tags,omitempty"`
	Vars []VarValue `json:"vars,omitempty"`
}

// IsEmpty reports whether the snapshot carries no metadata.
func (s Snapshot) IsEmpty() bool {
	return len(s.Tags) == 0 && len(s.Vars) == 0
}

// Filter returns a copy restricted by the inheritance flags: tags dropped
// unless inherit-tags, vars dropped unless inherit-variables.
func (s Snapshot) Filter(inherit Inheritance) Snapshot {
	out := Snapshot{}
	if inherit.Tags {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if inherit.Variables {
		out.Vars = append([]VarValue(nil), s.Vars...)
	}
	return out
}

// snapshotBlob is the persisted wire form, tagged with a schema version so
// older and newer revisions can read each other's blobs.
type snapshotBlob struct {
	Schema int        `json:"v"`
	Tags   []string   `json:"tags,omitempty"`
	Vars   []VarValue `json:"vars,omitempty"`
}

// EncodeSnapshot encodes a snapshot into its opaque persisted form.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	blob := snapshotBlob{
		Schema: SnapshotSchemaVersion,
		Tags:   s.Tags,
		Vars:   s.Vars,
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return data, nil
}

// DecodeSnapshot decodes a persisted snapshot blob. Blobs written by older
// schemas decode with missing fields defaulted to empty, not an error.
// Malformed data returns SNAPSHOT_CORRUPT; callers treat that as non-fatal
// and fall back to an empty snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, errors.NewCorruptSnapshot(nil)
	}

	var blob snapshotBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return Snapshot{}, errors.NewCorruptSnapshot(err)
	}

	// Schema 0 is what a pre-tagging writer produced; anything it carries is
	// still readable. Unknown future schemas decode the fields we know.
	return Snapshot{
		Tags: blob.Tags,
		Vars: blob.Vars,
	}, nil
}
