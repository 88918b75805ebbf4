// Package snapshot writes and reads zstd-compressed world snapshots: a JSON
// header line followed by the JSON-encoded state.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/metaverse/internal/engine"
)

// Version is the current snapshot layout.
const Version = 1

// ErrUnsupportedVersion is returned for snapshots from a newer layout.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Header is readable without decoding the state.
type Header struct {
	Version int       `json:"version"`
	WorldID string    `json:"world_id"`
	Tick    uint64    `json:"tick"`
	UTC     time.Time `json:"utc"`
	Written time.Time `json:"written"`
}

// Snapshot is one saved world.
type Snapshot struct {
	Header Header       `json:"header"`
	State  engine.State `json:"state"`
}

// New wraps a captured state with a current header.
func New(worldID string, st engine.State, utc time.Time) Snapshot {
	return Snapshot{
		Header: Header{
			Version: Version,
			WorldID: worldID,
			Tick:    st.Tick,
			UTC:     utc,
			Written: time.Now().UTC(),
		},
		State: st,
	}
}

// Write encodes snap to w.
func Write(w io.Writer, snap Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(snap.State); err != nil {
		enc.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a snapshot written by Write.
func Read(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &snap.Header); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if snap.Header.Version < 1 || snap.Header.Version > Version {
		return snap, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Header.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap.State); err != nil {
		return snap, fmt.Errorf("decode state: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	dec, err := zstd.NewReader(r)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// WriteFile writes snap to path, creating parent directories. The file is
// written beside the target and renamed into place.
func WriteFile(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a snapshot from path.
func ReadFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return Read(f)
}

// FileName returns the conventional name for a snapshot at tick.
func FileName(worldID string, tick uint64) string {
	return fmt.Sprintf("%s-%012d.snap.zst", worldID, tick)
}
