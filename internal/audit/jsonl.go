package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// JSONL writes one compressed JSON line per record into hourly files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir. Each Write appends a complete
// zstd frame, so a file is readable while it is still being written and a
// crash loses at most the record in flight.
type JSONL struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
}

var _ Sink = (*JSONL)(nil)

func NewJSONL(dir, prefix string) *JSONL {
	return &JSONL{dir: dir, prefix: prefix, now: time.Now}
}

func (j *JSONL) Write(ctx context.Context, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return err
		}
		j.enc = enc
	}
	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}
	frame := j.enc.EncodeAll(append(b, '\n'), nil)
	if _, err := j.f.Write(frame); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err := j.closeLocked()
	if j.enc != nil {
		_ = j.enc.Close()
		j.enc = nil
	}
	return err
}

func (j *JSONL) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.PathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.f = f
	j.curHour = hour
	return nil
}

func (j *JSONL) closeLocked() error {
	var err error
	if j.f != nil {
		err = j.f.Close()
		j.f = nil
	}
	j.curHour = ""
	return err
}

// PathForHour returns the file a record stamped in hour (UTC, 2006-01-02-15) lands in.
func (j *JSONL) PathForHour(hour string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// ReadJSONL decodes every record from one compressed audit file.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
