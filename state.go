package dsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// stateMagic tags a saved pipeline blob so LoadState can reject anything
// else as corrupted rather than partially decoding it.
var stateMagic = [4]byte{'D', 'S', 'P', '1'}

const stateVersion uint32 = 1

// SaveState concatenates every stage's serialized state behind a small
// header: magic, version, stage count, then per stage a type tag and a
// length-prefixed payload. The format is an implementation detail: the
// only cross-version contract is header, type tags, length prefixes, and
// atomic rollback on load failure.
func (p *Pipeline[T]) SaveState() ([]byte, error) {
	if err := p.beginProcess(); err != nil {
		return nil, err
	}
	defer p.endProcess()

	var buf bytes.Buffer
	buf.Write(stateMagic[:])
	writeUint32(&buf, stateVersion)
	writeUint32(&buf, uint32(len(p.stages)))
	for _, s := range p.stages {
		payload, err := s.Serialize()
		if err != nil {
			return nil, fmt.Errorf("dsp: serialize stage %s: %w", s.Type(), err)
		}
		writeString(&buf, s.Type())
		writeUint32(&buf, uint32(len(payload)))
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// LoadState restores a blob previously produced by SaveState. It validates
// the stage count and type sequence against the current pipeline, then
// applies each per-stage payload transactionally: every stage's prior
// state is snapshotted first, and if any per-stage deserialization fails
// every stage is rolled back to its snapshot before the error is returned,
// leaving the pipeline exactly as it was.
func (p *Pipeline[T]) LoadState(data []byte) error {
	if err := p.beginProcess(); err != nil {
		return err
	}
	defer p.endProcess()

	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != stateMagic {
		return fmt.Errorf("%w: bad magic", ErrStateCorrupted)
	}
	version, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("%w: truncated header", ErrStateCorrupted)
	}
	if version != stateVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrStateCorrupted, version)
	}
	stageCount, err := readUint32(r)
	if err != nil {
		return fmt.Errorf("%w: truncated header", ErrStateCorrupted)
	}
	if int(stageCount) != len(p.stages) {
		return fmt.Errorf("%w: saved %d stages, pipeline has %d", ErrStateMismatch, stageCount, len(p.stages))
	}

	type decoded struct {
		typ     string
		payload []byte
	}
	blobs := make([]decoded, stageCount)
	for i := range blobs {
		typ, err := readString(r)
		if err != nil {
			return fmt.Errorf("%w: truncated stage header", ErrStateCorrupted)
		}
		if typ != p.stages[i].Type() {
			return fmt.Errorf("%w: stage %d is %q in pipeline, %q in saved state", ErrStateMismatch, i, p.stages[i].Type(), typ)
		}
		n, err := readUint32(r)
		if err != nil {
			return fmt.Errorf("%w: truncated stage length", ErrStateCorrupted)
		}
		payload := make([]byte, n)
		if _, err := readFull(r, payload); err != nil {
			return fmt.Errorf("%w: truncated stage payload", ErrStateCorrupted)
		}
		blobs[i] = decoded{typ: typ, payload: payload}
	}

	// Snapshot every stage's current state before mutating any of them.
	snapshots := make([][]byte, len(p.stages))
	for i, s := range p.stages {
		snap, err := s.Serialize()
		if err != nil {
			return fmt.Errorf("dsp: snapshot stage %d (%s): %w", i, s.Type(), err)
		}
		snapshots[i] = snap
	}

	for i, s := range p.stages {
		if err := s.Deserialize(blobs[i].payload); err != nil {
			// Roll every stage back to its pre-call snapshot, best effort
			// in reverse so partially-applied stages are restored first.
			for j := i; j >= 0; j-- {
				_ = p.stages[j].Deserialize(snapshots[j])
			}
			return fmt.Errorf("%w: stage %d (%s): %v", ErrStateCorrupted, i, s.Type(), err)
		}
	}
	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := r.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
