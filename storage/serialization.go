// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/horus/core"
)

// codecVersion prefixes every artifact so stale caches are rejected rather than misread.
const codecVersion = 1

// float32Size is the fixed raw encoding width of a float32.
var float32Size = raw.Float32.Size(0)

// MarshalVectorSet serializes a FeatureVectorSet to bytes.
func MarshalVectorSet(set *core.FeatureVectorSet) []byte {
	w := newWriter(16 + set.Len()*set.Dim*float32Size)
	w.putHeader()
	w.putInt(set.Len())
	w.putInt(set.Dim)
	for _, v := range set.Vectors {
		for _, f := range v {
			w.putFloat32(f)
		}
	}
	return w.bytes()
}

// UnmarshalVectorSet deserializes a FeatureVectorSet from bytes.
func UnmarshalVectorSet(data []byte) (*core.FeatureVectorSet, error) {
	r := newReader(data)
	r.header()
	n := r.getInt()
	dim := r.getInt()
	r.need(n * dim * float32Size)
	if r.err != nil {
		return nil, r.err
	}

	// One backing array keeps the set contiguous in memory.
	backing := make([]float32, n*dim)
	for i := range backing {
		backing[i] = r.getFloat32()
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &core.FeatureVectorSet{Vectors: vectors, Dim: dim}, nil
}

// MarshalGraphArtifact serializes positions and edges to bytes.
func MarshalGraphArtifact(artifact *core.GraphArtifact) []byte {
	w := newWriter(16 + len(artifact.Positions)*3*float32Size + len(artifact.Edges)*(8+float32Size))
	w.putHeader()
	w.putInt(len(artifact.Positions))
	for _, p := range artifact.Positions {
		for _, f := range p {
			w.putFloat32(f)
		}
	}
	w.putInt(len(artifact.Edges))
	for _, e := range artifact.Edges {
		w.putInt(e.Source)
		w.putInt(e.Target)
		w.putFloat32(e.Weight)
	}
	return w.bytes()
}

// UnmarshalGraphArtifact deserializes positions and edges from bytes.
func UnmarshalGraphArtifact(data []byte) (*core.GraphArtifact, error) {
	r := newReader(data)
	r.header()
	n := r.getInt()
	r.need(n * 3 * float32Size)
	if r.err != nil {
		return nil, r.err
	}
	positions := make(core.PositionSet, n)
	for i := range positions {
		for axis := range 3 {
			positions[i][axis] = r.getFloat32()
		}
	}
	m := r.getInt()
	if r.err != nil {
		return nil, r.err
	}
	edges := make(core.EdgeSet, 0, min(m, len(data)))
	for range m {
		e := core.Edge{Source: r.getInt(), Target: r.getInt(), Weight: r.getFloat32()}
		if r.err != nil {
			return nil, r.err
		}
		edges = append(edges, e)
	}
	return &core.GraphArtifact{Positions: positions, Edges: edges}, nil
}

// MarshalLabels serializes a LabelRecord to bytes.
// Entries are written in ascending index order so equal records encode identically.
func MarshalLabels(labels core.LabelRecord) []byte {
	w := newWriter(16 + len(labels)*32)
	w.putHeader()
	w.putInt(len(labels))
	for _, idx := range labels.Indices() {
		w.putInt(idx)
		w.putString(labels[idx])
	}
	return w.bytes()
}

// UnmarshalLabels deserializes a LabelRecord from bytes.
func UnmarshalLabels(data []byte) (core.LabelRecord, error) {
	r := newReader(data)
	r.header()
	n := r.getInt()
	if r.err != nil {
		return nil, r.err
	}
	labels := make(core.LabelRecord, min(n, len(data)))
	for range n {
		idx := r.getInt()
		label := r.getString()
		if r.err != nil {
			return nil, r.err
		}
		labels[idx] = label
	}
	return labels, nil
}

// MarshalExportRecord serializes an ExportRecord to bytes.
func MarshalExportRecord(record *core.ExportRecord) []byte {
	w := newWriter(32 + len(record.Path))
	w.putHeader()
	w.putString(record.Path)
	w.putInt64(record.Size)
	return w.bytes()
}

// UnmarshalExportRecord deserializes an ExportRecord from bytes.
func UnmarshalExportRecord(data []byte) (*core.ExportRecord, error) {
	r := newReader(data)
	r.header()
	record := &core.ExportRecord{
		Path: r.getString(),
		Size: r.getInt64(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return record, nil
}

// MarshalStageRecord serializes a StageRecord to bytes.
func MarshalStageRecord(record *core.StageRecord) []byte {
	w := newWriter(32 + len(record.Checksum) + len(record.Error))
	w.putHeader()
	w.putInt(int(record.State))
	w.putBytes(record.Checksum)
	w.putInt(record.Size)
	w.putInt64(record.UpdatedAt.UnixMicro())
	w.putString(record.Error)
	return w.bytes()
}

// UnmarshalStageRecord deserializes a StageRecord from bytes.
func UnmarshalStageRecord(data []byte) (*core.StageRecord, error) {
	r := newReader(data)
	r.header()
	record := &core.StageRecord{
		State:    core.StageState(r.getInt()),
		Checksum: r.getBytes(),
		Size:     r.getInt(),
	}
	record.UpdatedAt = time.UnixMicro(r.getInt64()).UTC()
	record.Error = r.getString()
	if r.err != nil {
		return nil, r.err
	}
	return record, nil
}

// writer appends mus-encoded values to a growing buffer.
type writer struct {
	bs []byte
}

func newWriter(capacity int) *writer {
	return &writer{bs: make([]byte, 0, capacity)}
}

// grow extends the buffer by size bytes and returns the new tail.
func (w *writer) grow(size int) []byte {
	start := len(w.bs)
	w.bs = append(w.bs, make([]byte, size)...)
	return w.bs[start:]
}

func (w *writer) putHeader() {
	w.putInt(codecVersion)
}

func (w *writer) putInt(v int) {
	u := uint64(v)
	varint.Uint64.Marshal(u, w.grow(varint.Uint64.Size(u)))
}

func (w *writer) putInt64(v int64) {
	varint.Int64.Marshal(v, w.grow(varint.Int64.Size(v)))
}

func (w *writer) putFloat32(v float32) {
	raw.Float32.Marshal(v, w.grow(float32Size))
}

func (w *writer) putString(v string) {
	ord.String.Marshal(v, w.grow(ord.String.Size(v)))
}

func (w *writer) putBytes(v []byte) {
	w.putInt(len(v))
	copy(w.grow(len(v)), v)
}

func (w *writer) bytes() []byte {
	return w.bs
}

// reader decodes mus-encoded values, latching the first error.
type reader struct {
	bs  []byte
	n   int
	err error
}

func newReader(data []byte) *reader {
	return &reader{bs: data}
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

// need fails the reader unless at least size bytes remain.
func (r *reader) need(size int) {
	if r.err == nil && (size < 0 || len(r.bs)-r.n < size) {
		r.fail(ErrTruncatedData)
	}
}

func (r *reader) header() {
	if version := r.getInt(); r.err == nil && version != codecVersion {
		r.fail(fmt.Errorf("%w: %d", ErrUnsupportedVersion, version))
	}
}

func (r *reader) getInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return int(v)
}

func (r *reader) getInt64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) getFloat32() float32 {
	r.need(float32Size)
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.n += n
	return v
}

func (r *reader) getString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.n += n
	return v
}

func (r *reader) getBytes() []byte {
	size := r.getInt()
	r.need(size)
	if r.err != nil || size == 0 {
		return nil
	}
	v := make([]byte, size)
	r.n += copy(v, r.bs[r.n:r.n+size])
	return v
}
