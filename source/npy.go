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


package source

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/poiesic/horus/core"
)

var npyMagic = []byte("\x93NUMPY")

// payloadBlock is the read size for array data. It is a multiple of every dtype width.
const payloadBlock = 1 << 20

var (
	descrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// npyHeader is the parsed dictionary that precedes the array payload.
type npyHeader struct {
	descr   string
	fortran bool
	shape   []int
}

// ReadNPY decodes a two-dimensional little-endian float32 or float64 array
// in C order. float64 values are narrowed to float32. The vectors are
// returned as stored; callers normalize them.
func ReadNPY(r io.Reader) (*core.FeatureVectorSet, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	header, err := readNPYHeader(br)
	if err != nil {
		return nil, err
	}

	if header.fortran {
		return nil, fmt.Errorf("%w: fortran order", ErrUnsupportedArray)
	}
	if len(header.shape) != 2 {
		return nil, fmt.Errorf("%w: expected 2 dimensions, got %d", ErrUnsupportedArray, len(header.shape))
	}

	var width int
	switch header.descr {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, fmt.Errorf("%w: dtype %q", ErrUnsupportedArray, header.descr)
	}

	n, dim := header.shape[0], header.shape[1]
	if dim == 0 && n > 0 {
		return nil, fmt.Errorf("%w: shape (%d, 0) has empty rows", ErrInvalidArray, n)
	}
	if dim > 0 && n > math.MaxInt/width/dim {
		return nil, fmt.Errorf("%w: shape (%d, %d) overflows", ErrInvalidArray, n, dim)
	}

	// The header is untrusted, so memory grows with the payload actually read.
	total := n * dim * width
	values := make([]float32, 0, min(n*dim, payloadBlock/width))
	block := make([]byte, min(total, payloadBlock))
	for read := 0; read < total; {
		chunk := block[:min(total-read, len(block))]
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, fmt.Errorf("%w: payload at byte %d of %d: %w", ErrInvalidArray, read, total, err)
		}
		for off := 0; off < len(chunk); off += width {
			if width == 4 {
				values = append(values, math.Float32frombits(binary.LittleEndian.Uint32(chunk[off:])))
			} else {
				values = append(values, float32(math.Float64frombits(binary.LittleEndian.Uint64(chunk[off:]))))
			}
		}
		read += len(chunk)
	}

	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = values[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return &core.FeatureVectorSet{Vectors: vectors, Dim: dim}, nil
}

func readNPYHeader(r io.Reader) (*npyHeader, error) {
	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidArray)
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var size uint16
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
		}
		headerLen = int(size)
	case 2, 3:
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
		}
		headerLen = int(size)
	default:
		return nil, fmt.Errorf("%w: format version %d", ErrUnsupportedArray, major)
	}

	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrInvalidArray, err)
	}
	return parseNPYHeader(string(raw))
}

func parseNPYHeader(dict string) (*npyHeader, error) {
	descr := descrPattern.FindStringSubmatch(dict)
	fortran := fortranPattern.FindStringSubmatch(dict)
	shape := shapePattern.FindStringSubmatch(dict)
	if descr == nil || fortran == nil || shape == nil {
		return nil, fmt.Errorf("%w: header %q", ErrInvalidArray, strings.TrimSpace(dict))
	}

	header := &npyHeader{descr: descr[1], fortran: fortran[1] == "True"}
	for _, part := range strings.Split(shape[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		size, err := strconv.Atoi(part)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: shape %q", ErrInvalidArray, shape[1])
		}
		header.shape = append(header.shape, size)
	}
	return header, nil
}

// decoderEntries are the archive members that may hold the decoder matrix.
var decoderEntries = []string{"W_dec.npy", "w_dec.npy"}

// ReadNPZ reads the decoder matrix from a .npz archive.
func ReadNPZ(path string) (*core.FeatureVectorSet, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
	}
	defer archive.Close()

	for _, name := range decoderEntries {
		for _, f := range archive.File {
			if f.Name != name {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArray, name, err)
			}
			set, err := ReadNPY(rc)
			rc.Close()
			return set, err
		}
	}

	names := make([]string, 0, len(archive.File))
	for _, f := range archive.File {
		names = append(names, f.Name)
	}
	return nil, fmt.Errorf("%w: available entries %v", ErrDecoderNotFound, names)
}
