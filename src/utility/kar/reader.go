// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/pierrec/lz4"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	magic := make([]byte, MagicLength)
	if _, err := r.ReadAt(magic, 0); err != nil {
		return nil, fmt.Errorf("read magic: %w", ErrFileFormat)
	} else if !bytes.Equal(magic, Magic[:]) {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if _, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, fmt.Errorf("read header size: %w", ErrFileFormat)
	}

	headerSize, err := binaryToInt64(headerSizeBytes)
	if err != nil {
		return nil, err
	}
	if headerSize <= 0 || headerSize > 1<<30 {
		return nil, fmt.Errorf("header size %d: %w", headerSize, ErrFileFormat)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, fmt.Errorf("read header: %w", ErrFileFormat)
	}

	ar := &Archive{
		reader:    r,
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
		index:     make(map[string]int),
	}
	if err := gobDecode(&ar.header, headerBytes); err != nil {
		return nil, fmt.Errorf("decode header: %s: %w", err, ErrFileFormat)
	}
	for idx, e := range ar.header.Index {
		if e.Offset < 0 || e.Size < 0 || e.CompressedSize < 0 {
			return nil, fmt.Errorf("index entry %s: %w", e.Name, ErrFileFormat)
		}
		ar.index[e.Name] = idx
	}
	return ar, nil
}

// OpenFile memory maps the archive at path.
func OpenFile(path string) (*Archive, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	ar.closer = m
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader    io.ReaderAt
	closer    io.Closer
	header    Header
	dataStart int64
	index     map[string]int
}

// Header returns the archive header, index included.
func (a *Archive) Header() Header {
	return a.header
}

// Names lists the files in the archive, sorted.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.header.Index))
	for _, e := range a.header.Index {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func (a *Archive) entry(name string) (IndexEntry, error) {
	idx, ok := a.index[name]
	if !ok {
		return IndexEntry{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return a.header.Index[idx], nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	e, err := a.entry(name)
	if err != nil {
		return nil, err
	}
	section := io.NewSectionReader(a.reader, a.dataStart+e.Offset, e.CompressedSize)
	return &Reader{
		Reader: lz4.NewReader(section),
		entry:  e,
	}, nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, r.Size())
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", name, err, ErrFileFormat)
	}
	return data, nil
}

// Find returns a files contents, making Archive an asset source.
func (a *Archive) Find(name string) ([]byte, error) {
	return a.ReadAll(name)
}

// Close releases the memory mapping when the archive was
// opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// Reader is a reader for a single file in an Archive.
// Reads return decompressed data.
type Reader struct {
	io.Reader

	entry IndexEntry
}

// Name of the file being read.
func (r *Reader) Name() string {
	return r.entry.Name
}

// Size of the file once decompressed.
func (r *Reader) Size() int64 {
	return r.entry.Size
}
