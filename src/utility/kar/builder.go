// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pierrec/lz4"
	log "github.com/sirupsen/logrus"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) *Builder {
	return &Builder{
		header: header,
		files:  make(map[string]compressedFile),
	}
}

type compressedFile struct {
	data []byte
	size int64
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, Builder
// is the way to create one. Every Add compresses the data
// right away, WriteTo bundles everything together.
type Builder struct {
	header Header

	mutex sync.Mutex
	files map[string]compressedFile
}

// Add appends data to the builder with a given name.
// Will block until lz4 finishes compression. Is safe
// to use concurrently in different goroutines.
func (b *Builder) Add(name string, data []byte) error {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.files[name]; ok {
		return fmt.Errorf("file %s already added", name)
	}
	b.files[name] = compressedFile{
		data: compressed.Bytes(),
		size: int64(len(data)),
	}
	return nil
}

// AddFile adds a file from disk under name.
func (b *Builder) AddFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return b.Add(filepath.ToSlash(name), data)
}

// Len returns the number of files added so far.
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use. Files are laid out in
// name order so equal inputs produce equal archives.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	header := b.header
	header.Index = make([]IndexEntry, 0, len(names))
	var offset int64
	for _, name := range names {
		f := b.files[name]
		header.Index = append(header.Index, IndexEntry{
			Name:           name,
			Offset:         offset,
			Size:           f.size,
			CompressedSize: int64(len(f.data)),
		})
		offset += int64(len(f.data))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var written int64
	write := func(p []byte) error {
		n, err := w.Write(p)
		written += int64(n)
		return err
	}
	if err := write(Magic[:]); err != nil {
		return written, err
	}
	if err := write(int64ToBinary(int64(len(rawHeader)))); err != nil {
		return written, err
	}
	if err := write(rawHeader); err != nil {
		return written, err
	}
	for _, name := range names {
		if err := write(b.files[name].data); err != nil {
			return written, err
		}
	}

	log.WithFields(log.Fields{
		"files":   len(names),
		"written": written,
	}).Debug("kar archive written")
	return written, nil
}
