// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/utility/kar"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func build(c *qt.C, files map[string]string) []byte {
	builder := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	for name, data := range files {
		c.Assert(builder.Add(name, []byte(data)), qt.IsNil)
	}

	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(written, qt.Equals, int64(buf.Len()))
	return buf.Bytes()
}

func TestCreateAndRead(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1, "test2": testString2})

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(ar.Header().Author, qt.Equals, "devblok")
	c.Assert(ar.Names(), qt.DeepEquals, []string{"test", "test2"})

	f, err := ar.Open("test2")
	c.Assert(err, qt.IsNil)
	c.Assert(f.Name(), qt.Equals, "test2")
	c.Assert(f.Size(), qt.Equals, int64(len(testString2)))

	result, err := io.ReadAll(f)
	c.Assert(err, qt.IsNil)
	c.Assert(string(result), qt.Equals, testString2)
}

func TestCreateAndReadAll(t *testing.T) {
	c := qt.New(t)
	data := build(c, map[string]string{"test": testString1, "test2": testString2, "empty": ""})

	ar, err := kar.Open(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)

	f, err := ar.ReadAll("test")
	c.Assert(err, qt.IsNil)
	c.Assert(string(f), qt.Equals, testString1)

	f, err = ar.ReadAll("empty")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.HasLen, 0)
}

func TestDeterministicLayout(t *testing.T) {
	c := qt.New(t)
	builder := kar.NewBuilder(kar.Header{Author: "devblok", Version: 2})
	c.Assert(builder.Add("b", []byte(testString2)), qt.IsNil)
	c.Assert(builder.Add("a", []byte(testString1)), qt.IsNil)

	var first, second bytes.Buffer
	_, err := builder.WriteTo(&first)
	c.Assert(err, qt.IsNil)
	_, err = builder.WriteTo(&second)
	c.Assert(err, qt.IsNil)
	c.Assert(first.Bytes(), qt.DeepEquals, second.Bytes())

	c.Assert(first.Bytes()[:kar.MagicLength], qt.DeepEquals, []byte("KAR\x00"))
	ar, err := kar.Open(bytes.NewReader(first.Bytes()))
	c.Assert(err, qt.IsNil)
	index := ar.Header().Index
	c.Assert(index, qt.HasLen, 2)
	c.Assert(index[0].Name, qt.Equals, "a")
	c.Assert(index[0].Offset, qt.Equals, int64(0))
	c.Assert(index[1].Offset, qt.Equals, index[0].CompressedSize)
}

func TestConcurrentAdd(t *testing.T) {
	c := qt.New(t)
	builder := kar.NewBuilder(kar.Header{Author: "devblok"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := builder.Add(fmt.Sprintf("file%02d", i), bytes.Repeat([]byte{byte(i)}, 1024)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	c.Assert(builder.Len(), qt.Equals, 16)

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	c.Assert(err, qt.IsNil)

	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	c.Assert(err, qt.IsNil)
	got, err := ar.ReadAll("file07")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, bytes.Repeat([]byte{7}, 1024))
}

func TestDuplicateAdd(t *testing.T) {
	c := qt.New(t)
	builder := kar.NewBuilder(kar.Header{})
	c.Assert(builder.Add("same", []byte("one")), qt.IsNil)
	c.Assert(builder.Add("same", []byte("two")), qt.ErrorMatches, "file same already added")
}

func TestNotFound(t *testing.T) {
	c := qt.New(t)
	ar, err := kar.Open(bytes.NewReader(build(c, map[string]string{"test": testString1})))
	c.Assert(err, qt.IsNil)

	_, err = ar.Open("missing")
	c.Assert(errors.Is(err, kar.ErrNotFound), qt.IsTrue)
	_, err = ar.Find("missing")
	c.Assert(errors.Is(err, kar.ErrNotFound), qt.IsTrue)
}

func TestBadArchives(t *testing.T) {
	c := qt.New(t)
	good := build(c, map[string]string{"test": testString1})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("TAR\x00"), good[4:]...)},
		{"short header size", good[:kar.MagicLength+4]},
		{"truncated header", good[:kar.MagicLength+kar.HeaderSizeNumberLength+2]},
		{"huge header", append(append([]byte("KAR\x00"), bytes.Repeat([]byte{0xff}, 7)...), bytes.Repeat([]byte{0x7f}, 9)...)},
	}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			_, err := kar.Open(bytes.NewReader(test.data))
			c.Assert(errors.Is(err, kar.ErrFileFormat), qt.IsTrue, qt.Commentf("%v", err))
		})
	}
}

func TestTruncatedData(t *testing.T) {
	c := qt.New(t)
	good := build(c, map[string]string{"test": testString2})
	ar, err := kar.Open(bytes.NewReader(good))
	c.Assert(err, qt.IsNil)
	compressed := ar.Header().Index[0].CompressedSize

	ar, err = kar.Open(bytes.NewReader(good[:len(good)-int(compressed)+3]))
	c.Assert(err, qt.IsNil)

	_, err = ar.ReadAll("test")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestOpenFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "opentest.kar")
	c.Assert(os.WriteFile(path, build(c, map[string]string{
		"test/test1.txt": "this is a test",
		"test/test2.txt": "this is another test",
	}), 0o644), qt.IsNil)

	ar, err := kar.OpenFile(path)
	c.Assert(err, qt.IsNil)
	defer ar.Close()

	var src gfx.Source = ar
	got, err := src.Find("test/test2.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "this is another test")

	c.Assert(ar.Close(), qt.IsNil)
	c.Assert(ar.Close(), qt.IsNil)
}

func TestOpenFileMissing(t *testing.T) {
	c := qt.New(t)
	_, err := kar.OpenFile(filepath.Join(c.TempDir(), "nope.kar"))
	c.Assert(err, qt.Not(qt.IsNil))
}
