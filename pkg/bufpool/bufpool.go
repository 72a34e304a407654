// Package bufpool pools the bufio readers and writers wrapped around
// connections, so a server holding thousands of idle keep-alive sockets does
// not allocate a fresh pair per accept.
//
// Pools are keyed by buffer size; each Protocol asks for the size it was
// configured with. All operations are safe for concurrent use.
//
// # Usage
//
//	br := bufpool.GetReader(conn, 4096)
//	defer bufpool.PutReader(br)
package bufpool

import (
	"bufio"
	"io"
	"sync"
)

// DefaultSize is used when a caller asks for a non-positive size.
const DefaultSize = 4 << 10

// MaxPooledSize bounds the buffers kept in the pools. Larger buffers are
// allocated per call and dropped on Put.
const MaxPooledSize = 1 << 20

var (
	readers sync.Map // int -> *sync.Pool of *bufio.Reader
	writers sync.Map // int -> *sync.Pool of *bufio.Writer
)

func poolFor(m *sync.Map, size int, newFn func() any) *sync.Pool {
	if p, ok := m.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := m.LoadOrStore(size, &sync.Pool{New: newFn})
	return p.(*sync.Pool)
}

func normalize(size int) int {
	if size <= 0 {
		return DefaultSize
	}
	return size
}

// GetReader returns a reader of the given buffer size reading from r.
// Return it with PutReader once r is no longer read.
func GetReader(r io.Reader, size int) *bufio.Reader {
	size = normalize(size)
	if size > MaxPooledSize {
		return bufio.NewReaderSize(r, size)
	}
	p := poolFor(&readers, size, func() any { return bufio.NewReaderSize(nil, size) })
	br := p.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// PutReader detaches br from its source and returns it to its pool.
func PutReader(br *bufio.Reader) {
	if br == nil || br.Size() > MaxPooledSize {
		return
	}
	br.Reset(nil)
	if p, ok := readers.Load(br.Size()); ok {
		p.(*sync.Pool).Put(br)
	}
}

// GetWriter returns a writer of the given buffer size writing to w.
// Flush before returning it with PutWriter; unflushed data is discarded.
func GetWriter(w io.Writer, size int) *bufio.Writer {
	size = normalize(size)
	if size > MaxPooledSize {
		return bufio.NewWriterSize(w, size)
	}
	p := poolFor(&writers, size, func() any { return bufio.NewWriterSize(nil, size) })
	bw := p.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// PutWriter detaches bw from its destination and returns it to its pool.
func PutWriter(bw *bufio.Writer) {
	if bw == nil || bw.Size() > MaxPooledSize {
		return
	}
	bw.Reset(nil)
	if p, ok := writers.Load(bw.Size()); ok {
		p.(*sync.Pool).Put(bw)
	}
}
