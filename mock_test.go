package imapcore

import (
	"bytes"
	"io"
	"sync"
)

type mockChunk struct {
	data []byte
	err  error
}

// mockConn is an in-memory transport. Reads block until the test pushes
// data, an error or closes the connection; writes are captured for
// inspection. Read and Write are independent, like on a real duplex socket.
type mockConn struct {
	incoming  chan mockChunk
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	pending  []byte
	writes   bytes.Buffer
	writeErr error
}

func newMockConn() *mockConn {
	return &mockConn{
		incoming: make(chan mockChunk, 64),
		closed:   make(chan struct{}),
	}
}

// push queues bytes to be returned by subsequent Read calls, as one chunk.
func (m *mockConn) push(s string) {
	m.incoming <- mockChunk{data: []byte(s)}
}

// pushErr queues a read error.
func (m *mockConn) pushErr(err error) {
	m.incoming <- mockChunk{err: err}
}

// pushEOF queues a clean end-of-stream.
func (m *mockConn) pushEOF() {
	m.pushErr(io.EOF)
}

func (m *mockConn) setWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// written returns everything written so far.
func (m *mockConn) written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes.String()
}

func (m *mockConn) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	select {
	case c := <-m.incoming:
		if c.err != nil {
			return 0, c.err
		}
		n := copy(p, c.data)
		if n < len(c.data) {
			m.mu.Lock()
			m.pending = append(m.pending, c.data[n:]...)
			m.mu.Unlock()
		}
		return n, nil
	case <-m.closed:
		return 0, io.EOF
	}
}

func (m *mockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.writes.Write(p)
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}
