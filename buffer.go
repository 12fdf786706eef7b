package imapcore

// buffer owns the raw bytes received from the transport and hands out views
// into the not-yet-consumed window. The backing array is reused across
// reads; it grows when a response (e.g. a large literal) spans more data
// than fits.
//
// Views returned by window stay valid until the next reserve or consume
// call. Anything kept beyond that point must be copied out first; the stream
// detaches decoded responses before it advances the window.
type buffer struct {
	data  []byte // data[start:] is the unconsumed window
	start int
}

const minRead = 4096

// window returns the received but not yet consumed bytes.
func (b *buffer) window() []byte { return b.data[b.start:] }

// used returns the size of the window.
func (b *buffer) used() int { return len(b.data) - b.start }

// reserve makes room for at least n more bytes and returns the free region
// to read into. It may compact or reallocate the backing array, so no
// borrowed views may be live across a reserve call.
func (b *buffer) reserve(n int) []byte {
	if n < minRead {
		n = minRead
	}

	if cap(b.data)-len(b.data) < n {
		used := b.used()
		if cap(b.data)-used >= n {
			// enough room once the consumed prefix is dropped
			copy(b.data, b.data[b.start:])
		} else {
			size := cap(b.data) * 2
			if size < used+n {
				size = used + n
			}
			grown := make([]byte, used, size)
			copy(grown, b.data[b.start:])
			b.data = grown
		}
		b.data = b.data[:used]
		b.start = 0
	}

	return b.data[len(b.data):cap(b.data)]
}

// extend marks n bytes of the reserved region as filled.
func (b *buffer) extend(n int) { b.data = b.data[:len(b.data)+n] }

// consume advances the window past its first n bytes, invalidating every
// view that overlaps them.
func (b *buffer) consume(n int) {
	b.start += n
	if b.start >= len(b.data) {
		b.data = b.data[:0]
		b.start = 0
	}
}
