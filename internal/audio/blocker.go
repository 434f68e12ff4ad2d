package audio

// Blocker regroups a sample stream into fixed size blocks.
type Blocker struct {
	size int
	buf  []float32
}

// NewBlocker returns a Blocker emitting blocks of size samples.
// A non-positive size uses BlockSize.
func NewBlocker(size int) *Blocker {
	if size <= 0 {
		size = BlockSize
	}
	return &Blocker{size: size, buf: make([]float32, 0, size)}
}

// Write appends samples and returns every block completed by them.
// Returned blocks are not reused by the Blocker.
func (b *Blocker) Write(samples []float32) [][]float32 {
	var blocks [][]float32
	for len(samples) > 0 {
		n := min(b.size-len(b.buf), len(samples))
		b.buf = append(b.buf, samples[:n]...)
		samples = samples[n:]
		if len(b.buf) == b.size {
			blocks = append(blocks, b.buf)
			b.buf = make([]float32, 0, b.size)
		}
	}
	return blocks
}

// Pending returns the number of buffered samples.
func (b *Blocker) Pending() int { return len(b.buf) }

// Reset discards buffered samples.
func (b *Blocker) Reset() { b.buf = b.buf[:0] }
