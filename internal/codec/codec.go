// Package codec declares the archive-frame, compression, encryption and
// signing contracts the archive writer (not itself in scope) would compose
// to produce a .bar storage file. No algorithm is implemented here — these
// are opaque interfaces only, leaving frame encoding and the
// compression/crypto algorithms themselves to a future implementation.
package codec

import "io"

// Frame is one length-prefixed unit of an archive stream: a chunk header
// plus its payload bytes.
type Frame struct {
	Type    string
	Payload []byte
}

// FrameWriter writes Frames to an underlying archive stream.
type FrameWriter interface {
	WriteFrame(f Frame) error
	Close() error
}

// FrameReader reads Frames from an archive stream in order.
type FrameReader interface {
	ReadFrame() (Frame, error)
}

// Compressor wraps w so writes are compressed before reaching it.
type Compressor interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
}

// Decompressor wraps r so reads are decompressed before being returned.
type Decompressor interface {
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Encryptor wraps w so writes are encrypted before reaching it.
type Encryptor interface {
	NewWriter(w io.Writer, password []byte) (io.WriteCloser, error)
}

// Decryptor wraps r so reads are decrypted before being returned.
type Decryptor interface {
	NewReader(r io.Reader, password []byte) (io.ReadCloser, error)
}

// Signer produces a detached signature over an archive's digest.
type Signer interface {
	Sign(digest []byte) (signature []byte, err error)
}

// Verifier checks a Signer's output against an archive's digest.
type Verifier interface {
	Verify(digest, signature []byte) error
}
