// Package errs defines the sentinel errors returned by s2x.
//
// All errors produced by the block, stream and index packages wrap one of
// these values, so callers should test them with errors.Is:
//
//	if errors.Is(err, errs.ErrCorrupt) {
//	    // input is damaged
//	}
package errs

import "errors"

var (
	// ErrCorrupt reports malformed input: a bad tag, varint, offset, magic or checksum.
	ErrCorrupt = errors.New("s2: corrupt input")

	// ErrCRC reports a chunk whose checksum does not match its uncompressed content.
	ErrCRC = wrap(ErrCorrupt, "s2: corrupt input, crc mismatch")

	// ErrDictMismatch reports a serialized dictionary whose identity hash does not match its bytes.
	ErrDictMismatch = wrap(ErrCorrupt, "s2: dictionary identity mismatch")

	// ErrTooLarge reports a declared decoded length above the configured maximum.
	ErrTooLarge = errors.New("s2: decoded block is too large")

	// ErrUnsupported reports valid-looking input that uses an unsupported feature.
	ErrUnsupported = errors.New("s2: unsupported input")

	// ErrBufferTooSmall reports a caller-supplied buffer that cannot hold the result.
	ErrBufferTooSmall = errors.New("s2: buffer too small")

	// ErrCantSeek reports a seek request on a source that is not an io.Seeker.
	ErrCantSeek = errors.New("s2: source does not support seeking")

	// ErrInvalidInput reports an invalid argument or option value.
	ErrInvalidInput = errors.New("s2: invalid input")

	// ErrClosed reports use of a writer after Close.
	ErrClosed = errors.New("s2: writer is closed")
)

// ExitCode maps an error to a process exit code: 0 for nil, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return 1
}

type wrapped struct {
	parent error
	msg    string
}

func wrap(parent error, msg string) error {
	return &wrapped{parent: parent, msg: msg}
}

func (w *wrapped) Error() string { return w.msg }

func (w *wrapped) Unwrap() error { return w.parent }
