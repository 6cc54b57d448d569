package compress

import (
	"errors"
	"fmt"
)

// ErrUnknownCodec is returned by ByName for codec names that are not registered.
var ErrUnknownCodec = errors.New("unknown compression codec")

// Compress encodes and decodes revision snapshots.
type Compress interface {
	// Name is stored next to the encoded data so it can be decoded later with the same codec.
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByName returns the codec registered under name.
func ByName(name string) (Compress, error) {
	switch name {
	case "", NopName:
		return NewNop(), nil
	case GZipName:
		return NewGZip(), nil
	case BrotliName:
		return NewBrotli(), nil
	case LZ4Name:
		return NewLZ4(), nil
	case ZstdName:
		return NewZstd(), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
}
