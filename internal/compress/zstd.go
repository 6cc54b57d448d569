package compress

import (
	"github.com/klauspost/compress/zstd"
)

const ZstdName = "zstd"

// encoder and decoder are safe for concurrent use and expensive to build.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type Zstd struct {
}

func NewZstd() Zstd {
	return Zstd{}
}

func (z Zstd) Name() string {
	return ZstdName
}

func (z Zstd) Encode(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (z Zstd) Decode(data []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, nil)
}
