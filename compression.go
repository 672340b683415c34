package datacache

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"

	"github.com/goforj/datacache/cachecore"
	"github.com/klauspost/compress/snappy"
)

// CompressionCodec represents a value compression algorithm.
type CompressionCodec = cachecore.CompressionCodec

const (
	CompressionNone   = cachecore.CompressionNone
	CompressionGzip   = cachecore.CompressionGzip
	CompressionSnappy = cachecore.CompressionSnappy
)

var (
	compressMagic = []byte("CMP1")

	ErrValueTooLarge      = errors.New("datacache: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("datacache: unsupported compression codec")
	ErrCorruptCompression = errors.New("datacache: corrupt compressed payload")
)

// encodeValue compresses value and frames it as magic + codec byte + payload.
// Uncompressed values are stored as is; decodeValue passes anything without
// the magic through untouched.
func encodeValue(codec CompressionCodec, max int, value []byte) ([]byte, error) {
	if max > 0 && len(value) > max {
		return nil, ErrValueTooLarge
	}
	var out []byte
	switch codec {
	case CompressionNone, "":
		return value, nil
	case CompressionGzip:
		var buf bytes.Buffer
		buf.Write(compressMagic)
		buf.WriteByte('g')
		zw, _ := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		if _, err := zw.Write(value); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		out = buf.Bytes()
	case CompressionSnappy:
		encoded := snappy.Encode(nil, value)
		out = make([]byte, 0, len(compressMagic)+1+len(encoded))
		out = append(out, compressMagic...)
		out = append(out, 's')
		out = append(out, encoded...)
	default:
		return nil, ErrUnsupportedCodec
	}
	if max > 0 && len(out) > max {
		return nil, ErrValueTooLarge
	}
	return out, nil
}

func decodeValue(in []byte) ([]byte, error) {
	if len(in) < len(compressMagic)+1 || !bytes.Equal(in[:len(compressMagic)], compressMagic) {
		return in, nil
	}
	payload := in[len(compressMagic)+1:]
	switch in[len(compressMagic)] {
	case 'g':
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, ErrCorruptCompression
		}
		defer gr.Close()
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	case 's':
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, ErrCorruptCompression
		}
		return out, nil
	default:
		return nil, ErrUnsupportedCodec
	}
}
