// Package frame batches encoded records into checksummed, optionally
// compressed frames:
//
//	[flags u8][uvarint body length][body][crc32 LE, if FlagChecksum]
//
// The body is a sequence of uvarint length-prefixed records. The checksum
// covers the flags, the length and the body as written.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	zcodec "github.com/Hennzau/zenoh-codec"
	"github.com/Hennzau/zenoh-codec/internal/common"
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

const (
	FlagZstd     uint8 = 1 << 0
	FlagChecksum uint8 = 1 << 1
	FlagBrotli   uint8 = 1 << 2

	knownFlags = FlagZstd | FlagChecksum | FlagBrotli

	// DefaultMaxBody bounds a decoded body.
	DefaultMaxBody = 16 << 20
)

var (
	ErrChecksum     = errors.New("frame: crc mismatch")
	ErrUnknownFlags = errors.New("frame: unknown flags")
	ErrTooLarge     = errors.New("frame: body too large")
	ErrTruncated    = errors.New("frame: truncated")
)

// Compression selects the body compressor.
type Compression uint8

const (
	None Compression = iota
	Zstd
	Brotli
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	}
	return "unknown"
}

// Config selects frame features.
type Config struct {
	Compression Compression
	Checksum    bool
	ZstdLevel   zstd.EncoderLevel // zero means zstd.SpeedDefault
	BrotliLevel int               // zero means brotli.DefaultCompression
	MaxBody     int               // zero means DefaultMaxBody
}

func (c Config) maxBody() int {
	if c.MaxBody <= 0 {
		return DefaultMaxBody
	}
	return c.MaxBody
}

// Batch collects encoded records for one frame.
type Batch struct {
	codec *zcodec.Codec
	buf   []byte
	n     int
}

// NewBatch returns an empty batch encoding with c.
func NewBatch(c *zcodec.Codec) *Batch {
	return &Batch{codec: c}
}

// Add encodes v and appends it to the batch.
func (b *Batch) Add(v any) error {
	n, err := b.codec.Len(v)
	if err != nil {
		return err
	}
	mark := len(b.buf)
	b.buf = common.WriteVarUintTo(b.buf, uint64(n))
	out, err := b.codec.Append(b.buf, v)
	if err != nil {
		b.buf = b.buf[:mark]
		return err
	}
	b.buf = out
	b.n++
	return nil
}

// AddRaw appends an already encoded record.
func (b *Batch) AddRaw(rec []byte) {
	b.buf = common.WriteVarUintTo(b.buf, uint64(len(rec)))
	b.buf = append(b.buf, rec...)
	b.n++
}

// Count is the number of records in the batch.
func (b *Batch) Count() int { return b.n }

// Bytes returns the uncompressed body.
func (b *Batch) Bytes() []byte { return b.buf }

// Reset empties the batch, keeping its buffer.
func (b *Batch) Reset() {
	b.buf = b.buf[:0]
	b.n = 0
}

// Encoder builds frames. It is not safe for concurrent use.
type Encoder struct {
	cfg  Config
	zenc *zstd.Encoder
	bbuf bytes.Buffer
	benc *brotli.Writer
}

// NewEncoder returns an Encoder for cfg.
func NewEncoder(cfg Config) (*Encoder, error) {
	e := &Encoder{cfg: cfg}
	switch cfg.Compression {
	case None:
	case Zstd:
		level := cfg.ZstdLevel
		if level == 0 {
			level = zstd.SpeedDefault
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, err
		}
		e.zenc = enc
	case Brotli:
		level := cfg.BrotliLevel
		if level == 0 {
			level = brotli.DefaultCompression
		}
		e.benc = brotli.NewWriterLevel(&e.bbuf, level)
	default:
		return nil, fmt.Errorf("frame: unknown compression %d", cfg.Compression)
	}
	return e, nil
}

// Encode returns the frame holding b.
func (e *Encoder) Encode(b *Batch) ([]byte, error) {
	return e.Append(nil, b.Bytes())
}

// Append appends a frame holding body to dst.
func (e *Encoder) Append(dst, body []byte) ([]byte, error) {
	if len(body) > e.cfg.maxBody() {
		return dst, ErrTooLarge
	}
	var flags uint8
	switch {
	case e.zenc != nil:
		body = e.zenc.EncodeAll(body, nil)
		flags |= FlagZstd
	case e.benc != nil:
		e.bbuf.Reset()
		e.benc.Reset(&e.bbuf)
		if _, err := e.benc.Write(body); err != nil {
			return dst, err
		}
		if err := e.benc.Close(); err != nil {
			return dst, err
		}
		body = e.bbuf.Bytes()
		flags |= FlagBrotli
	}
	if e.cfg.Checksum {
		flags |= FlagChecksum
	}
	start := len(dst)
	dst = append(dst, flags)
	dst = common.WriteVarUintTo(dst, uint64(len(body)))
	dst = append(dst, body...)
	if e.cfg.Checksum {
		dst = binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
	}
	return dst, nil
}

// Close releases the compressor.
func (e *Encoder) Close() error {
	if e.zenc != nil {
		return e.zenc.Close()
	}
	return nil
}

// Decoder opens frames.
type Decoder struct {
	cfg Config
	dec *zstd.Decoder
}

// NewDecoder returns a Decoder. Compression and checksums are taken from
// each frame's flags; only MaxBody is read from cfg.
//
// Decoder is safe for concurrent use.
func NewDecoder(cfg Config) (*Decoder, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(cfg.maxBody())))
	if err != nil {
		return nil, err
	}
	return &Decoder{cfg: cfg, dec: dec}, nil
}

// Decode opens the frame at the start of data. It returns the uncompressed
// body and the number of bytes the frame occupied.
func (d *Decoder) Decode(data []byte) ([]byte, int, error) {
	r := zcodec.NewReader(data)
	flags, err := r.ReadU8()
	if err != nil {
		return nil, 0, ErrTruncated
	}
	if flags&^knownFlags != 0 || flags&FlagZstd != 0 && flags&FlagBrotli != 0 {
		return nil, 0, ErrUnknownFlags
	}
	size, err := r.ReadUvarint()
	if err != nil {
		return nil, 0, ErrTruncated
	}
	if size > uint64(r.Remaining()) {
		return nil, 0, ErrTruncated
	}
	body, _ := r.Read(int(size))
	n := len(data) - r.Remaining()
	if flags&FlagChecksum != 0 {
		sum, err := r.Read(4)
		if err != nil {
			return nil, 0, ErrTruncated
		}
		if crc32.ChecksumIEEE(data[:n]) != binary.LittleEndian.Uint32(sum) {
			return nil, 0, ErrChecksum
		}
		n += 4
	}
	switch {
	case flags&FlagZstd != 0:
		body, err = d.dec.DecodeAll(body, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
				return nil, 0, ErrTooLarge
			}
			return nil, 0, err
		}
	case flags&FlagBrotli != 0:
		br := brotli.NewReader(bytes.NewReader(body))
		body, err = io.ReadAll(io.LimitReader(br, int64(d.cfg.maxBody())+1))
		if err != nil {
			return nil, 0, err
		}
	}
	if len(body) > d.cfg.maxBody() {
		return nil, 0, ErrTooLarge
	}
	return body, n, nil
}

// Close releases the decompressor.
func (d *Decoder) Close() {
	d.dec.Close()
}

// Records calls fn with each record of body in order, stopping at the first error.
func Records(body []byte, fn func(rec []byte) error) error {
	r := zcodec.NewReader(body)
	for r.CanRead() {
		n, err := r.ReadLen()
		if err != nil {
			return err
		}
		rec, _ := r.Read(n)
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Decode unmarshals every record of body into values produced by next.
func Decode(c *zcodec.Codec, body []byte, next func() any) error {
	return Records(body, func(rec []byte) error {
		return c.Decode(rec, next())
	})
}
