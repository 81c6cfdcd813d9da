// Package redisbus carries encoded records over Redis pub/sub. Each publish
// sends one frame holding a batch of records.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	zcodec "github.com/Hennzau/zenoh-codec"
	"github.com/Hennzau/zenoh-codec/pkg/frame"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNoRecords is returned by Publish when called without records.
	ErrNoRecords = errors.New("redisbus: no records")
	// ErrClosed is returned by Next after the subscription is closed.
	ErrClosed = errors.New("redisbus: subscription closed")
)

// Options configures a Bus.
type Options struct {
	Client redis.UniversalClient
	Codec  *zcodec.Codec // nil uses zcodec.New(zcodec.Options{})
	Frame  frame.Config
	Prefix string
}

// Bus publishes and subscribes to record batches.
type Bus struct {
	client redis.UniversalClient
	codec  *zcodec.Codec
	prefix string

	mu  sync.Mutex // guards enc
	enc *frame.Encoder
	dec *frame.Decoder
}

// New creates a Bus.
func New(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, errors.New("redisbus: nil client")
	}
	if opts.Codec == nil {
		opts.Codec = zcodec.New(zcodec.Options{})
	}
	enc, err := frame.NewEncoder(opts.Frame)
	if err != nil {
		return nil, err
	}
	dec, err := frame.NewDecoder(opts.Frame)
	if err != nil {
		return nil, err
	}
	return &Bus{client: opts.Client, codec: opts.Codec, prefix: opts.Prefix, enc: enc, dec: dec}, nil
}

// channel returns the Redis channel for name.
func (b *Bus) channel(name string) string {
	if b.prefix == "" {
		return name
	}
	return b.prefix + ":" + name
}

// Publish encodes records into one frame and publishes it on channel.
func (b *Bus) Publish(ctx context.Context, channel string, records ...any) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	batch := frame.NewBatch(b.codec)
	for i, v := range records {
		if err := batch.Add(v); err != nil {
			return fmt.Errorf("redisbus: record %d: %w", i, err)
		}
	}
	b.mu.Lock()
	data, err := b.enc.Encode(batch)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel(channel), data).Err()
}

// Subscribe listens on channels and returns once Redis has confirmed the
// subscription.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = b.channel(c)
	}
	ps := b.client.Subscribe(ctx, names...)
	for range names {
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}
	return &Subscription{bus: b, ps: ps, ch: ps.Channel()}, nil
}

// Close releases the frame encoder and decoder.
func (b *Bus) Close() error {
	b.dec.Close()
	return b.enc.Close()
}

// Subscription receives batches published on its channels.
type Subscription struct {
	bus *Bus
	ps  *redis.PubSub
	ch  <-chan *redis.Message

	mu     sync.Mutex
	closed bool
}

// Message is one received batch.
type Message struct {
	Channel string
	Records [][]byte

	codec *zcodec.Codec
}

// Decode unmarshals record i into out.
func (m *Message) Decode(i int, out any) error {
	if i < 0 || i >= len(m.Records) {
		return fmt.Errorf("redisbus: record %d of %d", i, len(m.Records))
	}
	return m.codec.Decode(m.Records[i], out)
}

// Next blocks until the next batch arrives or ctx is done. Records alias
// the received payload.
func (s *Subscription) Next(ctx context.Context) (*Message, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	var msg *redis.Message
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		msg = m
	}
	body, _, err := s.bus.dec.Decode([]byte(msg.Payload))
	if err != nil {
		return nil, fmt.Errorf("redisbus: %s: %w", msg.Channel, err)
	}
	out := &Message{Channel: msg.Channel, codec: s.bus.codec}
	err = frame.Records(body, func(rec []byte) error {
		out.Records = append(out.Records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redisbus: %s: %w", msg.Channel, err)
	}
	return out, nil
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ps.Close()
}
