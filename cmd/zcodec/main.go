// Command zcodec inspects encoded messages.
//
//	zcodec header -grammar "Z|N|ID:6=0x1D" dd
//	zcodec exts a105 13
//	zcodec frame -in batch.bin
//	zcodec tap -url ws://localhost:7447/frames -n 10
//	zcodec profile -n 10000 -memprofile mem.prof
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"

	zcodec "github.com/Hennzau/zenoh-codec"
	"github.com/Hennzau/zenoh-codec/pkg/frame"
	"github.com/coder/websocket"
)

const usage = `usage: zcodec <command> [flags] [hex]

commands:
  header   decode a header byte against a slot grammar
  exts     walk an extension chain
  frame    open a frame and list its records
  tap      read frames from a websocket and list their records
  profile  encode and decode a sample message, writing a heap profile`

func main() {
	log.SetFlags(0)
	log.SetPrefix("zcodec: ")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "header":
		return runHeader(args, out)
	case "exts":
		return runExts(args, out)
	case "frame":
		return runFrame(args, out)
	case "tap":
		return runTap(args, out)
	case "profile":
		return runProfile(args, out)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

// input returns the hex arguments joined, or the contents of path.
func input(path string, args []string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	s := strings.Join(args, "")
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "0x")
	if s == "" {
		return nil, errors.New("no input")
	}
	return hex.DecodeString(s)
}

func runHeader(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("header", flag.ContinueOnError)
	grammar := fs.String("grammar", "", "slot grammar, e.g. ID:4=0xA|I:2|U:2")
	if err := fs.Parse(args); err != nil {
		return err
	}
	h, err := zcodec.ParseHeader(*grammar)
	if err != nil {
		return err
	}
	data, err := input("", fs.Args())
	if err != nil {
		return err
	}
	if len(data) != 1 {
		return fmt.Errorf("want one header byte, got %d", len(data))
	}
	b := data[0]
	fmt.Fprintf(out, "header 0x%02x %08b\n", b, b)
	for _, s := range h.Slots() {
		v := s.Get(b)
		switch {
		case s.Fixed && v != s.Value:
			fmt.Fprintf(out, "  %-6s %d (want %d)\n", s.Name, v, s.Value)
		case s.Fixed:
			fmt.Fprintf(out, "  %-6s %d fixed\n", s.Name, v)
		default:
			fmt.Fprintf(out, "  %-6s %d\n", s.Name, v)
		}
	}
	return h.Check(b)
}

func runExts(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("exts", flag.ContinueOnError)
	in := fs.String("in", "", "read raw bytes from file instead of hex arguments")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := input(*in, fs.Args())
	if err != nil {
		return err
	}
	r := zcodec.NewReader(data)
	for more := true; more; {
		h, err := zcodec.ReadExtHeader(&r)
		if err != nil {
			return err
		}
		more = h.More
		line := fmt.Sprintf("ext %-2d %-6s", h.ID, h.Kind)
		if h.Mandatory {
			line += " mandatory"
		}
		switch h.Kind {
		case zcodec.ExtU64:
			v, err := r.ReadUvarint()
			if err != nil {
				return err
			}
			line += fmt.Sprintf(" value=%d", v)
		case zcodec.ExtNested:
			m := r.Mark()
			n, err := r.ReadLen()
			if err != nil {
				return err
			}
			line += fmt.Sprintf(" len=%d", n)
			r.Rewind(m)
			if err := zcodec.SkipExt(&r, h.Kind); err != nil {
				return err
			}
		}
		fmt.Fprintln(out, line)
	}
	if r.CanRead() {
		fmt.Fprintf(out, "%d trailing bytes\n", r.Remaining())
	}
	return nil
}

func runFrame(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	in := fs.String("in", "", "read raw bytes from file instead of hex arguments")
	maxBody := fs.Int("max", frame.DefaultMaxBody, "largest accepted body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := input(*in, fs.Args())
	if err != nil {
		return err
	}
	dec, err := frame.NewDecoder(frame.Config{MaxBody: *maxBody})
	if err != nil {
		return err
	}
	defer dec.Close()
	return printFrames(dec, data, out, "")
}

// printFrames lists every frame in data and the records it holds.
func printFrames(dec *frame.Decoder, data []byte, out io.Writer, indent string) error {
	for i := 0; len(data) > 0; i++ {
		body, n, err := dec.Decode(data)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		fmt.Fprintf(out, "%sframe %d flags=0x%02x size=%d body=%d\n", indent, i, data[0], n, len(body))
		j := 0
		err = frame.Records(body, func(rec []byte) error {
			fmt.Fprintf(out, "%s  record %d len=%d\n", indent, j, len(rec))
			j++
			return nil
		})
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		data = data[n:]
	}
	return nil
}

func runTap(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tap", flag.ContinueOnError)
	url := fs.String("url", "", "websocket endpoint, e.g. ws://localhost:7447/frames")
	count := fs.Int("n", 0, "stop after this many messages, 0 for no limit")
	timeout := fs.Duration("timeout", 0, "give up after this long, 0 for no limit")
	maxBody := fs.Int("max", frame.DefaultMaxBody, "largest accepted body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return errors.New("tap: -url is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, *url, nil)
	if err != nil {
		return fmt.Errorf("tap: %w", err)
	}
	defer conn.CloseNow()
	// A message holds whole frames plus their headers.
	conn.SetReadLimit(int64(*maxBody) + 64)

	dec, err := frame.NewDecoder(frame.Config{MaxBody: *maxBody})
	if err != nil {
		return err
	}
	defer dec.Close()

	for i := 0; *count == 0 || i < *count; i++ {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("tap: %w", err)
		}
		if typ != websocket.MessageBinary {
			fmt.Fprintf(out, "message %d: skipped %d byte text message\n", i, len(data))
			continue
		}
		fmt.Fprintf(out, "message %d len=%d\n", i, len(data))
		if err := printFrames(dec, data, out, "  "); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return conn.Close(websocket.StatusNormalClosure, "")
}

type sampleQoS struct{ Prio uint8 }

type sample struct {
	_       zcodec.Header   `zenoh:"header=Z|T|ID:6=0x1D"`
	Key     string          `zenoh:"size=prefixed"`
	Time    *uint64         `zenoh:"presence=header(T)"`
	Payload []byte          `zenoh:"size=prefixed"`
	_       zcodec.ExtBlock `zenoh:"presence=header(Z)"`
	QoS     sampleQoS       `zenoh:"ext=1"`
}

func runProfile(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	n := fs.Int("n", 10000, "iterations")
	memprofile := fs.String("memprofile", "", "write a heap profile to this file")
	unsafeStrings := fs.Bool("unsafe", false, "decode strings without copying")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *memprofile != "" {
		runtime.MemProfileRate = 1
	}
	c := zcodec.New(zcodec.Options{UnsafeStrings: *unsafeStrings})
	ts := uint64(1_700_000_000)
	v := sample{Key: "demo/example/profile", Time: &ts, Payload: []byte("payload"), QoS: sampleQoS{Prio: 5}}
	size, err := c.Len(v)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	var res sample
	for i := 0; i < *n; i++ {
		if _, err := c.Encode(buf, &v); err != nil {
			return err
		}
		if err := c.Decode(buf, &res); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%d round trips of %d bytes\n", *n, size)
	if *memprofile == "" {
		return nil
	}
	f, err := os.Create(*memprofile)
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}
