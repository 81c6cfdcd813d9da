package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	zcodec "github.com/Hennzau/zenoh-codec"
	"github.com/Hennzau/zenoh-codec/pkg/frame"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

func TestHeaderCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"header", "-grammar", "ID:4=0xA|I:2|U:2", "aa"}, &out))
	require.Contains(t, out.String(), "header 0xaa 10101010")
	require.Contains(t, out.String(), "ID     10 fixed")
	require.Contains(t, out.String(), "I      2")

	out.Reset()
	err := run([]string{"header", "-grammar", "ID:4=0xA|I:2|U:2", "5a"}, &out)
	require.ErrorIs(t, err, zcodec.ErrCouldNotParse)
	require.Contains(t, out.String(), "(want 10)")

	require.Error(t, run([]string{"header", "-grammar", "A:9", "00"}, &out))
	require.Error(t, run([]string{"header", "-grammar", "A", "0000"}, &out))
}

func TestExtsCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"exts", "a105", "c2", "0201", "02", "13"}, &out))
	s := out.String()
	require.Contains(t, s, "value=5")
	require.Contains(t, s, "len=2")
	require.Contains(t, s, "mandatory")

	require.ErrorIs(t, run([]string{"exts", "a1"}, &out), zcodec.ErrCouldNotRead)
	require.ErrorIs(t, run([]string{"exts", "61"}, &out), zcodec.ErrCouldNotParse)
	require.Error(t, run([]string{"exts"}, &out))
}

func TestFrameCommand(t *testing.T) {
	enc, err := frame.NewEncoder(frame.Config{Compression: frame.Zstd, Checksum: true})
	require.NoError(t, err)
	b := frame.NewBatch(zcodec.New(zcodec.Options{}))
	require.NoError(t, b.Add(sample{Key: "a"}))
	require.NoError(t, b.Add(sample{Key: "b", Payload: []byte{1, 2, 3}}))
	data, err := enc.Encode(b)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run([]string{"frame", hex.EncodeToString(data)}, &out))
	require.Contains(t, out.String(), "frame 0 flags=0x03")
	require.Contains(t, out.String(), "record 1 len=")

	path := filepath.Join(t.TempDir(), "batch.bin")
	require.NoError(t, os.WriteFile(path, append(data, data...), 0o600))
	out.Reset()
	require.NoError(t, run([]string{"frame", "-in", path}, &out))
	require.Contains(t, out.String(), "frame 1 ")

	data[len(data)-1] ^= 0xFF
	require.ErrorIs(t, run([]string{"frame", hex.EncodeToString(data)}, &out), frame.ErrChecksum)
}

func testFrame(t *testing.T, keys ...string) []byte {
	t.Helper()
	enc, err := frame.NewEncoder(frame.Config{Compression: frame.Brotli})
	require.NoError(t, err)
	defer enc.Close()
	b := frame.NewBatch(zcodec.New(zcodec.Options{}))
	for _, k := range keys {
		require.NoError(t, b.Add(sample{Key: k}))
	}
	data, err := enc.Encode(b)
	require.NoError(t, err)
	return data
}

// serveFrames writes msgs to the first client and then closes normally.
func serveFrames(t *testing.T, msgs ...[]byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		for _, m := range msgs {
			typ := websocket.MessageBinary
			if m == nil {
				typ, m = websocket.MessageText, []byte("hello")
			}
			if err := c.Write(ctx, typ, m); err != nil {
				return
			}
		}
		_ = c.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTapCommand(t *testing.T) {
	one := testFrame(t, "a")
	two := testFrame(t, "b", "c")
	url := serveFrames(t, nil, one, append(append([]byte{}, two...), one...))

	var out bytes.Buffer
	require.NoError(t, run([]string{"tap", "-url", url, "-timeout", "5s"}, &out))
	s := out.String()
	require.Contains(t, s, "message 0: skipped 5 byte text message")
	require.Contains(t, s, "message 1 len=")
	require.Contains(t, s, "  frame 0 flags=0x04")
	require.Contains(t, s, "message 2 len=")
	require.Contains(t, s, "  frame 1 ")
	require.Contains(t, s, "    record 1 len=")
}

func TestTapCommandErrors(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run([]string{"tap"}, &out))

	url := serveFrames(t, []byte{0xF0, 0x00})
	err := run([]string{"tap", "-url", url, "-timeout", "5s"}, &out)
	require.ErrorIs(t, err, frame.ErrUnknownFlags)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	err = run([]string{"tap", "-url", "ws" + strings.TrimPrefix(srv.URL, "http"), "-timeout", "5s"}, &out)
	require.Error(t, err)
}

func TestTapCommandStopsAfterCount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	data := testFrame(t, "k")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		for i := 0; i < 3; i++ {
			if err := c.Write(ctx, websocket.MessageBinary, data); err != nil {
				return
			}
		}
		// Wait for the client to close.
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	var out bytes.Buffer
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	require.NoError(t, run([]string{"tap", "-url", url, "-n", "2", "-timeout", "5s"}, &out))
	require.Contains(t, out.String(), "message 1 ")
	require.NotContains(t, out.String(), "message 2 ")
}

func TestProfileCommand(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "mem.prof")
	require.NoError(t, run([]string{"profile", "-n", "10", "-memprofile", path}, &out))
	require.Contains(t, out.String(), "10 round trips")
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run(nil, &out))
	require.Error(t, run([]string{"nope"}, &out))
}
