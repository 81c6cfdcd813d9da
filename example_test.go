package zcodec_test

import (
	"fmt"

	zcodec "github.com/Hennzau/zenoh-codec"
)

type QoS struct{ Prio uint8 }

func (q *QoS) SetDefault() { q.Prio = 5 }

type Push struct {
	_      zcodec.Header   `zenoh:"header=Z|N|ID:6=0x1D"`
	Key    string          `zenoh:"size=prefixed"`
	Suffix *string         `zenoh:"presence=header(N),size=prefixed"`
	_      zcodec.ExtBlock `zenoh:"presence=header(Z)"`
	QoS    QoS             `zenoh:"ext=1"`
}

func Example() {
	suffix := "/b"
	data, err := zcodec.Marshal(Push{Key: "a", Suffix: &suffix, QoS: QoS{Prio: 5}})
	if err != nil {
		panic(err)
	}
	fmt.Printf("% x\n", data)

	var p Push
	if err := zcodec.Unmarshal(data, &p); err != nil {
		panic(err)
	}
	fmt.Println(p.Key+*p.Suffix, p.QoS.Prio)
	// Output:
	// 5d 01 61 02 2f 62
	// a/b 5
}

func ExampleOptions() {
	// Decoded strings alias the input buffer.
	c := zcodec.New(zcodec.Options{UnsafeStrings: true})
	buf := make([]byte, 16)
	n, err := c.Encode(buf, Push{Key: "zero-copy", QoS: QoS{Prio: 5}})
	if err != nil {
		panic(err)
	}
	var p Push
	if err := c.Decode(buf[:n], &p); err != nil {
		panic(err)
	}
	fmt.Println(n, p.Key)
	// Output: 11 zero-copy
}

func ExampleHeaderLayout_Const() {
	h, err := zcodec.ParseHeader("Z|N|ID:6=0x1D")
	if err != nil {
		panic(err)
	}
	r := zcodec.NewReader([]byte{0x5d, 0x01, 0x61})
	b, _ := r.PeekU8()
	id, _ := h.Const("ID")
	fmt.Println(h.Match(b), id)
	// Output: true 29
}
