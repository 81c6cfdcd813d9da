// Package zcodec encodes and decodes the binary messages of a pub/sub wire
// protocol from annotated Go structs.
//
// A record is a struct whose fields are written in declaration order. Marker
// fields shape the layout: Header declares a one-byte header split into
// named slots, a Flag8..Flag64 token packs presence and size bits for later
// fields, and ExtBlock opens a trailing section of typed extensions. Field
// attributes live in the `zenoh` struct tag:
//
//	type Push struct {
//		_        zcodec.Header   `zenoh:"header=Z|N|M|ID:5=0x1D"`
//		Key      string          `zenoh:"size=prefixed"`
//		Suffix   *string         `zenoh:"presence=header(N),size=prefixed"`
//		Priority uint8
//		_        zcodec.ExtBlock `zenoh:"presence=header(Z)"`
//		QoS      QoS             `zenoh:"ext=0x1"`
//		Tstamp   *Timestamp      `zenoh:"ext=0x2"`
//	}
//
// Pointer fields are optional and need a presence flavour. Strings and byte
// slices need a size flavour: prefixed, deduced (rest of the window),
// flag(n), eflag(n), header(SLOT) or header(SLOT) with maybe_empty. uint8 is
// one raw byte; wider unsigned integers are LEB128 varints.
package zcodec
