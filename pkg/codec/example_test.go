package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// ExampleBuilder writes two fields and prints the wire bytes.
func ExampleBuilder() {
	buf := buffer.New()
	b := codec.NewBuilder(buf, 0)
	b.String(0x20, "Bob")
	b.Uint16(0x1e, 0x0102)
	if err := b.Finish(); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("% x\n", buf.Bytes())

	// Output:
	// 20 00 04 42 6f 62 00 1e 00 02 01 02
}

// ExampleWalk decodes a field stream that ends with a truncated field.
func ExampleWalk() {
	stream := []byte{
		0x20, 0x00, 0x04, 'B', 'o', 'b', 0x00,
		0x20, 0x00, 0x09, 'F', 'r',
	}

	_, err := codec.Walk(stream, 0, func(f codec.Field) error {
		fmt.Printf("type 0x%02x: %q\n", f.Type, codec.ParseString(f.Data))
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Output:
	// type 0x20: "Bob"
}
