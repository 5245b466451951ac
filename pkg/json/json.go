// Package json encodes resolution results with goccy/go-json through pooled
// buffers.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/MalkIPP/openfisca-core/pkg/pool"
)

var buffers = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// Marshal encodes v
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes data into v
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// WriteTo encodes v to w followed by a newline. A non-empty indent pretty
// prints. Nothing is written when encoding fails.
func WriteTo(w io.Writer, v interface{}, indent string) error {
	buf := buffers.Get()
	defer buffers.Put(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
