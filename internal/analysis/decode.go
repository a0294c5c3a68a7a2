package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DecodeError reports that none of the supported encodings could decode the input.
type DecodeError struct {
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode CSV file (tried %s)", strings.Join(e.Tried, ", "))
}

type textDecoder struct {
	name string
	enc  encoding.Encoding
	// accepts reports whether raw is valid input; nil accepts everything.
	accepts func(raw []byte) bool
}

// decoders is the fixed fallback order. "latin-1" follows the web meaning of
// the label (Windows-1252, so 0x80 is the euro sign) and rejects the five
// bytes that code page leaves undefined; "iso-8859-1" maps every byte to the
// same code point and always succeeds.
var decoders = []textDecoder{
	{name: "utf-8", enc: unicode.UTF8BOM, accepts: utf8.Valid},
	{name: "latin-1", enc: charmap.Windows1252, accepts: definedIn(charmap.Windows1252)},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

// Decode converts raw bytes into text, returning the name of the encoding used.
func Decode(raw []byte) (string, string, error) {
	tried := make([]string, 0, len(decoders))
	for _, d := range decoders {
		tried = append(tried, d.name)
		if d.accepts != nil && !d.accepts(raw) {
			continue
		}
		out, err := d.enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		return string(out), d.name, nil
	}
	return "", "", &DecodeError{Tried: tried}
}

func definedIn(cm *charmap.Charmap) func([]byte) bool {
	return func(raw []byte) bool {
		for _, b := range raw {
			if cm.DecodeByte(b) == utf8.RuneError {
				return false
			}
		}
		return true
	}
}
