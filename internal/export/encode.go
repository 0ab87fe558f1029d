package export

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// BOM is the UTF-8 byte order mark, expected by Excel on Windows
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Encode converts rendered output to the template charset. Runes the
// legacy charsets cannot represent are replaced. The BOM is only written
// for UTF-8 output.
func Encode(output string, tpl *Template) ([]byte, error) {
	enc := EncodingUTF8
	bom := false
	if tpl != nil {
		if tpl.Encoding != "" {
			enc = tpl.Encoding
		}
		bom = tpl.BOM
	}

	var cm *charmap.Charmap
	switch enc {
	case EncodingUTF8:
		if !bom {
			return []byte(output), nil
		}
		out := make([]byte, 0, len(BOM)+len(output))
		out = append(out, BOM...)
		return append(out, output...), nil
	case EncodingISO88591:
		cm = charmap.ISO8859_1
	case EncodingWindows1252:
		cm = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}

	out, err := encoding.ReplaceUnsupported(cm.NewEncoder()).String(output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output as %s: %w", enc, err)
	}
	return []byte(out), nil
}
