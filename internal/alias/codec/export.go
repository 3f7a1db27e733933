package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mboersen/telwerk/internal/alias"
)

// ExportLight writes the human-readable sibling export of index to w:
// indented JSON, one object per record, with the two heavy numeric fields
// (minhash, simhash) omitted entirely. It exists for inspection and
// debugging; nothing ever loads it at match time.
func ExportLight(w io.Writer, index *alias.Index) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(index.Records()); err != nil {
		return fmt.Errorf("codec: light export: %w", err)
	}
	return nil
}
