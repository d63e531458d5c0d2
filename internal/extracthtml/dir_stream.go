package extracthtml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StreamFromDir streams a single JSON array to w with one object per record
// extracted from each saved page in dir, adding "source_file" to each object.
//
// Behavior:
//   - stable ordering by filename
//   - unreadable files and non-HTML files are skipped
//   - a page may emit several objects (one per listing row or event)
func StreamFromDir(w io.Writer, dir string, kind PageKind, enc *json.Encoder) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write [: %w", err)
	}

	first := true
	for _, e := range entries {
		if e.IsDir() || !isHTMLName(e.Name()) {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}

		recs, err := ExtractPageHTML(string(b), kind)
		if err != nil {
			continue
		}

		for _, r := range recs {
			if r.Len() == 0 {
				continue
			}
			r.SetString("source_file", e.Name())
			if !first {
				if _, err := io.WriteString(w, ","); err != nil {
					return fmt.Errorf("write comma: %w", err)
				}
			}
			first = false
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}

func isHTMLName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}
