package portal

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// minCharsetConfidence is the chardet confidence (0-100) below which a
// guess is ignored.
const minCharsetConfidence = 50

// decodeBody converts a page body to UTF-8.
//
// The encoding comes from the BOM, the Content-Type charset or a <meta>
// declaration. When none is present and the body is not already valid UTF-8,
// chardet picks one. Bodies that sniff as non-text yield ErrNotHTML.
func decodeBody(raw []byte, contentType string) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}
	if mt := mimetype.Detect(raw); !isText(mt) {
		return "", fmt.Errorf("%w: detected %s", ErrNotHTML, mt.String())
	}

	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	if !certain && name != "utf-8" && !declaresCharset(raw) {
		if guess := detectCharset(raw); guess != "" {
			if e, n := charset.Lookup(guess); e != nil {
				enc, name = e, n
			}
		}
	}
	if name == "utf-8" {
		return string(raw), nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", name, err)
	}
	return string(out), nil
}

func detectCharset(raw []byte) string {
	res, err := chardet.NewHtmlDetector().DetectBest(raw)
	if err != nil || res == nil || res.Confidence < minCharsetConfidence {
		return ""
	}
	return res.Charset
}

// declaresCharset reports whether the head of the page names a charset in a
// <meta> tag, which DetermineEncoding already honored.
func declaresCharset(raw []byte) bool {
	head := raw[:min(len(raw), 1024)]
	return bytes.Contains(bytes.ToLower(head), []byte("charset"))
}

// isText reports whether mt is text/plain or one of its descendants
// (text/html, text/xml...).
func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
