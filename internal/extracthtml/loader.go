package extracthtml

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// Input describes where a saved or live portal page comes from. The first
// non-empty source wins: URL, then Path, then Stdin.
type Input struct {
	URL   string
	Path  string
	Stdin io.Reader
}

// Loader fetches or reads HTML with a consistent timeout policy.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

// NewLoader creates a Loader. If client is nil, http.DefaultClient is used.
func NewLoader(client *http.Client, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, timeout: timeout}
}

// Load returns the page as UTF-8. Files and stdin are transcoded from the
// charset their meta tag declares; fetched pages also honor Content-Type.
//
// On non-2xx HTTP responses, Load returns an error that includes the status
// code and up to 4KB of the response body.
func (l *Loader) Load(ctx context.Context, in Input) (string, error) {
	switch {
	case strings.TrimSpace(in.URL) != "":
		return l.fetch(ctx, in.URL)
	case strings.TrimSpace(in.Path) != "":
		f, err := os.Open(in.Path)
		if err != nil {
			return "", fmt.Errorf("open page: %w", err)
		}
		defer f.Close()
		return readUTF8(f, "")
	case in.Stdin != nil:
		s, err := readUTF8(in.Stdin, "")
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return s, nil
	default:
		return "", nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "eams-extract-html/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	s, err := readUTF8(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return s, nil
}

// readUTF8 reads r, transcoding per contentType or the page's meta charset.
func readUTF8(r io.Reader, contentType string) (string, error) {
	cr, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(cr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
