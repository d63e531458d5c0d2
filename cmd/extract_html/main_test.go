package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const resultsPage = `<html><body>
<table><tr><td>Workers' Compensation Appeals Board</td></tr></table>
<table>
<tr><th>Case Number</th><th>Injured Worker Name</th></tr>
<tr><td><a href="CaseDetail?caseNumber=ADJ1">ADJ1</a></td><td>DOE, JANE</td></tr>
<tr><td><a href="CaseDetail?caseNumber=ADJ2">ADJ2</a></td><td>DOE, JOHN</td></tr>
</table>
</body></html>`

func decodeRows(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		t.Fatalf("stdout is not a json array: %v; out=%s", err, b)
	}
	return rows
}

// TestRun_StdinListing verifies the default listing kind over stdin keeps
// link cells as raw hrefs.
func TestRun_StdinListing(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, strings.NewReader(resultsPage), &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	rows := decodeRows(t, stdout.Bytes())
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if rows[0]["case_number"] != "CaseDetail?caseNumber=ADJ1" || rows[1]["name"] != "DOE, JOHN" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

// TestRun_DebugSelectorText verifies debug selector mode prints text (not JSON).
func TestRun_DebugSelectorText(t *testing.T) {
	t.Parallel()

	stdin := bytes.NewBufferString(`<div id="x">  A  </div><div id="x">B</div>`)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-selector", "div#x", "-text"}, stdin, &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	if out := stdout.String(); out != "A\n\nB\n\n" {
		t.Fatalf("unexpected debug output: %q", out)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"-kind", "table"},
		{"-nope"},
		{"stray"},
	} {
		var stdout, stderr bytes.Buffer
		if code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr, http.DefaultClient); code != 2 {
			t.Fatalf("args=%v code=%d want 2; stderr=%s", args, code, stderr.String())
		}
		if stdout.Len() != 0 {
			t.Fatalf("args=%v stdout=%q want empty", args, stdout.String())
		}
	}
}

// TestRun_DirTagsSourceFile verifies directory mode emits one array across
// files in name order and skips non-HTML files.
func TestRun_DirTagsSourceFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"b.html":    resultsPage,
		"a.htm":     `<table><tr><td>chrome</td></tr></table><table><tr><th>Case Number</th></tr><tr><td>ADJ0</td></tr></table>`,
		"notes.txt": resultsPage,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-dir", dir, "-kind", "listing"}, nil, &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}

	rows := decodeRows(t, stdout.Bytes())
	var got []string
	for _, r := range rows {
		got = append(got, r["source_file"].(string))
	}
	if strings.Join(got, ",") != "a.htm,b.html,b.html" {
		t.Fatalf("source files=%v", got)
	}
}

func TestRun_URLInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	client := &http.Client{Timeout: 2 * time.Second}
	code := run(context.Background(), []string{"-url", srv.URL, "-kind", "listing", "-pretty"}, nil, &stdout, &stderr, client)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	if rows := decodeRows(t, stdout.Bytes()); len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if !strings.Contains(stdout.String(), "\n  {") {
		t.Fatalf("expected indented output: %q", stdout.String())
	}
}

func TestRun_URLErrorIsRuntime(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-url", srv.URL}, nil, &stdout, &stderr, http.DefaultClient); code != 1 {
		t.Fatalf("code=%d want 1", code)
	}
	if !strings.Contains(stderr.String(), "http status 404") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
