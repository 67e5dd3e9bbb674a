package sources

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/anglish/wordbook/pkg/logger"
	"github.com/klauspost/compress/gzip"
)

const dumpLine = `{"word":"leam","pos":"noun","lang_code":"en"}` + "\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serveDump(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureDumpGunzips(t *testing.T) {
	srv := serveDump(t, gzipped(t, dumpLine))
	path := filepath.Join(t.TempDir(), "raw", "wiktionary.jsonl")

	if err := EnsureDump(context.Background(), logger.Nop(), path, srv.URL+"/dump.jsonl.gz"); err != nil {
		t.Fatalf("EnsureDump: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != dumpLine {
		t.Errorf("dump = %q, want %q", got, dumpLine)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Errorf("expected no leftover .part file, got %v", err)
	}
}

func TestEnsureDumpKeepsCompressedPath(t *testing.T) {
	srv := serveDump(t, gzipped(t, dumpLine))
	path := filepath.Join(t.TempDir(), "wiktionary.jsonl.gz")

	if err := EnsureDump(context.Background(), logger.Nop(), path, srv.URL+"/dump.jsonl.gz"); err != nil {
		t.Fatalf("EnsureDump: %v", err)
	}
	f, err := openDump(path)
	if err != nil {
		t.Fatalf("openDump: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != dumpLine {
		t.Errorf("dump = %q, want %q", got, dumpLine)
	}
}

func TestEnsureDumpRejectsCorruptGzip(t *testing.T) {
	srv := serveDump(t, []byte("not gzip"))
	path := filepath.Join(t.TempDir(), "wiktionary.jsonl")

	if err := EnsureDump(context.Background(), logger.Nop(), path, srv.URL+"/dump.jsonl.gz"); err == nil {
		t.Fatal("expected an error for a corrupt download")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no dump after a failed download, got %v", err)
	}
}

func TestEnsureDumpWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonl")
	if err := EnsureDump(context.Background(), logger.Nop(), path, ""); err == nil {
		t.Fatal("expected an error without a download url")
	}
}
