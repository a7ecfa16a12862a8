package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSha256Hex(t *testing.T) {
	input := "hello world\n"
	got, err := sha256Hex(strings.NewReader(input))
	require.NoError(t, err)

	h := sha256.Sum256([]byte(input))
	assert.Equal(t, hex.EncodeToString(h[:]), got)
}

func TestSha256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bin")
	data := []byte("ffts test data")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := sha256File(path)
	require.NoError(t, err)

	h := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(h[:]), got)
}

func TestSha256File_NotFound(t *testing.T) {
	_, err := sha256File("/nonexistent/file")
	assert.Error(t, err)
}

func TestDownloadToTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := &ctxGetter{ctx: t.Context(), client: srv.Client()}

	path, err := downloadToTempFile(srv.URL+"/asset", dir, client)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, dir, filepath.Dir(path))

	_, err = downloadToTempFile(srv.URL+"/missing", dir, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarGz(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"README.md":                "docs",
		"release/bin/mermaid-ascii": "#!/bin/sh\n",
	})
	dir := t.TempDir()

	require.NoError(t, extractTarGz(bytes.NewReader(archive), dir, "mermaid-ascii"))
	data, err := os.ReadFile(filepath.Join(dir, "mermaid-ascii"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	err = extractTarGz(bytes.NewReader(archive), dir, "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = extractTarGz(strings.NewReader("not gzip"), dir, "mermaid-ascii")
	assert.Error(t, err)
}

func TestMermaidASCIIAssetName(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"linux", "amd64", "mermaid-ascii_Linux_x86_64.tar.gz", false},
		{"linux", "arm64", "mermaid-ascii_Linux_arm64.tar.gz", false},
		{"darwin", "arm64", "mermaid-ascii_Darwin_arm64.tar.gz", false},
		{"windows", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := mermaidASCIIAssetName(tt.goos, tt.goarch)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			_, pinned := mermaidASCIIChecksums[got]
			assert.True(t, pinned)
		})
	}
}

func TestVerifyAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

	err := verifyAsset(path, "mermaid-ascii_Linux_x86_64.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	err = verifyAsset(path, "mermaid-ascii_Plan9_mips.tar.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no known checksum")
}
