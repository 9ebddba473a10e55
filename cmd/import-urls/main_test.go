package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/lighting-importer/internal/fetcher"
	"github.com/maltedev/lighting-importer/internal/importer"
)

func TestReadURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# spring batch\nhttps://shop.example/p/1\n\n  https://shop.example/p/2  \n#https://shop.example/p/3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example/p/1", "https://shop.example/p/2"}, urls)

	_, err = readURLs(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p/1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h1>Торшер Eglo Bella 39123</h1>
<span itemprop="price" content="8990">8 990 ₽</span></body></html>`)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := importer.NewService(fetcher.New(fetcher.Options{Timeout: time.Second}, logger), logger)

	var out bytes.Buffer
	code := preview(context.Background(), service, []string{srv.URL + "/p/1", srv.URL + "/p/2"}, &out, logger)
	assert.Equal(t, 3, code)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Торшер Eglo Bella 39123", records[0]["name"])
	assert.Equal(t, "8990", records[0]["price"])
	assert.Equal(t, "floor_lamp", records[0]["productType"])
	assert.Equal(t, "39123", records[0]["article"])
}
