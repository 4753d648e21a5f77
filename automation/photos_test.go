package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canalpro-publisher/utils"
)

// photoServer serves /ok/N as 2 KB JPEGs, /png/N as PNG, /tiny/N below the
// size floor and anything else as 404.
func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ok/"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(bytes.Repeat([]byte{0xff}, 2048))
		case strings.HasPrefix(r.URL.Path, "/png/"):
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(bytes.Repeat([]byte{0x89}, 2048))
		case strings.HasPrefix(r.URL.Path, "/tiny/"):
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("gif"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func photoURLs(base, kind string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s/%s/%d", base, kind, i)
	}
	return out
}

func newUploadPage() *fakePage {
	p := newFakePage()
	p.add(`#listing-detail-images`, &fakeElement{Tag: "div"})
	p.add(`#add-photos`, &fakeElement{Tag: "button", Text: "Adicionar fotos"})
	p.add(`input[type="file"]`, &fakeElement{Tag: "input", Type: "file", Hidden: true})
	p.setFilesFn = func(p *fakePage, paths []string) error {
		for range paths {
			p.add(`img[src*="blob"]`, &fakeElement{Tag: "img"})
		}
		return nil
	}
	return p
}

func newTestUploader(p Page, tempRoot string, batch, max int, log *bytes.Buffer) *PhotoUploader {
	sel := PhotoSelectors{
		Section:  ParseLocators([]string{`#listing-detail-images`}, ""),
		Buttons:  ParseLocators([]string{`#add-photos`}, ""),
		Inputs:   ParseLocators([]string{`input[type="file"][name="images"]`, `input[type="file"]`}, ""),
		Previews: ParseLocators([]string{`img[src*="blob"]`}, ""),
	}
	opts := PhotoOptions{BatchSize: batch, MaxPhotos: max, MinBytes: 1000, TempRoot: tempRoot}
	logger := utils.NewLoggerTo(log)
	return NewPhotoUploader(p, NewResolver(p), http.DefaultClient,
		utils.RetryConfig{MaxAttempts: 1, Logger: logger}, sel, opts, logger)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files leaked")
}

func TestBatchesBound(t *testing.T) {
	for n := 0; n <= 30; n++ {
		items := make([]string, n)
		batches := Batches(items, 8)

		want := (n + 7) / 8
		if len(batches) != want {
			t.Errorf("n=%d: got %d batches, want %d", n, len(batches), want)
		}
		total := 0
		for _, b := range batches {
			if len(b) == 0 || len(b) > 8 {
				t.Errorf("n=%d: batch of size %d", n, len(b))
			}
			total += len(b)
		}
		if total != n {
			t.Errorf("n=%d: batches hold %d items", n, total)
		}
	}
}

func TestUploadTwelvePhotosInTwoBatches(t *testing.T) {
	srv := photoServer(t)
	tmp := t.TempDir()
	var buf bytes.Buffer
	p := newUploadPage()

	report := newTestUploader(p, tmp, 8, 0, &buf).Upload(context.Background(), photoURLs(srv.URL, "ok", 12))

	assert.Equal(t, []int{8, 4}, report.Batches)
	require.Len(t, p.batches, 2)
	assert.Len(t, p.batches[0], 8)
	assert.Len(t, p.batches[1], 4)
	assert.Equal(t, PhotosOK, report.Status)
	assert.True(t, report.OK())
	assert.Equal(t, 12, report.Previews)
	for i, exists := range p.filesExist {
		assert.True(t, exists, "file %d missing when handed to the form", i)
	}
	assertDirEmpty(t, tmp)
}

func TestUploadCleansUpOnEveryPath(t *testing.T) {
	srv := photoServer(t)

	cases := []struct {
		name   string
		urls   []string
		setup  func(p *fakePage)
		status string
	}{
		{"success", photoURLs(srv.URL, "ok", 3), func(*fakePage) {}, PhotosOK},
		{"form rejects files", photoURLs(srv.URL, "ok", 3), func(p *fakePage) {
			p.setFilesFn = func(*fakePage, []string) error { return errors.New("detached node") }
		}, PhotosFailed},
		{"no file input", photoURLs(srv.URL, "ok", 3), func(p *fakePage) {
			p.remove(`input[type="file"]`)
		}, PhotosFailed},
		{"nothing downloadable", photoURLs(srv.URL, "missing", 3), func(*fakePage) {}, PhotosFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tmp := t.TempDir()
			p := newUploadPage()
			c.setup(p)

			report := newTestUploader(p, tmp, 8, 0, &bytes.Buffer{}).Upload(context.Background(), c.urls)

			assert.Equal(t, c.status, report.Status)
			assertDirEmpty(t, tmp)
		})
	}
}

func TestUploadCleansUpOnCancelledContext(t *testing.T) {
	srv := photoServer(t)
	tmp := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestUploader(newUploadPage(), tmp, 8, 0, &bytes.Buffer{}).Upload(ctx, photoURLs(srv.URL, "ok", 4))

	assert.Equal(t, PhotosFailed, report.Status)
	assertDirEmpty(t, tmp)
}

func TestUploadSkipsSmallAndBrokenPhotos(t *testing.T) {
	srv := photoServer(t)
	tmp := t.TempDir()
	var buf bytes.Buffer
	p := newUploadPage()
	urls := append(photoURLs(srv.URL, "ok", 3), srv.URL+"/tiny/1", srv.URL+"/missing/1")

	report := newTestUploader(p, tmp, 8, 0, &buf).Upload(context.Background(), urls)

	assert.Equal(t, 5, report.Requested)
	assert.Equal(t, 3, report.Downloaded)
	assert.Equal(t, []int{3}, report.Batches)
	assert.Equal(t, PhotosPartial, report.Status)
	assert.Contains(t, buf.String(), "payload too small")
	assertDirEmpty(t, tmp)
}

func TestUploadPartialWhenOneBatchFails(t *testing.T) {
	srv := photoServer(t)
	p := newUploadPage()
	calls := 0
	p.setFilesFn = func(*fakePage, []string) error {
		calls++
		if calls == 2 {
			return errors.New("widget busy")
		}
		return nil
	}

	report := newTestUploader(p, t.TempDir(), 8, 0, &bytes.Buffer{}).Upload(context.Background(), photoURLs(srv.URL, "ok", 20))

	assert.Equal(t, []int{8, 8, 4}, report.Batches)
	assert.Equal(t, 2, report.BatchesOK)
	assert.Equal(t, PhotosPartial, report.Status)
}

func TestUploadHonoursCap(t *testing.T) {
	srv := photoServer(t)
	p := newUploadPage()

	report := newTestUploader(p, t.TempDir(), 8, 10, &bytes.Buffer{}).Upload(context.Background(), photoURLs(srv.URL, "ok", 25))

	assert.Equal(t, 10, report.Requested)
	assert.Equal(t, []int{8, 2}, report.Batches)
}

func TestUploadTargetsLastFileInput(t *testing.T) {
	srv := photoServer(t)
	p := newUploadPage()
	p.add(`input[type="file"]`, &fakeElement{Tag: "input", Type: "file", ID: "fresh"})

	report := newTestUploader(p, t.TempDir(), 8, 0, &bytes.Buffer{}).Upload(context.Background(), photoURLs(srv.URL, "png", 3))

	assert.Equal(t, PhotosOK, report.Status)
	require.Len(t, p.batches, 1)
	require.Len(t, p.fileTargets, 1)
	assert.Equal(t, "fresh", p.fileTargets[0].ID)
	for _, path := range p.batches[0] {
		assert.True(t, strings.HasSuffix(path, ".png"), path)
	}
}

func TestUploadForcesHiddenInputsWhenNoneMatch(t *testing.T) {
	srv := photoServer(t)
	var buf bytes.Buffer
	p := newUploadPage()
	p.remove(`input[type="file"]`)
	p.scripts[ScriptRevealFileInputs] = func(p *fakePage) (interface{}, error) {
		p.add(`input[type="file"]`, &fakeElement{Tag: "input", Type: "file"})
		return 1, nil
	}

	report := newTestUploader(p, t.TempDir(), 8, 0, &buf).Upload(context.Background(), photoURLs(srv.URL, "ok", 3))

	assert.Equal(t, PhotosOK, report.Status)
	assert.Contains(t, buf.String(), "forced 1 input(s) visible")
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":               ".jpg",
		"image/png":                ".png",
		"image/webp; charset=x":    ".webp",
		"application/octet-stream": ".jpg",
		"":                         ".jpg",
	}
	for in, want := range cases {
		if got := extensionFor(in); got != want {
			t.Errorf("extensionFor(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestDownloadRetriesOnlyTransientFailures(t *testing.T) {
	hits := map[string]int{}
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		n := hits[r.URL.Path]
		mu.Unlock()
		switch r.URL.Path {
		case "/flaky":
			if n == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(bytes.Repeat([]byte{0xff}, 2048))
		case "/tiny":
			_, _ = w.Write([]byte("gif"))
		case "/huge":
			_, _ = w.Write(bytes.Repeat([]byte{0xff}, 8192))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	tmp := t.TempDir()
	var buf bytes.Buffer
	u := newTestUploader(newUploadPage(), tmp, 8, 0, &buf)
	u.retry = utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: utils.NewLoggerTo(&buf)}
	u.opts.MaxBytes = 4096

	report := u.Upload(context.Background(), []string{
		srv.URL + "/flaky", srv.URL + "/missing", srv.URL + "/tiny", srv.URL + "/huge",
	})

	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, PhotosPartial, report.Status)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, hits["/flaky"], "5xx is retried")
	assert.Equal(t, 1, hits["/missing"], "404 is not retried")
	assert.Equal(t, 1, hits["/tiny"], "undersized payload is not retried")
	assert.Equal(t, 1, hits["/huge"], "oversized payload is not retried")
	assert.Contains(t, buf.String(), "payload larger than 4096 bytes")
	assertDirEmpty(t, tmp)
}
