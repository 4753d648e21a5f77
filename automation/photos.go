package automation

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"canalpro-publisher/utils"
)

// Upload outcomes.
const (
	PhotosOK      = "ok"
	PhotosPartial = "partial"
	PhotosFailed  = "failed"
	PhotosSkipped = "skipped"
)

const defaultMaxPhotoBytes = 20 << 20

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// PhotoSelectors are the candidate lists used by the uploader.
type PhotoSelectors struct {
	Section  []Locator
	Buttons  []Locator
	Inputs   []Locator
	Previews []Locator
}

// PhotoOptions controls download and batching.
type PhotoOptions struct {
	BatchSize int
	// MaxPhotos caps the total offered; 0 means no cap.
	MaxPhotos int
	MinBytes  int
	// MaxBytes bounds one download; 0 means defaultMaxPhotoBytes.
	MaxBytes    int64
	TempRoot    string
	BatchWait   time.Duration
	BetweenWait time.Duration
	LocateWait  time.Duration
}

// UploadReport summarizes one Upload call.
type UploadReport struct {
	Requested  int
	Downloaded int
	Batches    []int
	BatchesOK  int
	Previews   int
	Status     string
}

// OK reports whether every requested photo was delivered.
func (r UploadReport) OK() bool { return r.Status == PhotosOK }

// PhotoUploader downloads remote photos to temporary files and hands them to
// the form's native file input in fixed-size batches. Temporary files never
// outlive an Upload call.
type PhotoUploader struct {
	page     Page
	resolver *Resolver
	client   *http.Client
	retry    utils.RetryConfig
	sel      PhotoSelectors
	opts     PhotoOptions
	logger   *utils.Logger
}

// NewPhotoUploader creates a PhotoUploader. client carries the per-request
// timeout.
func NewPhotoUploader(page Page, resolver *Resolver, client *http.Client, retry utils.RetryConfig, sel PhotoSelectors, opts PhotoOptions, logger *utils.Logger) *PhotoUploader {
	if opts.BatchSize < 1 {
		opts.BatchSize = 8
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxPhotoBytes
	}
	return &PhotoUploader{
		page:     page,
		resolver: resolver,
		client:   client,
		retry:    retry,
		sel:      sel,
		opts:     opts,
		logger:   logger,
	}
}

// Batches splits items into consecutive groups of at most size.
func Batches(items []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

// Upload runs fetch, reveal, batch submit and verify for urls.
func (u *PhotoUploader) Upload(ctx context.Context, urls []string) (report UploadReport) {
	if u.opts.MaxPhotos > 0 && len(urls) > u.opts.MaxPhotos {
		u.logger.Info("[photos] capping %d photos to %d", len(urls), u.opts.MaxPhotos)
		urls = urls[:u.opts.MaxPhotos]
	}
	report.Requested = len(urls)
	if len(urls) == 0 {
		report.Status = PhotosSkipped
		u.logger.Warn("[photos] no photos to upload")
		return report
	}

	dir, err := os.MkdirTemp(u.opts.TempRoot, "canalpro-photos-")
	if err != nil {
		u.logger.Error("[photos] create temp dir: %v", err)
		report.Status = PhotosFailed
		return report
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			u.logger.Warn("[photos] cleanup %s: %v", dir, err)
		} else {
			u.logger.Info("[photos] temporary files removed")
		}
	}()

	files := u.fetch(ctx, dir, urls)
	report.Downloaded = len(files)
	if len(files) == 0 {
		u.logger.Error("[photos] no photo could be downloaded")
		report.Status = PhotosFailed
		return report
	}

	u.reveal(ctx)

	batches := Batches(files, u.opts.BatchSize)
	for i, batch := range batches {
		if i > 0 {
			_ = utils.Sleep(ctx, u.opts.BetweenWait)
			u.reveal(ctx)
		}
		report.Batches = append(report.Batches, len(batch))
		if err := u.submit(ctx, batch); err != nil {
			u.logger.Warn("[photos] batch %d/%d (%d files) FAILED: %v", i+1, len(batches), len(batch), err)
			continue
		}
		report.BatchesOK++
		u.logger.Info("[photos] batch %d/%d sent (%d files)", i+1, len(batches), len(batch))
		_ = utils.Sleep(ctx, u.opts.BatchWait)
	}

	report.Previews = u.countPreviews(ctx)
	if report.Previews == 0 {
		u.logger.Warn("[photos] no previews rendered yet")
	} else if report.Previews < report.Downloaded {
		u.logger.Warn("[photos] previews %d of %d sent", report.Previews, report.Downloaded)
	} else {
		u.logger.Info("[photos] previews rendered: %d", report.Previews)
	}

	switch {
	case report.BatchesOK == 0:
		report.Status = PhotosFailed
	case report.BatchesOK < len(batches) || report.Downloaded < report.Requested:
		report.Status = PhotosPartial
	default:
		report.Status = PhotosOK
	}
	u.logger.Info("[photos] upload status: %s (%d/%d batches, %d/%d downloaded)",
		report.Status, report.BatchesOK, len(batches), report.Downloaded, report.Requested)
	return report
}

func (u *PhotoUploader) fetch(ctx context.Context, dir string, urls []string) []string {
	var files []string
	for i, url := range urls {
		var path string
		err := u.retry.Do(ctx, fmt.Sprintf("download photo %d", i+1), func() error {
			p, err := u.download(ctx, dir, i, url)
			path = p
			return err
		})
		if err != nil {
			u.logger.Warn("[photos] photo %d skipped: %v", i+1, err)
			continue
		}
		files = append(files, path)
	}
	u.logger.Info("[photos] downloaded %d/%d", len(files), len(urls))
	return files
}

func (u *PhotoUploader) download(ctx context.Context, dir string, idx int, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", err
		}
		return "", utils.Permanent(err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, u.opts.MaxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > u.opts.MaxBytes {
		return "", utils.Permanent(fmt.Errorf("payload larger than %d bytes", u.opts.MaxBytes))
	}
	if len(data) < u.opts.MinBytes {
		return "", utils.Permanent(fmt.Errorf("payload too small (%d bytes)", len(data)))
	}

	path := filepath.Join(dir, fmt.Sprintf("foto_%03d%s", idx+1, extensionFor(resp.Header.Get("Content-Type"))))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch strings.ToLower(mt) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// reveal brings the upload area into view and locates the custom upload
// button. The button only signals that the widget rendered; files go to the
// native input directly.
func (u *PhotoUploader) reveal(ctx context.Context) {
	if loc, ok := u.resolver.Present(ctx, u.sel.Section, 0); ok {
		if err := u.page.ScrollIntoView(ctx, loc); err != nil {
			u.logger.Debug("[photos] scroll to %s: %v", loc, err)
		}
	} else {
		_ = u.page.Eval(ctx, ScriptScrollBottom, nil)
	}
	if loc, ok := u.resolver.Visible(ctx, u.sel.Buttons, u.opts.LocateWait); ok {
		u.logger.Info("[photos] upload button found: %s", loc)
	} else {
		u.logger.Warn("[photos] upload button not found")
	}
}

// submit assigns batch to the most recently mounted file input.
func (u *PhotoUploader) submit(ctx context.Context, batch []string) error {
	loc, ok := u.resolver.Present(ctx, u.sel.Inputs, u.opts.LocateWait)
	if !ok {
		var n int
		if err := u.page.Eval(ctx, ScriptRevealFileInputs, &n); err != nil {
			return fmt.Errorf("reveal file inputs: %w", err)
		}
		u.logger.Warn("[photos] no file input matched, forced %d input(s) visible", n)
		if loc, ok = u.resolver.Present(ctx, u.sel.Inputs, 0); !ok {
			return fmt.Errorf("no file input found")
		}
	}
	return u.page.SetFiles(ctx, loc, batch)
}

func (u *PhotoUploader) countPreviews(ctx context.Context) int {
	for _, loc := range u.sel.Previews {
		n, err := u.page.Count(ctx, loc)
		if err == nil && n > 0 {
			return n
		}
	}
	return 0
}
