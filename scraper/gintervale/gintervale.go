package gintervale

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"canalpro-publisher/config"
	"canalpro-publisher/models"
	"canalpro-publisher/services"
	"canalpro-publisher/utils"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// maxBodyBytes bounds any page or photo download.
const maxBodyBytes = 20 << 20

// ErrNotListed is returned when the reference search yields no property link.
var ErrNotListed = errors.New("gintervale: reference not listed")

// PhotoMirror stores a downloaded photo and returns its new public URL.
type PhotoMirror interface {
	Mirror(ctx context.Context, codigo string, idx int, data []byte, contentType string) (string, error)
}

// Scraper extracts properties from the source site by reference code.
type Scraper struct {
	baseURL     string
	client      *http.Client
	cleaner     *services.Cleaner
	mirror      PhotoMirror
	minBytes    int
	concurrency int
	rateLimitMs int
	retry       *utils.RetryConfig
	logger      *utils.Logger
}

// New creates a Scraper. mirror may be nil, in which case photo URLs are
// kept as found on the source page.
func New(cfg *config.Config, mirror PhotoMirror, logger *utils.Logger) *Scraper {
	return &Scraper{
		baseURL:     strings.TrimRight(cfg.SourceBaseURL, "/"),
		client:      &http.Client{Timeout: cfg.PhotoTimeout},
		cleaner:     services.NewCleaner(logger),
		mirror:      mirror,
		minBytes:    cfg.PhotoMinBytes,
		concurrency: cfg.MaxConcurrency,
		rateLimitMs: cfg.RateLimitMs,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// ReferenceURL is the search page for one reference code.
func (s *Scraper) ReferenceURL(codigo string) string {
	return fmt.Sprintf("%s/referencia-%s/", s.baseURL, url.PathEscape(strings.ToUpper(codigo)))
}

// Scrape fetches, parses, and cleans one property. Photos are mirrored when
// a mirror is configured; photos that fail to mirror are dropped.
func (s *Scraper) Scrape(ctx context.Context, codigo string) (*models.PropertyRecord, error) {
	codigo = strings.ToUpper(strings.TrimSpace(codigo))
	s.logger.Info("[gintervale] Scraping %s", codigo)

	raw, err := s.Fetch(ctx, codigo)
	if err != nil {
		return nil, err
	}

	p := s.cleaner.Clean(raw)
	if s.mirror != nil && len(p.Fotos) > 0 {
		p.Fotos = s.mirrorPhotos(ctx, codigo, p.Fotos)
	}

	s.logger.Info("[gintervale] %s done: %s, R$ %.2f, %d photos", codigo, p.Tipo, p.Preco, len(p.Fotos))
	return p, nil
}

// ScrapeMany scrapes each distinct code once. Failures are logged and
// returned alongside the successful records.
func (s *Scraper) ScrapeMany(ctx context.Context, codes []string) ([]*models.PropertyRecord, []error) {
	var (
		mu      sync.Mutex
		records []*models.PropertyRecord
		errs    []error
	)
	seen := utils.NewKeySet()
	pool := utils.NewWorkerPool(s.concurrency, s.rateLimitMs)

	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || !seen.Add(code) {
			continue
		}
		pool.Submit(func() {
			p, err := s.Scrape(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("[gintervale] %s: %v", code, err)
				errs = append(errs, fmt.Errorf("%s: %w", code, err))
				return
			}
			records = append(records, p)
		})
	}
	pool.Wait()

	return records, errs
}

// Fetch resolves the reference to its detail page and captures the raw text.
func (s *Scraper) Fetch(ctx context.Context, codigo string) (*models.RawProperty, error) {
	searchURL := s.ReferenceURL(codigo)
	search, err := s.document(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	href, ok := search.Find("#lista a[target='_blank']").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, codigo)
	}
	detailURL, err := resolve(searchURL, href)
	if err != nil {
		return nil, fmt.Errorf("gintervale: bad detail link %q: %w", href, err)
	}

	doc, err := s.document(ctx, detailURL)
	if err != nil {
		return nil, err
	}
	raw := parseDetail(doc)
	if raw.Titulo == "" {
		return nil, fmt.Errorf("gintervale: no title on %s", detailURL)
	}
	raw.Codigo = codigo
	raw.SourceURL = detailURL
	return raw, nil
}

func parseDetail(doc *goquery.Document) *models.RawProperty {
	raw := &models.RawProperty{
		Titulo:      text(doc.Find("h1.titulo").First()),
		Localizacao: text(doc.Find("h2.localizacao span").First()),
		Descricao:   text(doc.Find("div.descricao_imovel div.texto").First()),
	}

	doc.Find("div.valor").Each(func(_ int, v *goquery.Selection) {
		switch {
		case strings.Contains(v.Find("h3").Text(), "Venda") && raw.Venda == "":
			raw.Venda = text(v.Find("h4").First())
		case strings.Contains(v.Find("small").Text(), "Condomínio") && raw.Condominio == "":
			raw.Condominio = text(v.Find("span").First())
		case strings.Contains(v.Find("small").Text(), "IPTU") && raw.IPTU == "":
			raw.IPTU = text(v.Find("span").First())
			raw.IPTULabel = text(v)
		}
	})

	doc.Find("div.detalhe").Each(func(_ int, d *goquery.Selection) {
		if t := text(d); t != "" {
			raw.Detalhes = append(raw.Detalhes, t)
		}
	})

	doc.Find("div.fotos_imovel img.swiper_slide_img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("data-src")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		raw.Fotos = append(raw.Fotos, strings.TrimSpace(src))
	})

	return raw
}

func (s *Scraper) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := s.retry.Do(ctx, "fetch "+pageURL, func() error {
		body, _, err := s.get(ctx, pageURL)
		if err != nil {
			return err
		}
		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(body))
		return err
	})
	return doc, err
}

func (s *Scraper) get(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("status code error: %d", res.StatusCode)
		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			return nil, "", err
		}
		return nil, "", utils.Permanent(err)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxBodyBytes {
		return nil, "", utils.Permanent(fmt.Errorf("body larger than %d bytes", maxBodyBytes))
	}
	return body, res.Header.Get("Content-Type"), nil
}

// mirrorPhotos downloads and re-hosts every photo, keeping source order.
func (s *Scraper) mirrorPhotos(ctx context.Context, codigo string, urls []string) []string {
	mirrored := make([]string, len(urls))
	pool := utils.NewWorkerPool(s.concurrency, 0)

	for i, src := range urls {
		pool.Submit(func() {
			u, err := s.mirrorOne(ctx, codigo, i, src)
			if err != nil {
				s.logger.Warn("[gintervale] %s photo %d dropped: %v", codigo, i+1, err)
				return
			}
			mirrored[i] = u
		})
	}
	pool.Wait()

	out := make([]string, 0, len(urls))
	for _, u := range mirrored {
		if u != "" {
			out = append(out, u)
		}
	}
	s.logger.Info("[gintervale] %s: %d/%d photos mirrored", codigo, len(out), len(urls))
	return out
}

func (s *Scraper) mirrorOne(ctx context.Context, codigo string, idx int, src string) (string, error) {
	var (
		data        []byte
		contentType string
	)
	err := s.retry.Do(ctx, fmt.Sprintf("download photo %d", idx+1), func() error {
		var err error
		data, contentType, err = s.get(ctx, src)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(data) < s.minBytes {
		return "", fmt.Errorf("too small (%d bytes)", len(data))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return s.mirror.Mirror(ctx, codigo, idx, data, contentType)
}

func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
