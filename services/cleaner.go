package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"canalpro-publisher/models"
	"canalpro-publisher/utils"
)

// maxDetails bounds how many detail entries are read; the source page
// repeats details of related properties after the main block.
const maxDetails = 8

var (
	// brlRegexp captures a Brazilian-formatted amount such as 1.234.567,89
	brlRegexp      = regexp.MustCompile(`\d[\d.]*(?:,\d+)?`)
	firstIntRegexp = regexp.MustCompile(`(\d+)`)
	parkingRegexp  = regexp.MustCompile(`(\d+)\s*(?:vaga|vagas|garagem)`)
	areaRegexp     = regexp.MustCompile(`([\d.,]+)\s*m²`)
)

// Cleaner transforms RawProperty captures into PropertyRecords.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean converts one raw capture. Missing amounts become zero.
func (c *Cleaner) Clean(raw *models.RawProperty) *models.PropertyRecord {
	titulo := normaliseText(raw.Titulo)
	localizacao := normaliseText(raw.Localizacao)
	cidade, estado := splitCityState(localizacao)

	p := &models.PropertyRecord{
		Codigo:      strings.ToUpper(strings.TrimSpace(raw.Codigo)),
		Titulo:      titulo,
		Tipo:        detectTipo(titulo),
		Preco:       ParseBRL(raw.Venda),
		Condominio:  ParseBRL(raw.Condominio),
		IPTU:        ParseBRL(raw.IPTU),
		Descricao:   strings.TrimSpace(raw.Descricao),
		Localizacao: localizacao,
		Cidade:      cidade,
		Estado:      estado,
		Fotos:       filterPhotoURLs(raw.Fotos),
		SourceURL:   raw.SourceURL,
		ScrapedAt:   time.Now().UTC(),
	}
	if p.IPTU > 0 {
		p.IPTUPeriodo = iptuPeriod(raw.IPTULabel)
	}
	c.applyDetails(p, raw.Detalhes)

	c.logger.Debug("[cleaner] %s: tipo=%s preco=%.2f area=%.2f fotos=%d",
		p.Codigo, p.Tipo, p.Preco, p.Area, len(p.Fotos))
	return p
}

// ParseBRL parses "R$ 1.234,56" into 1234.56. Unparseable input yields 0.
func ParseBRL(raw string) float64 {
	match := brlRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ".", "")
	match = strings.ReplaceAll(match, ",", ".")
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

// applyDetails reads counts and area from the detail strings. The first
// occurrence of each kind wins; usable area is preferred over total area.
func (c *Cleaner) applyDetails(p *models.PropertyRecord, detalhes []string) {
	if len(detalhes) > maxDetails {
		detalhes = detalhes[:maxDetails]
	}
	found := make(map[string]bool)
	usable := false

	for _, raw := range detalhes {
		text := fold(raw)
		switch {
		case strings.Contains(text, "dormitorio") && !found["quartos"]:
			if n, ok := firstInt(text); ok {
				p.Quartos = n
				found["quartos"] = true
			}
		case strings.Contains(text, "suite") && !found["suites"]:
			if n, ok := firstInt(text); ok {
				p.Suites = n
				found["suites"] = true
			}
		case strings.Contains(text, "banheiro") && !strings.Contains(text, "suite") && !found["banheiros"]:
			if n, ok := firstInt(text); ok {
				p.Banheiros = n
				found["banheiros"] = true
			}
		case (strings.Contains(text, "vaga") || strings.Contains(text, "garagem")) && !found["vagas"]:
			if m := parkingRegexp.FindStringSubmatch(text); m != nil {
				p.Vagas, _ = strconv.Atoi(m[1])
				found["vagas"] = true
			}
		case strings.Contains(text, "m²") && !usable:
			m := areaRegexp.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if strings.Contains(text, "util") {
				p.Area = parseArea(m[1])
				usable = true
			} else if p.Area == 0 && strings.Contains(text, "total") {
				p.Area = parseArea(m[1])
			}
		}
	}
}

func parseArea(s string) float64 {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return val
}

func firstInt(s string) (int, bool) {
	m := firstIntRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func detectTipo(titulo string) string {
	t := fold(titulo)
	switch {
	case strings.Contains(t, "casa"):
		return models.TipoCasa
	case strings.Contains(t, "terreno"):
		return models.TipoTerreno
	case strings.Contains(t, "comercial") || strings.Contains(t, "galpao"):
		return models.TipoComercial
	default:
		return models.TipoApartamento
	}
}

func iptuPeriod(label string) string {
	l := fold(label)
	switch {
	case strings.Contains(l, "mensal"):
		return "Mensal"
	case strings.Contains(l, "anual"):
		return "Anual"
	default:
		return ""
	}
}

// splitCityState reads "Bairro - Cidade/UF".
func splitCityState(loc string) (string, string) {
	if !strings.Contains(loc, "-") || !strings.Contains(loc, "/") {
		return "", ""
	}
	parts := strings.Split(loc, "-")
	last := strings.TrimSpace(parts[len(parts)-1])
	cidade, estado, ok := strings.Cut(last, "/")
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(cidade), strings.ToUpper(strings.TrimSpace(estado))
}

func filterPhotoURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "http") {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// fold lower-cases s and strips diacritics so "Dormitórios" matches "dormitorio".
// The superscript in "m²" has no decomposition and survives.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
