package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"canalpro-publisher/models"
	"canalpro-publisher/utils"
)

// DashboardService aggregates stored properties and drafts for the terminal
// and the stats endpoint.
type DashboardService struct {
	logger *utils.Logger
}

func NewDashboardService(logger *utils.Logger) *DashboardService {
	return &DashboardService{logger: logger}
}

// Generate computes the dashboard over stored properties. drafts may be
// missing entries; those properties count as Novo.
func (s *DashboardService) Generate(records []*models.PropertyRecord, drafts map[string]*models.ListingDraft) *models.DashboardReport {
	report := &models.DashboardReport{
		ByStatus:   make(map[models.ListingStatus]int),
		ByType:     make(map[string]int),
		ByCity:     make(map[string]int),
		Incomplete: []string{},
	}

	if len(records) == 0 {
		return report
	}

	report.TotalProperties = len(records)

	var priced []*models.PropertyRecord
	for _, p := range records {
		d := drafts[p.Codigo]
		status := models.DeriveStatus(d)
		report.ByStatus[status]++

		if p.Tipo != "" {
			report.ByType[p.Tipo]++
		}
		if p.Cidade != "" {
			report.ByCity[p.Cidade]++
		}
		if p.Preco > 0 {
			priced = append(priced, p)
		}

		if status == models.StatusPublicado {
			continue
		}
		if models.BuildJob(p, d).Complete() {
			report.ReadyToPublish++
		} else {
			report.Incomplete = append(report.Incomplete, p.Codigo)
		}
	}
	sort.Strings(report.Incomplete)

	// Price stats (only properties with price > 0)
	if len(priced) > 0 {
		report.MinPrice = priced[0].Preco
		report.MaxPrice = priced[0].Preco
		report.MostExpensive = priced[0]
		var total float64
		for _, p := range priced {
			total += p.Preco
			if p.Preco < report.MinPrice {
				report.MinPrice = p.Preco
			}
			if p.Preco > report.MaxPrice {
				report.MaxPrice = p.Preco
				report.MostExpensive = p
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	s.logger.Debug("[dashboard] %d properties, %d ready, %d incomplete",
		report.TotalProperties, report.ReadyToPublish, len(report.Incomplete))
	return report
}

// Print renders the report for the terminal.
func (s *DashboardService) Print(w io.Writer, r *models.DashboardReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintf(w, "  PAINEL DE IMÓVEIS\n")
	fmt.Fprintf(w, "%s\n\n", sep)

	fmt.Fprintf(w, "  Visão geral\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total de imóveis      : %d\n", r.TotalProperties)
	fmt.Fprintf(w, "  Prontos para publicar : %d\n", r.ReadyToPublish)
	fmt.Fprintf(w, "  Incompletos           : %d\n", len(r.Incomplete))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Por status\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, st := range []models.ListingStatus{models.StatusNovo, models.StatusRascunho, models.StatusPreparado, models.StatusPublicado} {
		fmt.Fprintf(w, "  %-12s %d\n", st, r.ByStatus[st])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Preços de venda\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Fprintf(w, "  Médio  : R$ %s\n", formatBRL(r.AveragePrice))
		fmt.Fprintf(w, "  Mínimo : R$ %s\n", formatBRL(r.MinPrice))
		fmt.Fprintf(w, "  Máximo : R$ %s\n", formatBRL(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  Sem dados de preço\n")
	}
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "  Mais caro: %s (%s)\n", truncate(r.MostExpensive.Titulo, 40), r.MostExpensive.Codigo)
	}
	fmt.Fprintln(w)

	printCounts(w, "Por tipo", thin, r.ByType)
	printCounts(w, "Por cidade", thin, r.ByCity)

	fmt.Fprintf(w, "%s\n\n", sep)
}

func printCounts(w io.Writer, title, thin string, counts map[string]int) {
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  Sem dados\n\n")
		return
	}

	type kv struct {
		key   string
		count int
	}
	var rows []kv
	for k, c := range counts {
		rows = append(rows, kv{k, c})
	}
	// Sort by count descending, then name
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, r := range rows {
		bar := strings.Repeat("█", r.count)
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(r.key, 28), bar, r.count)
	}
	fmt.Fprintln(w)
}

// formatBRL renders 1234567.8 as 1.234.567,80.
func formatBRL(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String() + "," + frac
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
