package services

import (
	"bytes"
	"strings"
	"testing"

	"canalpro-publisher/models"
)

func photos(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "https://cdn/x.jpg"
	}
	return out
}

func sampleProperties() ([]*models.PropertyRecord, map[string]*models.ListingDraft) {
	records := []*models.PropertyRecord{
		{Codigo: "AP1", Titulo: "Apto A", Tipo: models.TipoApartamento, Preco: 300000, Cidade: "Taubaté", Fotos: photos(5)},
		{Codigo: "AP2", Titulo: "Apto B", Tipo: models.TipoApartamento, Preco: 200000, Cidade: "Taubaté", Fotos: photos(1)},
		{Codigo: "CA1", Titulo: "Casa C", Tipo: models.TipoCasa, Preco: 700000, Cidade: "Caçapava", Fotos: photos(4)},
		{Codigo: "TE1", Titulo: "Terreno D", Tipo: models.TipoTerreno, Preco: 0, Cidade: ""},
	}
	complete := func(code string) *models.ListingDraft {
		d := models.NewDraft(code)
		d.CEP, d.Endereco, d.Numero, d.Bairro = "12010000", "Rua A", "10", "Centro"
		return d
	}
	drafts := map[string]*models.ListingDraft{
		"AP1": complete("AP1"),
		"AP2": complete("AP2"),
		"CA1": complete("CA1"),
	}
	drafts["AP1"].ProntoParaPublicacao = true
	drafts["CA1"].Publicado = true
	return records, drafts
}

func TestDashboardCounts(t *testing.T) {
	svc := NewDashboardService(newTestLogger())
	r := svc.Generate(sampleProperties())

	if r.TotalProperties != 4 {
		t.Errorf("TotalProperties: got %d, want 4", r.TotalProperties)
	}
	if r.ByStatus[models.StatusPreparado] != 1 || r.ByStatus[models.StatusPublicado] != 1 || r.ByStatus[models.StatusNovo] != 2 {
		t.Errorf("ByStatus: got %v", r.ByStatus)
	}
	if r.ByType[models.TipoApartamento] != 2 {
		t.Errorf("ByType: got %v", r.ByType)
	}
	if r.ByCity["Taubaté"] != 2 || r.ByCity["Caçapava"] != 1 {
		t.Errorf("ByCity: got %v", r.ByCity)
	}
	if _, ok := r.ByCity[""]; ok {
		t.Errorf("ByCity should skip empty city")
	}
}

func TestDashboardReadiness(t *testing.T) {
	svc := NewDashboardService(newTestLogger())
	r := svc.Generate(sampleProperties())

	// AP1 complete; AP2 lacks photos; TE1 has no draft or price; CA1 published.
	if r.ReadyToPublish != 1 {
		t.Errorf("ReadyToPublish: got %d, want 1", r.ReadyToPublish)
	}
	want := []string{"AP2", "TE1"}
	if strings.Join(r.Incomplete, ",") != strings.Join(want, ",") {
		t.Errorf("Incomplete: got %v, want %v", r.Incomplete, want)
	}
}

func TestDashboardPrices(t *testing.T) {
	svc := NewDashboardService(newTestLogger())
	r := svc.Generate(sampleProperties())

	if r.AveragePrice != 400000 {
		t.Errorf("AveragePrice: got %.2f, want 400000", r.AveragePrice)
	}
	if r.MinPrice != 200000 || r.MaxPrice != 700000 {
		t.Errorf("Min/Max: got %.2f/%.2f", r.MinPrice, r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.Codigo != "CA1" {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
}

func TestDashboardEmpty(t *testing.T) {
	svc := NewDashboardService(newTestLogger())
	r := svc.Generate(nil, nil)
	if r.TotalProperties != 0 || r.MostExpensive != nil || r.AveragePrice != 0 {
		t.Errorf("empty report: got %+v", r)
	}

	var buf bytes.Buffer
	svc.Print(&buf, r)
	if !strings.Contains(buf.String(), "Sem dados de preço") {
		t.Errorf("Print on empty report: %q", buf.String())
	}
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0,00"},
		{999.5, "999,50"},
		{1000, "1.000,00"},
		{1234567.891, "1.234.567,89"},
	}
	for _, tt := range tests {
		if got := formatBRL(tt.in); got != tt.want {
			t.Errorf("formatBRL(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
