package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCategory(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Apartamento", "APARTMENT"},
		{"Casa", "HOME"},
		{"Terreno", "ALLOTMENT_LAND"},
		{"Comercial", "BUILDING"},
		{"Sobrado", "APARTMENT"},
		{"", "APARTMENT"},
	}
	for _, c := range cases {
		if got := MapCategory(c.in); got != c.want {
			t.Errorf("MapCategory(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMapTaxPeriod(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Mensal", "MONTHLY"},
		{"IPTU Mensal", "MONTHLY"},
		{"Anual", "YEARLY"},
		{"", "YEARLY"},
	}
	for _, c := range cases {
		if got := MapTaxPeriod(c.in); got != c.want {
			t.Errorf("MapTaxPeriod(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMapAddressDisplay(t *testing.T) {
	assert.Equal(t, "ALL", MapAddressDisplay("completo"))
	assert.Equal(t, "STREET", MapAddressDisplay("rua"))
	assert.Equal(t, "NEIGHBORHOOD", MapAddressDisplay("Bairro"))
	assert.Equal(t, "ALL", MapAddressDisplay(""))
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name  string
		draft *ListingDraft
		want  ListingStatus
	}{
		{"no draft", nil, StatusNovo},
		{"empty draft", &ListingDraft{}, StatusNovo},
		{"external id", &ListingDraft{CodigoAnuncio: "X1"}, StatusRascunho},
		{"signed off", &ListingDraft{CodigoAnuncio: "X1", ProntoParaPublicacao: true}, StatusPreparado},
		{"signed off without id", &ListingDraft{ProntoParaPublicacao: true}, StatusPreparado},
		{"published", &ListingDraft{Publicado: true}, StatusPublicado},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.draft); got != c.want {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft("AP11007")
	assert.Equal(t, "AP11007", d.Codigo)
	assert.Equal(t, DefaultVideoLink, d.LinkVideo)
	assert.Equal(t, DefaultTourLink, d.LinkTour)
	assert.Equal(t, "completo", d.ModoExibicao)
}

func completeJob() *Job {
	return &Job{
		Tipo:     "Apartamento",
		Preco:    450000,
		CEP:      "01234-567",
		Endereco: "Rua A",
		Numero:   "10",
		Bairro:   "Centro",
		Fotos:    []string{"a", "b", "c"},
	}
}

func TestJobMissing(t *testing.T) {
	j := completeJob()
	assert.True(t, j.Complete())
	assert.Empty(t, j.Missing())

	j.Bairro = "  "
	j.Preco = 0
	j.Fotos = j.Fotos[:2]
	assert.False(t, j.Complete())
	assert.Equal(t, []string{"bairro", "preco", "fotos (2/3)"}, j.Missing())
}

func TestBuildJobPrefersDraftOverrides(t *testing.T) {
	p := &PropertyRecord{
		Codigo: "CA1", Titulo: "Casa ampla", Descricao: "orig", Tipo: "Casa",
		Preco: 1e6, Quartos: 3, Fotos: []string{"u1", "u2"},
	}
	d := NewDraft("CA1")
	d.CEP = "12345678"
	d.Titulo = "Casa reformada"

	j := BuildJob(p, d)
	assert.Equal(t, "Casa reformada", j.Titulo)
	assert.Equal(t, "orig", j.Descricao)
	assert.Equal(t, "12345678", j.CEP)
	assert.Equal(t, DefaultVideoLink, j.LinkVideo)

	j.Fotos[0] = "changed"
	assert.Equal(t, "u1", p.Fotos[0], "job must hold a snapshot of the photo list")
}

func TestBuildJobWithoutDraftUsesDefaults(t *testing.T) {
	j := BuildJob(&PropertyRecord{Codigo: "X"}, nil)
	assert.Equal(t, "completo", j.ModoExibicao)
}

func TestJobValue(t *testing.T) {
	j := completeJob()
	j.Quartos = 2
	j.Area = 72.5
	assert.Equal(t, "2", j.Value("quartos"))
	assert.Equal(t, "0", j.Value("suites"))
	assert.Equal(t, "450000", j.Value("preco"))
	assert.Equal(t, "72.5", j.Value("area"))
	assert.Equal(t, "", j.Value("iptu"))
	assert.Equal(t, "01234-567", j.Value("cep"))
	assert.Equal(t, "", j.Value("nope"))
}

func TestDecodeJob(t *testing.T) {
	data, err := json.Marshal(completeJob())
	require.NoError(t, err)

	j, err := DecodeJob(data)
	require.NoError(t, err)
	assert.Equal(t, "Rua A", j.Endereco)
	assert.Len(t, j.Fotos, 3)
}

func TestDecodeJobRejectsBadShape(t *testing.T) {
	_, err := DecodeJob([]byte(`{"tipo": "Casa", "fotos": "not-a-list"}`))
	assert.ErrorContains(t, err, "schema validation failed")

	_, err = DecodeJob([]byte(`{not json`))
	assert.ErrorContains(t, err, "not valid JSON")
}
