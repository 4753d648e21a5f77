package models

// RawProperty holds the unprocessed text captured from a source detail page.
type RawProperty struct {
	Codigo      string
	SourceURL   string
	Titulo      string
	Localizacao string
	Descricao   string
	Venda       string
	Condominio  string
	IPTU        string
	IPTULabel   string
	Detalhes    []string
	Fotos       []string
}
