package models

import "time"

// PropertyRecord is the scraped source of truth for one listing on the source
// site. Address fields live on the companion ListingDraft.
type PropertyRecord struct {
	Codigo      string    `json:"codigo"`
	Titulo      string    `json:"titulo"`
	Tipo        string    `json:"tipo"`
	Preco       float64   `json:"preco"`
	Condominio  float64   `json:"condominio"`
	IPTU        float64   `json:"iptu"`
	IPTUPeriodo string    `json:"iptu_periodo"`
	Area        float64   `json:"area"`
	Quartos     int       `json:"quartos"`
	Suites      int       `json:"suites"`
	Banheiros   int       `json:"banheiros"`
	Vagas       int       `json:"vagas"`
	Descricao   string    `json:"descricao"`
	Localizacao string    `json:"localizacao"`
	Cidade      string    `json:"cidade"`
	Estado      string    `json:"estado"`
	Fotos       []string  `json:"fotos"`
	SourceURL   string    `json:"source_url"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Property categories as written by the source site and the editing UI.
const (
	TipoApartamento = "Apartamento"
	TipoCasa        = "Casa"
	TipoTerreno     = "Terreno"
	TipoComercial   = "Comercial"
)

// ListingStatus is the derived publication state of a draft.
type ListingStatus string

const (
	StatusNovo      ListingStatus = "Novo"
	StatusRascunho  ListingStatus = "Rascunho"
	StatusPreparado ListingStatus = "Preparado"
	StatusPublicado ListingStatus = "Publicado"
)

// Defaults applied when a draft is created lazily.
const (
	DefaultVideoLink      = "https://www.youtube.com/watch?v=lk-sj2ZDLDU"
	DefaultTourLink       = "https://www.tourvirtual360.com.br/ibd/"
	DefaultAddressDisplay = "completo"
)

// ListingDraft is the one-to-one companion of a PropertyRecord holding the
// operator's edits and the publication target fields.
type ListingDraft struct {
	Codigo        string `json:"codigo"`
	CEP           string `json:"cep"`
	Endereco      string `json:"endereco"`
	Numero        string `json:"numero"`
	Complemento   string `json:"complemento"`
	Bairro        string `json:"bairro"`
	Titulo        string `json:"titulo,omitempty"`
	Descricao     string `json:"descricao,omitempty"`
	CodigoAnuncio string `json:"codigo_anuncio_canalpro"`
	LinkVideo     string `json:"link_video_youtube"`
	LinkTour      string `json:"link_tour_virtual"`
	ModoExibicao  string `json:"modo_exibicao_endereco"`

	// ProntoParaPublicacao is the operator's sign-off that the draft is complete.
	ProntoParaPublicacao bool      `json:"pronto_para_publicacao"`
	Publicado            bool      `json:"publicado"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewDraft returns a draft for codigo with the default links and display mode.
func NewDraft(codigo string) *ListingDraft {
	return &ListingDraft{
		Codigo:       codigo,
		LinkVideo:    DefaultVideoLink,
		LinkTour:     DefaultTourLink,
		ModoExibicao: DefaultAddressDisplay,
	}
}

// DeriveStatus computes the status of a draft. A nil draft is Novo.
func DeriveStatus(d *ListingDraft) ListingStatus {
	switch {
	case d == nil:
		return StatusNovo
	case d.Publicado:
		return StatusPublicado
	case d.ProntoParaPublicacao:
		return StatusPreparado
	case d.CodigoAnuncio != "":
		return StatusRascunho
	default:
		return StatusNovo
	}
}

// PropertySummary is one row of the listing overview.
type PropertySummary struct {
	Codigo string        `json:"codigo"`
	Titulo string        `json:"titulo"`
	Tipo   string        `json:"tipo"`
	Preco  float64       `json:"preco"`
	Cidade string        `json:"cidade"`
	Fotos  int           `json:"fotos"`
	Status ListingStatus `json:"status"`
}

// DashboardReport holds the computed statistics over the stored properties.
type DashboardReport struct {
	TotalProperties int                   `json:"total_properties"`
	ByStatus        map[ListingStatus]int `json:"by_status"`
	ByType          map[string]int        `json:"by_type"`
	ByCity          map[string]int        `json:"by_city"`
	AveragePrice    float64               `json:"average_price"`
	MinPrice        float64               `json:"min_price"`
	MaxPrice        float64               `json:"max_price"`
	MostExpensive   *PropertyRecord       `json:"most_expensive,omitempty"`
	ReadyToPublish  int                   `json:"ready_to_publish"`
	Incomplete      []string              `json:"incomplete"`
}
