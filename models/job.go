package models

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MinPhotos is the smallest photo count a job may be started with.
const MinPhotos = 3

// Job is the merged PropertyRecord + ListingDraft handed to one automation
// run. It is serialized to a temporary file and read back by the child.
type Job struct {
	Tipo          string   `json:"tipo"`
	Quartos       int      `json:"quartos"`
	Suites        int      `json:"suites"`
	Banheiros     int      `json:"banheiros"`
	Vagas         int      `json:"vagas"`
	Area          float64  `json:"area"`
	Preco         float64  `json:"preco"`
	Condominio    float64  `json:"condominio"`
	IPTU          float64  `json:"iptu"`
	IPTUPeriodo   string   `json:"iptu_periodo"`
	Titulo        string   `json:"titulo"`
	Descricao     string   `json:"descricao"`
	CEP           string   `json:"cep"`
	Endereco      string   `json:"endereco"`
	Numero        string   `json:"numero"`
	Complemento   string   `json:"complemento"`
	Bairro        string   `json:"bairro"`
	Cidade        string   `json:"cidade"`
	Estado        string   `json:"estado"`
	CodigoAnuncio string   `json:"codigo_anuncio_canalpro"`
	LinkVideo     string   `json:"link_video_youtube"`
	LinkTour      string   `json:"link_tour_virtual"`
	ModoExibicao  string   `json:"modo_exibicao_endereco"`
	Fotos         []string `json:"fotos"`
}

// BuildJob merges a property with its draft. Draft overrides win over the
// scraped title and description when set.
func BuildJob(p *PropertyRecord, d *ListingDraft) *Job {
	if d == nil {
		d = NewDraft(p.Codigo)
	}
	j := &Job{
		Tipo:          p.Tipo,
		Quartos:       p.Quartos,
		Suites:        p.Suites,
		Banheiros:     p.Banheiros,
		Vagas:         p.Vagas,
		Area:          p.Area,
		Preco:         p.Preco,
		Condominio:    p.Condominio,
		IPTU:          p.IPTU,
		IPTUPeriodo:   p.IPTUPeriodo,
		Titulo:        p.Titulo,
		Descricao:     p.Descricao,
		CEP:           d.CEP,
		Endereco:      d.Endereco,
		Numero:        d.Numero,
		Complemento:   d.Complemento,
		Bairro:        d.Bairro,
		Cidade:        p.Cidade,
		Estado:        p.Estado,
		CodigoAnuncio: d.CodigoAnuncio,
		LinkVideo:     d.LinkVideo,
		LinkTour:      d.LinkTour,
		ModoExibicao:  d.ModoExibicao,
		Fotos:         append([]string(nil), p.Fotos...),
	}
	if d.Titulo != "" {
		j.Titulo = d.Titulo
	}
	if d.Descricao != "" {
		j.Descricao = d.Descricao
	}
	return j
}

// Missing lists the requirements the job does not meet, in a stable order.
func (j *Job) Missing() []string {
	var missing []string
	for _, f := range []struct{ key, val string }{
		{"cep", j.CEP},
		{"endereco", j.Endereco},
		{"bairro", j.Bairro},
		{"numero", j.Numero},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.key)
		}
	}
	if j.Preco <= 0 {
		missing = append(missing, "preco")
	}
	if len(j.Fotos) < MinPhotos {
		missing = append(missing, fmt.Sprintf("fotos (%d/%d)", len(j.Fotos), MinPhotos))
	}
	return missing
}

// Complete reports whether the job satisfies the minimum-completeness rule.
func (j *Job) Complete() bool {
	return len(j.Missing()) == 0
}

// Value returns the job field named by its serialized key, formatted for a
// form control. Unknown keys yield "".
func (j *Job) Value(key string) string {
	switch key {
	case "tipo":
		return j.Tipo
	case "quartos":
		return strconv.Itoa(j.Quartos)
	case "suites":
		return strconv.Itoa(j.Suites)
	case "banheiros":
		return strconv.Itoa(j.Banheiros)
	case "vagas":
		return strconv.Itoa(j.Vagas)
	case "area":
		return formatNumber(j.Area)
	case "preco":
		return formatNumber(j.Preco)
	case "condominio":
		return formatNumber(j.Condominio)
	case "iptu":
		return formatNumber(j.IPTU)
	case "iptu_periodo":
		return j.IPTUPeriodo
	case "titulo":
		return j.Titulo
	case "descricao":
		return j.Descricao
	case "cep":
		return j.CEP
	case "endereco":
		return j.Endereco
	case "numero":
		return j.Numero
	case "complemento":
		return j.Complemento
	case "bairro":
		return j.Bairro
	case "cidade":
		return j.Cidade
	case "estado":
		return j.Estado
	case "codigo_anuncio_canalpro":
		return j.CodigoAnuncio
	case "link_video_youtube":
		return j.LinkVideo
	case "link_tour_virtual":
		return j.LinkTour
	case "modo_exibicao_endereco":
		return j.ModoExibicao
	}
	return ""
}

func formatNumber(v float64) string {
	if v == 0 {
		return ""
	}
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

//go:embed job.schema.json
var jobSchemaJSON string

var (
	jobSchemaOnce sync.Once
	jobSchema     *jsonschema.Schema
	jobSchemaErr  error
)

func compiledJobSchema() (*jsonschema.Schema, error) {
	jobSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("job.schema.json", strings.NewReader(jobSchemaJSON)); err != nil {
			jobSchemaErr = err
			return
		}
		jobSchema, jobSchemaErr = compiler.Compile("job.schema.json")
	})
	return jobSchema, jobSchemaErr
}

// DecodeJob validates data against the job schema and decodes it.
func DecodeJob(data []byte) (*Job, error) {
	schema, err := compiledJobSchema()
	if err != nil {
		return nil, fmt.Errorf("job: compile schema: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("job: body is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("job: schema validation failed: %w", err)
	}

	var job Job
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("job: decode: %w", err)
	}
	return &job, nil
}
