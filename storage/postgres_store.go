package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"canalpro-publisher/models"
)

// PostgresStore persists properties and their listing drafts to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS imoveis (
			codigo       VARCHAR(32)   PRIMARY KEY,
			titulo       TEXT          NOT NULL DEFAULT '',
			tipo         VARCHAR(32)   NOT NULL DEFAULT '',
			preco        NUMERIC(14,2) NOT NULL DEFAULT 0,
			condominio   NUMERIC(12,2) NOT NULL DEFAULT 0,
			iptu         NUMERIC(12,2) NOT NULL DEFAULT 0,
			iptu_periodo VARCHAR(16)   NOT NULL DEFAULT '',
			area         NUMERIC(10,2) NOT NULL DEFAULT 0,
			quartos      INTEGER       NOT NULL DEFAULT 0,
			suites       INTEGER       NOT NULL DEFAULT 0,
			banheiros    INTEGER       NOT NULL DEFAULT 0,
			vagas        INTEGER       NOT NULL DEFAULT 0,
			descricao    TEXT          NOT NULL DEFAULT '',
			localizacao  TEXT          NOT NULL DEFAULT '',
			cidade       TEXT          NOT NULL DEFAULT '',
			estado       VARCHAR(2)    NOT NULL DEFAULT '',
			fotos        TEXT[]        NOT NULL DEFAULT '{}',
			source_url   TEXT          NOT NULL DEFAULT '',
			scraped_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS anuncios (
			codigo                  VARCHAR(32) PRIMARY KEY REFERENCES imoveis(codigo),
			cep                     VARCHAR(9)  NOT NULL DEFAULT '',
			endereco                TEXT        NOT NULL DEFAULT '',
			numero                  VARCHAR(16) NOT NULL DEFAULT '',
			complemento             TEXT        NOT NULL DEFAULT '',
			bairro                  TEXT        NOT NULL DEFAULT '',
			titulo                  TEXT        NOT NULL DEFAULT '',
			descricao               TEXT        NOT NULL DEFAULT '',
			codigo_anuncio_canalpro TEXT        NOT NULL DEFAULT '',
			link_video_youtube      TEXT        NOT NULL DEFAULT '',
			link_tour_virtual       TEXT        NOT NULL DEFAULT '',
			modo_exibicao_endereco  VARCHAR(16) NOT NULL DEFAULT 'completo',
			pronto_para_publicacao  BOOLEAN     NOT NULL DEFAULT FALSE,
			publicado               BOOLEAN     NOT NULL DEFAULT FALSE,
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_imoveis_tipo   ON imoveis(tipo);
		CREATE INDEX IF NOT EXISTS idx_imoveis_cidade ON imoveis(cidade);
		CREATE INDEX IF NOT EXISTS idx_imoveis_preco  ON imoveis(preco);
	`)
	return err
}

const propertyColumns = `codigo, titulo, tipo, preco, condominio, iptu, iptu_periodo, area,
	quartos, suites, banheiros, vagas, descricao, localizacao, cidade, estado,
	fotos, source_url, scraped_at`

const propertyColumnCount = 19

func propertyArgs(p *models.PropertyRecord) []interface{} {
	scrapedAt := p.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}
	return []interface{}{
		p.Codigo, p.Titulo, p.Tipo, p.Preco, p.Condominio, p.IPTU, p.IPTUPeriodo, p.Area,
		p.Quartos, p.Suites, p.Banheiros, p.Vagas, p.Descricao, p.Localizacao, p.Cidade, p.Estado,
		pq.Array(p.Fotos), p.SourceURL, scrapedAt,
	}
}

const propertyUpsertTail = `
	ON CONFLICT (codigo) DO UPDATE SET
		titulo = EXCLUDED.titulo, tipo = EXCLUDED.tipo, preco = EXCLUDED.preco,
		condominio = EXCLUDED.condominio, iptu = EXCLUDED.iptu, iptu_periodo = EXCLUDED.iptu_periodo,
		area = EXCLUDED.area, quartos = EXCLUDED.quartos, suites = EXCLUDED.suites,
		banheiros = EXCLUDED.banheiros, vagas = EXCLUDED.vagas, descricao = EXCLUDED.descricao,
		localizacao = EXCLUDED.localizacao, cidade = EXCLUDED.cidade, estado = EXCLUDED.estado,
		fotos = EXCLUDED.fotos, source_url = EXCLUDED.source_url, scraped_at = EXCLUDED.scraped_at`

// UpsertProperty inserts or refreshes one scraped property.
func (ps *PostgresStore) UpsertProperty(ctx context.Context, p *models.PropertyRecord) error {
	return ps.UpsertProperties(ctx, []*models.PropertyRecord{p})
}

// UpsertProperties batch-upserts scraped properties. Drafts are untouched.
func (ps *PostgresStore) UpsertProperties(ctx context.Context, records []*models.PropertyRecord) error {
	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ps.upsertBatch(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PostgresStore) upsertBatch(ctx context.Context, batch []*models.PropertyRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*propertyColumnCount)

	for idx, p := range batch {
		base := idx * propertyColumnCount
		placeholders := make([]string, propertyColumnCount)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, propertyArgs(p)...)
	}

	query := fmt.Sprintf(`INSERT INTO imoveis (%s) VALUES %s %s`,
		propertyColumns, strings.Join(valueStrings, ","), propertyUpsertTail)

	if _, err := ps.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: upsert properties: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.PropertyRecord, error) {
	p := &models.PropertyRecord{}
	err := row.Scan(
		&p.Codigo, &p.Titulo, &p.Tipo, &p.Preco, &p.Condominio, &p.IPTU, &p.IPTUPeriodo, &p.Area,
		&p.Quartos, &p.Suites, &p.Banheiros, &p.Vagas, &p.Descricao, &p.Localizacao, &p.Cidade, &p.Estado,
		pq.Array(&p.Fotos), &p.SourceURL, &p.ScrapedAt,
	)
	return p, err
}

// GetProperty returns the property with the given code or ErrNotFound.
func (ps *PostgresStore) GetProperty(ctx context.Context, codigo string) (*models.PropertyRecord, error) {
	row := ps.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM imoveis WHERE codigo = $1`, codigo)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get property %s: %w", codigo, err)
	}
	return p, nil
}

// FetchAll retrieves all stored properties, used by the dashboard and export.
func (ps *PostgresStore) FetchAll(ctx context.Context) ([]*models.PropertyRecord, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT `+propertyColumns+` FROM imoveis ORDER BY codigo`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []*models.PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// ListProperties returns the overview rows with the derived status.
func (ps *PostgresStore) ListProperties(ctx context.Context) ([]*models.PropertySummary, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT i.codigo, COALESCE(NULLIF(a.titulo, ''), i.titulo), i.tipo, i.preco, i.cidade,
		       COALESCE(array_length(i.fotos, 1), 0),
		       a.codigo IS NOT NULL,
		       COALESCE(a.codigo_anuncio_canalpro, ''),
		       COALESCE(a.pronto_para_publicacao, FALSE),
		       COALESCE(a.publicado, FALSE)
		FROM imoveis i
		LEFT JOIN anuncios a ON a.codigo = i.codigo
		ORDER BY i.codigo
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list properties: %w", err)
	}
	defer rows.Close()

	var out []*models.PropertySummary
	for rows.Next() {
		var (
			s        models.PropertySummary
			hasDraft bool
			d        models.ListingDraft
		)
		if err := rows.Scan(&s.Codigo, &s.Titulo, &s.Tipo, &s.Preco, &s.Cidade, &s.Fotos,
			&hasDraft, &d.CodigoAnuncio, &d.ProntoParaPublicacao, &d.Publicado); err != nil {
			return nil, fmt.Errorf("postgres: scan summary: %w", err)
		}
		if hasDraft {
			s.Status = models.DeriveStatus(&d)
		} else {
			s.Status = models.DeriveStatus(nil)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

const draftColumns = `codigo, cep, endereco, numero, complemento, bairro, titulo, descricao,
	codigo_anuncio_canalpro, link_video_youtube, link_tour_virtual, modo_exibicao_endereco,
	pronto_para_publicacao, publicado, updated_at`

func scanDraft(row rowScanner) (*models.ListingDraft, error) {
	d := &models.ListingDraft{}
	err := row.Scan(&d.Codigo, &d.CEP, &d.Endereco, &d.Numero, &d.Complemento, &d.Bairro,
		&d.Titulo, &d.Descricao, &d.CodigoAnuncio, &d.LinkVideo, &d.LinkTour, &d.ModoExibicao,
		&d.ProntoParaPublicacao, &d.Publicado, &d.UpdatedAt)
	return d, err
}

// EnsureDraft returns the draft for codigo, creating it with defaults on
// first access. Drafts are never deleted.
func (ps *PostgresStore) EnsureDraft(ctx context.Context, codigo string) (*models.ListingDraft, error) {
	def := models.NewDraft(codigo)
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO anuncios (codigo, link_video_youtube, link_tour_virtual, modo_exibicao_endereco)
		SELECT $1, $2, $3, $4 WHERE EXISTS (SELECT 1 FROM imoveis WHERE codigo = $1)
		ON CONFLICT (codigo) DO NOTHING
	`, codigo, def.LinkVideo, def.LinkTour, def.ModoExibicao)
	if err != nil {
		return nil, fmt.Errorf("postgres: ensure draft %s: %w", codigo, err)
	}

	row := ps.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM anuncios WHERE codigo = $1`, codigo)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get draft %s: %w", codigo, err)
	}
	return d, nil
}

// SaveDraft writes every editable field of d. The published flag is only
// changed through MarkPublished.
func (ps *PostgresStore) SaveDraft(ctx context.Context, d *models.ListingDraft) error {
	res, err := ps.db.ExecContext(ctx, `
		INSERT INTO anuncios (codigo, cep, endereco, numero, complemento, bairro, titulo, descricao,
			codigo_anuncio_canalpro, link_video_youtube, link_tour_virtual, modo_exibicao_endereco,
			pronto_para_publicacao, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW()
		WHERE EXISTS (SELECT 1 FROM imoveis WHERE codigo = $1)
		ON CONFLICT (codigo) DO UPDATE SET
			cep = EXCLUDED.cep, endereco = EXCLUDED.endereco, numero = EXCLUDED.numero,
			complemento = EXCLUDED.complemento, bairro = EXCLUDED.bairro, titulo = EXCLUDED.titulo,
			descricao = EXCLUDED.descricao, codigo_anuncio_canalpro = EXCLUDED.codigo_anuncio_canalpro,
			link_video_youtube = EXCLUDED.link_video_youtube, link_tour_virtual = EXCLUDED.link_tour_virtual,
			modo_exibicao_endereco = EXCLUDED.modo_exibicao_endereco,
			pronto_para_publicacao = EXCLUDED.pronto_para_publicacao, updated_at = NOW()
	`, d.Codigo, d.CEP, d.Endereco, d.Numero, d.Complemento, d.Bairro, d.Titulo, d.Descricao,
		d.CodigoAnuncio, d.LinkVideo, d.LinkTour, d.ModoExibicao, d.ProntoParaPublicacao)
	if err != nil {
		return fmt.Errorf("postgres: save draft %s: %w", d.Codigo, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPublished records that the operator confirmed publication.
func (ps *PostgresStore) MarkPublished(ctx context.Context, codigo string) error {
	res, err := ps.db.ExecContext(ctx,
		`UPDATE anuncios SET publicado = TRUE, updated_at = NOW() WHERE codigo = $1`, codigo)
	if err != nil {
		return fmt.Errorf("postgres: mark published %s: %w", codigo, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchDrafts returns every draft keyed by property code.
func (ps *PostgresStore) FetchDrafts(ctx context.Context) (map[string]*models.ListingDraft, error) {
	rows, err := ps.db.QueryContext(ctx, `SELECT `+draftColumns+` FROM anuncios`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch drafts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.ListingDraft)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan draft: %w", err)
		}
		out[d.Codigo] = d
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
