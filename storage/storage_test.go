package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canalpro-publisher/config"
	"canalpro-publisher/models"
)

func TestCSVWriterWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "imoveis.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	records := []*models.PropertyRecord{
		{Codigo: "1001", Titulo: "Apto centro", Tipo: models.TipoApartamento, Preco: 350000, Cidade: "Taubaté",
			Fotos: []string{"https://x/1.jpg", "https://x/2.jpg"}},
		{Codigo: "1002", Titulo: "Casa", Tipo: models.TipoCasa, Preco: 500000.5},
	}
	drafts := map[string]*models.ListingDraft{
		"1001": {Codigo: "1001", CEP: "12010-000", ProntoParaPublicacao: true},
	}

	require.NoError(t, w.WriteProperties(records, drafts))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	col := func(name string) int {
		for i, h := range csvHeader {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}

	assert.Equal(t, "1001", rows[1][col("codigo")])
	assert.Equal(t, "https://x/1.jpg|https://x/2.jpg", rows[1][col("fotos")])
	assert.Equal(t, string(models.StatusPreparado), rows[1][col("status")])
	assert.Equal(t, string(models.StatusNovo), rows[2][col("status")])
}

func TestObjectKeyAndURL(t *testing.T) {
	assert.Equal(t, "imoveis/1001/foto_001.jpg", ObjectKey("1001", 0, ".jpg"))
	assert.Equal(t, "imoveis/1001/foto_012.png", ObjectKey("1001", 11, extensionForType("image/png")))

	aws := &PhotoBucket{bucket: "fotos", region: "sa-east-1"}
	assert.Equal(t, "https://fotos.s3.sa-east-1.amazonaws.com/k.jpg", aws.URL("k.jpg"))

	minio := &PhotoBucket{bucket: "fotos", endpoint: "http://localhost:9000"}
	assert.Equal(t, "http://localhost:9000/fotos/k.jpg", minio.URL("k.jpg"))
}

func TestNewPhotoBucketDisabledWithoutBucket(t *testing.T) {
	b, err := NewPhotoBucket(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, b)
}

// Runs only against a real database.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := t.Context()

	ps, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer ps.Close()

	p := &models.PropertyRecord{Codigo: "T-9001", Titulo: "Teste", Tipo: models.TipoCasa, Preco: 1,
		Fotos: []string{"a", "b"}}
	require.NoError(t, ps.UpsertProperty(ctx, p))

	got, err := ps.GetProperty(ctx, "T-9001")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Fotos)

	d, err := ps.EnsureDraft(ctx, "T-9001")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAddressDisplay, d.ModoExibicao)

	d.CEP = "12010000"
	require.NoError(t, ps.SaveDraft(ctx, d))
	require.NoError(t, ps.MarkPublished(ctx, "T-9001"))

	drafts, err := ps.FetchDrafts(ctx)
	require.NoError(t, err)
	assert.True(t, drafts["T-9001"].Publicado)
	assert.Equal(t, "12010000", drafts["T-9001"].CEP)

	_, err = ps.GetProperty(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ps.EnsureDraft(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound, "no draft without a property, and no FK error")
	err = ps.SaveDraft(ctx, models.NewDraft("does-not-exist"))
	assert.ErrorIs(t, err, ErrNotFound)
}
