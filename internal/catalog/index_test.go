package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/skinconsult/internal/catalog"
	"github.com/ashureev/skinconsult/internal/catalog/catalogtest"
	"github.com/ashureev/skinconsult/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExactIgnoresCase(t *testing.T) {
	t.Parallel()

	idx := catalogtest.Index()
	p := idx.FindExact("m-eye secret")
	require.NotNil(t, p)
	assert.Equal(t, "M-Eye Secret", p.Name)
	assert.Equal(t, "34,90 €", p.Price)

	assert.Nil(t, idx.FindExact("Crema Defense"))
}

func TestFindByCategoryOrKeyword(t *testing.T) {
	t.Parallel()

	idx := catalogtest.Index()

	cleansers := idx.FindByCategoryOrKeyword("struccante")
	require.Len(t, cleansers, 2)
	for _, p := range cleansers {
		assert.Equal(t, catalog.CategoryCleanser, p.Category)
	}

	eyes := idx.FindByCategoryOrKeyword("Contorno occhi")
	require.Len(t, eyes, 1)
	assert.Equal(t, "M-Eye Secret", eyes[0].Name)

	byText := idx.FindByCategoryOrKeyword("argilla")
	require.Len(t, byText, 1)
	assert.Equal(t, "Clay Purifying Mask", byText[0].Name)

	assert.Empty(t, idx.FindByCategoryOrKeyword("tostapane"))
}

func TestScoreByProblemRanksIngredientSignals(t *testing.T) {
	t.Parallel()

	idx := catalogtest.Index()
	ranked := idx.ScoreByProblem([]string{"Acne/Brufoli"}, "Mista")
	require.NotEmpty(t, ranked)
	assert.Equal(t, "Azelaic Cleansing Gel", ranked[0].Product.Name)
	assert.Contains(t, ranked[0].Reason, "acido azelaico")
	assert.Contains(t, ranked[0].Reason, "adatto a pelle mista")

	for n := 1; n < len(ranked); n++ {
		assert.GreaterOrEqual(t, ranked[n-1].Score, ranked[n].Score)
	}
}

func TestScoreByProblemKeepsCatalogOrderOnTies(t *testing.T) {
	t.Parallel()

	idx := catalog.New([]domain.ProductRecord{
		{Name: "First", Category: catalog.CategorySerum, Description: "con niacinamide"},
		{Name: "Second", Category: catalog.CategorySerum, Description: "con niacinamide"},
		{Name: "Third", Category: catalog.CategorySerum, Description: "senza attivi"},
	})
	ranked := idx.ScoreByProblem([]string{"pori dilatati"}, "")
	require.Len(t, ranked, 2)
	assert.Equal(t, "First", ranked[0].Product.Name)
	assert.Equal(t, "Second", ranked[1].Product.Name)
}

func TestScoreByProblemUnknownProblem(t *testing.T) {
	t.Parallel()

	assert.Empty(t, catalogtest.Index().ScoreByProblem([]string{"boh"}, "Grassa"))
}

func TestMentionedUsesWordBoundaries(t *testing.T) {
	t.Parallel()

	idx := catalogtest.Index()
	found := idx.Mentioned("Ti consiglio M-Eye Secret e poi la azelaic serum 10% ogni sera.")
	names := make([]string, 0, len(found))
	for _, p := range found {
		names = append(names, p.Name)
	}
	assert.ElementsMatch(t, []string{"Azelaic Serum 10%", "M-Eye Secret"}, names)

	assert.Empty(t, idx.Mentioned("XM-Eye Secrets"))
}

func TestAllNamesFollowsCatalogOrder(t *testing.T) {
	t.Parallel()

	names := catalogtest.Index().AllNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "Azelaic Cleansing Gel", names[0])
}

func TestLoadMissingFileYieldsEmptyIndex(t *testing.T) {
	t.Parallel()

	idx, err := catalog.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.FindExact("M-Eye Secret"))
	assert.Empty(t, idx.ScoreByProblem([]string{"acne"}, ""))
}

func TestLoadJSONAndTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"name":"Azelaic Serum 10%","url":"https://www.dermalab.it/prodotto/azelaic-serum-10/","price":"29,90 €","category":"serum"}]`), 0o600))
	idx, err := catalog.Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	tomlPath := filepath.Join(dir, "catalog.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[[products]]
name = "M-Eye Secret"
url = "https://www.dermalab.it/prodotto/m-eye-secret/"
price = "34,90 €"
category = "eye-care"
description = "Contorno occhi"
`), 0o600))
	idx, err = catalog.Load(tomlPath)
	require.NoError(t, err)
	require.NotNil(t, idx.FindExact("M-Eye Secret"))

	badPath := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"products":`), 0o600))
	idx, err = catalog.Load(badPath)
	require.Error(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestCheckDomain(t *testing.T) {
	t.Parallel()

	idx := catalog.New([]domain.ProductRecord{
		{Name: "Good", URL: catalogtest.Domain + "/prodotto/good/"},
		{Name: "Bad", URL: "https://elsewhere.example/bad"},
	})
	assert.Equal(t, []string{"Bad"}, idx.CheckDomain(catalogtest.Domain))
}
