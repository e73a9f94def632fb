package search

import (
	"sync"
	"testing"

	"github.com/poiesic/auditel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(category, tipo, description string, normativas map[string]string) *core.AuditRecord {
	return &core.AuditRecord{
		Type:        tipo,
		Description: description,
		Category:    category,
		Normativas:  normativas,
	}
}

func testCorpus() []core.CategoryRecords {
	return []core.CategoryRecords{
		{
			Category: "Obra Pública",
			Records: []*core.AuditRecord{
				record("Obra Pública", "Volúmenes pagados no ejecutados", "diferencia entre cantidades estimadas y ejecutadas en contrato de obra",
					map[string]string{"normatividad_local_contrato": "Artículos 58 y 59 de la Ley de Obras Públicas"}),
				record("Obra Pública", "Licitación irregular", "licitación pública sin convocatoria ni bases",
					map[string]string{"normatividad_federal_contratacion": "Artículo 30 de la Ley de Obras Públicas"}),
				record("Obra Pública", "Bitácora", "falta de bitácora electrónica de obra", nil),
			},
		},
		{
			Category: "Financiera",
			Records: []*core.AuditRecord{
				record("Financiera", "Gasto sin comprobar", "presupuesto municipal ejercido sin documentación comprobatoria",
					map[string]string{"normatividad_local": "Ley de Disciplina Financiera"}),
				record("Financiera", "Licitación de adquisiciones", "adquisiciones sin licitación pública",
					map[string]string{"normatividad_federal": "Ley de Adquisiciones"}),
			},
		},
	}
}

func newBuiltEngine(t *testing.T, corpus []core.CategoryRecords) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	require.NoError(t, e.Build(corpus))
	return e
}

func TestEngine_Uninitialized(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	assert.False(t, e.Initialized())
	assert.Equal(t, 0, e.DocumentCount())
	assert.Equal(t, 0, e.VocabularySize())
	assert.Empty(t, e.Search("licitación", "Obra Pública", 5))
	assert.Zero(t, e.Score("licitación", "licitación"))
}

func TestEngine_BuildEmptyCorpus(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	err = e.Build(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	assert.False(t, e.Initialized())
	assert.NotNil(t, e.Search("licitación", "Obra Pública", 5))
}

func TestEngine_FailedRebuildUninitializes(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())
	require.True(t, e.Initialized())

	require.Error(t, e.Build([]core.CategoryRecords{{Category: "Vacía"}}))
	assert.False(t, e.Initialized())
}

func TestEngine_InvalidOption(t *testing.T) {
	_, err := NewEngine(WithVectorizerConfig(VectorizerConfig{MaxDFRatio: 2}))
	assert.ErrorIs(t, err, ErrInvalidMaxDF)
}

func TestEngine_SingleRecordScenario(t *testing.T) {
	corpus := []core.CategoryRecords{{
		Category: "Obra Pública",
		Records: []*core.AuditRecord{
			record("", "", "licitación pública de obra", map[string]string{"normatividad_local_contrato": "Artículo 58"}),
		},
	}}
	e := newBuiltEngine(t, corpus)

	hits := e.Search("licitación", "Obra Pública", 5)
	require.Len(t, hits, 1)
	assert.Same(t, corpus[0].Records[0], hits[0].Record)
	assert.Greater(t, hits[0].Similarity, 0.1)
	assert.Equal(t, "Obra Pública", hits[0].Category)
	assert.Equal(t, 0, hits[0].Index)
}

func TestEngine_CategoryWithoutRecords(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	hits := e.Search("licitación pública", "Laboral", 5)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestEngine_EmptyQuery(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	assert.Empty(t, e.Search("", "Obra Pública", 5))
	assert.Empty(t, e.Search("   ", "Obra Pública", 5))
	assert.Empty(t, e.Search("de la el", "Obra Pública", 5))
}

func TestEngine_ThresholdAndCategoryInvariant(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	queries := []string{"licitación pública", "presupuesto municipal", "bitácora de obra", "Ley de Obras Públicas artículo 58"}
	for _, category := range []string{"Obra Pública", "Financiera"} {
		for _, q := range queries {
			for _, hit := range e.Search(q, category, 10) {
				assert.Greater(t, hit.Similarity, DefaultThreshold, q)
				assert.Equal(t, category, hit.Category, q)
			}
		}
	}
}

func TestEngine_RanksAndFilters(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	hits := e.Search("licitación pública convocatoria", "Obra Pública", 5)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Licitación irregular", hits[0].Record.Type)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}

	fin := e.Search("licitación pública", "Financiera", 5)
	require.NotEmpty(t, fin)
	assert.Equal(t, "Licitación de adquisiciones", fin[0].Record.Type)
}

func TestEngine_TopNBound(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	for n := 0; n <= 4; n++ {
		assert.LessOrEqual(t, len(e.Search("obra ley artículo", "Obra Pública", n)), n)
	}
	assert.Empty(t, e.Search("obra", "Obra Pública", -1))
}

func TestEngine_Deterministic(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	first := e.Search("obra contrato ley", "Obra Pública", 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Search("obra contrato ley", "Obra Pública", 5))
	}
}

func TestEngine_TiesKeepCorpusOrder(t *testing.T) {
	corpus := []core.CategoryRecords{{
		Category: "Financiera",
		Records: []*core.AuditRecord{
			record("", "", "presupuesto anual", nil),
			record("", "", "presupuesto anual", nil),
			record("", "", "nómina", nil),
		},
	}}
	e := newBuiltEngine(t, corpus)

	hits := e.Search("presupuesto", "Financiera", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Index)
	assert.Equal(t, 1, hits[1].Index)
}

func TestEngine_ConcurrentSearch(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())
	want := e.Search("licitación pública", "Obra Pública", 3)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, e.Search("licitación pública", "Obra Pública", 3))
		}()
	}
	wg.Wait()
}

func TestEngine_Score(t *testing.T) {
	e := newBuiltEngine(t, testCorpus())

	related := e.Score("licitación pública", "Acuerdo sobre licitación pública estatal")
	unrelated := e.Score("licitación pública", "Nombramiento de magistrados")
	assert.Greater(t, related, unrelated)
	assert.Zero(t, unrelated)
}

func TestDocument(t *testing.T) {
	r := record("Obra Pública", "Tipo", "Descripción", map[string]string{
		"normatividad_z": "Z",
		"normatividad_a": "A",
	})
	r.Subcategory = ""
	assert.Equal(t, "Tipo Descripción Obra Pública A Z", Document(r))
}
