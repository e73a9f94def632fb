package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLegalReferences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "law ending at comma and article",
			text: "Conforme a la Ley de Obras Públicas para el Estado de Tlaxcala, Artículo 59 fracción IV",
			want: []string{"Ley de Obras Públicas para el Estado de Tlaxcala", "Artículo 59 fracción IV"},
		},
		{
			name: "law at end of text",
			text: "según la Ley General de Contabilidad y la Ley de Disciplina Financiera",
			want: []string{"Ley de Disciplina Financiera"},
		},
		{
			name: "law cut at newline",
			text: "Ley del Presupuesto Estatal\n(reformada)",
			want: []string{"Ley del Presupuesto Estatal"},
		},
		{
			name: "law without boundary is rejected",
			text: "Ley de Obras (reformada)",
			want: []string{},
		},
		{
			name: "article suffixes",
			text: "Artículo 115 bis y artículo 134",
			want: []string{"Artículo 115 bis", "artículo 134"},
		},
		{
			name: "norma oficial mexicana",
			text: "cumplir la NOM-001-SEMARNAT-1996 vigente",
			want: []string{"NOM-001-SEMARNAT-1996"},
		},
		{
			name: "decree and code and constitution",
			text: "Decreto por el que se reforma el Código Fiscal de la Federación; Constitución Política de los Estados Unidos Mexicanos",
			want: []string{
				"Decreto por el que se reforma el Código Fiscal de la Federación",
				"Código Fiscal de la Federación",
				"Constitución Política de los Estados Unidos Mexicanos",
			},
		},
		{
			name: "duplicates removed",
			text: "Artículo 5. Artículo 5.",
			want: []string{"Artículo 5"},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLegalReferences(tt.text))
		})
	}
}
