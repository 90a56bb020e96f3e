package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{
			name:  "multi-word category",
			label: "Enfermedades del Sistema Respiratorio",
			want:  "enfermedades-del-sistema-respiratorio",
		},
		{
			name:  "accented i and comma",
			label: "Infección, Agudo",
			want:  "infeccion-agudo",
		},
		{
			name:  "accented o",
			label: "Malformación",
			want:  "malformacion",
		},
		{
			name:  "surrounding whitespace trimmed",
			label: "  Tumores  ",
			want:  "tumores",
		},
		{
			name:  "already normalized",
			label: "tumores",
			want:  "tumores",
		},
		{
			// Only í and ó are transliterated; other accents pass
			// through. Known quirk of the key scheme, kept so keys
			// keep matching the directories training jobs wrote.
			name:  "other accents preserved",
			label: "Anomalías congénitas",
			want:  "anomalias-congénitas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.label))
		})
	}
}
