package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriples(t *testing.T) {
	output := `ENTITY|Marie Curie|person|Polish physicist
ENTITY|Sorbonne|organization
RELATION|Marie Curie|Sorbonne|studied_at
some prose the model added
ENTITY||person|no name
RELATION|Marie Curie||works_at
RELATION|Sorbonne|Sorbonne|self_loop
ENTITY|broken`

	entities, relations := parseTriples(output)

	require.Len(t, entities, 2)
	assert.Equal(t, "marie-curie", entities[0].ID)
	assert.Equal(t, "Marie Curie", entities[0].Name)
	assert.Equal(t, "person", entities[0].Type)
	assert.Equal(t, "Polish physicist", entities[0].Description)
	assert.Equal(t, "sorbonne", entities[1].ID)
	assert.Empty(t, entities[1].Description)

	require.Len(t, relations, 1)
	assert.Equal(t, "marie-curie", relations[0].FromID)
	assert.Equal(t, "sorbonne", relations[0].ToID)
	assert.Equal(t, "studied_at", relations[0].Type)
}

func TestParseTriplesEmptyOutput(t *testing.T) {
	entities, relations := parseTriples("")
	assert.Empty(t, entities)
	assert.Empty(t, relations)
}

func TestParseConcepts(t *testing.T) {
	known := map[string]bool{
		"marie-curie":  true,
		"pierre-curie": true,
		"sorbonne":     true,
	}
	output := `CONCEPT|Physicists|People who study physics|Marie Curie,Pierre Curie,Isaac Newton
CONCEPT|Lonely|Only one known member|Marie Curie,Unknown Person
CONCEPT|Dupes|Repeated member|Marie Curie,Marie Curie
CONCEPT|malformed line
not a concept at all`

	concepts := parseConcepts(output, known)

	require.Len(t, concepts, 1)
	c := concepts[0]
	assert.Equal(t, "physicists", c.ID)
	assert.Equal(t, "Physicists", c.Name)
	assert.Equal(t, "People who study physics", c.Description)
	assert.Equal(t, []string{"marie-curie", "pierre-curie"}, c.Members,
		"unknown members dropped, known ones kept in order")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Marie Curie", "marie-curie"},
		{"  padded  ", "padded"},
		{"C++ (language)", "c-language"},
		{"déjà vu", "déjà-vu"},
		{"B2B", "b2b"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), "slugify(%q)", tt.in)
	}
}
