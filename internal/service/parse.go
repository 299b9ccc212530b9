package service

import (
	"strings"
	"unicode"

	"knograph/internal/models"
)

// parseTriples parses pipe-delimited ENTITY and RELATION lines from model
// output. Malformed lines are skipped, not errors: the model output is best
// effort and a partial parse still carries value.
func parseTriples(output string) ([]models.Entity, []models.Relation) {
	var entities []models.Entity
	var relations []models.Relation

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		parts := strings.Split(line, "|")

		switch {
		case len(parts) >= 3 && parts[0] == "ENTITY":
			name := slugify(parts[1])
			if name == "" {
				continue
			}
			entity := models.Entity{
				ID:   name,
				Name: strings.TrimSpace(parts[1]),
				Type: strings.ToLower(strings.TrimSpace(parts[2])),
			}
			if len(parts) >= 4 {
				entity.Description = strings.TrimSpace(parts[3])
			}
			entities = append(entities, entity)

		case len(parts) >= 4 && parts[0] == "RELATION":
			from := slugify(parts[1])
			to := slugify(parts[2])
			relType := strings.TrimSpace(parts[3])
			if from == "" || to == "" || relType == "" || from == to {
				continue
			}
			relations = append(relations, models.Relation{
				FromID: from,
				ToID:   to,
				Type:   relType,
			})
		}
	}

	return entities, relations
}

// parseConcepts parses pipe-delimited CONCEPT lines. Members not present in
// known are dropped; concepts left with fewer than two members are discarded.
func parseConcepts(output string, known map[string]bool) []models.Concept {
	var concepts []models.Concept

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		parts := strings.Split(line, "|")
		if len(parts) < 4 || parts[0] != "CONCEPT" {
			continue
		}

		name := slugify(parts[1])
		if name == "" {
			continue
		}

		var members []string
		seen := map[string]bool{}
		for _, m := range strings.Split(parts[3], ",") {
			id := slugify(m)
			if id == "" || seen[id] || !known[id] {
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
		if len(members) < 2 {
			continue
		}

		concepts = append(concepts, models.Concept{
			ID:          name,
			Name:        strings.TrimSpace(parts[1]),
			Description: strings.TrimSpace(parts[2]),
			Members:     members,
		})
	}

	return concepts
}

// slugify lowercases a name and replaces runs of non-alphanumerics with a
// single hyphen. Stable entity IDs make repeated extraction idempotent.
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
