package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"knograph/internal/models"
)

// entityRecord is the wire shape of an entity row.
type entityRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description *string                `json:"description,omitempty"`
	Embedding   []float32              `json:"embedding,omitempty"`
	Source      *string                `json:"source,omitempty"`
	Created     time.Time              `json:"created,omitempty"`
}

func (r *entityRecord) toEntity() models.Entity {
	e := models.Entity{
		ID:        fmt.Sprintf("%v", r.ID.ID),
		Name:      r.Name,
		Type:      r.Type,
		Embedding: r.Embedding,
		Created:   r.Created,
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Source != nil {
		e.Source = *r.Source
	}
	return e
}

// conceptRecord is the wire shape of a concept row.
type conceptRecord struct {
	ID          surrealmodels.RecordID `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Source      *string                `json:"source,omitempty"`
	Members     []string               `json:"members"`
}

func (r *conceptRecord) toConcept() models.Concept {
	c := models.Concept{
		ID:      fmt.Sprintf("%v", r.ID.ID),
		Name:    r.Name,
		Members: r.Members,
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.Source != nil {
		c.Source = *r.Source
	}
	return c
}

// QueryUpsertEntity creates or updates an entity keyed by ID. Returns the
// stored entity and whether it was newly created.
func (c *Client) QueryUpsertEntity(ctx context.Context, e models.Entity) (*models.Entity, bool, error) {
	existsSQL := `SELECT count() AS c FROM type::record("entity", $id)`
	existsResult, err := surrealdb.Query[[]struct{ C int }](ctx, c.db, existsSQL, map[string]any{"id": e.ID})
	if err != nil {
		return nil, false, fmt.Errorf("check entity exists: %w", err)
	}

	wasCreated := true
	if existsResult != nil && len(*existsResult) > 0 && len((*existsResult)[0].Result) > 0 {
		wasCreated = (*existsResult)[0].Result[0].C == 0
	}

	sql := `
		UPSERT type::record("entity", $id) SET
			name = $name,
			type = $type,
			description = $description,
			embedding = $embedding,
			source = $source,
			created = IF created THEN created ELSE time::now() END
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]entityRecord](ctx, c.db, sql, map[string]any{
		"id":          e.ID,
		"name":        e.Name,
		"type":        e.Type,
		"description": e.Description,
		"embedding":   e.Embedding,
		"source":      e.Source,
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert entity: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, fmt.Errorf("upsert entity: no result returned")
	}

	stored := (*results)[0].Result[0].toEntity()
	return &stored, wasCreated, nil
}

// QueryCreateRelation creates a relation between two entities. RELATE upserts
// on the unique_key index, so repeated extraction of the same triple is a
// no-op. Errors if either endpoint is missing.
func (c *Client) QueryCreateRelation(ctx context.Context, r models.Relation) error {
	sql := `
		LET $from_exists = (SELECT count() AS c FROM type::record("entity", $from_id)).c > 0;
		LET $to_exists = (SELECT count() AS c FROM type::record("entity", $to_id)).c > 0;

		IF !$from_exists OR !$to_exists {
			THROW "Entity not found"
		};

		RELATE type::record("entity", $from_id)->relates->type::record("entity", $to_id) SET
			rel_type = $rel_type,
			source = $source;
	`
	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"from_id":  r.FromID,
		"to_id":    r.ToID,
		"rel_type": r.Type,
		"source":   r.Source,
	})
	if err != nil {
		return fmt.Errorf("create relation: %w", wrapQueryError(err))
	}
	return nil
}

// QueryCreateConcept stores a generated concept grouping.
func (c *Client) QueryCreateConcept(ctx context.Context, concept models.Concept) (*models.Concept, error) {
	if concept.Members == nil {
		concept.Members = []string{}
	}

	sql := `
		UPSERT type::record("concept", $id) SET
			name = $name,
			description = $description,
			source = $source,
			members = $members
		RETURN AFTER
	`
	results, err := surrealdb.Query[[]conceptRecord](ctx, c.db, sql, map[string]any{
		"id":          concept.ID,
		"name":        concept.Name,
		"description": concept.Description,
		"source":      concept.Source,
		"members":     concept.Members,
	})
	if err != nil {
		return nil, fmt.Errorf("create concept: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create concept: no result returned")
	}

	stored := (*results)[0].Result[0].toConcept()
	return &stored, nil
}

// QueryEntitiesBySource lists the entities extracted from one source.
func (c *Client) QueryEntitiesBySource(ctx context.Context, source string) ([]models.Entity, error) {
	results, err := surrealdb.Query[[]entityRecord](ctx, c.db, `
		SELECT * FROM entity WHERE source = $source ORDER BY name ASC
	`, map[string]any{"source": source})
	if err != nil {
		return nil, fmt.Errorf("entities by source: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}

	entities := make([]models.Entity, 0, len((*results)[0].Result))
	for i := range (*results)[0].Result {
		entities = append(entities, (*results)[0].Result[i].toEntity())
	}
	return entities, nil
}

// QueryConceptCountBySource counts stored concepts for a source. Handlers use
// this to skip regenerating concepts on redelivered triggers.
func (c *Client) QueryConceptCountBySource(ctx context.Context, source string) (int, error) {
	results, err := surrealdb.Query[[]struct{ C int }](ctx, c.db, `
		SELECT count() AS c FROM concept WHERE source = $source GROUP ALL
	`, map[string]any{"source": source})
	if err != nil {
		return 0, fmt.Errorf("concept count by source: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// QueryMergeEntities repoints every relation from the dropped entities onto
// keepID, then deletes them. Used by deduplication.
func (c *Client) QueryMergeEntities(ctx context.Context, keepID string, dropIDs []string) error {
	if len(dropIDs) == 0 {
		return nil
	}

	// Repoint edges one dropped entity at a time; RELATE dedupes against
	// existing edges via the unique_key index.
	sql := `
		LET $keep = type::record("entity", $keep_id);
		LET $drop = type::record("entity", $drop_id);

		FOR $edge IN (SELECT * FROM relates WHERE in = $drop) {
			RELATE $keep->relates->($edge.out) SET
				rel_type = $edge.rel_type,
				source = $edge.source;
		};
		FOR $edge IN (SELECT * FROM relates WHERE out = $drop) {
			RELATE ($edge.in)->relates->$keep SET
				rel_type = $edge.rel_type,
				source = $edge.source;
		};

		DELETE relates WHERE in = $drop OR out = $drop;
		DELETE $drop;
	`
	for _, dropID := range dropIDs {
		if dropID == keepID {
			continue
		}
		_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
			"keep_id": keepID,
			"drop_id": dropID,
		})
		if err != nil {
			return fmt.Errorf("merge entity %s into %s: %w", dropID, keepID, wrapQueryError(err))
		}
	}
	return nil
}
