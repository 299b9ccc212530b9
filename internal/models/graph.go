package models

import "time"

// Entity is a node in the knowledge graph.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Source      string    `json:"source,omitempty"`
	Created     time.Time `json:"created,omitempty"`
}

// Relation is a typed edge between two entities.
type Relation struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"rel_type"`
	Source string `json:"source,omitempty"`
}

// Concept is a generated grouping over extracted entities.
type Concept struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source,omitempty"`
	Members     []string `json:"members"`
}
