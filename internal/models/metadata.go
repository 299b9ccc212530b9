package models

import (
	"fmt"
)

// Metadata is the opaque bag persisted with a job. At rest it stays an
// untyped object; readers go through the typed views below so malformed
// metadata is caught at the boundary instead of deep inside a handler.
type Metadata map[string]any

// Metadata keys shared across job types.
const (
	metaKeySource         = "source"
	metaKeyText           = "text"
	metaKeyResourceLimits = "resourceLimits"
)

// ResourceLimits caps the resources a single job may consume.
// Attached to job metadata at creation time.
type ResourceLimits struct {
	MaxConnections int `json:"maxConnections"`
	MaxAICalls     int `json:"maxAICalls"`
	MaxMemoryMB    int `json:"maxMemoryMB"`
}

// DefaultResourceLimits returns the fixed per-job defaults attached by the
// pipeline coordinator.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxConnections: 2,
		MaxAICalls:     4,
		MaxMemoryMB:    2048,
	}
}

// NewPipelineMetadata builds metadata for a parent PROCESS_KNOWLEDGE job.
func NewPipelineMetadata(source string, limits ResourceLimits) Metadata {
	return Metadata{
		metaKeySource:         source,
		metaKeyResourceLimits: limitsMap(limits),
	}
}

// NewExtractionMetadata builds metadata for an EXTRACT_KNOWLEDGE_BATCH job.
func NewExtractionMetadata(source, text string, limits ResourceLimits) Metadata {
	return Metadata{
		metaKeySource:         source,
		metaKeyText:           text,
		metaKeyResourceLimits: limitsMap(limits),
	}
}

// NewStageMetadata builds metadata for concept/dedup child jobs, which only
// need the source identifier and resource limits.
func NewStageMetadata(source string, limits ResourceLimits) Metadata {
	return Metadata{
		metaKeySource:         source,
		metaKeyResourceLimits: limitsMap(limits),
	}
}

func limitsMap(l ResourceLimits) map[string]any {
	return map[string]any{
		"maxConnections": l.MaxConnections,
		"maxAICalls":     l.MaxAICalls,
		"maxMemoryMB":    l.MaxMemoryMB,
	}
}

// ExtractionMetadata is the typed view of metadata on an extraction job.
type ExtractionMetadata struct {
	Source string
	Text   string
	Limits ResourceLimits
}

// StageMetadata is the typed view of metadata on concept/dedup jobs.
type StageMetadata struct {
	Source string
	Limits ResourceLimits
}

// ExtractionMetadataFrom validates and decodes extraction job metadata.
func ExtractionMetadataFrom(j *Job) (ExtractionMetadata, error) {
	if j.Type != JobTypeExtractBatch {
		return ExtractionMetadata{}, fmt.Errorf("job %s has type %s, want %s", j.ID, j.Type, JobTypeExtractBatch)
	}
	source, err := j.Metadata.stringField(metaKeySource)
	if err != nil {
		return ExtractionMetadata{}, err
	}
	text, err := j.Metadata.stringField(metaKeyText)
	if err != nil {
		return ExtractionMetadata{}, err
	}
	return ExtractionMetadata{
		Source: source,
		Text:   text,
		Limits: j.Metadata.ResourceLimits(),
	}, nil
}

// StageMetadataFrom validates and decodes concept/dedup job metadata.
func StageMetadataFrom(j *Job) (StageMetadata, error) {
	if j.Type != JobTypeGenerateConcepts && j.Type != JobTypeDeduplicate {
		return StageMetadata{}, fmt.Errorf("job %s has type %s, want a post-processing type", j.ID, j.Type)
	}
	source, err := j.Metadata.stringField(metaKeySource)
	if err != nil {
		return StageMetadata{}, err
	}
	return StageMetadata{
		Source: source,
		Limits: j.Metadata.ResourceLimits(),
	}, nil
}

// Source returns the source identifier, or "" if absent.
func (m Metadata) Source() string {
	s, _ := m[metaKeySource].(string)
	return s
}

// ResourceLimits decodes the resource limits record, falling back to the
// defaults for missing or malformed fields. Numeric fields tolerate the
// int/int64/float64 variants different decoders produce.
func (m Metadata) ResourceLimits() ResourceLimits {
	limits := DefaultResourceLimits()
	raw, ok := m[metaKeyResourceLimits].(map[string]any)
	if !ok {
		return limits
	}
	if v, ok := intField(raw, "maxConnections"); ok {
		limits.MaxConnections = v
	}
	if v, ok := intField(raw, "maxAICalls"); ok {
		limits.MaxAICalls = v
	}
	if v, ok := intField(raw, "maxMemoryMB"); ok {
		limits.MaxMemoryMB = v
	}
	return limits
}

func (m Metadata) stringField(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("metadata missing %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("metadata field %q is not a non-empty string", key)
	}
	return s, nil
}

func intField(raw map[string]any, key string) (int, bool) {
	switch v := raw[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
