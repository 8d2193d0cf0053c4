package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Job is the wire entity carried on the cluster stream. Nested structures
// (payload, metadata) travel as JSON strings inside flat stream fields.
type Job struct {
	JobID     string            `json:"job_id"`
	PetID     string            `json:"pet_id"`
	Reason    string            `json:"reason,omitempty"`
	Force     bool              `json:"force,omitempty"`
	Payload   JobPayload        `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Attempts  int               `json:"attempts"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// JobPayload describes the source images and grouping hints for one job.
type JobPayload struct {
	ImageIDs     []string           `json:"image_ids,omitempty"`
	Labels       []string           `json:"labels,omitempty"`
	Coverage     map[string]float64 `json:"coverage,omitempty"`
	QualityScore float64            `json:"quality_score,omitempty"`
}

// Member is a single image within a cluster. Position matches the member's
// index in the cluster slice, and scores are non-increasing along it.
type Member struct {
	ImageID  string  `json:"image_id"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// Cluster is one group of images with a chosen hero.
type Cluster struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	HeroImageID string   `json:"hero_image_id,omitempty"`
	Members     []Member `json:"members"`
}

// ClusterMetrics carries the aggregate signals stamped onto a descriptor.
// ProcessedAt and StrategyVersion are the authoritative ordering signals for
// external consumers.
type ClusterMetrics struct {
	Coverage        map[string]float64 `json:"coverage,omitempty"`
	QualityScore    float64            `json:"quality_score"`
	ProcessedAt     time.Time          `json:"processed_at"`
	StrategyVersion string             `json:"strategy_version,omitempty"`
}

// ClusterDescriptor is the cached per-pet artifact produced by one
// successfully processed job.
type ClusterDescriptor struct {
	PetID     string         `json:"pet_id"`
	Clusters  []Cluster      `json:"clusters"`
	Metrics   ClusterMetrics `json:"metrics"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Stream field names for the flat string-to-string job encoding.
const (
	FieldJobID     = "job_id"
	FieldPetID     = "pet_id"
	FieldReason    = "reason"
	FieldForce     = "force"
	FieldPayload   = "payload"
	FieldMetadata  = "metadata"
	FieldAttempts  = "attempts"
	FieldEmittedAt = "emitted_at"
)

// ErrDecode marks a job that cannot be decoded from stream fields. Messages
// failing with it are dead-lettered rather than retried.
var ErrDecode = errors.New("job decode failed")

// StreamFields flattens the job into the string map appended to the stream.
func (j Job) StreamFields() (map[string]any, error) {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	fields := map[string]any{
		FieldJobID:     j.JobID,
		FieldPetID:     j.PetID,
		FieldForce:     strconv.FormatBool(j.Force),
		FieldPayload:   string(payload),
		FieldAttempts:  strconv.Itoa(j.Attempts),
		FieldEmittedAt: j.EmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if j.Reason != "" {
		fields[FieldReason] = j.Reason
	}
	if len(j.Metadata) > 0 {
		metadata, err := json.Marshal(j.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		fields[FieldMetadata] = string(metadata)
	}
	return fields, nil
}

// JobFromStreamFields decodes a job from the flat field map of a stream
// message. A missing pet_id or malformed payload JSON yields ErrDecode.
func JobFromStreamFields(values map[string]any) (Job, error) {
	var job Job

	job.JobID = stringField(values, FieldJobID)
	job.PetID = stringField(values, FieldPetID)
	if job.PetID == "" {
		return Job{}, fmt.Errorf("%w: missing pet_id", ErrDecode)
	}
	job.Reason = stringField(values, FieldReason)

	if raw := stringField(values, FieldForce); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			return Job{}, fmt.Errorf("%w: force %q: %v", ErrDecode, raw, err)
		}
		job.Force = force
	}

	if raw := stringField(values, FieldPayload); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Payload); err != nil {
			return Job{}, fmt.Errorf("%w: payload: %v", ErrDecode, err)
		}
	}
	job.Payload = job.Payload.Normalize()

	if raw := stringField(values, FieldMetadata); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Metadata); err != nil {
			return Job{}, fmt.Errorf("%w: metadata: %v", ErrDecode, err)
		}
	}

	if raw := stringField(values, FieldAttempts); raw != "" {
		attempts, err := strconv.Atoi(raw)
		if err != nil || attempts < 0 {
			return Job{}, fmt.Errorf("%w: attempts %q", ErrDecode, raw)
		}
		job.Attempts = attempts
	}

	if raw := stringField(values, FieldEmittedAt); raw != "" {
		emitted, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Job{}, fmt.Errorf("%w: emitted_at %q", ErrDecode, raw)
		}
		job.EmittedAt = emitted
	}

	return job, nil
}

// Normalize removes duplicate image ids and labels (keeping first occurrence
// and input order) and clamps the quality score into [0,1]. Unknown labels in
// coverage are preserved; scoring ignores them.
func (p JobPayload) Normalize() JobPayload {
	out := JobPayload{
		Coverage:     p.Coverage,
		QualityScore: clamp01(p.QualityScore),
	}
	if len(p.ImageIDs) > 0 {
		seen := make(map[string]struct{}, len(p.ImageIDs))
		for _, id := range p.ImageIDs {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out.ImageIDs = append(out.ImageIDs, id)
		}
	}
	if len(p.Labels) > 0 {
		seen := make(map[string]struct{}, len(p.Labels))
		for _, label := range p.Labels {
			if label == "" {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			out.Labels = append(out.Labels, label)
		}
	}
	return out
}

// Encode serializes the descriptor for cache storage.
func (d ClusterDescriptor) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeDescriptor parses a cached descriptor.
func DecodeDescriptor(raw []byte) (ClusterDescriptor, error) {
	var d ClusterDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return ClusterDescriptor{}, fmt.Errorf("decode cluster descriptor: %w", err)
	}
	return d, nil
}

func stringField(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
