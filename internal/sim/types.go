package sim

import (
	"context"
	"strings"
)

// ScenarioKind is the subject category a run is started with.
type ScenarioKind string

const (
	ScenarioHistory    ScenarioKind = "history"
	ScenarioPhysics    ScenarioKind = "physics"
	ScenarioChemistry  ScenarioKind = "chemistry"
	ScenarioLiterature ScenarioKind = "literature"
	ScenarioCoding     ScenarioKind = "coding"
	ScenarioCustom     ScenarioKind = "custom"
)

// ParseScenarioKind normalizes a user-supplied kind; unknown values map to custom.
func ParseScenarioKind(s string) ScenarioKind {
	switch ScenarioKind(strings.ToLower(strings.TrimSpace(s))) {
	case ScenarioHistory:
		return ScenarioHistory
	case ScenarioPhysics:
		return ScenarioPhysics
	case ScenarioChemistry:
		return ScenarioChemistry
	case ScenarioLiterature:
		return ScenarioLiterature
	case ScenarioCoding:
		return ScenarioCoding
	default:
		return ScenarioCustom
	}
}

// IsScientific reports whether the kind is eligible for the schematic
// (procedural scene) visualization alternative. Evaluated once at
// initialization; the resulting choice is sticky for the run.
func IsScientific(k ScenarioKind) bool {
	switch k {
	case ScenarioHistory, ScenarioPhysics, ScenarioChemistry:
		return true
	default:
		return false
	}
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one transcript entry. The transcript is append-only and is
// replayed verbatim as generation context.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// VisualStyle selects which visual pipeline runs for the rest of a run.
type VisualStyle string

const (
	VisualUnset     VisualStyle = ""
	VisualArtistic  VisualStyle = "artistic"
	VisualSchematic VisualStyle = "schematic"
)

// ParseVisualStyle returns the style for a user-supplied string, or VisualUnset.
func ParseVisualStyle(s string) VisualStyle {
	switch VisualStyle(strings.ToLower(strings.TrimSpace(s))) {
	case VisualArtistic:
		return VisualArtistic
	case VisualSchematic:
		return VisualSchematic
	default:
		return VisualUnset
	}
}

// AnalysisReport is the end-of-run evaluation. Immutable once created.
type AnalysisReport struct {
	Score        int      `json:"score"` // 0-100
	Evaluation   string   `json:"evaluation"`
	KeyLearnings []string `json:"key_learnings"`
	Suggestions  string   `json:"suggestions"`
}

// TurnRequest carries everything the upstream generator needs for one turn.
type TurnRequest struct {
	ScenarioKind ScenarioKind `json:"scenario_kind"`
	Topic        string       `json:"topic"`
	Context      string       `json:"context,omitempty"`
	History      []Message    `json:"history"`
	Action       string       `json:"action"`
}

// TurnResult is the structured payload of one narrative turn.
type TurnResult struct {
	Description         string          `json:"description"`
	Options             []string        `json:"options"`
	IsEnded             bool            `json:"is_ended"`
	ShouldUpdateVisuals bool            `json:"should_update_visuals"`
	Report              *AnalysisReport `json:"report,omitempty"`
}

// TurnGenerator produces the next narrative beat. Implementations convert
// malformed upstream output into a stable fallback turn; only transport
// failures and deadline exhaustion surface as errors.
type TurnGenerator interface {
	Generate(ctx context.Context, req TurnRequest) (TurnResult, error)
}

// VisualGenerator produces the per-turn visual. GenerateImage is a no-op
// short-circuit for the schematic style; GenerateSceneConfig treats the
// previous configuration as a seed and recovers to it on failure.
type VisualGenerator interface {
	GenerateImage(ctx context.Context, description string, style VisualStyle) ([]byte, error)
	GenerateSceneConfig(ctx context.Context, topic, description string, previous *SceneConfig) (SceneConfig, error)
}
