package sim

import (
	"fmt"
	"strings"
)

// startAction is the synthetic action used for the very first turn of a run.
const startAction = "start"

const turnPrompt = `[PURPOSE]
You drive an interactive learning simulation. Given the transcript so far and
the learner's latest action, produce the next narrative beat.

[OUTPUT]
- description (string, required): the next narrative beat, 40-120 words,
  second person, factually grounded in the topic.
- options (array of string, required): 2-4 suggested next actions. Empty when
  is_ended is true.
- is_ended (boolean, required): true when the scenario reached a natural
  conclusion or the learner's goal is settled.
- should_update_visuals (boolean, required): true only when the visible scene
  changed materially since the previous beat.
- report (object, optional): REQUIRED when is_ended is true, omitted
  otherwise. Fields: score (integer 0-100), evaluation (string),
  key_learnings (array of string), suggestions (string).

[RULES]
- Respond with a single valid JSON object and nothing else.
- If the transcript is empty, open the scenario: set the scene for the topic
  and offer the first options.
- Keep continuity with the transcript; never contradict earlier beats.
- End the run (is_ended=true) after a decisive outcome rather than dragging on.

[OUTPUT_FORMAT]
application/json
`

const scenePrompt = `[PURPOSE]
You maintain a declarative 3D scene for a learning simulation. Given the
current narrative beat and the previous scene configuration, produce the
updated configuration.

[OUTPUT]
- objects (array, required): each object has id (string, unique), type (one of
  "container-with-liquid", "simple-solid", "sphere", "cylinder", "plane"),
  position (array of 3 numbers), scale (array of 3 numbers, default [1,1,1]),
  color (hex string), label (string, optional), liquid_color and liquid_level
  (0..1) for containers only.
- environment (object, optional): ambient_light (number), background (string).

[RULES]
- Respond with a single valid JSON object and nothing else.
- Treat the previous configuration as the current state of the world: keep
  object ids stable, move or restyle existing objects, and only add or remove
  objects the narrative justifies. Never rebuild the scene from scratch.
- Always include at least one ground/surface object.
`

// imagePrompt renders the text-to-image prompt for a narrative beat.
func imagePrompt(description string) string {
	return "Illustration for an interactive learning scenario, painterly, warm palette, no text overlay. Scene: " +
		strings.TrimSpace(description)
}

// turnInput builds the input payload sent alongside turnPrompt.
func turnInput(req TurnRequest) map[string]any {
	return map[string]any{
		"scenario_kind": req.ScenarioKind,
		"topic":         req.Topic,
		"context":       req.Context,
		"transcript":    req.History,
		"action":        req.Action,
	}
}

// sceneInput builds the input payload sent alongside scenePrompt.
func sceneInput(topic, description string, previous *SceneConfig) map[string]any {
	in := map[string]any{
		"topic":       topic,
		"description": description,
	}
	if previous != nil {
		in["previous_scene"] = previous
	}
	return in
}

// fallbackTurn is the stable turn substituted when the upstream payload was
// received but could not be parsed.
func fallbackTurn() TurnResult {
	return TurnResult{
		Description: "The connection seems unstable and the scenario could not advance. Try a different action.",
		Options:     []string{"Try again"},
	}
}

// initFailedDescription is shown when the very first turn could not be generated.
const initFailedDescription = "Initialization failed. Check your connection and retry."

func topicOrFirstBeat(topic string, history []Message) string {
	if t := strings.TrimSpace(topic); t != "" {
		return t
	}
	for _, m := range history {
		if strings.TrimSpace(m.Text) != "" {
			return truncate(m.Text, 80)
		}
	}
	return "untitled run"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(runes[:n]))
}
