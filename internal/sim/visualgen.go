package sim

import (
	"context"
	"log"
	"time"

	"simulearn/internal/jsonutil"
	"simulearn/internal/llmclient"
)

const (
	defaultImageTimeout = 20 * time.Second
	defaultSceneTimeout = 12 * time.Second
)

// visualGenerator implements VisualGenerator on top of the model clients.
// Failure recovery lives here so callers never see a broken visual: image
// errors propagate (the orchestrator keeps the previous image) and scene
// errors resolve to the previous configuration or a labeled placeholder.
type visualGenerator struct {
	img          llmclient.ImageClient
	llm          llmclient.LLMClient
	imageTimeout time.Duration
	sceneTimeout time.Duration
}

// NewVisualGenerator builds the production VisualGenerator. Non-positive
// timeouts select the defaults.
func NewVisualGenerator(img llmclient.ImageClient, llm llmclient.LLMClient, imageTimeout, sceneTimeout time.Duration) VisualGenerator {
	if imageTimeout <= 0 {
		imageTimeout = defaultImageTimeout
	}
	if sceneTimeout <= 0 {
		sceneTimeout = defaultSceneTimeout
	}
	return &visualGenerator{img: img, llm: llm, imageTimeout: imageTimeout, sceneTimeout: sceneTimeout}
}

// GenerateImage renders the beat as an image. The schematic short-circuit is
// enforced here, centrally: schematic runs never reach the image model.
func (v *visualGenerator) GenerateImage(ctx context.Context, description string, style VisualStyle) ([]byte, error) {
	if style == VisualSchematic {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, v.imageTimeout)
	defer cancel()
	return v.img.GenerateImage(ctx, imagePrompt(description))
}

// GenerateSceneConfig evolves the scene for the new beat, seeding the model
// with the previous configuration so the scene stays continuous.
func (v *visualGenerator) GenerateSceneConfig(ctx context.Context, topic, description string, previous *SceneConfig) (SceneConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, v.sceneTimeout)
	defer cancel()

	raw, err := v.llm.GenerateJSON(ctx, scenePrompt, sceneInput(topic, description, previous))
	if err != nil {
		log.Printf("visualgen: scene generation failed: %v", err)
		return recoverScene(previous), nil
	}
	var cfg SceneConfig
	if err := jsonutil.UnmarshalRaw(raw, &cfg); err != nil || len(cfg.Objects) == 0 {
		log.Printf("visualgen: malformed scene payload: %v", err)
		return recoverScene(previous), nil
	}
	normalizeScene(&cfg)
	return cfg, nil
}

// recoverScene returns the previous configuration unchanged when one exists,
// avoiding a visual reset; otherwise the deterministic placeholder.
func recoverScene(previous *SceneConfig) SceneConfig {
	if previous != nil {
		return *previous.Clone()
	}
	return PlaceholderScene()
}
