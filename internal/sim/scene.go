package sim

// ObjectType enumerates the primitive shapes the scene renderer understands.
type ObjectType string

const (
	ObjectContainerWithLiquid ObjectType = "container-with-liquid"
	ObjectSimpleSolid         ObjectType = "simple-solid"
	ObjectSphere              ObjectType = "sphere"
	ObjectCylinder            ObjectType = "cylinder"
	ObjectPlane               ObjectType = "plane"
)

// Vec3 is an x/y/z triple.
type Vec3 [3]float64

// SceneObject is one element of a declarative 3D scene.
type SceneObject struct {
	ID          string     `json:"id"`
	Type        ObjectType `json:"type"`
	Position    Vec3       `json:"position"`
	Scale       Vec3       `json:"scale"`
	Color       string     `json:"color"`
	Label       string     `json:"label,omitempty"`
	LiquidColor string     `json:"liquid_color,omitempty"`
	LiquidLevel float64    `json:"liquid_level,omitempty"` // 0..1, containers only
}

// SceneEnvironment carries optional global lighting/backdrop hints.
type SceneEnvironment struct {
	AmbientLight float64 `json:"ambient_light,omitempty"`
	Background   string  `json:"background,omitempty"`
}

// SceneConfig is a declarative description of a 3D scene, used as the
// schematic alternative to a generated image. A regenerated config is a
// materially-updated version of its predecessor, never a reset.
type SceneConfig struct {
	Objects     []SceneObject     `json:"objects"`
	Environment *SceneEnvironment `json:"environment,omitempty"`
}

// Clone returns a deep copy.
func (c *SceneConfig) Clone() *SceneConfig {
	if c == nil {
		return nil
	}
	out := &SceneConfig{Objects: append([]SceneObject(nil), c.Objects...)}
	if c.Environment != nil {
		env := *c.Environment
		out.Environment = &env
	}
	return out
}

// normalizeScene repairs model output in place: duplicate or empty IDs are
// rewritten, zero scales default to 1,1,1, liquid levels are clamped and a
// ground surface is guaranteed even when the model forgot one.
func normalizeScene(c *SceneConfig) {
	seen := make(map[string]struct{}, len(c.Objects))
	hasSurface := false
	for i := range c.Objects {
		obj := &c.Objects[i]
		if obj.ID == "" {
			obj.ID = syntheticObjectID(i)
		}
		if _, dup := seen[obj.ID]; dup {
			obj.ID = obj.ID + "-" + syntheticObjectID(i)
		}
		seen[obj.ID] = struct{}{}
		if obj.Type == ObjectPlane {
			hasSurface = true
		}
		if obj.Scale == (Vec3{}) {
			obj.Scale = Vec3{1, 1, 1}
		}
		if obj.LiquidLevel < 0 {
			obj.LiquidLevel = 0
		}
		if obj.LiquidLevel > 1 {
			obj.LiquidLevel = 1
		}
	}
	if !hasSurface {
		ground := BaselineScene("").Objects[0]
		if _, dup := seen[ground.ID]; dup {
			ground.ID = "ground-base"
		}
		c.Objects = append([]SceneObject{ground}, c.Objects...)
	}
}

func syntheticObjectID(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "obj-" + string(digits[i])
	}
	return "obj-" + string(digits[(i/10)%10]) + string(digits[i%10])
}

// BaselineScene is the complete starting scene used when no previous
// configuration exists. It always includes a ground surface.
func BaselineScene(topic string) SceneConfig {
	return SceneConfig{
		Objects: []SceneObject{
			{
				ID:       "ground",
				Type:     ObjectPlane,
				Position: Vec3{0, 0, 0},
				Scale:    Vec3{10, 1, 10},
				Color:    "#8a8a8a",
				Label:    topic,
			},
		},
		Environment: &SceneEnvironment{AmbientLight: 0.6},
	}
}

// PlaceholderScene is the deterministic scene shown when generation failed
// and no previous configuration exists to fall back to.
func PlaceholderScene() SceneConfig {
	cfg := BaselineScene("")
	cfg.Objects = append(cfg.Objects, SceneObject{
		ID:       "marker",
		Type:     ObjectSimpleSolid,
		Position: Vec3{0, 0.5, 0},
		Scale:    Vec3{1, 1, 1},
		Color:    "#c0392b",
		Label:    "generation failed",
	})
	return cfg
}
