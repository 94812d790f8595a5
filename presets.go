package gpuparticle

import (
	"encoding/json"
	"fmt"
	"os"
)

// Preset is an emitter config with the transform it is placed at.
type Preset struct {
	Name      string        `json:"name,omitempty"`
	Emitter   EmitterConfig `json:"emitter"`
	Transform Transform     `json:"transform"`
	// Kernels is the kernel directory, relative to the preset file.
	Kernels string `json:"kernels,omitempty"`
}

func SavePreset(filename string, preset Preset) error {
	if err := preset.Emitter.Validate(); err != nil {
		return err
	}
	bytes, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0644)
}

// LoadPreset reads a preset. Fields missing from the file keep the values
// of DefaultEmitterConfig and NewTransform.
func LoadPreset(filename string) (Preset, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return Preset{}, err
	}
	preset := Preset{Emitter: DefaultEmitterConfig(), Transform: NewTransform()}
	if err := json.Unmarshal(bytes, &preset); err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", filename, err)
	}
	if err := preset.Emitter.Validate(); err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", filename, err)
	}
	return preset, nil
}
