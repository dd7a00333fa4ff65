package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/docshield/docshield-backend/internal/platform/logger"
)

// Tuning carries the empirical decision constants used by the verification
// engine. They are deployment configuration, not algorithmic invariants:
// operators can adjust them without touching the decision logic.
type Tuning struct {
	// Combined-score cutoff for a physical (photographed) document to be
	// accepted as authentic.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// Weights for the combined physical-mode score. They should sum to 1.
	PerceptualWeight float64 `yaml:"perceptual_weight"`
	TextWeight       float64 `yaml:"text_weight"`

	// Photo quality gate. Blur variance below BlurThreshold costs 30 points;
	// below SevereBlurThreshold (featureless frames, e.g. a wall or a badly
	// missed focus) costs another 30. Brightness outside the window costs 20.
	QualityMinScore     int     `yaml:"quality_min_score"`
	BlurThreshold       float64 `yaml:"blur_threshold"`
	SevereBlurThreshold float64 `yaml:"severe_blur_threshold"`
	BrightnessMin       float64 `yaml:"brightness_min"`
	BrightnessMax       float64 `yaml:"brightness_max"`

	// Compensation boosts for systematic photographic dimming when comparing
	// text features.
	MeanIntensityBoost float64 `yaml:"mean_intensity_boost"`
	StdIntensityBoost  float64 `yaml:"std_intensity_boost"`
}

func DefaultTuning() Tuning {
	return Tuning{
		ConfidenceThreshold: 0.65,
		PerceptualWeight:    0.7,
		TextWeight:          0.3,
		QualityMinScore:     50,
		BlurThreshold:       80,
		SevereBlurThreshold: 20,
		BrightnessMin:       30,
		BrightnessMax:       225,
		MeanIntensityBoost:  1.2,
		StdIntensityBoost:   1.3,
	}
}

// LoadTuning reads an optional YAML tuning file. An empty path or a missing
// file yields the defaults; a malformed file is an error so a bad deploy
// fails loudly instead of silently reverting thresholds.
func LoadTuning(path string, log *logger.Logger) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if log != nil {
				log.Warn("Tuning file not found, using defaults", "path", path)
			}
			return t, nil
		}
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("parse tuning file: %w", err)
	}
	if t.PerceptualWeight+t.TextWeight == 0 {
		return t, fmt.Errorf("tuning: perceptual_weight and text_weight cannot both be zero")
	}
	if log != nil {
		log.Info("Loaded verification tuning", "path", path,
			"confidence_threshold", t.ConfidenceThreshold,
			"perceptual_weight", t.PerceptualWeight,
			"text_weight", t.TextWeight)
	}
	return t, nil
}
