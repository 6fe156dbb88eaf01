package config

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/spf13/viper"

	"github.com/de-tools/case-atlas/pkg/services/report"
)

//go:embed default_plan.yaml
var defaultPlan []byte

// DefaultPlan returns the built-in report plan.
func DefaultPlan() (*report.Plan, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultPlan)); err != nil {
		return nil, fmt.Errorf("failed to read default plan: %w", err)
	}
	return decodePlan(v)
}

// LoadPlan reads a report plan from path. An empty path selects the built-in
// plan.
func LoadPlan(path string) (*report.Plan, error) {
	if path == "" {
		return DefaultPlan()
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return decodePlan(v)
}

func decodePlan(v *viper.Viper) (*report.Plan, error) {
	var plan report.Plan
	if err := v.Unmarshal(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse report plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}
