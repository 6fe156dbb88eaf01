package config

import (
	"context"
	"fmt"

	"gopkg.in/ini.v1"
)

// ColumnProfiles reads named column mappings from an ini file. Each section is
// a profile; its keys are logical field names and its values input column
// names:
//
//	[city-2025]
//	method = 诈骗方式
//	loss   = 涉案资金总和
type ColumnProfiles interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetColumns(ctx context.Context, profile string) (map[string]string, error)
}

type iniProfiles struct {
	cfg *ini.File
}

func NewColumnProfiles(path string) (ColumnProfiles, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load column profiles: %w", err)
	}
	return &iniProfiles{cfg: cfg}, nil
}

func (p *iniProfiles) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range p.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (p *iniProfiles) GetColumns(_ context.Context, profile string) (map[string]string, error) {
	if profile == "" {
		profile = ini.DefaultSection
	}
	section, err := p.cfg.GetSection(profile)
	if err != nil || len(section.Keys()) == 0 {
		return nil, fmt.Errorf("profile %s not found", profile)
	}

	columns := make(map[string]string, len(section.Keys()))
	for _, key := range section.Keys() {
		columns[key.Name()] = key.String()
	}
	return columns, nil
}
