package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := Config{
		StorageType:        STORAGE_TYPE_INMEM,
		EncoderDecoderType: JSON_ENCODER_DECODER,
		GovernanceType:     GOVERNANCE_STUB,
		EngineConfig:       EngineConfig{MaxRemediationAttempts: 3},
	}
	for scenario, tc := range map[string]struct {
		mutate func(c *Config)
		err    bool
	}{
		"valid":             {mutate: func(c *Config) {}},
		"unknown storage":   {mutate: func(c *Config) { c.StorageType = "dynamo" }, err: true},
		"unknown codec":     {mutate: func(c *Config) { c.EncoderDecoderType = "PROTO" }, err: true},
		"http without url":  {mutate: func(c *Config) { c.GovernanceType = GOVERNANCE_HTTP }, err: true},
		"postgres no url":   {mutate: func(c *Config) { c.StorageType = STORAGE_TYPE_POSTGRES }, err: true},
		"negative attempts": {mutate: func(c *Config) { c.EngineConfig.MaxRemediationAttempts = -1 }, err: true},
		"http with url": {mutate: func(c *Config) {
			c.GovernanceType = GOVERNANCE_HTTP
			c.ToolConfig.BaseURL = "http://localhost:8080"
		}},
	} {
		t.Run(scenario, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			if tc.err {
				require.Error(t, c.Validate())
			} else {
				require.NoError(t, c.Validate())
			}
		})
	}
}
