package agent

import (
	"testing"
	"time"

	"github.com/mohitkumar/govflow/config"
	"github.com/stretchr/testify/require"
)

func TestAgent(t *testing.T) {
	conf := config.Config{
		HttpPort:           0,
		StorageType:        config.STORAGE_TYPE_INMEM,
		EncoderDecoderType: config.JSON_ENCODER_DECODER,
		GovernanceType:     config.GOVERNANCE_STUB,
		EngineConfig: config.EngineConfig{
			MaxRemediationAttempts: 3,
			ScriptRules:            map[string]string{"groundedness": "!$.groundedness || $.groundedness >= 0.5"},
		},
		RecoveryConfig: config.RecoveryConfig{Interval: 10 * time.Millisecond, Concurrency: 1},
	}
	a, err := New(conf)
	require.NoError(t, err)
	require.False(t, a.recoveryService.IsRunning())
	require.NoError(t, a.Start())
	require.True(t, a.recoveryService.IsRunning())
	require.NoError(t, a.Shutdown())
	<-a.Done()
	require.False(t, a.recoveryService.IsRunning())
	// a second shutdown is a no-op
	require.NoError(t, a.Shutdown())
}

func TestAgentRejectsConfig(t *testing.T) {
	for scenario, conf := range map[string]config.Config{
		"unknown storage": {StorageType: "dynamo", EncoderDecoderType: config.JSON_ENCODER_DECODER, GovernanceType: config.GOVERNANCE_STUB},
		"broken script": {
			StorageType:        config.STORAGE_TYPE_INMEM,
			EncoderDecoderType: config.JSON_ENCODER_DECODER,
			GovernanceType:     config.GOVERNANCE_STUB,
			EngineConfig:       config.EngineConfig{ScriptRules: map[string]string{"bad": "$.x >"}},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			_, err := New(conf)
			require.Error(t, err)
		})
	}
}
