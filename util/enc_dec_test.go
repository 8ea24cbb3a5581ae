package util

import (
	"testing"
	"time"

	"github.com/mohitkumar/govflow/model"
	"github.com/stretchr/testify/require"
)

func checkpoint() model.Checkpoint {
	at := time.Date(2026, 3, 4, 10, 30, 0, 123000000, time.UTC)
	return model.Checkpoint{
		RunId:     "run-1",
		Sequence:  3,
		Completed: []string{"fetch_registration", "fetch_policy"},
		State: model.WorkflowState{
			SubjectId:           "uc-1",
			Submission:          model.Submission{DataClassification: "PCI", ModelProvider: "EXTERNAL"},
			RiskLevel:           model.RISK_HIGH,
			EvalMetrics:         map[string]any{"toxicity": 0.08, "samples": 250, "bias": map[string]any{"gender": 0.2}},
			RemediationAttempts: 2,
			PendingDecision: model.HumanDecision{
				Action:  model.DECISION_RETRY,
				Actor:   "bob",
				Comment: "try again",
				Data:    map[string]any{"ticket": "GOV-7"},
			},
			Audit: []model.AuditEntry{{Node: "entry", Event: "ENTRY", Details: map[string]any{"subject_id": "uc-1"}, At: at}},
		},
		AuditDelta: []model.AuditEntry{{Node: "classify", Event: "CLASSIFY", At: at}},
		CreatedAt:  at,
	}
}

func TestEncoderDecoder(t *testing.T) {
	for scenario, encdec := range map[string]EncoderDecoder[model.Checkpoint]{
		"json":    NewJsonEncoderDecoder[model.Checkpoint](),
		"msgpack": NewMsgpackEncoderDecoder[model.Checkpoint](),
	} {
		t.Run(scenario, func(t *testing.T) {
			in := checkpoint()
			data, err := encdec.Encode(in)
			require.NoError(t, err)
			out, err := encdec.Decode(data)
			require.NoError(t, err)

			require.Equal(t, in.RunId, out.RunId)
			require.Equal(t, in.Sequence, out.Sequence)
			require.Equal(t, in.Completed, out.Completed)
			require.Equal(t, in.State.Submission, out.State.Submission)
			require.Equal(t, in.State.RiskLevel, out.State.RiskLevel)
			require.Equal(t, in.State.RemediationAttempts, out.State.RemediationAttempts)
			require.True(t, in.CreatedAt.Equal(out.CreatedAt))
			require.Len(t, out.State.Audit, 1)
			require.True(t, in.State.Audit[0].At.Equal(out.State.Audit[0].At))
			require.Equal(t, "uc-1", out.State.Audit[0].Details["subject_id"])
			require.Equal(t, "CLASSIFY", out.AuditDelta[0].Event)

			decision := out.State.PendingDecision
			require.Equal(t, model.DECISION_RETRY, decision.Action)
			require.Equal(t, "bob", decision.Actor)
			require.Equal(t, "try again", decision.Comment)
			require.Equal(t, "GOV-7", decision.Data["ticket"])

			toxicity, err := ToFloat(out.State.EvalMetrics["toxicity"])
			require.NoError(t, err)
			require.Equal(t, 0.08, toxicity)
			samples, err := ToFloat(out.State.EvalMetrics["samples"])
			require.NoError(t, err)
			require.Equal(t, 250.0, samples)
			gender, ok := LookupPath(out.State.EvalMetrics, "bias.gender")
			require.True(t, ok)
			g, err := ToFloat(gender)
			require.NoError(t, err)
			require.Equal(t, 0.2, g)
		})
	}
}

func TestToFloat(t *testing.T) {
	for scenario, tc := range map[string]struct {
		in  any
		out float64
		err bool
	}{
		"float64": {in: 0.5, out: 0.5},
		"int8":    {in: int8(7), out: 7},
		"uint16":  {in: uint16(300), out: 300},
		"string":  {in: "0.5", err: true},
		"nil":     {in: nil, err: true},
	} {
		t.Run(scenario, func(t *testing.T) {
			f, err := ToFloat(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.out, f)
		})
	}
}
