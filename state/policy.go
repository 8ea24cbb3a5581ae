package state

import (
	"fmt"
	"reflect"

	"github.com/mohitkumar/govflow/model"
)

type MergePolicy string

const LAST_WRITER_WINS MergePolicy = "LAST_WRITER_WINS"
const SHALLOW_MERGE MergePolicy = "SHALLOW_MERGE"
const APPEND_ONLY MergePolicy = "APPEND_ONLY"

type fieldPolicy struct {
	Field  string
	Policy MergePolicy
}

// policies lists every WorkflowState field with its merge policy. The order is
// the order fields are applied within one delta.
var policies = []fieldPolicy{
	{"SubjectId", LAST_WRITER_WINS},
	{"Submission", LAST_WRITER_WINS},
	{"Classification", SHALLOW_MERGE},
	{"RiskLevel", LAST_WRITER_WINS},
	{"Registration", SHALLOW_MERGE},
	{"RequiredArtifacts", LAST_WRITER_WINS},
	{"RequiredEvaluations", LAST_WRITER_WINS},
	{"PresentArtifacts", LAST_WRITER_WINS},
	{"MissingArtifacts", LAST_WRITER_WINS},
	{"GeneratedArtifacts", SHALLOW_MERGE},
	{"ApprovalStatus", SHALLOW_MERGE},
	{"EvalMetrics", SHALLOW_MERGE},
	{"Systems", SHALLOW_MERGE},
	{"EvalFailed", LAST_WRITER_WINS},
	{"ApprovalRejected", LAST_WRITER_WINS},
	{"RemediationCause", LAST_WRITER_WINS},
	{"RemediationAttempts", LAST_WRITER_WINS},
	{"RemediationBaseline", LAST_WRITER_WINS},
	{"RiskAcknowledged", LAST_WRITER_WINS},
	{"EscalationRequired", LAST_WRITER_WINS},
	{"Audit", APPEND_ONLY},
	{"PendingDecision", LAST_WRITER_WINS},
}

var policyByField map[string]MergePolicy

func init() {
	if err := validatePolicies(); err != nil {
		panic(err)
	}
	policyByField = make(map[string]MergePolicy, len(policies))
	for _, p := range policies {
		policyByField[p.Field] = p.Policy
	}
}

// Policy returns the merge policy declared for a WorkflowState field.
func Policy(field string) (MergePolicy, bool) {
	p, ok := policyByField[field]
	return p, ok
}

// validatePolicies checks that the table covers WorkflowState exactly and that
// each Delta field has the shape its policy needs.
func validatePolicies() error {
	stateType := reflect.TypeOf(model.WorkflowState{})
	deltaType := reflect.TypeOf(model.Delta{})
	if stateType.NumField() != len(policies) {
		return fmt.Errorf("merge policy table has %d entries, state has %d fields", len(policies), stateType.NumField())
	}
	if deltaType.NumField() != stateType.NumField() {
		return fmt.Errorf("delta has %d fields, state has %d fields", deltaType.NumField(), stateType.NumField())
	}
	seen := make(map[string]bool, len(policies))
	for _, p := range policies {
		if seen[p.Field] {
			return fmt.Errorf("field %s declared twice", p.Field)
		}
		seen[p.Field] = true
		sf, ok := stateType.FieldByName(p.Field)
		if !ok {
			return fmt.Errorf("state has no field %s", p.Field)
		}
		df, ok := deltaType.FieldByName(p.Field)
		if !ok {
			return fmt.Errorf("delta has no field %s", p.Field)
		}
		switch p.Policy {
		case LAST_WRITER_WINS:
			if df.Type.Kind() != reflect.Pointer || df.Type.Elem() != sf.Type {
				return fmt.Errorf("field %s: last writer wins needs *%s in delta, got %s", p.Field, sf.Type, df.Type)
			}
		case SHALLOW_MERGE:
			if sf.Type.Kind() != reflect.Map || df.Type != sf.Type {
				return fmt.Errorf("field %s: shallow merge needs matching map types, got %s and %s", p.Field, sf.Type, df.Type)
			}
		case APPEND_ONLY:
			if sf.Type.Kind() != reflect.Slice || df.Type != sf.Type {
				return fmt.Errorf("field %s: append only needs matching slice types, got %s and %s", p.Field, sf.Type, df.Type)
			}
		default:
			return fmt.Errorf("field %s: unknown merge policy %s", p.Field, p.Policy)
		}
	}
	return nil
}
