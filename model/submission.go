package model

import "strings"

const DEPLOYMENT_UNKNOWN = "UNKNOWN"

var codeReplacer = strings.NewReplacer("-", "_", " ", "_")

// Normalized returns a copy with the classification fields upper-cased and
// separators folded to underscores. An empty deployment target becomes UNKNOWN.
func (s Submission) Normalized() Submission {
	n := s.Clone()
	n.DataClassification = NormalizeCode(n.DataClassification)
	n.ModelProvider = NormalizeCode(n.ModelProvider)
	n.DeploymentTarget = NormalizeCode(n.DeploymentTarget)
	if n.DeploymentTarget == "" {
		n.DeploymentTarget = DEPLOYMENT_UNKNOWN
	}
	return n
}

func NormalizeCode(v string) string {
	return codeReplacer.Replace(strings.ToUpper(strings.TrimSpace(v)))
}
