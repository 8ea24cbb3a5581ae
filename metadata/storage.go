package metadata

import "github.com/mohitkumar/govflow/persistence"

// MetadataStorage holds registered subjects and the artifacts published for them.
type MetadataStorage interface {
	persistence.SubjectStorage
	persistence.ArtifactStorage
}
