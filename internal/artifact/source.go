package artifact

// Source resolves compiled contracts by name
type Source interface {
	Artifact(name string) (*Artifact, error)
}

// Dir is a Source backed by a hardhat artifacts directory
type Dir string

// Artifact loads name from the directory
func (d Dir) Artifact(name string) (*Artifact, error) {
	return LoadArtifact(string(d), name)
}
