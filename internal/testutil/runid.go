package testutil

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run id on every call, so repeated
// runs of a scenario land under one predictable id.
//
// Unlike engine.FixedGenerator, which walks a list, this never runs out.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id means
// DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
