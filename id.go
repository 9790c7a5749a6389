package parklot

import "github.com/xraph/parklot/id"

// ID is the primary identifier type for all parklot entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
