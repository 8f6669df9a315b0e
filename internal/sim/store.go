package sim

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store implementations when a requested record
// does not exist. A missing settlement detail gets the settlement
// deregistered; a missing population record just means the settlement has no
// settlers yet.
var ErrNotFound = errors.New("sim: record not found")

// Store is the narrow query/update interface to the external persistence
// engine. The scheduler is its only caller inside this module; everything
// else about the storage engine (format, schema, transactions) is out of
// scope here.
type Store interface {
	// ActiveSettlements lists settlement ids owned by a player, used for
	// bulk registration on world join.
	ActiveSettlements(ctx context.Context, ownerID string) ([]string, error)

	// Detail fetches the full settlement snapshot or ErrNotFound.
	Detail(ctx context.Context, settlementID string) (*SettlementDetail, error)

	// Structures returns the settlement's structures with modifiers, in
	// build order.
	Structures(ctx context.Context, settlementID string) ([]Structure, error)

	// Population fetches the population record, or ErrNotFound before the
	// settlement has been populated.
	Population(ctx context.Context, settlementID string) (*PopulationState, error)

	// UpdatePopulation persists the mutated population record.
	UpdatePopulation(ctx context.Context, settlementID string, p *PopulationState) error

	// Resources fetches current storage amounts by storage id.
	Resources(ctx context.Context, storageID string) (ResourceAmounts, error)

	// UpdateResources persists storage amounts by storage id.
	UpdateResources(ctx context.Context, storageID string, r ResourceAmounts) error
}
