// Package chainrpc defines the interface ChainSnapshot consumes to talk to
// the Substrate-compatible chain node, plus a thin WebSocket JSON-RPC
// adapter implementing it. The chain RPC client itself is treated as an
// external collaborator per the ranking pipeline spec; this package exists
// only to give that collaborator a concrete, swappable shape.
package chainrpc

import (
	"context"

	"vrankerd/internal/rank"
)

// Block is the minimal chain.getBlock response the pipeline needs.
type Block struct {
	Height uint64
}

// WaitingIntention is a declared-but-not-elected validator intention.
type WaitingIntention struct {
	StashID    string
	Controller string
	Prefs      rank.ValidatorPrefs
	Ledger     rank.StakingLedger
}

// Client is everything ChainSnapshot needs from the chain node. A
// production implementation dials a WebSocket JSON-RPC endpoint
// (wsProviderUrl); tests supply an in-memory fake.
type Client interface {
	// BestBlock returns the current best block (for blockHeight).
	BestBlock(ctx context.Context) (Block, error)
	// ActiveValidators returns the current session's active validator
	// stash accounts, each enriched with exposure and ledger data.
	ActiveValidators(ctx context.Context) ([]rank.ValidatorRecord, error)
	// WaitingIntentions returns declared-but-unelected validator
	// intentions.
	WaitingIntentions(ctx context.Context) ([]WaitingIntention, error)
	// Nominations returns every nominator entry and its targets.
	Nominations(ctx context.Context) ([]rank.Nomination, error)
	// CouncilVotes returns the set of accounts that currently back a
	// council seat.
	CouncilVotes(ctx context.Context) (map[string]bool, error)
	// DemocracyActivity returns the set of accounts that proposed,
	// seconded, or voted on a referendum.
	DemocracyActivity(ctx context.Context) (map[string]bool, error)
	// HistoricEras returns the tail of the historic era index list, of
	// length min(historySize, totalHistoric).
	HistoricEras(ctx context.Context, historySize int) ([]rank.Era, error)
	// EraPreferences returns each validator's declared commission for the
	// given era.
	EraPreferences(ctx context.Context, era rank.Era) ([]rank.EraPrefs, error)
	// EraPointsFor returns each validator's earned era points for the
	// given era.
	EraPointsFor(ctx context.Context, era rank.Era) ([]rank.EraPoints, error)
	// EraSlashes returns slashing events recorded against validators in
	// the given era.
	EraSlashes(ctx context.Context, era rank.Era) ([]rank.Slash, error)
	// EraExposure returns each validator's stake exposure for the given
	// era. The chain RPC for exposure is stateful; callers MUST invoke
	// this sequentially per era, not concurrently.
	EraExposure(ctx context.Context, era rank.Era) ([]rank.EraExposure, error)
	// Identity resolves the on-chain identity for a single account.
	Identity(ctx context.Context, account string) (rank.Identity, error)
	// Close releases the underlying connection.
	Close() error
}
