package chainrpc

import (
	"context"

	"vrankerd/internal/rank"
)

// BestBlock issues chain.getBlock and returns its height.
func (c *WSClient) BestBlock(ctx context.Context) (Block, error) {
	var out struct {
		Block struct {
			Header struct {
				Number uint64 `json:"number"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := c.call(ctx, "chain.getBlock", nil, &out); err != nil {
		return Block{}, err
	}
	return Block{Height: out.Block.Header.Number}, nil
}

// ActiveValidators issues session.validators followed by per-validator
// exposure/prefs/ledger lookups.
func (c *WSClient) ActiveValidators(ctx context.Context) ([]rank.ValidatorRecord, error) {
	var stashes []string
	if err := c.call(ctx, "session.validators", nil, &stashes); err != nil {
		return nil, err
	}
	records := make([]rank.ValidatorRecord, 0, len(stashes))
	for _, stash := range stashes {
		var rec rank.ValidatorRecord
		if err := c.call(ctx, "staking.activeValidator", []interface{}{stash}, &rec); err != nil {
			return nil, err
		}
		rec.StashID = stash
		rec.Active = true
		records = append(records, rec)
	}
	return records, nil
}

// WaitingIntentions issues staking.waitingValidators.
func (c *WSClient) WaitingIntentions(ctx context.Context) ([]WaitingIntention, error) {
	var out []WaitingIntention
	if err := c.call(ctx, "staking.waitingValidators", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nominations issues staking.nominators.
func (c *WSClient) Nominations(ctx context.Context) ([]rank.Nomination, error) {
	var out []rank.Nomination
	if err := c.call(ctx, "staking.nominators", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CouncilVotes issues council.voting and flattens it into a membership set.
func (c *WSClient) CouncilVotes(ctx context.Context) (map[string]bool, error) {
	var voters []string
	if err := c.call(ctx, "council.voting", nil, &voters); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(voters))
	for _, v := range voters {
		set[v] = true
	}
	return set, nil
}

// DemocracyActivity issues democracy.proposalActors and
// democracy.referendumActors and merges proposers/seconders/voters into one
// set.
func (c *WSClient) DemocracyActivity(ctx context.Context) (map[string]bool, error) {
	var proposalActors []string
	if err := c.call(ctx, "democracy.proposalActors", nil, &proposalActors); err != nil {
		return nil, err
	}
	var referendumActors []string
	if err := c.call(ctx, "democracy.referendumActors", nil, &referendumActors); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(proposalActors)+len(referendumActors))
	for _, a := range proposalActors {
		set[a] = true
	}
	for _, a := range referendumActors {
		set[a] = true
	}
	return set, nil
}

// HistoricEras issues staking.historicEras and takes the tail of length
// min(historySize, len(result)).
func (c *WSClient) HistoricEras(ctx context.Context, historySize int) ([]rank.Era, error) {
	var all []rank.Era
	if err := c.call(ctx, "staking.historicEras", nil, &all); err != nil {
		return nil, err
	}
	if historySize > 0 && len(all) > historySize {
		all = all[len(all)-historySize:]
	}
	return all, nil
}

// EraPreferences issues staking.erasValidatorPrefs for a single era.
func (c *WSClient) EraPreferences(ctx context.Context, era rank.Era) ([]rank.EraPrefs, error) {
	var out []rank.EraPrefs
	if err := c.call(ctx, "staking.erasValidatorPrefs", []interface{}{era}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EraPointsFor issues staking.erasRewardPoints for a single era.
func (c *WSClient) EraPointsFor(ctx context.Context, era rank.Era) ([]rank.EraPoints, error) {
	var out []rank.EraPoints
	if err := c.call(ctx, "staking.erasRewardPoints", []interface{}{era}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EraSlashes issues staking.erasSlashes for a single era.
func (c *WSClient) EraSlashes(ctx context.Context, era rank.Era) ([]rank.Slash, error) {
	var out []rank.Slash
	if err := c.call(ctx, "staking.erasSlashes", []interface{}{era}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EraExposure issues staking.erasStakers for a single era. The RPC is
// stateful; callers must invoke this sequentially per era.
func (c *WSClient) EraExposure(ctx context.Context, era rank.Era) ([]rank.EraExposure, error) {
	var out []rank.EraExposure
	if err := c.call(ctx, "staking.erasStakers", []interface{}{era}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Identity issues identity.identityOf for a single account.
func (c *WSClient) Identity(ctx context.Context, account string) (rank.Identity, error) {
	var out rank.Identity
	if err := c.call(ctx, "identity.identityOf", []interface{}{account}, &out); err != nil {
		return rank.Identity{}, err
	}
	return out, nil
}
