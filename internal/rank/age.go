package rank

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// eventRow mirrors the subset of the crawler-populated `event` table
// AccountAgeResolver reads. The table itself is out of scope (populated by
// the block crawler); this is a read-only view.
type eventRow struct {
	Method      string `gorm:"column:method"`
	Data        string `gorm:"column:data"`
	BlockNumber uint64 `gorm:"column:block_number"`
}

// AccountAgeResolver resolves the block height at which each stash (and its
// identity parent, if any) first appeared on chain, per spec.md §4.2.
type AccountAgeResolver struct {
	db *gorm.DB
}

// NewAccountAgeResolver constructs a resolver bound to the given database
// handle.
func NewAccountAgeResolver(db *gorm.DB) *AccountAgeResolver {
	return &AccountAgeResolver{db: db}
}

// ResolveAll fills in StashCreatedAtBlock and ParentCreatedAtBlock for every
// validator record, in place. Lookups may run in parallel but are never
// interleaved with writes (the resolver issues read-only queries only).
func (r *AccountAgeResolver) ResolveAll(ctx context.Context, validators []ValidatorRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range validators {
		i := i
		g.Go(func() error {
			stashBlock, err := r.firstAppearance(gctx, validators[i].StashID)
			if err != nil {
				return fmt.Errorf("resolve age for %s: %w", validators[i].StashID, err)
			}
			validators[i].StashCreatedAtBlock = stashBlock

			parent := validators[i].Identity.Parent
			if parent == "" {
				return nil
			}
			parentBlock, err := r.firstAppearance(gctx, parent)
			if err != nil {
				return fmt.Errorf("resolve parent age for %s: %w", parent, err)
			}
			validators[i].ParentCreatedAtBlock = &parentBlock
			return nil
		})
	}
	return g.Wait()
}

// firstAppearance returns the earliest block number at which a NewAccount
// event referencing the given address was recorded, or 0 (genesis-present)
// if no such event exists.
func (r *AccountAgeResolver) firstAppearance(ctx context.Context, address string) (uint64, error) {
	if address == "" {
		return 0, nil
	}
	var row eventRow
	needle := "%" + escapeLike(address) + "%"
	err := r.db.WithContext(ctx).
		Table("event").
		Where("method = ?", "NewAccount").
		Where("data LIKE ? ESCAPE '\\'", needle).
		Order("block_number ASC").
		Limit(1).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.BlockNumber, nil
}

// escapeLike escapes SQL LIKE wildcard characters in a value that is
// otherwise an opaque address string, so an address containing '%' or '_'
// cannot widen the match.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
