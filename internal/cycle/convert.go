package cycle

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/AdGuardCB/internal/blocker"
	"github.com/AdguardTeam/AdGuardCB/internal/errcoll"
	"github.com/AdguardTeam/AdGuardCB/internal/partition"
)

// convertAll converts the rule lists of all categories.  A failed category is
// reported and left out of results, so that its previous artifact is kept.  If
// all categories fail, err is [ErrAllConversionsFailed].
func (o *Orchestrator) convertAll(
	ctx context.Context,
	rs partition.RuleSet,
) (results blocker.Results, err error) {
	cats := blocker.Categories()
	results = make(blocker.Results, len(cats))
	for _, c := range cats {
		res, convErr := o.converter.Convert(ctx, rs[c], o.convOpts)
		if convErr != nil {
			catCtx := errcoll.ContextWithTag(ctx, "category", c.String())
			errcoll.Collect(catCtx, o.errColl, o.logger, fmt.Sprintf("converting %s", c), convErr)

			continue
		}

		o.metrics.SetConversion(ctx, c, res)
		o.logger.InfoContext(
			ctx,
			"converted rules",
			"category", c,
			"total", res.TotalCount,
			"converted", res.ConvertedCount,
			"errors", res.ErrorsCount,
			"overlimit", res.Overlimit,
		)

		if res.Overlimit {
			o.logger.WarnContext(
				ctx,
				"too many rules, rest are dropped",
				"category", c,
				"limit", o.convOpts.Limit,
			)
		}

		results[c] = res
	}

	if len(results) == 0 {
		return nil, ErrAllConversionsFailed
	}

	return results, nil
}
