package pool

import (
	"context"
	"fmt"

	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// Quote is a read-only trade preview. Nothing is committed and no
// checkpoint is minted, so a quote can drift from the eventual
// execution by at most one checkpoint of settlement.
type Quote struct {
	MaturityTime int64
	// Amount is the preview output: bond proceeds for an open long,
	// the required deposit for an open short, and base proceeds for
	// closes.
	Amount fixedpoint.FixedPoint
	// SpotPrice and SpotRate describe the pool before the trade.
	SpotPrice fixedpoint.FixedPoint
	SpotRate  fixedpoint.FixedPoint
	// SpotPriceAfter is the price the trade would leave behind.
	SpotPriceAfter fixedpoint.FixedPoint
}

func (p *Pool) quoteContext(ctx context.Context) (MarketState, fixedpoint.FixedPoint, error) {
	p.mu.Lock()
	st := p.state.Clone()
	p.mu.Unlock()

	if !st.Initialized() {
		return MarketState{}, fixedpoint.Zero(), ErrNotInitialized
	}
	c, err := p.vault.PricePerShare(ctx)
	if err != nil {
		return MarketState{}, fixedpoint.Zero(), fmt.Errorf("price per share: %w", err)
	}
	return st, c, nil
}

func (p *Pool) quoteFor(st MarketState, c, amount fixedpoint.FixedPoint) (Quote, error) {
	crv, err := p.curve(st, c)
	if err != nil {
		return Quote{}, err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return Quote{}, err
	}
	rate, err := p.rateFromPrice(price)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		MaturityTime: p.latestCheckpointTime() + p.cfg.PositionDuration,
		Amount:       amount,
		SpotPrice:    price,
		SpotRate:     rate,
	}, nil
}

// quoteAfterClose builds a quote whose SpotPriceAfter reflects the
// reserves a close would leave behind. Matured closes trade on the
// flat portion only, so their after-price equals the current price.
func (p *Pool) quoteAfterClose(st, work MarketState, c, amount fixedpoint.FixedPoint) (Quote, error) {
	q, err := p.quoteFor(st, c, amount)
	if err != nil {
		return Quote{}, err
	}
	crvAfter, err := p.curve(work, c)
	if err != nil {
		return Quote{}, err
	}
	priceAfter, err := crvAfter.SpotPrice()
	if err != nil {
		return Quote{}, err
	}
	q.SpotPriceAfter = priceAfter
	return q, nil
}

// PreviewOpenLong estimates the bond proceeds of an open long.
func (p *Pool) PreviewOpenLong(ctx context.Context, baseAmount fixedpoint.FixedPoint) (Quote, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	shares, err := baseAmount.DivDown(c)
	if err != nil {
		return Quote{}, err
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return Quote{}, err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return Quote{}, err
	}
	bondsOut, err := crv.BondsOutGivenSharesIn(shares)
	if err != nil {
		return Quote{}, err
	}
	curveFee, err := p.cfg.Fees.OpenLongCurveFee(shares, c, price)
	if err != nil {
		return Quote{}, err
	}
	proceeds, err := bondsOut.Sub(curveFee)
	if err != nil {
		return Quote{}, ErrInsufficientLiquidity
	}

	after := crv
	after.ShareReserves = crv.ShareReserves.Add(shares)
	if after.BondReserves, err = crv.BondReserves.Sub(proceeds); err != nil {
		return Quote{}, ErrInsufficientLiquidity
	}
	priceAfter, err := after.SpotPrice()
	if err != nil {
		return Quote{}, err
	}

	q, err := p.quoteFor(st, c, proceeds)
	if err != nil {
		return Quote{}, err
	}
	q.SpotPriceAfter = priceAfter
	return q, nil
}

// PreviewOpenShort estimates the deposit required to short bondAmount.
func (p *Pool) PreviewOpenShort(ctx context.Context, bondAmount fixedpoint.FixedPoint) (Quote, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return Quote{}, err
	}
	price, err := crv.SpotPrice()
	if err != nil {
		return Quote{}, err
	}
	principal, err := crv.SharesOutGivenBondsIn(bondAmount)
	if err != nil {
		return Quote{}, err
	}
	curveFee, err := p.cfg.Fees.OpenShortCurveFee(bondAmount, c, price)
	if err != nil {
		return Quote{}, err
	}
	credit, err := principal.Sub(curveFee)
	if err != nil {
		return Quote{}, ErrNegativeProceeds
	}
	deposit, err := bondAmount.Sub(credit.MulDown(c))
	if err != nil {
		return Quote{}, ErrNegativeProceeds
	}

	after := crv
	after.BondReserves = crv.BondReserves.Add(bondAmount)
	if after.ShareReserves, err = crv.ShareReserves.Sub(credit); err != nil {
		return Quote{}, ErrInsufficientLiquidity
	}
	priceAfter, err := after.SpotPrice()
	if err != nil {
		return Quote{}, err
	}

	q, err := p.quoteFor(st, c, deposit)
	if err != nil {
		return Quote{}, err
	}
	q.SpotPriceAfter = priceAfter
	return q, nil
}

// PreviewCloseLong estimates the base proceeds of closing a long
// before maturity.
func (p *Pool) PreviewCloseLong(ctx context.Context, maturityTime int64, bondAmount fixedpoint.FixedPoint) (Quote, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	if err := p.validMaturity(maturityTime); err != nil {
		return Quote{}, err
	}
	work := st.Clone()
	var shares fixedpoint.FixedPoint
	if maturityTime <= p.latestCheckpointTime() {
		shares, err = p.closeMaturedLong(&work, bondAmount, c)
	} else {
		shares, err = p.closeActiveLong(&work, bondAmount, maturityTime, c)
	}
	if err != nil {
		return Quote{}, err
	}
	return p.quoteAfterClose(st, work, c, shares.MulDown(c))
}

// PreviewCloseShort estimates the base proceeds of closing a short
// before maturity.
func (p *Pool) PreviewCloseShort(ctx context.Context, maturityTime int64, bondAmount fixedpoint.FixedPoint) (Quote, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return Quote{}, err
	}
	if err := p.validMaturity(maturityTime); err != nil {
		return Quote{}, err
	}
	work := st.Clone()
	var shares fixedpoint.FixedPoint
	if maturityTime <= p.latestCheckpointTime() {
		shares, err = p.closeMaturedShort(&work, bondAmount, maturityTime, c)
	} else {
		shares, err = p.closeActiveShort(&work, bondAmount, maturityTime, c)
	}
	if err != nil {
		return Quote{}, err
	}
	return p.quoteAfterClose(st, work, c, shares.MulDown(c))
}

// MaxOpenLong returns the largest base amount an open long can spend
// before the spot price reaches one.
func (p *Pool) MaxOpenLong(ctx context.Context) (fixedpoint.FixedPoint, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	shares, err := crv.MaxBuySharesIn()
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return shares.MulDown(c), nil
}

// MaxOpenShort returns the largest face value an open short can sell
// before the reserves hit their floor.
func (p *Pool) MaxOpenShort(ctx context.Context) (fixedpoint.FixedPoint, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	crv, err := p.curve(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return crv.MaxSellBondsIn(st.shareAdjustment(), p.cfg.MinimumShareReserves)
}

// PresentValue returns the LPs' aggregate claim in base.
func (p *Pool) PresentValue(ctx context.Context) (fixedpoint.FixedPoint, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	pv, err := p.presentValue(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return pv.MulDown(c), nil
}

// LPSharePrice returns the present value per effective LP share in base.
func (p *Pool) LPSharePrice(ctx context.Context) (fixedpoint.FixedPoint, error) {
	st, c, err := p.quoteContext(ctx)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	price, err := p.lpSharePrice(st, c)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return price.MulDown(c), nil
}
