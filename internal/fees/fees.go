// Package fees computes the curve, flat and governance fees charged on
// position trades. Curve fees scale with the pool's deviation from par
// (1 - p for bond sellers, 1/p - 1 for bond buyers) so that fees shrink
// as the fixed rate approaches zero. All fees round in the pool's favor.
package fees

import (
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
)

// Schedule holds the pool's fee parameters. All three are 18-decimal
// fractions in [0, 1]. Governance is the share of collected fees that
// accrues to the fee collector rather than to LPs.
type Schedule struct {
	Curve      fixedpoint.FixedPoint
	Flat       fixedpoint.FixedPoint
	Governance fixedpoint.FixedPoint
}

// OpenLongCurveFee returns the fee in bonds charged on opening a long.
//
//	fee = phi_curve * (1/p - 1) * c * dz
//
// The trader pays a base amount of c*dz; (1/p - 1) is the premium the
// trader would otherwise capture on that base, so the fee is a fraction
// of the captured premium.
func (s Schedule) OpenLongCurveFee(shareAmount, sharePrice, spotPrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	inv, err := fixedpoint.One().DivUp(spotPrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	premium, err := inv.Sub(fixedpoint.One())
	if err != nil {
		return fixedpoint.Zero(), err
	}
	base := shareAmount.MulUp(sharePrice)
	return s.Curve.MulUp(premium).MulUp(base), nil
}

// OpenLongGovernanceFee converts the portion of an open-long curve fee
// owed to governance from bonds back into shares at the spot price.
func (s Schedule) OpenLongGovernanceFee(curveFeeBonds, sharePrice, spotPrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	bonds := curveFeeBonds.MulDown(s.Governance).MulDown(spotPrice)
	return bonds.DivDown(sharePrice)
}

// CloseLongCurveFee returns the fee in shares charged on the curve
// portion of a long close.
//
//	fee = phi_curve * (1 - p) * dy * t / c
func (s Schedule) CloseLongCurveFee(bondAmount, normalizedTimeRemaining, sharePrice, spotPrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	discount, err := fixedpoint.One().Sub(spotPrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	fee := s.Curve.MulUp(discount).MulUp(bondAmount).MulUp(normalizedTimeRemaining)
	return fee.DivUp(sharePrice)
}

// FlatFee returns the fee in shares charged on the flat (matured)
// portion of a close.
//
//	fee = dy * (1 - t) * phi_flat / c
func (s Schedule) FlatFee(bondAmount, normalizedTimeRemaining, sharePrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	matured, err := fixedpoint.One().Sub(normalizedTimeRemaining)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	flat, err := bondAmount.DivUp(sharePrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return flat.MulUp(matured).MulUp(s.Flat), nil
}

// OpenShortCurveFee returns the fee in shares charged on opening a
// short of dy bonds.
//
//	fee = phi_curve * (1 - p) * dy / c
func (s Schedule) OpenShortCurveFee(bondAmount, sharePrice, spotPrice fixedpoint.FixedPoint) (fixedpoint.FixedPoint, error) {
	discount, err := fixedpoint.One().Sub(spotPrice)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	return s.Curve.MulUp(discount).MulUp(bondAmount).DivUp(sharePrice)
}

// GovernanceShare returns the part of a share-denominated fee that is
// routed to the fee collector instead of the LPs.
func (s Schedule) GovernanceShare(fee fixedpoint.FixedPoint) fixedpoint.FixedPoint {
	return fee.MulDown(s.Governance)
}

// Validate rejects schedules with fractions outside [0, 1].
func (s Schedule) Validate() error {
	one := fixedpoint.One()
	if s.Curve.Gt(one) || s.Flat.Gt(one) || s.Governance.Gt(one) {
		return fixedpoint.ErrInvalidInput
	}
	return nil
}
