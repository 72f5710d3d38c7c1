package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/hyperdrive-amm/internal/checkpoint"
	"github.com/mselser95/hyperdrive-amm/internal/ledger"
	"github.com/mselser95/hyperdrive-amm/internal/pool"
	"github.com/mselser95/hyperdrive-amm/pkg/cache"
	"github.com/mselser95/hyperdrive-amm/pkg/fixedpoint"
	"go.uber.org/zap"
)

// OperationRecorder receives committed pool operations so they can be
// persisted and streamed. Implementations must not block trading.
type OperationRecorder interface {
	RecordOperation(ctx context.Context, operation string, trader common.Address, maturityTime int64, amountIn, amountOut fixedpoint.FixedPoint)
	RecordCheckpoint(ctx context.Context, checkpointTime int64)
}

// PoolHandler handles HTTP requests for pool state, quotes and trades.
type PoolHandler struct {
	pool     *pool.Pool
	recorder OperationRecorder
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewPoolHandler creates a new pool handler.
func NewPoolHandler(p *pool.Pool, recorder OperationRecorder, quoteCache cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *PoolHandler {
	return &PoolHandler{
		pool:     p,
		recorder: recorder,
		cache:    quoteCache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Mount attaches the pool API routes to a router.
func (h *PoolHandler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pool", h.HandlePoolState)
		r.Get("/pool/config", h.HandlePoolConfig)
		r.Get("/pool/price", h.HandlePoolPrice)
		r.Get("/pool/lp", h.HandleLPValue)
		r.Get("/pool/limits", h.HandleTradeLimits)

		r.Get("/quote/open-long", h.HandleQuoteOpenLong)
		r.Get("/quote/open-short", h.HandleQuoteOpenShort)
		r.Get("/quote/close-long", h.HandleQuoteCloseLong)
		r.Get("/quote/close-short", h.HandleQuoteCloseShort)

		r.Post("/pool/initialize", h.HandleInitialize)
		r.Post("/longs/open", h.HandleOpenLong)
		r.Post("/longs/close", h.HandleCloseLong)
		r.Post("/shorts/open", h.HandleOpenShort)
		r.Post("/shorts/close", h.HandleCloseShort)
		r.Post("/liquidity/add", h.HandleAddLiquidity)
		r.Post("/liquidity/remove", h.HandleRemoveLiquidity)
		r.Post("/liquidity/redeem", h.HandleRedeemWithdrawalShares)
		r.Get("/checkpoints/{time}", h.HandleGetCheckpoint)
		r.Post("/checkpoints", h.HandleCheckpoint)
	})
}

// PoolStateResponse represents the HTTP response for the pool state.
type PoolStateResponse struct {
	ShareReserves                 string `json:"share_reserves"`
	ShareAdjustment               string `json:"share_adjustment"`
	BondReserves                  string `json:"bond_reserves"`
	LPTotalSupply                 string `json:"lp_total_supply"`
	LongsOutstanding              string `json:"longs_outstanding"`
	ShortsOutstanding             string `json:"shorts_outstanding"`
	LongExposure                  string `json:"long_exposure"`
	WithdrawalSharesOutstanding   string `json:"withdrawal_shares_outstanding"`
	WithdrawalSharesReadyToRedeem string `json:"withdrawal_shares_ready_to_redeem"`
	WithdrawalShareProceeds       string `json:"withdrawal_share_proceeds"`
	ZombieShareReserves           string `json:"zombie_share_reserves"`
	GovernanceFeesAccrued         string `json:"governance_fees_accrued"`
	LastSettledTime               int64  `json:"last_settled_time"`
}

// PoolConfigResponse represents the HTTP response for the pool configuration.
type PoolConfigResponse struct {
	InitialSharePrice        string `json:"initial_share_price"`
	MinimumShareReserves     string `json:"minimum_share_reserves"`
	MinimumTransactionAmount string `json:"minimum_transaction_amount"`
	PositionDuration         int64  `json:"position_duration_seconds"`
	CheckpointDuration       int64  `json:"checkpoint_duration_seconds"`
	TimeStretch              string `json:"time_stretch"`
	CurveFee                 string `json:"curve_fee"`
	FlatFee                  string `json:"flat_fee"`
	GovernanceFee            string `json:"governance_fee"`
}

// PriceResponse represents the HTTP response for the spot price and rate.
type PriceResponse struct {
	SpotPrice string `json:"spot_price"`
	SpotRate  string `json:"spot_rate"`
}

// LPValueResponse represents the HTTP response for LP valuation.
type LPValueResponse struct {
	PresentValue string `json:"present_value"`
	LPSharePrice string `json:"lp_share_price"`
}

// TradeLimitsResponse represents the HTTP response for maximum trade sizes.
type TradeLimitsResponse struct {
	MaxOpenLongBase   string `json:"max_open_long_base"`
	MaxOpenShortBonds string `json:"max_open_short_bonds"`
}

// QuoteResponse represents the HTTP response for a trade preview.
type QuoteResponse struct {
	MaturityTime   int64  `json:"maturity_time"`
	Amount         string `json:"amount"`
	SpotPrice      string `json:"spot_price"`
	SpotRate       string `json:"spot_rate"`
	SpotPriceAfter string `json:"spot_price_after"`
}

// TradeResponse represents the HTTP response for a committed trade.
type TradeResponse struct {
	Operation    string `json:"operation"`
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time,omitempty"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandlePoolState handles GET /api/v1/pool requests.
func (h *PoolHandler) HandlePoolState(w http.ResponseWriter, r *http.Request) {
	st := h.pool.State()

	h.writeJSON(w, http.StatusOK, PoolStateResponse{
		ShareReserves:                 st.ShareReserves.String(),
		ShareAdjustment:               st.ShareAdjustment.String(),
		BondReserves:                  st.BondReserves.String(),
		LPTotalSupply:                 st.LPTotalSupply.String(),
		LongsOutstanding:              st.LongsOutstanding.String(),
		ShortsOutstanding:             st.ShortsOutstanding.String(),
		LongExposure:                  st.LongExposure.String(),
		WithdrawalSharesOutstanding:   st.WithdrawalSharesOutstanding.String(),
		WithdrawalSharesReadyToRedeem: st.WithdrawalSharesReadyToRedeem.String(),
		WithdrawalShareProceeds:       st.WithdrawalShareProceeds.String(),
		ZombieShareReserves:           st.ZombieShareReserves.String(),
		GovernanceFeesAccrued:         st.GovernanceFeesAccrued.String(),
		LastSettledTime:               st.LastSettledTime,
	})
}

// HandlePoolConfig handles GET /api/v1/pool/config requests.
func (h *PoolHandler) HandlePoolConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.pool.Config()

	h.writeJSON(w, http.StatusOK, PoolConfigResponse{
		InitialSharePrice:        cfg.InitialSharePrice.String(),
		MinimumShareReserves:     cfg.MinimumShareReserves.String(),
		MinimumTransactionAmount: cfg.MinimumTransactionAmount.String(),
		PositionDuration:         cfg.PositionDuration,
		CheckpointDuration:       cfg.CheckpointDuration,
		TimeStretch:              cfg.TimeStretch.String(),
		CurveFee:                 cfg.Fees.Curve.String(),
		FlatFee:                  cfg.Fees.Flat.String(),
		GovernanceFee:            cfg.Fees.Governance.String(),
	})
}

// HandlePoolPrice handles GET /api/v1/pool/price requests.
func (h *PoolHandler) HandlePoolPrice(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func() (interface{}, error) {
		price, err := h.pool.SpotPrice(r.Context())
		if err != nil {
			return nil, err
		}
		rate, err := h.pool.SpotRate(r.Context())
		if err != nil {
			return nil, err
		}
		return PriceResponse{
			SpotPrice: price.String(),
			SpotRate:  rate.String(),
		}, nil
	})
}

// HandleLPValue handles GET /api/v1/pool/lp requests.
func (h *PoolHandler) HandleLPValue(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func() (interface{}, error) {
		pv, err := h.pool.PresentValue(r.Context())
		if err != nil {
			return nil, err
		}
		lpPrice, err := h.pool.LPSharePrice(r.Context())
		if err != nil {
			return nil, err
		}
		return LPValueResponse{
			PresentValue: pv.String(),
			LPSharePrice: lpPrice.String(),
		}, nil
	})
}

// HandleTradeLimits handles GET /api/v1/pool/limits requests.
func (h *PoolHandler) HandleTradeLimits(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, func() (interface{}, error) {
		maxLong, err := h.pool.MaxOpenLong(r.Context())
		if err != nil {
			return nil, err
		}
		maxShort, err := h.pool.MaxOpenShort(r.Context())
		if err != nil {
			return nil, err
		}
		return TradeLimitsResponse{
			MaxOpenLongBase:   maxLong.String(),
			MaxOpenShortBonds: maxShort.String(),
		}, nil
	})
}

// HandleQuoteOpenLong handles GET /api/v1/quote/open-long?base=<amount> requests.
func (h *PoolHandler) HandleQuoteOpenLong(w http.ResponseWriter, r *http.Request) {
	amount, ok := h.queryAmount(w, r, "base")
	if !ok {
		return
	}
	h.cached(w, r, func() (interface{}, error) {
		q, err := h.pool.PreviewOpenLong(r.Context(), amount)
		if err != nil {
			return nil, err
		}
		return quoteResponse(q), nil
	})
}

// HandleQuoteOpenShort handles GET /api/v1/quote/open-short?bonds=<amount> requests.
func (h *PoolHandler) HandleQuoteOpenShort(w http.ResponseWriter, r *http.Request) {
	amount, ok := h.queryAmount(w, r, "bonds")
	if !ok {
		return
	}
	h.cached(w, r, func() (interface{}, error) {
		q, err := h.pool.PreviewOpenShort(r.Context(), amount)
		if err != nil {
			return nil, err
		}
		return quoteResponse(q), nil
	})
}

// HandleQuoteCloseLong handles GET /api/v1/quote/close-long?maturity=<unix>&bonds=<amount> requests.
func (h *PoolHandler) HandleQuoteCloseLong(w http.ResponseWriter, r *http.Request) {
	maturity, ok := h.queryInt(w, r, "maturity")
	if !ok {
		return
	}
	amount, ok := h.queryAmount(w, r, "bonds")
	if !ok {
		return
	}
	h.cached(w, r, func() (interface{}, error) {
		q, err := h.pool.PreviewCloseLong(r.Context(), maturity, amount)
		if err != nil {
			return nil, err
		}
		return quoteResponse(q), nil
	})
}

// HandleQuoteCloseShort handles GET /api/v1/quote/close-short?maturity=<unix>&bonds=<amount> requests.
func (h *PoolHandler) HandleQuoteCloseShort(w http.ResponseWriter, r *http.Request) {
	maturity, ok := h.queryInt(w, r, "maturity")
	if !ok {
		return
	}
	amount, ok := h.queryAmount(w, r, "bonds")
	if !ok {
		return
	}
	h.cached(w, r, func() (interface{}, error) {
		q, err := h.pool.PreviewCloseShort(r.Context(), maturity, amount)
		if err != nil {
			return nil, err
		}
		return quoteResponse(q), nil
	})
}

// InitializeRequest is the body of POST /api/v1/pool/initialize.
type InitializeRequest struct {
	Trader       string `json:"trader"`
	Contribution string `json:"contribution"`
	APR          string `json:"apr"`
}

// HandleInitialize handles POST /api/v1/pool/initialize requests.
func (h *PoolHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	contribution, ok := h.parseAmount(w, "contribution", req.Contribution)
	if !ok {
		return
	}
	apr, ok := h.parseAmount(w, "apr", req.APR)
	if !ok {
		return
	}

	lpShares, err := h.pool.Initialize(r.Context(), trader, contribution, apr)
	if err != nil {
		h.writeTradeError(w, "initialize", err)
		return
	}

	h.record(r.Context(), "initialize", trader, 0, contribution, lpShares)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation: "initialize",
		Trader:    trader.Hex(),
		AmountIn:  contribution.String(),
		AmountOut: lpShares.String(),
	})
}

// OpenLongRequest is the body of POST /api/v1/longs/open.
type OpenLongRequest struct {
	Trader     string `json:"trader"`
	BaseAmount string `json:"base_amount"`
	MinOutput  string `json:"min_output"`
}

// HandleOpenLong handles POST /api/v1/longs/open requests.
func (h *PoolHandler) HandleOpenLong(w http.ResponseWriter, r *http.Request) {
	var req OpenLongRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	baseAmount, ok := h.parseAmount(w, "base_amount", req.BaseAmount)
	if !ok {
		return
	}
	minOutput, ok := h.parseOptionalAmount(w, "min_output", req.MinOutput)
	if !ok {
		return
	}

	result, err := h.pool.OpenLong(r.Context(), trader, baseAmount, minOutput)
	if err != nil {
		h.writeTradeError(w, "open-long", err)
		return
	}

	h.record(r.Context(), "open-long", trader, result.MaturityTime, baseAmount, result.BondProceeds)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation:    "open-long",
		Trader:       trader.Hex(),
		MaturityTime: result.MaturityTime,
		AmountIn:     baseAmount.String(),
		AmountOut:    result.BondProceeds.String(),
	})
}

// CloseLongRequest is the body of POST /api/v1/longs/close.
type CloseLongRequest struct {
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time"`
	BondAmount   string `json:"bond_amount"`
	MinOutput    string `json:"min_output"`
}

// HandleCloseLong handles POST /api/v1/longs/close requests.
func (h *PoolHandler) HandleCloseLong(w http.ResponseWriter, r *http.Request) {
	var req CloseLongRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	bondAmount, ok := h.parseAmount(w, "bond_amount", req.BondAmount)
	if !ok {
		return
	}
	minOutput, ok := h.parseOptionalAmount(w, "min_output", req.MinOutput)
	if !ok {
		return
	}

	proceeds, err := h.pool.CloseLong(r.Context(), trader, req.MaturityTime, bondAmount, minOutput)
	if err != nil {
		h.writeTradeError(w, "close-long", err)
		return
	}

	h.record(r.Context(), "close-long", trader, req.MaturityTime, bondAmount, proceeds)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation:    "close-long",
		Trader:       trader.Hex(),
		MaturityTime: req.MaturityTime,
		AmountIn:     bondAmount.String(),
		AmountOut:    proceeds.String(),
	})
}

// OpenShortRequest is the body of POST /api/v1/shorts/open.
type OpenShortRequest struct {
	Trader     string `json:"trader"`
	BondAmount string `json:"bond_amount"`
	MaxDeposit string `json:"max_deposit"`
}

// HandleOpenShort handles POST /api/v1/shorts/open requests.
func (h *PoolHandler) HandleOpenShort(w http.ResponseWriter, r *http.Request) {
	var req OpenShortRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	bondAmount, ok := h.parseAmount(w, "bond_amount", req.BondAmount)
	if !ok {
		return
	}
	maxDeposit, ok := h.parseOptionalAmount(w, "max_deposit", req.MaxDeposit)
	if !ok {
		return
	}

	result, err := h.pool.OpenShort(r.Context(), trader, bondAmount, maxDeposit)
	if err != nil {
		h.writeTradeError(w, "open-short", err)
		return
	}

	h.record(r.Context(), "open-short", trader, result.MaturityTime, result.BaseDeposit, bondAmount)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation:    "open-short",
		Trader:       trader.Hex(),
		MaturityTime: result.MaturityTime,
		AmountIn:     result.BaseDeposit.String(),
		AmountOut:    bondAmount.String(),
	})
}

// CloseShortRequest is the body of POST /api/v1/shorts/close.
type CloseShortRequest struct {
	Trader       string `json:"trader"`
	MaturityTime int64  `json:"maturity_time"`
	BondAmount   string `json:"bond_amount"`
	MinOutput    string `json:"min_output"`
}

// HandleCloseShort handles POST /api/v1/shorts/close requests.
func (h *PoolHandler) HandleCloseShort(w http.ResponseWriter, r *http.Request) {
	var req CloseShortRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	bondAmount, ok := h.parseAmount(w, "bond_amount", req.BondAmount)
	if !ok {
		return
	}
	minOutput, ok := h.parseOptionalAmount(w, "min_output", req.MinOutput)
	if !ok {
		return
	}

	proceeds, err := h.pool.CloseShort(r.Context(), trader, req.MaturityTime, bondAmount, minOutput)
	if err != nil {
		h.writeTradeError(w, "close-short", err)
		return
	}

	h.record(r.Context(), "close-short", trader, req.MaturityTime, bondAmount, proceeds)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation:    "close-short",
		Trader:       trader.Hex(),
		MaturityTime: req.MaturityTime,
		AmountIn:     bondAmount.String(),
		AmountOut:    proceeds.String(),
	})
}

// AddLiquidityRequest is the body of POST /api/v1/liquidity/add.
type AddLiquidityRequest struct {
	Trader       string `json:"trader"`
	Contribution string `json:"contribution"`
	MinAPR       string `json:"min_apr"`
	MaxAPR       string `json:"max_apr"`
}

// HandleAddLiquidity handles POST /api/v1/liquidity/add requests.
func (h *PoolHandler) HandleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req AddLiquidityRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	contribution, ok := h.parseAmount(w, "contribution", req.Contribution)
	if !ok {
		return
	}
	minAPR, ok := h.parseOptionalAmount(w, "min_apr", req.MinAPR)
	if !ok {
		return
	}
	maxAPR := fixedpoint.Zero()
	if req.MaxAPR != "" {
		if maxAPR, ok = h.parseAmount(w, "max_apr", req.MaxAPR); !ok {
			return
		}
	} else {
		maxAPR = fixedpoint.MustParse("1000000")
	}

	lpShares, err := h.pool.AddLiquidity(r.Context(), trader, contribution, minAPR, maxAPR)
	if err != nil {
		h.writeTradeError(w, "add-liquidity", err)
		return
	}

	h.record(r.Context(), "add-liquidity", trader, 0, contribution, lpShares)
	h.writeJSON(w, http.StatusOK, TradeResponse{
		Operation: "add-liquidity",
		Trader:    trader.Hex(),
		AmountIn:  contribution.String(),
		AmountOut: lpShares.String(),
	})
}

// RemoveLiquidityRequest is the body of POST /api/v1/liquidity/remove.
type RemoveLiquidityRequest struct {
	Trader    string `json:"trader"`
	LPShares  string `json:"lp_shares"`
	MinOutput string `json:"min_output"`
}

// RemoveLiquidityResponse represents the HTTP response for a liquidity removal.
type RemoveLiquidityResponse struct {
	Trader           string `json:"trader"`
	BaseProceeds     string `json:"base_proceeds"`
	WithdrawalShares string `json:"withdrawal_shares"`
}

// HandleRemoveLiquidity handles POST /api/v1/liquidity/remove requests.
func (h *PoolHandler) HandleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req RemoveLiquidityRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	lpShares, ok := h.parseAmount(w, "lp_shares", req.LPShares)
	if !ok {
		return
	}
	minOutput, ok := h.parseOptionalAmount(w, "min_output", req.MinOutput)
	if !ok {
		return
	}

	result, err := h.pool.RemoveLiquidity(r.Context(), trader, lpShares, minOutput)
	if err != nil {
		h.writeTradeError(w, "remove-liquidity", err)
		return
	}

	h.record(r.Context(), "remove-liquidity", trader, 0, lpShares, result.BaseProceeds)
	h.writeJSON(w, http.StatusOK, RemoveLiquidityResponse{
		Trader:           trader.Hex(),
		BaseProceeds:     result.BaseProceeds.String(),
		WithdrawalShares: result.WithdrawalShares.String(),
	})
}

// RedeemRequest is the body of POST /api/v1/liquidity/redeem.
type RedeemRequest struct {
	Trader            string `json:"trader"`
	Shares            string `json:"shares"`
	MinOutputPerShare string `json:"min_output_per_share"`
}

// RedeemResponse represents the HTTP response for a withdrawal share redemption.
type RedeemResponse struct {
	Trader         string `json:"trader"`
	BaseProceeds   string `json:"base_proceeds"`
	SharesRedeemed string `json:"shares_redeemed"`
}

// HandleRedeemWithdrawalShares handles POST /api/v1/liquidity/redeem requests.
func (h *PoolHandler) HandleRedeemWithdrawalShares(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}
	trader, ok := h.parseTrader(w, req.Trader)
	if !ok {
		return
	}
	shares, ok := h.parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}
	minOutputPerShare, ok := h.parseOptionalAmount(w, "min_output_per_share", req.MinOutputPerShare)
	if !ok {
		return
	}

	result, err := h.pool.RedeemWithdrawalShares(r.Context(), trader, shares, minOutputPerShare)
	if err != nil {
		h.writeTradeError(w, "redeem-withdrawal-shares", err)
		return
	}

	h.record(r.Context(), "redeem-withdrawal-shares", trader, 0, result.SharesRedeemed, result.BaseProceeds)
	h.writeJSON(w, http.StatusOK, RedeemResponse{
		Trader:         trader.Hex(),
		BaseProceeds:   result.BaseProceeds.String(),
		SharesRedeemed: result.SharesRedeemed.String(),
	})
}

// CheckpointRequest is the body of POST /api/v1/checkpoints.
type CheckpointRequest struct {
	CheckpointTime int64 `json:"checkpoint_time"`
}

// CheckpointResponse represents the HTTP response for a minted checkpoint.
type CheckpointResponse struct {
	CheckpointTime int64 `json:"checkpoint_time"`
}

// HandleCheckpoint handles POST /api/v1/checkpoints requests.
func (h *PoolHandler) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req CheckpointRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.pool.Checkpoint(r.Context(), req.CheckpointTime); err != nil {
		h.writeTradeError(w, "checkpoint", err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordCheckpoint(r.Context(), req.CheckpointTime)
	}
	h.writeJSON(w, http.StatusOK, CheckpointResponse{CheckpointTime: req.CheckpointTime})
}

// GetCheckpointResponse represents the HTTP response for a checkpoint lookup.
type GetCheckpointResponse struct {
	CheckpointTime int64  `json:"checkpoint_time"`
	SharePrice     string `json:"share_price"`
}

// HandleGetCheckpoint handles GET /api/v1/checkpoints/{time} requests.
func (h *PoolHandler) HandleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpointTime, err := strconv.ParseInt(chi.URLParam(r, "time"), 10, 64)
	if err != nil {
		h.writeError(w, "invalid checkpoint time", http.StatusBadRequest)
		return
	}

	cp, minted := h.pool.CheckpointAt(checkpointTime)
	if !minted {
		h.writeError(w, "checkpoint not minted", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, GetCheckpointResponse{
		CheckpointTime: cp.Time,
		SharePrice:     cp.SharePrice.String(),
	})
}

// cached serves a GET response through the quote cache keyed by request URI.
func (h *PoolHandler) cached(w http.ResponseWriter, r *http.Request, load func() (interface{}, error)) {
	key := r.URL.RequestURI()

	if h.cache != nil {
		if hit, found := h.cache.Get(key); found {
			if payload, ok := hit.([]byte); ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write(payload)
				return
			}
		}
	}

	response, err := load()
	if err != nil {
		h.writeTradeError(w, "quote", err)
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
		h.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		h.cache.Set(key, payload, h.cacheTTL)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *PoolHandler) record(ctx context.Context, operation string, trader common.Address, maturityTime int64, amountIn, amountOut fixedpoint.FixedPoint) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordOperation(ctx, operation, trader, maturityTime, amountIn, amountOut)
}

func quoteResponse(q pool.Quote) QuoteResponse {
	return QuoteResponse{
		MaturityTime:   q.MaturityTime,
		Amount:         q.Amount.String(),
		SpotPrice:      q.SpotPrice.String(),
		SpotRate:       q.SpotRate.String(),
		SpotPriceAfter: q.SpotPriceAfter.String(),
	}
}

func (h *PoolHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *PoolHandler) parseTrader(w http.ResponseWriter, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		h.writeError(w, "invalid trader address", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (h *PoolHandler) parseAmount(w http.ResponseWriter, field, raw string) (fixedpoint.FixedPoint, bool) {
	if raw == "" {
		h.writeError(w, "missing required field: "+field, http.StatusBadRequest)
		return fixedpoint.Zero(), false
	}
	v, err := fixedpoint.Parse(raw)
	if err != nil {
		h.writeError(w, "invalid decimal for "+field, http.StatusBadRequest)
		return fixedpoint.Zero(), false
	}
	return v, true
}

// parseOptionalAmount treats an empty field as zero, which disables
// slippage protection for limit-style fields.
func (h *PoolHandler) parseOptionalAmount(w http.ResponseWriter, field, raw string) (fixedpoint.FixedPoint, bool) {
	if raw == "" {
		return fixedpoint.Zero(), true
	}
	return h.parseAmount(w, field, raw)
}

func (h *PoolHandler) queryAmount(w http.ResponseWriter, r *http.Request, param string) (fixedpoint.FixedPoint, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		h.writeError(w, "missing required query parameter: "+param, http.StatusBadRequest)
		return fixedpoint.Zero(), false
	}
	v, err := fixedpoint.Parse(raw)
	if err != nil {
		h.writeError(w, "invalid decimal for "+param, http.StatusBadRequest)
		return fixedpoint.Zero(), false
	}
	return v, true
}

func (h *PoolHandler) queryInt(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		h.writeError(w, "missing required query parameter: "+param, http.StatusBadRequest)
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, "invalid integer for "+param, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// writeTradeError maps pool errors onto HTTP status codes.
func (h *PoolHandler) writeTradeError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, pool.ErrMinimumTransactionAmount),
		errors.Is(err, pool.ErrInvalidMaturityTime),
		errors.Is(err, checkpoint.ErrInvalidTime),
		errors.Is(err, pool.ErrInvalidAPRBounds),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, fixedpoint.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, pool.ErrOutputLimitExceeded),
		errors.Is(err, pool.ErrNegativeProceeds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrNotInitialized),
		errors.Is(err, pool.ErrAlreadyInitialized),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrMinimumShareReserves):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("pool-operation-failed",
			zap.String("operation", operation),
			zap.Error(err))
	} else {
		h.logger.Debug("pool-operation-rejected",
			zap.String("operation", operation),
			zap.Error(err))
	}

	h.writeError(w, err.Error(), status)
}

// writeJSON writes a JSON response.
func (h *PoolHandler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *PoolHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
