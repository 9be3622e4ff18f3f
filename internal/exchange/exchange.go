package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"futures_bot/internal/models"
)

// Gateway is the authenticated exchange boundary. Request signing and
// timestamping happen inside the implementation.
type Gateway interface {
	ServerTime(ctx context.Context) (int64, error)
	PositionMode(ctx context.Context) (models.PositionMode, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) (int, error)
	SymbolConstraints(ctx context.Context, symbol string) (models.SymbolConstraints, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	USDTBalance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context, symbol string) ([]models.Position, error)
	PlaceMarketOrder(ctx context.Context, order models.Order) (int64, error)
}

// ErrRejected marks an exchange response that carried no order identifier.
var ErrRejected = errors.New("exchange: order rejected")

// Binance error code for a rejected reduce-only order. Retrying one of these
// blindly risks doubling exposure, so callers must abort on it.
const reduceOnlyRejectedCode = -2022

// IsReduceOnlyRejected reports whether err is the non-retryable reduce-only
// rejection.
func IsReduceOnlyRejected(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code == reduceOnlyRejectedCode
}

// FuturesGateway is the real Binance USDT-M futures gateway.
type FuturesGateway struct {
	client *futures.Client
}

func NewFuturesGateway(apiKey, secretKey string, testnet bool) *FuturesGateway {
	if testnet {
		futures.UseTestnet = true
	}
	return &FuturesGateway{client: futures.NewClient(apiKey, secretKey)}
}

func (g *FuturesGateway) ServerTime(ctx context.Context) (int64, error) {
	return g.client.NewServerTimeService().Do(ctx)
}

func (g *FuturesGateway) PositionMode(ctx context.Context) (models.PositionMode, error) {
	res, err := g.client.NewGetPositionModeService().Do(ctx)
	if err != nil {
		return "", fmt.Errorf("get position mode: %w", err)
	}
	if res.DualSidePosition {
		return models.ModeHedge, nil
	}
	return models.ModeOneWay, nil
}

func (g *FuturesGateway) SetLeverage(ctx context.Context, symbol string, leverage int) (int, error) {
	res, err := g.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("set leverage %dx on %s: %w", leverage, symbol, err)
	}
	return res.Leverage, nil
}

// SymbolConstraints reads the LOT_SIZE and MIN_NOTIONAL filters for symbol.
// Symbols absent from exchange metadata get the documented defaults
// {5.0, 1.0, 0}.
func (g *FuturesGateway) SymbolConstraints(ctx context.Context, symbol string) (models.SymbolConstraints, error) {
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return models.SymbolConstraints{}, fmt.Errorf("exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		c := defaultConstraints()
		if f := s.MinNotionalFilter(); f != nil {
			if v, err := decimal.NewFromString(f.Notional); err == nil {
				c.MinNotional = v
			}
		}
		if f := s.LotSizeFilter(); f != nil {
			if v, err := decimal.NewFromString(f.StepSize); err == nil && v.Sign() > 0 {
				c.StepSize = v
				c.Precision = precisionFromStep(v)
			}
		}
		return c, nil
	}
	return defaultConstraints(), nil
}

func defaultConstraints() models.SymbolConstraints {
	return models.SymbolConstraints{
		MinNotional: decimal.NewFromFloat(5.0),
		StepSize:    decimal.NewFromInt(1),
		Precision:   0,
	}
}

// precisionFromStep derives decimal places from the lot step, e.g. 0.001 -> 3.
func precisionFromStep(step decimal.Decimal) int {
	f, _ := step.Float64()
	if f <= 0 {
		return 0
	}
	p := int(math.Round(-math.Log10(f)))
	if p < 0 {
		return 0
	}
	return p
}

func (g *FuturesGateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return parseFloat(prices[0].Price)
}

func (g *FuturesGateway) USDTBalance(ctx context.Context) (float64, error) {
	balances, err := g.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("account balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			return parseFloat(b.Balance)
		}
	}
	return 0, nil
}

// OpenPositions returns the non-zero positions for symbol. Zero-amount rows
// (the exchange reports placeholders for both sides) are filtered here so
// downstream code can rely on Amount != 0.
func (g *FuturesGateway) OpenPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	risks, err := g.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("position risk %s: %w", symbol, err)
	}

	var positions []models.Position
	for _, r := range risks {
		amt, err := parseFloat(r.PositionAmt)
		if err != nil || amt == 0 {
			continue
		}
		entry, _ := parseFloat(r.EntryPrice)
		pnl, _ := parseFloat(r.UnRealizedProfit)
		side := models.PositionSide(r.PositionSide)
		if side == "" {
			side = models.PositionBoth
		}
		positions = append(positions, models.Position{
			Symbol:           r.Symbol,
			Side:             side,
			Amount:           amt,
			EntryPrice:       entry,
			UnrealizedProfit: pnl,
		})
	}
	return positions, nil
}

func (g *FuturesGateway) PlaceMarketOrder(ctx context.Context, order models.Order) (int64, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(futures.SideType(order.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(order.Quantity.String())

	if order.PositionSide != "" {
		svc.PositionSide(futures.PositionSideType(order.PositionSide))
	}
	if order.ReduceOnly {
		svc.ReduceOnly(true)
	}
	if order.ClientOrderID != "" {
		svc.NewClientOrderID(order.ClientOrderID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return 0, err
	}
	if res.OrderID == 0 {
		return 0, ErrRejected
	}
	return res.OrderID, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return f, nil
}
