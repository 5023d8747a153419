// Package pricing implements the lognormal fair-value model for 15-minute
// binary markets. A market resolves YES when the oracle price at close is
// above the strike; fair value is the normal CDF of the volatility-scaled
// log distance to strike.
package pricing

import (
	"errors"
	"math"

	"polymarket-edge-lab/internal/domain"
)

// ErrInvalidPrice is returned when the current or strike price is not
// strictly positive.
var ErrInvalidPrice = errors.New("pricing: non-positive price")

// Config holds the model tuning constants.
type Config struct {
	// SigmaFloor is the minimum sigma used in the z-score denominator.
	SigmaFloor float64 `mapstructure:"sigma_floor"`
	// DefaultVol is returned when a price history yields fewer than two
	// valid log returns.
	DefaultVol float64 `mapstructure:"default_vol"`
	// MinEdge is the minimum |market - fair| gap to classify a mispricing.
	MinEdge float64 `mapstructure:"min_edge"`
}

// DefaultConfig returns the standard model constants.
func DefaultConfig() Config {
	return Config{
		SigmaFloor: 0.001,
		DefaultVol: 0.01,
		MinEdge:    0.05,
	}
}

// Model computes fair values and detects mispricings.
type Model struct {
	cfg Config
}

// NewModel creates a Model. Zero config fields fall back to defaults.
func NewModel(cfg Config) *Model {
	def := DefaultConfig()
	if cfg.SigmaFloor <= 0 {
		cfg.SigmaFloor = def.SigmaFloor
	}
	if cfg.DefaultVol <= 0 {
		cfg.DefaultVol = def.DefaultVol
	}
	if cfg.MinEdge <= 0 {
		cfg.MinEdge = def.MinEdge
	}
	return &Model{cfg: cfg}
}

// FairValue returns the model-implied YES probability given the current
// oracle price, the strike recorded at market open, the per-minute
// volatility, and the minutes left to expiry.
//
// At or past expiry the outcome is deterministic: FairYes is exactly 1 when
// current > strike and exactly 0 otherwise.
func (m *Model) FairValue(current, strike, volPerMinute, minutesRemaining float64) (domain.FairValue, error) {
	if current <= 0 || strike <= 0 {
		return domain.FairValue{}, ErrInvalidPrice
	}

	if minutesRemaining <= 0 {
		fv := domain.FairValue{LogDistance: math.Log(current / strike)}
		if current > strike {
			fv.FairYes = 1.0
		}
		fv.FairNo = 1.0 - fv.FairYes
		return fv, nil
	}

	distance := math.Log(current / strike)
	sigma := volPerMinute * math.Sqrt(minutesRemaining)
	if sigma < m.cfg.SigmaFloor {
		sigma = m.cfg.SigmaFloor
	}

	z := distance / sigma
	fairYes := normCDF(z)

	return domain.FairValue{
		FairYes:        fairYes,
		FairNo:         1.0 - fairYes,
		ZScore:         z,
		LogDistance:    distance,
		SigmaRemaining: sigma,
	}, nil
}

// EstimateVolatility returns the standard deviation of consecutive log
// returns over an ordered price history. Adjacent pairs containing a
// non-positive price are skipped. Fewer than two valid returns yields the
// configured default.
func (m *Model) EstimateVolatility(prices []float64) float64 {
	var returns []float64
	for i := 1; i < len(prices); i++ {
		if prices[i] > 0 && prices[i-1] > 0 {
			returns = append(returns, math.Log(prices[i]/prices[i-1]))
		}
	}
	if len(returns) < 2 {
		return m.cfg.DefaultVol
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// FindMisprice compares the quoted YES price to the model fair value. It
// returns nil when the edge is below the minimum or the market price is
// outside [0, 1].
func (m *Model) FindMisprice(marketPriceYes, fairValueYes float64) *domain.Misprice {
	if marketPriceYes < 0 || marketPriceYes > 1 {
		return nil
	}

	edge := math.Abs(marketPriceYes - fairValueYes)
	if edge < m.cfg.MinEdge {
		return nil
	}

	kind := domain.MispriceUnderpricedYes
	if marketPriceYes > fairValueYes {
		kind = domain.MispriceOverpricedYes
	}
	return &domain.Misprice{
		Kind:        kind,
		MarketPrice: marketPriceYes,
		FairValue:   fairValueYes,
		Edge:        edge,
	}
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}
