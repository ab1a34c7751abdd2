// Package risk sizes risk-managed wagers against the tracked bankroll and
// gates them behind daily/weekly loss caps and a rolling break-even check.
package risk

import (
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// minStakeUSD is the floor on the risk unit and the approved stake.
const minStakeUSD = 0.01

// RejectReason identifies which check turned a candidate down.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectBadPrice      RejectReason = "non_positive_price"
	RejectPriceAboveMax RejectReason = "price_above_max"
	RejectNoBankroll    RejectReason = "bankroll_depleted"
	RejectDailyCap      RejectReason = "daily_loss_cap"
	RejectWeeklyCap     RejectReason = "weekly_loss_cap"
	RejectWinRate       RejectReason = "win_rate_below_break_even"
	RejectStakeTooSmall RejectReason = "stake_below_one_contract"
)

// Params holds the risk manager's tunables.
type Params struct {
	InitialBankrollUSD float64
	RiskPct            float64
	MaxRiskPct         float64
	MaxPrice           float64
	RollingWindow      int
	DailyLossCapR      float64
	WeeklyLossCapR     float64
}

// Result is the outcome of one approval request. When Approved is true,
// Contracts is a whole number of contracts and StakeUSD = Contracts * price.
type Result struct {
	Approved  bool
	Reason    RejectReason
	StakeUSD  float64
	Contracts float64
}

// Manager evaluates candidates for the risk-managed strategies. All state is
// derived from the ledger contents passed to each call, so the manager itself
// is stateless.
type Manager struct {
	cfg    Params
	logger *slog.Logger
}

// NewManager creates a risk manager.
func NewManager(cfg Params, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk")),
	}
}

// Bankroll returns the current bankroll: initial capital plus realized net
// profit over settled risk-managed trades.
func (m *Manager) Bankroll(trades []domain.Trade) float64 {
	bankroll := m.cfg.InitialBankrollUSD
	for i := range trades {
		t := &trades[i]
		if t.Settled() && domain.RiskManaged(t.Strategy) {
			bankroll += t.ProfitUSD
		}
	}
	return bankroll
}

// Approve runs the fixed check sequence against a candidate at the given ask
// price. The first failing check wins; later checks are not evaluated.
func (m *Manager) Approve(price float64, trades []domain.Trade, now time.Time) Result {
	// 1-2. Price sanity.
	if price <= 0 {
		return reject(RejectBadPrice)
	}
	if price > m.cfg.MaxPrice {
		return reject(RejectPriceAboveMax)
	}

	// 3. Bankroll.
	bankroll := m.Bankroll(trades)
	if bankroll <= 0 {
		return reject(RejectNoBankroll)
	}

	// 4-5. Loss caps, measured in risk units.
	r := math.Max(bankroll*m.cfg.RiskPct, minStakeUSD)
	dailyPnL, weeklyPnL := m.periodPnL(trades, now)
	if dailyPnL <= -(m.cfg.DailyLossCapR * r) {
		m.logger.Warn("daily loss cap hit",
			slog.Float64("daily_pnl", dailyPnL),
			slog.Float64("cap", m.cfg.DailyLossCapR*r),
		)
		return reject(RejectDailyCap)
	}
	if weeklyPnL <= -(m.cfg.WeeklyLossCapR * r) {
		m.logger.Warn("weekly loss cap hit",
			slog.Float64("weekly_pnl", weeklyPnL),
			slog.Float64("cap", m.cfg.WeeklyLossCapR*r),
		)
		return reject(RejectWeeklyCap)
	}

	// 6. Rolling break-even gate, only once the window is full.
	winRate, breakEven, sample := m.rollingMetrics(trades)
	if sample >= m.cfg.RollingWindow && winRate < breakEven {
		m.logger.Warn("win rate below break-even",
			slog.Float64("win_rate", winRate),
			slog.Float64("break_even", breakEven),
			slog.Int("sample", sample),
		)
		return reject(RejectWinRate)
	}

	// 7. Sizing: clamp the target stake, then floor to whole contracts.
	target := bankroll * m.cfg.RiskPct
	maxStake := bankroll * m.cfg.MaxRiskPct
	stake := math.Min(target, math.Min(maxStake, bankroll))
	if stake < minStakeUSD {
		stake = minStakeUSD
	}
	contracts := math.Floor(stake / price)
	if cap := math.Floor(maxStake / price); contracts > cap {
		contracts = cap
	}
	if contracts < 1 {
		return reject(RejectStakeTooSmall)
	}

	return Result{
		Approved:  true,
		StakeUSD:  contracts * price,
		Contracts: contracts,
	}
}

// periodPnL returns realized net profit of settled risk-managed trades in
// now's calendar day and ISO week.
func (m *Manager) periodPnL(trades []domain.Trade, now time.Time) (daily, weekly float64) {
	loc := now.Location()
	nowYear, nowWeek := now.ISOWeek()

	for i := range trades {
		t := &trades[i]
		if !t.Settled() || !domain.RiskManaged(t.Strategy) {
			continue
		}
		ts := t.Time.In(loc)
		if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
			daily += t.ProfitUSD
		}
		if y, w := ts.ISOWeek(); y == nowYear && w == nowWeek {
			weekly += t.ProfitUSD
		}
	}
	return daily, weekly
}

// rollingMetrics computes the observed win rate and break-even win rate over
// the most recent RollingWindow settled risk-managed trades, along with the
// sample size actually available.
//
// Break-even is mean(|losses|) / (mean(wins) + mean(|losses|)). With only
// wins it is 0, with only losses (or nothing) it is 1: a book that has never
// won must not pass the gate once the window fills.
func (m *Manager) rollingMetrics(trades []domain.Trade) (winRate, breakEven float64, sample int) {
	settled := make([]float64, 0, len(trades))
	for i := range trades {
		t := &trades[i]
		if t.Settled() && domain.RiskManaged(t.Strategy) {
			settled = append(settled, t.ProfitUSD)
		}
	}
	if len(settled) > m.cfg.RollingWindow {
		settled = settled[len(settled)-m.cfg.RollingWindow:]
	}
	sample = len(settled)
	if sample == 0 {
		return 0, 1, 0
	}

	var winSum, lossSum float64
	var wins, losses int
	for _, p := range settled {
		if p > 0 {
			winSum += p
			wins++
		} else {
			lossSum += -p
			losses++
		}
	}
	winRate = float64(wins) / float64(sample)

	switch {
	case wins > 0 && losses > 0:
		avgWin := winSum / float64(wins)
		avgLoss := lossSum / float64(losses)
		breakEven = avgLoss / (avgWin + avgLoss)
	case wins > 0:
		breakEven = 0
	default:
		breakEven = 1
	}
	return winRate, breakEven, sample
}

func reject(reason RejectReason) Result {
	return Result{Approved: false, Reason: reason}
}
