package escrow

import (
	"math"
	"math/bits"

	"stream-escrow-go/internal/amount"
	"stream-escrow-go/internal/models"

	"github.com/shopspring/decimal"
)

// deriveRate converts a per-period amount into units per second, truncating.
func deriveRate(amountPerPeriod decimal.Decimal, periodSeconds uint64) decimal.Decimal {
	return amount.Quo(amountPerPeriod, amount.FromSeconds(periodSeconds))
}

// totalOutflowRate is the combined rate at which all recipients drain the deposit.
func totalOutflowRate(s *models.Stream) decimal.Decimal {
	total := amount.Zero
	for _, r := range s.Recipients {
		total = amount.Add(total, s.RateOf(r))
	}
	return total
}

// remainingDeposit is the part of the deposit not yet distributed at now.
// Withdrawals do not reduce it; elapsed time does, for every recipient at once.
func remainingDeposit(s *models.Stream, now uint64) decimal.Decimal {
	var elapsed uint64
	if now > s.StartTime {
		elapsed = now - s.StartTime
	}
	distributed := amount.Mul(amount.FromSeconds(elapsed), totalOutflowRate(s))
	return amount.Sub(s.Deposit, distributed)
}

// accrued is what recipient has earned since their last withdrawal, uncapped.
func accrued(s *models.Stream, recipient string, now uint64) decimal.Decimal {
	last := s.LastWithdrawOf(recipient)
	if now <= last {
		return amount.Zero
	}
	return amount.Mul(amount.FromSeconds(now-last), s.RateOf(recipient))
}

// cappedAccrual is the accrual a read query reports: zero once the deposit is
// exhausted, otherwise bounded by what remains.
func cappedAccrual(s *models.Stream, recipient string, now uint64) decimal.Decimal {
	remaining := remainingDeposit(s, now)
	if !remaining.IsPositive() {
		return amount.Zero
	}
	return amount.Min2(accrued(s, recipient, now), remaining)
}

// dueIntervals counts the billing periods settled by a charge at now.
// Callers guarantee now >= next and interval > 0.
func dueIntervals(now, next, interval uint64) uint64 {
	elapsed := now - next
	if elapsed < interval {
		return 1
	}
	return elapsed/interval + 1
}

// maxScheduleTime is the latest payment time the store can persist.
const maxScheduleTime = math.MaxInt64

// advanceSchedule returns next + due*interval, or false when the result
// overflows or passes maxScheduleTime.
func advanceSchedule(next, due, interval uint64) (uint64, bool) {
	hi, step := bits.Mul64(due, interval)
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(next, step, 0)
	if carry != 0 || sum > maxScheduleTime {
		return 0, false
	}
	return sum, true
}
