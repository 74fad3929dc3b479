package domain

import "github.com/shopspring/decimal"

type BucketName string

const (
	BucketAll      BucketName = "all"
	BucketPhysical BucketName = "physical"
	BucketDigital  BucketName = "digital"
)

// SpendCaps are the per-user monetary ceilings, fixed by product policy.
type SpendCaps struct {
	All      decimal.Decimal
	Physical decimal.Decimal
	Digital  decimal.Decimal
}

type SpendBucket struct {
	Cap   decimal.Decimal
	Spent decimal.Decimal
}

// WouldExceed reports whether adding amount breaches the cap. Spending
// exactly up to the cap is allowed.
func (b SpendBucket) WouldExceed(amount decimal.Decimal) bool {
	return b.Spent.Add(amount).GreaterThan(b.Cap)
}

// SpendSnapshot is the user's current spend, computed on demand from
// non-cancelled bookings. Never persisted.
type SpendSnapshot struct {
	All      SpendBucket
	Physical SpendBucket
	Digital  SpendBucket
}

// SpendItem is one non-cancelled booking's contribution to the snapshot.
type SpendItem struct {
	Total     decimal.Decimal
	Digital   bool
	CapExempt bool
}

// BuildSpendSnapshot partitions booking totals into buckets: everything
// counts toward All; digital offers toward Digital; physical offers toward
// Physical unless the category is cap-exempt.
func BuildSpendSnapshot(caps SpendCaps, items []SpendItem) SpendSnapshot {
	snap := SpendSnapshot{
		All:      SpendBucket{Cap: caps.All, Spent: decimal.Zero},
		Physical: SpendBucket{Cap: caps.Physical, Spent: decimal.Zero},
		Digital:  SpendBucket{Cap: caps.Digital, Spent: decimal.Zero},
	}
	for _, item := range items {
		snap.All.Spent = snap.All.Spent.Add(item.Total)
		switch {
		case item.Digital:
			snap.Digital.Spent = snap.Digital.Spent.Add(item.Total)
		case !item.CapExempt:
			snap.Physical.Spent = snap.Physical.Spent.Add(item.Total)
		}
	}
	return snap
}
