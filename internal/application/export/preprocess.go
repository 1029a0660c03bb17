package export

import (
	"sort"
	"time"

	"github.com/icubam/icubam/internal/domain/bedcount"
)

// BinWidth is the resolution at which repeated submissions collapse.
const BinWidth = 15 * time.Minute

// Preprocess cleans a bed count history for analysis. Per ICU it keeps the
// latest sample of every 15 minute bin, raises cumulative counters to their
// running maximum and fills missing calendar days with the last known row.
// The input is not modified; the output is ordered by ICU then time.
func Preprocess(rows []*bedcount.BedCount) []*bedcount.BedCount {
	byICU := map[int64][]*bedcount.BedCount{}
	var order []int64
	for _, b := range rows {
		if _, seen := byICU[b.ICUID]; !seen {
			order = append(order, b.ICUID)
		}
		c := *b
		c.CreatedAt = c.CreatedAt.UTC()
		byICU[b.ICUID] = append(byICU[b.ICUID], &c)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]*bedcount.BedCount, 0, len(rows))
	for _, id := range order {
		history := byICU[id]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].CreatedAt.Before(history[j].CreatedAt)
		})
		history = binLatest(history)
		enforceMonotonic(history)
		out = append(out, fillMissingDays(history)...)
	}
	return out
}

// binLatest keeps, for each bin, the last sample of a time-sorted history.
func binLatest(history []*bedcount.BedCount) []*bedcount.BedCount {
	kept := make([]*bedcount.BedCount, 0, len(history))
	for i, b := range history {
		if i+1 < len(history) && sameBin(b.CreatedAt, history[i+1].CreatedAt) {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

func sameBin(a, b time.Time) bool {
	return a.Truncate(BinWidth).Equal(b.Truncate(BinWidth))
}

func enforceMonotonic(history []*bedcount.BedCount) {
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Cumulative()
		cur := history[i].Cumulative()
		for k := range cur {
			if *cur[k] < *prev[k] {
				*cur[k] = *prev[k]
			}
		}
	}
}

// fillMissingDays inserts, for every calendar day without a sample between
// two samples, a copy of the previous sample moved to that day.
func fillMissingDays(history []*bedcount.BedCount) []*bedcount.BedCount {
	if len(history) < 2 {
		return history
	}
	out := make([]*bedcount.BedCount, 0, len(history))
	for i, b := range history {
		out = append(out, b)
		if i+1 == len(history) {
			break
		}
		next := dayOf(history[i+1].CreatedAt)
		for day := dayOf(b.CreatedAt).AddDate(0, 0, 1); day.Before(next); day = day.AddDate(0, 0, 1) {
			filled := *b
			filled.ID = 0
			filled.CreatedAt = day.Add(b.CreatedAt.Sub(dayOf(b.CreatedAt)))
			out = append(out, &filled)
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
