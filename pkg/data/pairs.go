package data

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// DiscardedTrade records a tradelist group that could not become a pair
type DiscardedTrade struct {
	TradeID int    `json:"trade_id"`
	Reason  string `json:"reason"`
}

// AssemblyReport summarizes pair assembly
type AssemblyReport struct {
	Rows          int              `json:"rows"`
	Pairs         int              `json:"pairs"`
	Discarded     []DiscardedTrade `json:"discarded,omitempty"`
	AmbiguousSide []int            `json:"ambiguous_side,omitempty"`
}

type rowGroup struct {
	entries []types.TradeRow
	exits   []types.TradeRow
	other   int
}

// AssemblePairs groups tradelist rows by trade id into entry/exit pairs.
// A group needs exactly one entry row and one exit row. Side comes from the
// entry row's side, type or signal text and falls back to LONG with a
// warning. Invalid groups are logged and excluded. Output is sorted by Num.
func AssemblePairs(rows []types.TradeRow) ([]types.TradePair, AssemblyReport) {
	report := AssemblyReport{Rows: len(rows)}
	groups := make(map[int]*rowGroup)
	var ids []int

	for _, row := range rows {
		g, ok := groups[row.TradeID]
		if !ok {
			g = &rowGroup{}
			groups[row.TradeID] = g
			ids = append(ids, row.TradeID)
		}
		switch classifyRow(row.Type) {
		case rowEntry:
			g.entries = append(g.entries, row)
		case rowExit:
			g.exits = append(g.exits, row)
		default:
			g.other++
		}
	}
	sort.Ints(ids)

	discard := func(id int, reason string) {
		report.Discarded = append(report.Discarded, DiscardedTrade{TradeID: id, Reason: reason})
		log.Warn().Int("trade", id).Str("reason", reason).Msg("⚠️ trade discarded")
	}

	pairs := make([]types.TradePair, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		if len(g.entries) != 1 || len(g.exits) != 1 {
			discard(id, fmt.Sprintf("expected one entry and one exit row, got %d entry, %d exit, %d unclassified",
				len(g.entries), len(g.exits), g.other))
			continue
		}
		entry, exit := g.entries[0], g.exits[0]

		side, ok := inferSide(entry)
		if !ok {
			report.AmbiguousSide = append(report.AmbiguousSide, id)
			log.Warn().Int("trade", id).Str("type", entry.Type).Str("signal", entry.Signal).
				Msg("⚠️ side ambiguous, defaulting to LONG")
		}

		pair := types.TradePair{
			Num:         id,
			Side:        side,
			EntryTime:   entry.Date,
			ExitTime:    exit.Date,
			EntryPrice:  entry.Price,
			ExitPrice:   exit.Price,
			RunUpPct:    firstNonNil(entry.RunUpPct, exit.RunUpPct),
			DrawdownPct: firstNonNil(entry.DrawdownPct, exit.DrawdownPct),
			PnLPct:      firstNonNil(entry.PnLPct, exit.PnLPct),
		}
		if err := pair.Validate(); err != nil {
			discard(id, err.Error())
			continue
		}
		pairs = append(pairs, pair)
	}

	report.Pairs = len(pairs)
	log.Info().Int("rows", report.Rows).Int("pairs", report.Pairs).Int("discarded", len(report.Discarded)).
		Msg("📋 trade pairs assembled")
	return pairs, report
}

type rowKind int

const (
	rowUnknown rowKind = iota
	rowEntry
	rowExit
)

func classifyRow(typ string) rowKind {
	t := strings.ToLower(typ)
	switch {
	case strings.Contains(t, "entry"):
		return rowEntry
	case strings.Contains(t, "exit"):
		return rowExit
	}
	return rowUnknown
}

// inferSide reads the side from the entry row. The explicit side column
// wins, then the type text, then the signal text.
func inferSide(entry types.TradeRow) (types.Side, bool) {
	if side, err := types.ParseSide(entry.Side); err == nil {
		return side, true
	}
	for _, text := range []string{entry.Type, entry.Signal} {
		t := strings.ToLower(text)
		hasLong := strings.Contains(t, "long")
		hasShort := strings.Contains(t, "short")
		if hasLong != hasShort {
			if hasLong {
				return types.SideLong, true
			}
			return types.SideShort, true
		}
	}
	return types.SideLong, false
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			out := *v
			return &out
		}
	}
	return nil
}
