package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// timeLayouts are tried in order for textual timestamps
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"01/02/2006 15:04",
	"2006-01-02",
}

// CSVProvider loads normalized candle and tradelist CSV files. Every
// timestamp is converted to the provider's reference location at ingest.
type CSVProvider struct {
	location *time.Location
}

// NewCSVProvider creates a CSV provider normalizing timestamps to UTC
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{location: time.UTC}
}

// NewCSVProviderInLocation creates a CSV provider for a reference zone
func NewCSVProviderInLocation(loc *time.Location) *CSVProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVProvider{location: loc}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// Location returns the reference zone
func (p *CSVProvider) Location() *time.Location {
	return p.location
}

// LoadCandles loads and validates a candle CSV
func (p *CSVProvider) LoadCandles(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	candles, err := p.ReadCandles(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return candles, nil
}

// ReadCandles parses candles from a CSV stream with a header row. Rows with
// unparseable values are data errors and abort the load.
func (p *CSVProvider) ReadCandles(r io.Reader) ([]types.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := mapColumns(header, CandleColumns, "time", "open", "high", "low", "close")
	if err != nil {
		return nil, err
	}

	var candles []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}

		ts, err := p.ParseTime(field(record, cols["time"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		var ohlc [4]float64
		for i, name := range []string{"open", "high", "low", "close"} {
			v, err := ParsePrice(field(record, cols[name]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", lineNum, name, err)
			}
			ohlc[i] = v
		}
		var volume float64
		if idx, ok := cols["volume"]; ok && field(record, idx) != "" {
			if volume, err = ParsePrice(field(record, idx)); err != nil {
				return nil, fmt.Errorf("line %d: invalid volume: %w", lineNum, err)
			}
		}

		candles = append(candles, types.OHLCV{
			Timestamp: ts,
			Open:      ohlc[0],
			High:      ohlc[1],
			Low:       ohlc[2],
			Close:     ohlc[3],
			Volume:    volume,
		})
	}

	if err := ValidateCandles(candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// LoadTradeRows loads normalized tradelist rows
func (p *CSVProvider) LoadTradeRows(source string) ([]types.TradeRow, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := p.ReadTradeRows(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return rows, nil
}

// ReadTradeRows parses tradelist rows from a CSV stream with a header row
func (p *CSVProvider) ReadTradeRows(r io.Reader) ([]types.TradeRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := mapColumns(header, TradeColumns, "trade_id", "type", "date", "price")
	if err != nil {
		return nil, err
	}

	var rows []types.TradeRow
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(field(record, cols["trade_id"])))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid trade id: %w", lineNum, err)
		}
		ts, err := p.ParseTime(field(record, cols["date"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		price, err := ParsePrice(field(record, cols["price"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price: %w", lineNum, err)
		}

		row := types.TradeRow{
			TradeID: id,
			Type:    strings.TrimSpace(field(record, cols["type"])),
			Date:    ts,
			Price:   price,
		}
		if idx, ok := cols["signal"]; ok {
			row.Signal = strings.TrimSpace(field(record, idx))
		}
		if idx, ok := cols["side"]; ok {
			row.Side = strings.TrimSpace(field(record, idx))
		}
		row.RunUpPct = optionalFloat(record, cols, "run_up_pct")
		row.DrawdownPct = optionalFloat(record, cols, "drawdown_pct")
		row.PnLPct = optionalFloat(record, cols, "pnl_pct")

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("tradelist has no rows")
	}
	return rows, nil
}

// ParseTime parses a timestamp and converts it to the reference zone.
// Zone-less values are interpreted in the reference zone. Integers are
// Unix seconds or, when large enough, milliseconds.
func (p *CSVProvider) ParseTime(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).In(p.location), nil
		}
		return time.Unix(n, 0).In(p.location), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, p.location); err == nil {
			return t.In(p.location), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ParsePrice coerces a textual price to float64, stripping quotes, spaces
// and thousand separators.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.NewReplacer(`"`, "", "'", "", ",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty value")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return d.InexactFloat64(), nil
}

// mapColumns resolves header aliases to column positions
func mapColumns(header []string, aliases map[string][]string, required ...string) (map[string]int, error) {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		normalized[h] = i
	}

	cols := make(map[string]int)
	for name, names := range aliases {
		for _, alias := range names {
			if idx, ok := normalized[alias]; ok {
				cols[name] = idx
				break
			}
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q (header: %v)", name, header)
		}
	}
	return cols, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func optionalFloat(record []string, cols map[string]int, name string) *float64 {
	idx, ok := cols[name]
	if !ok {
		return nil
	}
	raw := strings.TrimSuffix(strings.TrimSpace(field(record, idx)), "%")
	if raw == "" {
		return nil
	}
	v, err := ParsePrice(raw)
	if err != nil {
		log.Debug().Str("column", name).Str("value", raw).Msg("ignoring unparseable optional value")
		return nil
	}
	return &v
}
