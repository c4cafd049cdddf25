package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candleCSV = `time,open,high,low,close,volume
2024-01-01 00:00:00,100,101,99,100.5,10
2024-01-01 00:01:00,100.5,102,100,101.5,12
2024-01-01 00:02:00,"1,101.5",1102,1100,1101,
`

// TestReadCandles tests header mapping, thousand separators and optional volume
func TestReadCandles(t *testing.T) {
	p := NewCSVProvider()
	candles, err := p.ReadCandles(strings.NewReader(candleCSV))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), candles[1].Timestamp)
	assert.Equal(t, 1101.5, candles[2].Open)
	assert.Equal(t, 0.0, candles[2].Volume)
	assert.Equal(t, 12.0, candles[1].Volume)
}

// TestReadCandles_ByteOrderMark tests that a UTF-8 BOM before the header is ignored
func TestReadCandles_ByteOrderMark(t *testing.T) {
	p := NewCSVProvider()
	candles, err := p.ReadCandles(strings.NewReader("\ufeff" + candleCSV))
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].Timestamp)
}

// TestReadCandles_RejectsDuplicates tests duplicate and unsorted timestamps
func TestReadCandles_RejectsDuplicates(t *testing.T) {
	p := NewCSVProvider()

	dup := "time,open,high,low,close\n2024-01-01 00:00,1,2,0.5,1.5\n2024-01-01 00:00,1,2,0.5,1.5\n"
	_, err := p.ReadCandles(strings.NewReader(dup))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	unsorted := "time,open,high,low,close\n2024-01-01 00:05,1,2,0.5,1.5\n2024-01-01 00:00,1,2,0.5,1.5\n"
	_, err = p.ReadCandles(strings.NewReader(unsorted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chronological")
}

// TestReadCandles_Malformed tests that bad rows refuse the load
func TestReadCandles_Malformed(t *testing.T) {
	p := NewCSVProvider()

	_, err := p.ReadCandles(strings.NewReader("time,open,high,low,close\n2024-01-01 00:00,abc,2,0.5,1.5\n"))
	assert.Error(t, err)

	_, err = p.ReadCandles(strings.NewReader("time,open,high,low\n2024-01-01 00:00,1,2,0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close")
}

// TestParseTime_ReferenceZone tests that zoned and naive timestamps land on the same instant
func TestParseTime_ReferenceZone(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	p := NewCSVProviderInLocation(bangkok)

	naive, err := p.ParseTime("2024-01-01 07:00")
	require.NoError(t, err)
	zoned, err := p.ParseTime("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	epoch, err := p.ParseTime("1704067200")
	require.NoError(t, err)
	millis, err := p.ParseTime("1704067200000")
	require.NoError(t, err)

	assert.True(t, naive.Equal(zoned))
	assert.True(t, epoch.Equal(zoned))
	assert.True(t, millis.Equal(zoned))
	assert.Equal(t, bangkok, zoned.Location())

	_, err = p.ParseTime("yesterday")
	assert.Error(t, err)
}

// TestParsePrice tests coercion of textual prices
func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100.5", 100.5, true},
		{`"1,234.56"`, 1234.56, true},
		{" 0.009871 ", 0.009871, true},
		{"'42'", 42, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, tt.in)
	}
}

// TestReadTradeRows tests tradelist parsing with optional excursion columns
func TestReadTradeRows(t *testing.T) {
	csv := `trade_id,type,date,price,signal,run_up_pct,drawdown_pct
1,Entry long,2024-01-01 00:00,100,Long,2.5,1.1
1,Exit long,2024-01-01 00:05,101,Close,,
2,Entry short,2024-01-01 00:06,"1,000.5",Short,0.4%,
`
	p := NewCSVProvider()
	rows, err := p.ReadTradeRows(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].TradeID)
	assert.Equal(t, "Entry long", rows[0].Type)
	require.NotNil(t, rows[0].RunUpPct)
	assert.Equal(t, 2.5, *rows[0].RunUpPct)
	assert.Nil(t, rows[1].RunUpPct)
	assert.Equal(t, 1000.5, rows[2].Price)
	require.NotNil(t, rows[2].RunUpPct)
	assert.Equal(t, 0.4, *rows[2].RunUpPct)
	assert.Nil(t, rows[2].DrawdownPct)
}

// TestCachedProvider tests that the cache serves copies until the file changes
func TestCachedProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(candleCSV), 0o644))

	cached := NewCachedProvider(NewCSVProvider())
	first, err := cached.LoadCandles(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cached.GetCacheSize())

	first[0].Open = -1
	second, err := cached.LoadCandles(path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, second[0].Open)
	assert.Equal(t, 1, cached.GetCacheSize())

	edited := strings.Replace(candleCSV, "100,", "200,", 1)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := cached.LoadCandles(path)
	require.NoError(t, err)
	assert.Equal(t, 200.0, third[0].Open)
	assert.Equal(t, 2, cached.GetCacheSize())

	cached.ClearCache()
	require.NoError(t, os.Remove(path))
	_, err = cached.LoadCandles(path)
	assert.Error(t, err)
}
