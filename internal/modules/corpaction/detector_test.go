package corpaction

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func bar(code, date string, close float64) domain.PriceBar {
	return domain.PriceBar{Code: code, Date: date, Close: close}
}

func TestDetectFlagsLargeSingleDayMove(t *testing.T) {
	d := New(0, zerolog.Nop())
	bars := []domain.PriceBar{
		bar("005930", "2024-01-02", 50000),
		bar("005930", "2024-01-03", 51000),
		bar("005930", "2024-01-04", 10000), // -80% reverse-split-like crash
	}
	events := d.Detect(bars)
	assert.Len(t, events, 1)
	assert.Equal(t, "2024-01-04", events[0].Date)
}

func TestDetectIgnoresNormalMoves(t *testing.T) {
	d := New(0, zerolog.Nop())
	bars := []domain.PriceBar{
		bar("005930", "2024-01-02", 50000),
		bar("005930", "2024-01-03", 51000),
		bar("005930", "2024-01-04", 50500),
	}
	assert.Empty(t, d.Detect(bars))
}

func TestDetectSortsUnorderedBarsDefensively(t *testing.T) {
	d := New(0.5, zerolog.Nop())
	bars := []domain.PriceBar{
		bar("005930", "2024-01-04", 10000),
		bar("005930", "2024-01-02", 50000),
		bar("005930", "2024-01-03", 51000),
	}
	events := d.Detect(bars)
	assert.Len(t, events, 1)
}

func TestDetectRequiresAtLeastTwoBars(t *testing.T) {
	d := New(0.5, zerolog.Nop())
	assert.Empty(t, d.Detect([]domain.PriceBar{bar("005930", "2024-01-02", 50000)}))
	assert.Empty(t, d.Detect(nil))
}

func TestBlockedDatesKeysByCodeAndDate(t *testing.T) {
	events := []domain.CorporateActionRecord{
		{Code: "005930", Date: "2024-01-04"},
	}
	blocked := BlockedDates(events)
	_, ok := blocked["005930|2024-01-04"]
	assert.True(t, ok)
}

func TestNewAppliesDefaultThresholdWhenNonPositive(t *testing.T) {
	d := New(-1, zerolog.Nop())
	assert.Equal(t, DefaultThreshold, d.Threshold)
}

func TestDetectThresholdIsInclusive(t *testing.T) {
	d := New(0.5, zerolog.Nop())
	bars := []domain.PriceBar{
		bar("005930", "2024-01-02", 10000),
		bar("005930", "2024-01-03", 15000), // exactly +50%
	}
	events := d.Detect(bars)
	assert.Len(t, events, 1)
}

func TestDetectClassifiesActionType(t *testing.T) {
	d := New(0.5, zerolog.Nop())
	bonusSplit := d.Detect([]domain.PriceBar{
		bar("005930", "2024-01-02", 10000),
		bar("005930", "2024-01-03", 20000),
	})
	require.Len(t, bonusSplit, 1)
	assert.Equal(t, domain.CorpActionBonusSplit, bonusSplit[0].ActionType)

	consolidation := d.Detect([]domain.PriceBar{
		bar("005930", "2024-01-02", 20000),
		bar("005930", "2024-01-03", 5000),
	})
	require.Len(t, consolidation, 1)
	assert.Equal(t, domain.CorpActionConsolidation, consolidation[0].ActionType)
}
