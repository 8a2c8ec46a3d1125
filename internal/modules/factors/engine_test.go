package factors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func makeSeries(code string, days int, startClose float64) *Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, days)
	for i := 0; i < days; i++ {
		close := startClose + float64(i)
		bars[i] = domain.PriceBar{
			Code:      code,
			Date:      base.AddDate(0, 0, i).Format("2006-01-02"),
			Open:      close,
			High:      close * 1.01,
			Low:       close * 0.99,
			Close:     close,
			Volume:    100000,
			MarketCap: close * 1e8,
		}
	}
	funds := []domain.FundamentalRecord{
		{Code: code, Metric: "net_income", AvailableDate: base.Format("2006-01-02"), Value: 1e7},
	}
	return NewSeries(code, bars, funds, nil)
}

func TestDataframeBackendComputesRequestedFactorsOnly(t *testing.T) {
	s := makeSeries("A", 60, 1000)
	backend := NewBackend("dataframe")
	out, err := backend.Compute(s, map[string]bool{"PER": true, "MA_5": true})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, "PER")
	assert.Contains(t, out, "MA_5")
}

func TestDataframeBackendRejectsNilSeries(t *testing.T) {
	backend := NewBackend("dataframe")
	_, err := backend.Compute(nil, map[string]bool{"PER": true})
	assert.Error(t, err)
}

func TestBackendsAgreeOnOutput(t *testing.T) {
	s := makeSeries("A", 60, 1000)
	mask := map[string]bool{"MA_20": true, "RSI_14": true}

	dataframe, err := NewBackend("dataframe").Compute(s, mask)
	require.NoError(t, err)
	columnar, err := NewBackend("columnar").Compute(s, mask)
	require.NoError(t, err)
	jit, err := NewBackend("jit").Compute(s, mask)
	require.NoError(t, err)

	for name := range mask {
		require.Equal(t, len(dataframe[name]), len(columnar[name]))
		for i := range dataframe[name] {
			if dataframe[name][i] == nil {
				assert.Nil(t, columnar[name][i])
				assert.Nil(t, jit[name][i])
				continue
			}
			assert.Equal(t, *dataframe[name][i], *columnar[name][i])
			assert.Equal(t, *dataframe[name][i], *jit[name][i])
		}
	}
}

func TestNewBackendDefaultsToDataframe(t *testing.T) {
	assert.Equal(t, "dataframe", NewBackend("unknown").Name())
}

func TestIsKnownFactorAndFamilyOf(t *testing.T) {
	assert.True(t, IsKnownFactor("PER"))
	assert.False(t, IsKnownFactor("NOT_A_FACTOR"))

	family, ok := FamilyOf("PER")
	require.True(t, ok)
	assert.Equal(t, FamilyValuation, family)

	_, ok = FamilyOf("NOT_A_FACTOR")
	assert.False(t, ok)
}

func TestNamesCoversFullVocabulary(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(Vocabulary))
}
