package factors

// Family groups factors for documentation and Dependency Analyser lookups.
type Family string

const (
	FamilyValuation     Family = "VALUATION"
	FamilyProfitability Family = "PROFITABILITY"
	FamilyGrowth        Family = "GROWTH"
	FamilyMomentum      Family = "MOMENTUM"
	FamilyVolatility    Family = "VOLATILITY"
	FamilyLiquidity     Family = "LIQUIDITY"
	FamilyTechnical     Family = "TECHNICAL"
	FamilyQuality       Family = "QUALITY"
)

// computeFunc computes one factor's full per-day series from a stock's
// aligned Series.
type computeFunc func(*Series) []*float32

// entry pairs a factor's family (for Dependency Analyser bookkeeping and API
// responses) with its compute function.
type entry struct {
	family  Family
	compute computeFunc
}

// Vocabulary is the full set of factor names the engine recognizes. Every
// name here is a legal right-hand operand in buy/sell conditions and a
// legal priority_factor.
var Vocabulary = map[string]entry{
	// Valuation
	"PER":             {FamilyValuation, perSeries},
	"PBR":             {FamilyValuation, pbrSeries},
	"PSR":             {FamilyValuation, psrSeries},
	"PCR":             {FamilyValuation, pcrSeries},
	"PEG":             {FamilyValuation, pegSeries},
	"EV_EBITDA":       {FamilyValuation, evEbitdaSeries},
	"EV_SALES":        {FamilyValuation, evSalesSeries},
	"DIVIDEND_YIELD":  {FamilyValuation, dividendYieldSeries},
	"EARNINGS_YIELD":  {FamilyValuation, earningsYieldSeries},
	"FCF_YIELD":       {FamilyValuation, fcfYieldSeries},
	"BOOK_TO_MARKET":  {FamilyValuation, bookToMarketSeries},
	"PTBV":            {FamilyValuation, ptbvSeries},
	"CAPE_RATIO":      {FamilyValuation, capeRatioSeries},

	// Profitability
	"ROE":               {FamilyProfitability, roeSeries},
	"ROA":               {FamilyProfitability, roaSeries},
	"ROIC":              {FamilyProfitability, roicSeries},
	"GPM":               {FamilyProfitability, gpmSeries},
	"OPM":               {FamilyProfitability, opmSeries},
	"NPM":               {FamilyProfitability, npmSeries},
	"NET_MARGIN":        {FamilyProfitability, netMarginSeries},
	"OPERATING_MARGIN":  {FamilyProfitability, operatingMarginSeries},
	"GROSS_MARGIN":      {FamilyProfitability, grossMarginSeries},

	// Growth
	"REVENUE_GROWTH":          {FamilyGrowth, revenueGrowthSeries},
	"REVENUE_GROWTH_1Y":       {FamilyGrowth, revenueGrowth1YSeries},
	"REVENUE_GROWTH_3Y":       {FamilyGrowth, revenueGrowth3YSeries},
	"REVENUE_GROWTH_YOY":      {FamilyGrowth, revenueGrowthSeries},
	"REVENUE_GROWTH_QOQ":      {FamilyGrowth, revenueGrowthQOQSeries},
	"EARNINGS_GROWTH":         {FamilyGrowth, earningsGrowthSeries},
	"EARNINGS_GROWTH_1Y":      {FamilyGrowth, earningsGrowth1YSeries},
	"EARNINGS_GROWTH_3Y":      {FamilyGrowth, earningsGrowth3YSeries},
	"EARNINGS_GROWTH_YOY":     {FamilyGrowth, earningsGrowthSeries},
	"OCF_GROWTH_1Y":           {FamilyGrowth, ocfGrowth1YSeries},
	"ASSET_GROWTH_1Y":         {FamilyGrowth, assetGrowth1YSeries},
	"BOOK_VALUE_GROWTH_1Y":    {FamilyGrowth, bookValueGrowth1YSeries},
	"EQUITY_GROWTH":           {FamilyGrowth, equityGrowthSeries},
	"SUSTAINABLE_GROWTH_RATE": {FamilyGrowth, sustainableGrowthRateSeries},

	// Momentum
	"MOMENTUM_1M":           {FamilyMomentum, momentum1M},
	"MOMENTUM_3M":           {FamilyMomentum, momentum3M},
	"MOMENTUM_6M":           {FamilyMomentum, momentum6M},
	"MOMENTUM_12M":          {FamilyMomentum, momentum12M},
	"RETURN_1M":             {FamilyMomentum, return1M},
	"RETURN_3M":             {FamilyMomentum, return3M},
	"RETURN_6M":             {FamilyMomentum, return6M},
	"RETURN_12M":            {FamilyMomentum, return12M},
	"RETURN_1D":             {FamilyMomentum, return1D},
	"RETURN_1W":             {FamilyMomentum, return1W},
	"CHANGE_RATE":           {FamilyMomentum, changeRate},
	"DISTANCE_FROM_52W_HIGH": {FamilyMomentum, distanceFrom52WHigh},
	"DISTANCE_FROM_52W_LOW":  {FamilyMomentum, distanceFrom52WLow},
	"VOLUME_MOMENTUM":       {FamilyMomentum, volumeMomentum},
	"RELATIVE_STRENGTH":     {FamilyMomentum, relativeStrength},
	"RELATIVE_STRENGTH_12M": {FamilyMomentum, relativeStrength12M},

	// Volatility / risk
	"VOLATILITY":              {FamilyVolatility, volatility},
	"VOLATILITY_20D":          {FamilyVolatility, volatility20D},
	"VOLATILITY_60D":          {FamilyVolatility, volatility60D},
	"VOLATILITY_90D":          {FamilyVolatility, volatility90D},
	"DOWNSIDE_VOLATILITY":     {FamilyVolatility, downsideVolatility},
	"DOWNSIDE_VOLATILITY_20D": {FamilyVolatility, downsideVolatility20D},
	"MAX_DRAWDOWN":            {FamilyVolatility, maxDrawdown},
	"MAX_DRAWDOWN_1Y":         {FamilyVolatility, maxDrawdown1Y},
	"BETA":                    {FamilyVolatility, beta},
	"BETA_1Y":                 {FamilyVolatility, beta1Y},
	"SHARPE_RATIO":            {FamilyVolatility, sharpeRatio},

	// Liquidity
	"AVG_TRADING_VALUE":     {FamilyLiquidity, avgTradingValue},
	"AVG_TRADING_VALUE_20D": {FamilyLiquidity, avgTradingValue20D},
	"TURNOVER_RATE":         {FamilyLiquidity, turnoverRate},
	"TURNOVER_RATE_20D":     {FamilyLiquidity, turnoverRate20D},

	// Technical
	"RSI_14":                {FamilyTechnical, rsi14},
	"MACD":                  {FamilyTechnical, macdLine},
	"MACD_SIGNAL":           {FamilyTechnical, macdSignal},
	"MACD_HISTOGRAM":        {FamilyTechnical, macdHistogram},
	"BOLLINGER_POSITION":    {FamilyTechnical, bollingerPosition20},
	"BOLLINGER_POSITION_20": {FamilyTechnical, bollingerPosition20},
	"BOLLINGER_WIDTH":       {FamilyTechnical, bollingerWidth},
	"PRICE_TO_MA_20":        {FamilyTechnical, priceToMA20},
	"MA_5":                  {FamilyTechnical, movingAverage(5)},
	"MA_20":                 {FamilyTechnical, movingAverage(20)},
	"MA_60":                 {FamilyTechnical, movingAverage(60)},
	"MA_120":                {FamilyTechnical, movingAverage(120)},
	"MA_250":                {FamilyTechnical, movingAverage(250)},
	"STOCHASTIC_14":         {FamilyTechnical, stochastic14},
	"STOCHASTIC_K_14":       {FamilyTechnical, stochasticK14},
	"STOCHASTIC_D_14":       {FamilyTechnical, stochasticD14},

	// Quality / stability
	"CURRENT_RATIO":     {FamilyQuality, currentRatioSeries},
	"QUICK_RATIO":       {FamilyQuality, quickRatioSeries},
	"CASH_RATIO":        {FamilyQuality, cashRatioSeries},
	"DEBT_TO_EQUITY":    {FamilyQuality, debtToEquitySeries},
	"DEBT_RATIO":        {FamilyQuality, debtRatioSeries},
	"INTEREST_COVERAGE": {FamilyQuality, interestCoverageSeries},
	"PIOTROSKI_F_SCORE": {FamilyQuality, piotroskiFScoreSeries},
	"ALTMAN_Z_SCORE":    {FamilyQuality, altmanZScoreSeries},
	"EARNINGS_QUALITY":  {FamilyQuality, earningsQualitySeries},
	"ACCRUALS_RATIO":    {FamilyQuality, accrualsRatioSeries},
}

// familyCatalogue holds the family-level description, recommended
// comparison operator, and typical value range surfaced by the factor
// catalogue endpoint. Individual factors within a family share the same
// general usage pattern, so metadata is kept per-family rather than
// duplicated 93 times.
type familyCatalogue struct {
	Description string
	Operator    string
	RangeLow    float64
	RangeHigh   float64
}

var familyCatalogues = map[Family]familyCatalogue{
	FamilyValuation:     {"Price relative to a fundamental figure; lower values are conventionally cheaper.", "<", 0, 30},
	FamilyProfitability: {"Return or margin ratio derived from disclosed financials; higher is conventionally better.", ">", 0, 0.4},
	FamilyGrowth:        {"Percentage change of a fundamental metric versus a prior disclosure.", ">", -0.5, 0.5},
	FamilyMomentum:      {"Trailing price or volume behaviour relative to a lookback window.", ">", -0.5, 0.5},
	FamilyVolatility:    {"Dispersion or risk measure derived from the daily return series.", "<", 0, 100},
	FamilyLiquidity:     {"Trading activity relative to float size.", ">", 0, 10},
	FamilyTechnical:     {"Price-series technical indicator.", "BETWEEN", 0, 100},
	FamilyQuality:       {"Balance-sheet stability or earnings-quality ratio.", ">", 0, 3},
}

// Catalogue describes one recognized factor for the factor-catalogue API.
type Catalogue struct {
	Name        string  `json:"name"`
	Family      Family  `json:"family"`
	Description string  `json:"description"`
	Operator    string  `json:"recommended_operator"`
	RangeLow    float64 `json:"typical_range_low"`
	RangeHigh   float64 `json:"typical_range_high"`
}

// Describe returns catalogue metadata for every recognized factor.
func Describe() []Catalogue {
	out := make([]Catalogue, 0, len(Vocabulary))
	for name, e := range Vocabulary {
		fc := familyCatalogues[e.family]
		out = append(out, Catalogue{
			Name:        name,
			Family:      e.family,
			Description: fc.Description,
			Operator:    fc.Operator,
			RangeLow:    fc.RangeLow,
			RangeHigh:   fc.RangeHigh,
		})
	}
	return out
}

// IsKnownFactor reports whether name is a recognized factor, used by the
// Dependency Analyser to distinguish factor references from literals.
func IsKnownFactor(name string) bool {
	_, ok := Vocabulary[name]
	return ok
}

// FamilyOf returns the family a known factor belongs to.
func FamilyOf(name string) (Family, bool) {
	e, ok := Vocabulary[name]
	if !ok {
		return "", false
	}
	return e.family, true
}

// Names returns every recognized factor name.
func Names() []string {
	out := make([]string, 0, len(Vocabulary))
	for name := range Vocabulary {
		out = append(out, name)
	}
	return out
}
