package assets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultDirectory returns the built-in multi-asset catalog: large-cap US
// and international stocks, treasury and corporate bond ETFs, commodity
// funds, major forex pairs, REITs, broad-market ETFs, benchmark indices,
// and the major cryptocurrencies.
func DefaultDirectory() *StaticDirectory {
	var catalog []Asset

	usStock := func(symbol, name string, sector Sector) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassStocks, Region: RegionUS,
			Sector: sector, Currency: "USD", RiskLevel: 6, Volatility: VolatilityMedium,
		})
	}
	usStock("AAPL", "Apple Inc.", SectorTechnology)
	usStock("MSFT", "Microsoft Corporation", SectorTechnology)
	usStock("GOOGL", "Alphabet Inc.", SectorTechnology)
	usStock("AMZN", "Amazon.com Inc.", SectorConsumerDisc)
	usStock("TSLA", "Tesla Inc.", SectorConsumerDisc)
	usStock("META", "Meta Platforms Inc.", SectorCommunication)
	usStock("NVDA", "NVIDIA Corporation", SectorTechnology)
	usStock("JPM", "JPMorgan Chase & Co.", SectorFinancial)
	usStock("JNJ", "Johnson & Johnson", SectorHealthcare)
	usStock("V", "Visa Inc.", SectorFinancial)
	usStock("PG", "Procter & Gamble Co.", SectorConsumerStpl)
	usStock("UNH", "UnitedHealth Group Inc.", SectorHealthcare)
	usStock("HD", "Home Depot Inc.", SectorConsumerDisc)
	usStock("MA", "Mastercard Inc.", SectorFinancial)
	usStock("DIS", "Walt Disney Co.", SectorCommunication)

	intlStock := func(symbol, name string, region Region, sector Sector) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassStocks, Region: region,
			Sector: sector, Currency: "USD", RiskLevel: 6, Volatility: VolatilityMedium,
		})
	}
	intlStock("ASML", "ASML Holding N.V.", RegionEurope, SectorTechnology)
	intlStock("TSM", "Taiwan Semiconductor", RegionAsia, SectorTechnology)
	intlStock("SAP", "SAP SE", RegionEurope, SectorTechnology)
	intlStock("TM", "Toyota Motor Corp", RegionAsia, SectorConsumerDisc)
	intlStock("NVO", "Novo Nordisk A/S", RegionEurope, SectorHealthcare)

	bond := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassBonds, Region: RegionUS,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityLow,
		})
	}
	bond("TLT", "iShares 20+ Year Treasury Bond ETF", 3)
	bond("IEF", "iShares 7-10 Year Treasury Bond ETF", 2)
	bond("SHY", "iShares 1-3 Year Treasury Bond ETF", 1)
	bond("LQD", "iShares iBoxx $ Investment Grade Corporate Bond ETF", 4)
	bond("HYG", "iShares iBoxx $ High Yield Corporate Bond ETF", 6)

	commodity := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassCommodities, Region: RegionGlobal,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityHigh,
		})
	}
	commodity("GLD", "SPDR Gold Trust", 4)
	commodity("SLV", "iShares Silver Trust", 5)
	commodity("USO", "United States Oil Fund", 7)
	commodity("UNG", "United States Natural Gas Fund", 8)
	commodity("DBA", "Invesco DB Agriculture Fund", 6)
	commodity("CORN", "Teucrium Corn Fund", 6)
	commodity("WEAT", "Teucrium Wheat Fund", 6)

	forex := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassForex, Region: RegionGlobal,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityMedium,
		})
	}
	forex("EURUSD=X", "Euro/US Dollar", 5)
	forex("GBPUSD=X", "British Pound/US Dollar", 6)
	forex("USDJPY=X", "US Dollar/Japanese Yen", 4)
	forex("USDCHF=X", "US Dollar/Swiss Franc", 4)
	forex("AUDUSD=X", "Australian Dollar/US Dollar", 6)
	forex("USDCAD=X", "US Dollar/Canadian Dollar", 4)
	forex("NZDUSD=X", "New Zealand Dollar/US Dollar", 6)

	reit := func(symbol, name string) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassREITs, Region: RegionUS,
			Sector: SectorRealEstate, Currency: "USD", RiskLevel: 5, Volatility: VolatilityMedium,
		})
	}
	reit("VNQ", "Vanguard Real Estate ETF")
	reit("IYR", "iShares U.S. Real Estate ETF")
	reit("SCHH", "Schwab U.S. REIT ETF")
	reit("XLRE", "Real Estate Select Sector SPDR Fund")

	etf := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassETFs, Region: RegionGlobal,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityMedium,
		})
	}
	etf("SPY", "SPDR S&P 500 ETF Trust", 4)
	etf("QQQ", "Invesco QQQ Trust", 5)
	etf("IWM", "iShares Russell 2000 ETF", 6)
	etf("VTI", "Vanguard Total Stock Market ETF", 4)
	etf("VEA", "Vanguard FTSE Developed Markets ETF", 5)
	etf("VWO", "Vanguard FTSE Emerging Markets ETF", 7)
	etf("BND", "Vanguard Total Bond Market ETF", 2)

	index := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassIndices, Region: RegionUS,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityMedium,
		})
	}
	index("^GSPC", "S&P 500", 4)
	index("^DJI", "Dow Jones Industrial Average", 4)
	index("^IXIC", "NASDAQ Composite", 5)
	index("^VIX", "CBOE Volatility Index", 8)
	index("^TNX", "10-Year Treasury Note", 2)

	crypto := func(symbol, name string, risk int) {
		catalog = append(catalog, Asset{
			Symbol: symbol, Name: name, Class: ClassCrypto, Region: RegionGlobal,
			Currency: "USD", RiskLevel: risk, Volatility: VolatilityVeryHigh,
		})
	}
	crypto("BTC-USD", "Bitcoin", 7)
	crypto("ETH-USD", "Ethereum", 8)
	crypto("BNB-USD", "Binance Coin", 8)
	crypto("ADA-USD", "Cardano", 8)
	crypto("SOL-USD", "Solana", 9)
	crypto("XRP-USD", "XRP", 8)
	crypto("DOT-USD", "Polkadot", 8)
	crypto("DOGE-USD", "Dogecoin", 9)
	crypto("AVAX-USD", "Avalanche", 9)
	crypto("MATIC-USD", "Polygon", 8)

	return NewStaticDirectory(catalog)
}

// catalogFile is the on-disk YAML layout for a custom catalog.
type catalogFile struct {
	Assets []Asset `yaml:"assets"`
}

// LoadCatalog reads a YAML asset catalog from disk. Every entry must carry
// a symbol, a valid class, a currency, and a valid volatility tier (empty
// tier defaults to medium).
func LoadCatalog(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(file.Assets) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no assets", path)
	}

	for i := range file.Assets {
		a := &file.Assets[i]
		if a.Symbol == "" {
			return nil, fmt.Errorf("catalog entry %d: missing symbol", i)
		}
		if !a.Class.Valid() || a.Class == ClassUnknown {
			return nil, fmt.Errorf("catalog entry %s: invalid class %q", a.Symbol, a.Class)
		}
		if a.Currency == "" {
			return nil, fmt.Errorf("catalog entry %s: missing currency", a.Symbol)
		}
		if a.Volatility == "" {
			a.Volatility = VolatilityMedium
		}
		if !a.Volatility.Valid() {
			return nil, fmt.Errorf("catalog entry %s: invalid volatility tier %q", a.Symbol, a.Volatility)
		}
	}

	return NewStaticDirectory(file.Assets), nil
}
