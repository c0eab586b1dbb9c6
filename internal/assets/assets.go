// Package assets provides the asset directory: reference data describing
// the instruments the ledger can hold (class, region, sector, settlement
// currency, risk profile). Order execution works without a directory entry;
// classification and fee tiering degrade to defaults on a miss.
package assets

import "sort"

// Class identifies an asset class for fee tiering and allocation reporting.
type Class string

const (
	ClassStocks      Class = "stocks"
	ClassBonds       Class = "bonds"
	ClassCommodities Class = "commodities"
	ClassForex       Class = "forex"
	ClassCrypto      Class = "crypto"
	ClassREITs       Class = "reits"
	ClassETFs        Class = "etfs"
	ClassIndices     Class = "indices"

	// ClassUnknown is assigned to symbols with no directory entry.
	ClassUnknown Class = "unknown"
)

// Valid reports whether c is a known asset class.
func (c Class) Valid() bool {
	switch c {
	case ClassStocks, ClassBonds, ClassCommodities, ClassForex,
		ClassCrypto, ClassREITs, ClassETFs, ClassIndices, ClassUnknown:
		return true
	}
	return false
}

// Region identifies the market region an asset trades in.
type Region string

const (
	RegionUS       Region = "us"
	RegionEurope   Region = "europe"
	RegionAsia     Region = "asia"
	RegionEmerging Region = "emerging_markets"
	RegionGlobal   Region = "global"
)

// Sector identifies an equity sector. Non-equity assets carry no sector.
type Sector string

const (
	SectorTechnology    Sector = "technology"
	SectorHealthcare    Sector = "healthcare"
	SectorFinancial     Sector = "financial"
	SectorEnergy        Sector = "energy"
	SectorConsumerDisc  Sector = "consumer_discretionary"
	SectorConsumerStpl  Sector = "consumer_staples"
	SectorIndustrials   Sector = "industrials"
	SectorMaterials     Sector = "materials"
	SectorUtilities     Sector = "utilities"
	SectorRealEstate    Sector = "real_estate"
	SectorCommunication Sector = "communication"
)

// Volatility buckets an asset's expected annualized volatility into a tier.
type Volatility string

const (
	VolatilityLow      Volatility = "low"
	VolatilityMedium   Volatility = "medium"
	VolatilityHigh     Volatility = "high"
	VolatilityVeryHigh Volatility = "very_high"
)

// Valid reports whether v is a known volatility tier.
func (v Volatility) Valid() bool {
	switch v {
	case VolatilityLow, VolatilityMedium, VolatilityHigh, VolatilityVeryHigh:
		return true
	}
	return false
}

// Asset describes one instrument in the directory.
type Asset struct {
	Symbol     string     `json:"symbol" yaml:"symbol"`
	Name       string     `json:"name" yaml:"name"`
	Class      Class      `json:"class" yaml:"class"`
	Region     Region     `json:"region" yaml:"region"`
	Sector     Sector     `json:"sector,omitempty" yaml:"sector,omitempty"`
	Currency   string     `json:"currency" yaml:"currency"`
	RiskLevel  int        `json:"risk_level" yaml:"risk_level"` // 1-10 scale
	Volatility Volatility `json:"volatility" yaml:"volatility"`
}

// Directory resolves symbols to asset reference data.
type Directory interface {
	// Lookup returns the asset for a symbol. A miss is not an error:
	// callers fall back to ClassUnknown and default fee tiers.
	Lookup(symbol string) (Asset, bool)

	// Symbols returns all known symbols in lexical order.
	Symbols() []string
}

// StaticDirectory is an immutable in-memory Directory.
type StaticDirectory struct {
	assets map[string]Asset
}

// NewStaticDirectory builds a directory from a fixed asset list.
// Later duplicates of a symbol override earlier ones.
func NewStaticDirectory(assets []Asset) *StaticDirectory {
	m := make(map[string]Asset, len(assets))
	for _, a := range assets {
		m[a.Symbol] = a
	}
	return &StaticDirectory{assets: m}
}

// Lookup returns the asset for a symbol.
func (d *StaticDirectory) Lookup(symbol string) (Asset, bool) {
	a, ok := d.assets[symbol]
	return a, ok
}

// Symbols returns all known symbols in lexical order.
func (d *StaticDirectory) Symbols() []string {
	symbols := make([]string, 0, len(d.assets))
	for s := range d.assets {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ByClass returns the assets belonging to one class, sorted by symbol.
func (d *StaticDirectory) ByClass(class Class) []Asset {
	var out []Asset
	for _, s := range d.Symbols() {
		if a := d.assets[s]; a.Class == class {
			out = append(out, a)
		}
	}
	return out
}
