package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Epistemic-Technology/rfp-mcp/models"
)

// Rates are the fallback ratios and defaults used when a sheet does not carry a value.
type Rates struct {
	BondRate      float64 `yaml:"bond_rate"`
	StructurePct  float64 `yaml:"structure_pct"`
	LaborPct      float64 `yaml:"labor_pct"`
	PMPct         float64 `yaml:"pm_pct"`
	DefaultMargin float64 `yaml:"default_margin"`
}

func DefaultRates() Rates {
	return Rates{
		BondRate:      0.015,
		StructurePct:  0.20,
		LaborPct:      0.15,
		PMPct:         0.05,
		DefaultMargin: 0.25,
	}
}

// Costs are the cost inputs for one screen. Bond and FinalTotal are taken as
// given when the source provides them.
type Costs struct {
	Hardware   float64
	Structure  float64
	Install    float64
	Labor      float64
	PM         float64
	Shipping   float64
	MarginPct  float64
	Bond       *float64
	FinalTotal *float64
	AreaSqFt   float64
}

var hundred = decimal.NewFromInt(100)

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// NormalizeMargin accepts 0.25 or 25 and returns a fraction. Values outside
// [0,1) fall back to def.
func NormalizeMargin(m, def float64) float64 {
	if m > 1 {
		m = m / 100
	}
	if m < 0 || m >= 1 {
		return def
	}
	return m
}

// Compute builds the audit for one screen using the divisor margin model:
// sell = cost / (1 - margin).
func Compute(c Costs, r Rates) models.ScreenAudit {
	hardware := decimal.NewFromFloat(c.Hardware).Round(2)
	structure := decimal.NewFromFloat(c.Structure).Round(2)
	install := decimal.NewFromFloat(c.Install).Round(2)
	labor := decimal.NewFromFloat(c.Labor).Round(2)
	pm := decimal.NewFromFloat(c.PM).Round(2)
	shipping := decimal.NewFromFloat(c.Shipping).Round(2)

	total := hardware.Add(structure).Add(install).Add(labor).Add(pm).Add(shipping)

	margin := decimal.NewFromFloat(NormalizeMargin(c.MarginPct, r.DefaultMargin))
	sell := total.Div(decimal.NewFromInt(1).Sub(margin)).Round(2)

	bond := sell.Mul(decimal.NewFromFloat(r.BondRate)).Round(2)
	if c.Bond != nil {
		bond = decimal.NewFromFloat(*c.Bond).Round(2)
	}
	final := sell.Add(bond)
	if c.FinalTotal != nil && *c.FinalTotal > 0 {
		final = decimal.NewFromFloat(*c.FinalTotal).Round(2)
	}

	audit := models.ScreenAudit{
		Hardware:   cents(hardware),
		Structure:  cents(structure),
		Install:    cents(install),
		Labor:      cents(labor),
		PM:         cents(pm),
		Shipping:   cents(shipping),
		TotalCost:  cents(total),
		Margin:     cents(sell.Sub(total)),
		SellPrice:  cents(sell),
		Bond:       cents(bond),
		FinalTotal: cents(final),
		AreaSqFt:   c.AreaSqFt,
	}
	audit.PricePerSqFt = perArea(final, c.AreaSqFt)
	return audit
}

// EstimateInstall returns fixed percentage-of-hardware estimates for
// structure, labor and project management.
func EstimateInstall(hardware float64, r Rates) (structure, labor, pm float64) {
	h := decimal.NewFromFloat(hardware)
	structure = cents(h.Mul(decimal.NewFromFloat(r.StructurePct)))
	labor = cents(h.Mul(decimal.NewFromFloat(r.LaborPct)))
	pm = cents(h.Mul(decimal.NewFromFloat(r.PMPct)))
	return structure, labor, pm
}

// ForScreen prices a screen that has no sheet-level cost breakdown, from its
// area, cost per square foot and margin.
func ForScreen(s models.ScreenRecord, r Rates) *models.ScreenAudit {
	s.Recompute()
	if s.AreaSqFt == nil || s.CostPerSqFt == nil {
		return nil
	}
	hardware := cents(decimal.NewFromFloat(*s.AreaSqFt).Mul(decimal.NewFromFloat(*s.CostPerSqFt)))
	structure, labor, pm := EstimateInstall(hardware, r)

	margin := r.DefaultMargin
	if s.MarginPct != nil {
		margin = *s.MarginPct
	}
	audit := Compute(Costs{
		Hardware:  hardware,
		Structure: structure,
		Labor:     labor,
		PM:        pm,
		MarginPct: margin,
		AreaSqFt:  *s.AreaSqFt,
	}, r)
	return &audit
}

// Aggregate sums per-screen audits into project totals. The per-area price is
// recomputed from the summed totals.
func Aggregate(audits []models.ScreenAudit) models.ScreenAudit {
	var hardware, structure, install, labor, pm, shipping, total, margin, sell, bond, final, area decimal.Decimal
	for _, a := range audits {
		hardware = hardware.Add(decimal.NewFromFloat(a.Hardware))
		structure = structure.Add(decimal.NewFromFloat(a.Structure))
		install = install.Add(decimal.NewFromFloat(a.Install))
		labor = labor.Add(decimal.NewFromFloat(a.Labor))
		pm = pm.Add(decimal.NewFromFloat(a.PM))
		shipping = shipping.Add(decimal.NewFromFloat(a.Shipping))
		total = total.Add(decimal.NewFromFloat(a.TotalCost))
		margin = margin.Add(decimal.NewFromFloat(a.Margin))
		sell = sell.Add(decimal.NewFromFloat(a.SellPrice))
		bond = bond.Add(decimal.NewFromFloat(a.Bond))
		final = final.Add(decimal.NewFromFloat(a.FinalTotal))
		area = area.Add(decimal.NewFromFloat(a.AreaSqFt))
	}

	totals := models.ScreenAudit{
		Hardware:   cents(hardware),
		Structure:  cents(structure),
		Install:    cents(install),
		Labor:      cents(labor),
		PM:         cents(pm),
		Shipping:   cents(shipping),
		TotalCost:  cents(total),
		Margin:     cents(margin),
		SellPrice:  cents(sell),
		Bond:       cents(bond),
		FinalTotal: cents(final),
		AreaSqFt:   area.Round(4).InexactFloat64(),
	}
	totals.PricePerSqFt = perArea(final, totals.AreaSqFt)
	return totals
}

func perArea(final decimal.Decimal, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return cents(final.Div(decimal.NewFromFloat(area)))
}

// ParseAmount reads a money or number cell such as "$1,234.50", "(200)" or
// "12.5%". The second return is false when nothing numeric was found.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}
	percent := strings.HasSuffix(s, "%")

	s = strings.NewReplacer("$", "", ",", "", "%", "", "CAD", "", "USD", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if percent {
		d = d.Div(hundred)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}
