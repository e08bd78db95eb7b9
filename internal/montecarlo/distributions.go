package montecarlo

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution types accepted for uncertain fields.
const (
	DistNormal     = "normal"
	DistUniform    = "uniform"
	DistTriangular = "triangular"
	DistLogNormal  = "lognormal"
	DistBeta       = "beta"
)

// Distribution describes the marginal distribution of an uncertain field.
// Which parameters apply depends on Type:
//
//	normal:     Mean, StdDev
//	uniform:    Min, Max
//	triangular: Min, Mode, Max
//	lognormal:  Mean, StdDev (of the underlying normal)
//	beta:       Alpha, Beta, scaled onto [Min, Max]
type Distribution struct {
	Type   string  `yaml:"type" json:"type"`
	Mean   float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	StdDev float64 `yaml:"std_dev,omitempty" json:"std_dev,omitempty"`
	Min    float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Mode   float64 `yaml:"mode,omitempty" json:"mode,omitempty"`
	Alpha  float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	Beta   float64 `yaml:"beta,omitempty" json:"beta,omitempty"`
}

// Validate checks the parameter set for the distribution type.
func (d Distribution) Validate() error {
	switch d.Type {
	case DistNormal, DistLogNormal:
		if d.StdDev <= 0 {
			return fmt.Errorf("%s distribution requires std_dev > 0", d.Type)
		}
	case DistUniform:
		if d.Max <= d.Min {
			return fmt.Errorf("uniform distribution requires max > min")
		}
	case DistTriangular:
		if d.Max <= d.Min {
			return fmt.Errorf("triangular distribution requires max > min")
		}
		if d.Mode < d.Min || d.Mode > d.Max {
			return fmt.Errorf("triangular distribution requires min <= mode <= max")
		}
	case DistBeta:
		if d.Alpha <= 0 || d.Beta <= 0 {
			return fmt.Errorf("beta distribution requires alpha > 0 and beta > 0")
		}
		if d.Max <= d.Min {
			return fmt.Errorf("beta distribution requires max > min")
		}
	default:
		return fmt.Errorf("unknown distribution type %q", d.Type)
	}
	return nil
}

// quantile maps a uniform draw through the marginal's inverse CDF. Sampling
// through quantiles lets correlated standard normals carry rank correlation
// onto arbitrary marginals.
func (d Distribution) quantile(u float64) float64 {
	// Guard against 0 and 1, which map to infinities for unbounded marginals.
	const eps = 1e-12
	if u < eps {
		u = eps
	}
	if u > 1-eps {
		u = 1 - eps
	}

	switch d.Type {
	case DistNormal:
		return distuv.Normal{Mu: d.Mean, Sigma: d.StdDev}.Quantile(u)
	case DistUniform:
		return distuv.Uniform{Min: d.Min, Max: d.Max}.Quantile(u)
	case DistTriangular:
		return distuv.NewTriangle(d.Min, d.Max, d.Mode, nil).Quantile(u)
	case DistLogNormal:
		return distuv.LogNormal{Mu: d.Mean, Sigma: d.StdDev}.Quantile(u)
	case DistBeta:
		unit := distuv.Beta{Alpha: d.Alpha, Beta: d.Beta}.Quantile(u)
		return d.Min + unit*(d.Max-d.Min)
	default:
		return 0
	}
}
