// Package priority scores waiting patients. The score is a pure
// function of the patient row and the current time, so equal inputs
// always reproduce the same ordering.
package priority

import (
	"fmt"
	"sort"
	"time"

	"github.com/camanet/camanet/internal/config"
	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// Engine computes priority scores from resolved tuning tables.
type Engine struct {
	typeWeights     map[patient.Type]float64
	originWardBonus map[registry.WardType]float64
	ivc             config.IVCTuning
	ivcComplexity   map[patient.ComplexityTier]float64
	ivcIsolation    map[patient.IsolationType]float64
	frc             map[string]config.FRCRule
	timeBonus       map[patient.Type]config.TimePhases
	rescueConstant  float64
	rescueThreshold map[patient.Type]float64
}

// NewEngine resolves the string-keyed tuning into typed tables. Unknown
// enum names are configuration errors.
func NewEngine(t config.PriorityTuning) (*Engine, error) {
	e := &Engine{
		typeWeights:     make(map[patient.Type]float64),
		originWardBonus: make(map[registry.WardType]float64),
		ivc:             t.IVC,
		ivcComplexity:   make(map[patient.ComplexityTier]float64),
		ivcIsolation:    make(map[patient.IsolationType]float64),
		frc:             t.FRC,
		timeBonus:       make(map[patient.Type]config.TimePhases),
		rescueConstant:  t.RescueConstant,
		rescueThreshold: make(map[patient.Type]float64),
	}
	for name, w := range t.TypeWeights {
		pt := patient.Type(name)
		if !pt.Valid() {
			return nil, errs.Configuration("type_weights: unknown patient type %q", name)
		}
		e.typeWeights[pt] = w
	}
	for name, b := range t.OriginWardBonus {
		wt := registry.WardType(name)
		if !wt.Valid() {
			return nil, errs.Configuration("origin_ward_bonus: unknown ward type %q", name)
		}
		e.originWardBonus[wt] = b
	}
	for name, b := range t.IVC.Complexity {
		ct := patient.ComplexityTier(name)
		switch ct {
		case patient.ComplexityNone, patient.ComplexityLow, patient.ComplexityMedium, patient.ComplexityHigh:
		default:
			return nil, errs.Configuration("ivc.complexity: unknown tier %q", name)
		}
		e.ivcComplexity[ct] = b
	}
	for name, b := range t.IVC.Isolation {
		it := patient.IsolationType(name)
		switch it {
		case patient.IsolationContact, patient.IsolationDroplet, patient.IsolationAirborne,
			patient.IsolationProtected, patient.IsolationSpecial:
		default:
			return nil, errs.Configuration("ivc.isolation: unknown isolation type %q", name)
		}
		e.ivcIsolation[it] = b
	}
	for name, p := range t.TimeBonus {
		pt := patient.Type(name)
		if !pt.Valid() {
			return nil, errs.Configuration("time_bonus: unknown patient type %q", name)
		}
		e.timeBonus[pt] = p
	}
	for name, h := range t.RescueThresholdHours {
		pt := patient.Type(name)
		if !pt.Valid() {
			return nil, errs.Configuration("rescue_threshold_hours: unknown patient type %q", name)
		}
		e.rescueThreshold[pt] = h
	}
	return e, nil
}

// Breakdown is the explainable decomposition of one score.
type Breakdown struct {
	TypeWeight      float64  `json:"type_weight"`
	OriginWardBonus float64  `json:"origin_ward_bonus"`
	IVC             float64  `json:"ivc"`
	FRC             float64  `json:"frc"`
	TimeBonus       float64  `json:"time_bonus"`
	Rescued         bool     `json:"rescued"`
	Total           float64  `json:"total"`
	Notes           []string `json:"notes"`
}

// Score returns the patient's priority at the given instant.
func (e *Engine) Score(p *patient.Patient, now time.Time) float64 {
	return e.Explain(p, now).Total
}

// Explain computes the score with its full component breakdown.
func (e *Engine) Explain(p *patient.Patient, now time.Time) Breakdown {
	var b Breakdown
	typ := p.EffectiveType()

	waited := p.WaitedHours(now)
	if threshold, ok := e.rescueThreshold[typ]; ok && waited > threshold {
		b.Rescued = true
		b.Total = e.rescueConstant
		b.Notes = append(b.Notes, fmt.Sprintf("waited %.1fh over %s rescue threshold %.0fh", waited, typ, threshold))
		return b
	}

	b.TypeWeight = e.typeWeights[typ]
	if typ != p.Type {
		b.Notes = append(b.Notes, fmt.Sprintf("scored as %s while holding a bed (intake type %s)", typ, p.Type))
	}

	if typ == patient.TypeHospitalized && p.CurrentWardType != nil {
		b.OriginWardBonus = e.originWardBonus[*p.CurrentWardType]
	}

	b.IVC = e.vulnerability(p, &b)
	b.FRC = e.criticalRequirements(p, &b)
	b.TimeBonus = e.waitedBonus(typ, waited)

	b.Total = b.TypeWeight + b.OriginWardBonus + b.IVC + b.FRC + b.TimeBonus
	return b
}

func (e *Engine) vulnerability(p *patient.Patient, b *Breakdown) float64 {
	var sum float64
	switch {
	case p.Age >= 80:
		sum += e.ivc.AgeOver80
	case p.Age >= 70:
		sum += e.ivc.Age70To79
	case p.Age >= 60:
		sum += e.ivc.Age60To69
	case p.Age < 5:
		sum += e.ivc.AgeUnder5
	case p.Age < 15:
		sum += e.ivc.Age5To14
	}
	if p.HasRequirementKeyword([]string{"monitor"}) {
		sum += e.ivc.Monitoring
	}
	if p.HasRequirementKeyword([]string{"observation"}) {
		sum += e.ivc.Observation
	}
	sum += e.ivcComplexity[p.ComplexityTier()]
	sum += e.ivcIsolation[p.Isolation]
	if p.Pregnant {
		sum += e.ivc.Pregnancy
	}
	if len(p.SpecialCases) > 0 {
		sum += e.ivc.SpecialCases
		b.Notes = append(b.Notes, fmt.Sprintf("%d special cases", len(p.SpecialCases)))
	}
	return sum
}

func (e *Engine) criticalRequirements(p *patient.Patient, b *Breakdown) float64 {
	names := make([]string, 0, len(e.frc))
	for name := range e.frc {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		if p.HasRequirementKeyword(e.frc[name].Keywords) {
			sum += e.frc[name].Bonus
			b.Notes = append(b.Notes, "critical requirement: "+name)
		}
	}
	return sum
}

// waitedBonus is the three-phase step function: a flat bonus per phase
// by hours waited, phase boundaries per type.
func (e *Engine) waitedBonus(typ patient.Type, waited float64) float64 {
	phases, ok := e.timeBonus[typ]
	if !ok || waited <= 0 {
		return 0
	}
	switch {
	case waited <= phases.Phase1Hours:
		return phases.Phase1Bonus
	case waited <= phases.Phase2Hours:
		return phases.Phase2Bonus
	default:
		return phases.Phase3Bonus
	}
}
