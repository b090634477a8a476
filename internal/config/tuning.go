package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/camanet/camanet/internal/platform/errs"
)

// Tuning carries every weight, threshold, and lookup table the
// allocation engine consumes. Tables are keyed by the string form of
// the domain enums; the consuming packages resolve them to typed
// tables at startup and refuse to start on unknown names.
type Tuning struct {
	Priority      PriorityTuning      `mapstructure:"priority"`
	Compatibility CompatibilityTuning `mapstructure:"compatibility"`
	Oxygen        OxygenTuning        `mapstructure:"oxygen"`
	Timers        TimerTuning         `mapstructure:"timers"`
}

// PriorityTuning configures the priority engine.
type PriorityTuning struct {
	// TypeWeights is the base weight per effective patient type.
	TypeWeights map[string]float64 `mapstructure:"type_weights"`
	// OriginWardBonus applies to hospitalized patients by the ward
	// type they are leaving.
	OriginWardBonus map[string]float64 `mapstructure:"origin_ward_bonus"`
	IVC             IVCTuning          `mapstructure:"ivc"`
	FRC             map[string]FRCRule `mapstructure:"frc"`
	// TimeBonus holds the three-phase waited-time step function per
	// patient type.
	TimeBonus map[string]TimePhases `mapstructure:"time_bonus"`
	// RescueConstant is the score forced once a patient has waited
	// past its type's rescue threshold.
	RescueConstant float64 `mapstructure:"rescue_constant"`
	// RescueThresholdHours is keyed by patient type.
	RescueThresholdHours map[string]float64 `mapstructure:"rescue_threshold_hours"`
}

// IVCTuning configures the clinical vulnerability index sub-bonuses.
type IVCTuning struct {
	AgeOver80       float64            `mapstructure:"age_over_80"`
	Age70To79       float64            `mapstructure:"age_70_to_79"`
	Age60To69       float64            `mapstructure:"age_60_to_69"`
	AgeUnder5       float64            `mapstructure:"age_under_5"`
	Age5To14        float64            `mapstructure:"age_5_to_14"`
	Monitoring      float64            `mapstructure:"monitoring"`
	Observation     float64            `mapstructure:"observation"`
	Complexity      map[string]float64 `mapstructure:"complexity"`
	Isolation       map[string]float64 `mapstructure:"isolation"`
	Pregnancy       float64            `mapstructure:"pregnancy"`
	SpecialCases    float64            `mapstructure:"special_cases"`
}

// FRCRule is one critical-requirement bonus: if any keyword appears in
// any of the patient's requirement lists (case-insensitive substring),
// the bonus applies.
type FRCRule struct {
	Bonus    float64  `mapstructure:"bonus"`
	Keywords []string `mapstructure:"keywords"`
}

// TimePhases is the non-linear waited-time step function: a flat bonus
// per phase, with phase boundaries in hours.
type TimePhases struct {
	Phase1Hours float64 `mapstructure:"phase1_hours"`
	Phase1Bonus float64 `mapstructure:"phase1_bonus"`
	Phase2Hours float64 `mapstructure:"phase2_hours"`
	Phase2Bonus float64 `mapstructure:"phase2_bonus"`
	Phase3Bonus float64 `mapstructure:"phase3_bonus"`
}

// CompatibilityTuning configures the compatibility checker tables.
type CompatibilityTuning struct {
	// ComplexityWards maps a complexity tier to the ward types that
	// may receive it.
	ComplexityWards map[string][]string `mapstructure:"complexity_wards"`
	// GeneralMedicineDiseases and SurgeryDiseases list the disease
	// types each ward accepts.
	GeneralMedicineDiseases []string `mapstructure:"general_medicine_diseases"`
	SurgeryDiseases         []string `mapstructure:"surgery_diseases"`
	// IndividualRoomIsolation lists isolation types that require an
	// individual room outside ICU/step-down/isolation wards.
	IndividualRoomIsolation []string `mapstructure:"individual_room_isolation"`
}

// OxygenTuning maps oxygen-support keywords to support tiers
// (0 none, 1 low, 2 step-down, 3 ICU) for de-escalation detection.
type OxygenTuning struct {
	KeywordTiers map[string]int `mapstructure:"keyword_tiers"`
}

// TimerTuning holds the sweep-enforced durations.
type TimerTuning struct {
	CleaningMinutes    int `mapstructure:"cleaning_minutes"`
	OxygenPauseMinutes int `mapstructure:"oxygen_pause_minutes"`
}

func (t TimerTuning) CleaningDuration() time.Duration {
	return time.Duration(t.CleaningMinutes) * time.Minute
}

func (t TimerTuning) OxygenPauseDuration() time.Duration {
	return time.Duration(t.OxygenPauseMinutes) * time.Minute
}

// LoadTuning reads the tuning file (YAML) when path is non-empty,
// otherwise returns the built-in defaults. The result is validated;
// a malformed table is fatal at startup.
func LoadTuning(path string) (*Tuning, error) {
	t := DefaultTuning()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "read tuning file")
		}
		if err := v.Unmarshal(t); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "unmarshal tuning file")
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks structural sanity. Enum-name resolution happens in
// the consuming packages; here we only enforce shape.
func (t *Tuning) Validate() error {
	if len(t.Priority.TypeWeights) == 0 {
		return errs.Configuration("priority.type_weights table is empty")
	}
	if t.Priority.RescueConstant <= 0 {
		return errs.Configuration("priority.rescue_constant must be positive, got %v", t.Priority.RescueConstant)
	}
	if len(t.Priority.RescueThresholdHours) == 0 {
		return errs.Configuration("priority.rescue_threshold_hours table is empty")
	}
	for typ, p := range t.Priority.TimeBonus {
		if p.Phase1Hours <= 0 || p.Phase2Hours <= p.Phase1Hours {
			return errs.Configuration("priority.time_bonus[%s]: phase thresholds must be ascending and positive", typ)
		}
	}
	for name, rule := range t.Priority.FRC {
		if len(rule.Keywords) == 0 {
			return errs.Configuration("priority.frc[%s]: keyword set is empty", name)
		}
	}
	if len(t.Compatibility.ComplexityWards) == 0 {
		return errs.Configuration("compatibility.complexity_wards table is empty")
	}
	if len(t.Oxygen.KeywordTiers) == 0 {
		return errs.Configuration("oxygen.keyword_tiers table is empty")
	}
	for kw, tier := range t.Oxygen.KeywordTiers {
		if tier < 0 || tier > 3 {
			return errs.Configuration("oxygen.keyword_tiers[%s]: tier %d out of range 0..3", kw, tier)
		}
	}
	if t.Timers.CleaningMinutes <= 0 {
		return errs.Configuration("timers.cleaning_minutes must be positive, got %d", t.Timers.CleaningMinutes)
	}
	if t.Timers.OxygenPauseMinutes <= 0 {
		return errs.Configuration("timers.oxygen_pause_minutes must be positive, got %d", t.Timers.OxygenPauseMinutes)
	}
	return nil
}

// DefaultTuning returns the built-in deployment defaults.
func DefaultTuning() *Tuning {
	return &Tuning{
		Priority: PriorityTuning{
			TypeWeights: map[string]float64{
				"hospitalized": 100,
				"emergency":    80,
				"referred":     60,
				"outpatient":   40,
			},
			OriginWardBonus: map[string]float64{
				"icu":       30,
				"step_down": 20,
				"isolation": 10,
			},
			IVC: IVCTuning{
				AgeOver80:   20,
				Age70To79:   15,
				Age60To69:   10,
				AgeUnder5:   18,
				Age5To14:    12,
				Monitoring:  8,
				Observation: 5,
				Complexity: map[string]float64{
					"high":   25,
					"medium": 15,
					"low":    8,
					"none":   0,
				},
				Isolation: map[string]float64{
					"airborne":  20,
					"protected": 16,
					"special":   14,
					"droplet":   10,
					"contact":   6,
				},
				Pregnancy:    10,
				SpecialCases: 6,
			},
			FRC: map[string]FRCRule{
				"vasoactive": {Bonus: 15, Keywords: []string{"vasoactive", "noradrenaline", "norepinephrine", "dopamine", "vasopressor"}},
				"sedation":   {Bonus: 12, Keywords: []string{"sedation", "sedated", "midazolam", "propofol"}},
				"oxygen":     {Bonus: 10, Keywords: []string{"oxygen", "ventilation", "cannula", "mask", "cpap", "bipap", "intubated"}},
				"invasive":   {Bonus: 10, Keywords: []string{"invasive", "catheter", "drain", "arterial line", "central line"}},
				"suction":    {Bonus: 8, Keywords: []string{"suction", "secretion", "aspiration"}},
			},
			TimeBonus: map[string]TimePhases{
				"emergency":    {Phase1Hours: 2, Phase1Bonus: 5, Phase2Hours: 6, Phase2Bonus: 15, Phase3Bonus: 30},
				"hospitalized": {Phase1Hours: 4, Phase1Bonus: 5, Phase2Hours: 12, Phase2Bonus: 12, Phase3Bonus: 25},
				"referred":     {Phase1Hours: 6, Phase1Bonus: 4, Phase2Hours: 18, Phase2Bonus: 10, Phase3Bonus: 20},
				"outpatient":   {Phase1Hours: 24, Phase1Bonus: 3, Phase2Hours: 72, Phase2Bonus: 8, Phase3Bonus: 15},
			},
			RescueConstant: 10000,
			RescueThresholdHours: map[string]float64{
				"emergency":    24,
				"hospitalized": 24,
				"referred":     48,
				"outpatient":   168,
			},
		},
		Compatibility: CompatibilityTuning{
			ComplexityWards: map[string][]string{
				"high":   {"icu"},
				"medium": {"step_down"},
				"low":    {"general_medicine", "surgery", "med_surg"},
				"none":   {"general_medicine", "surgery", "med_surg", "obstetrics", "pediatrics"},
			},
			GeneralMedicineDiseases: []string{"respiratory", "cardiac", "neurological", "digestive", "renal", "metabolic", "infectious", "oncological", "other"},
			SurgeryDiseases:         []string{"surgical", "traumatological", "digestive", "oncological", "other"},
			IndividualRoomIsolation: []string{"airborne", "protected", "special"},
		},
		Oxygen: OxygenTuning{
			KeywordTiers: map[string]int{
				"nasal cannula":        1,
				"oxygen mask":          1,
				"reservoir mask":       2,
				"high flow":            2,
				"cpap":                 2,
				"bipap":                2,
				"non-invasive":         2,
				"mechanical":           3,
				"invasive ventilation": 3,
				"intubated":            3,
			},
		},
		Timers: TimerTuning{
			CleaningMinutes:    45,
			OxygenPauseMinutes: 120,
		},
	}
}
