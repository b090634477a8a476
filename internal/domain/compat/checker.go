// Package compat decides whether a patient may occupy a bed. The rules
// are pure functions over the patient, the bed's room/ward context, and
// tables resolved from configuration at startup.
package compat

import (
	"fmt"

	"github.com/camanet/camanet/internal/config"
	"github.com/camanet/camanet/internal/domain/patient"
	"github.com/camanet/camanet/internal/domain/registry"
	"github.com/camanet/camanet/internal/platform/errs"
)

// Checker evaluates patient/bed compatibility against resolved tables.
type Checker struct {
	complexityWards map[patient.ComplexityTier]map[registry.WardType]bool
	generalMedicine map[patient.DiseaseType]bool
	surgery         map[patient.DiseaseType]bool
	individualRoom  map[patient.IsolationType]bool
}

// NewChecker resolves the string-keyed configuration tables into typed
// sets. Unknown ward, disease, or isolation names are configuration
// errors.
func NewChecker(t config.CompatibilityTuning) (*Checker, error) {
	c := &Checker{
		complexityWards: make(map[patient.ComplexityTier]map[registry.WardType]bool),
		generalMedicine: make(map[patient.DiseaseType]bool),
		surgery:         make(map[patient.DiseaseType]bool),
		individualRoom:  make(map[patient.IsolationType]bool),
	}
	for tier, wards := range t.ComplexityWards {
		ct := patient.ComplexityTier(tier)
		switch ct {
		case patient.ComplexityNone, patient.ComplexityLow, patient.ComplexityMedium, patient.ComplexityHigh:
		default:
			return nil, errs.Configuration("complexity_wards: unknown tier %q", tier)
		}
		set := make(map[registry.WardType]bool, len(wards))
		for _, w := range wards {
			wt := registry.WardType(w)
			if !wt.Valid() {
				return nil, errs.Configuration("complexity_wards[%s]: unknown ward type %q", tier, w)
			}
			set[wt] = true
		}
		c.complexityWards[ct] = set
	}
	var err error
	if c.generalMedicine, err = diseaseSet("general_medicine_diseases", t.GeneralMedicineDiseases); err != nil {
		return nil, err
	}
	if c.surgery, err = diseaseSet("surgery_diseases", t.SurgeryDiseases); err != nil {
		return nil, err
	}
	for _, iso := range t.IndividualRoomIsolation {
		it := patient.IsolationType(iso)
		switch it {
		case patient.IsolationContact, patient.IsolationDroplet, patient.IsolationAirborne,
			patient.IsolationProtected, patient.IsolationSpecial:
		default:
			return nil, errs.Configuration("individual_room_isolation: unknown isolation type %q", iso)
		}
		c.individualRoom[it] = true
	}
	return c, nil
}

func diseaseSet(table string, names []string) (map[patient.DiseaseType]bool, error) {
	set := make(map[patient.DiseaseType]bool, len(names))
	for _, n := range names {
		dt := patient.DiseaseType(n)
		switch dt {
		case patient.DiseaseRespiratory, patient.DiseaseCardiac, patient.DiseaseNeurological,
			patient.DiseaseDigestive, patient.DiseaseRenal, patient.DiseaseMetabolic,
			patient.DiseaseInfectious, patient.DiseaseOncological, patient.DiseaseSurgical,
			patient.DiseaseTraumatological, patient.DiseaseObstetric, patient.DiseaseOther:
		default:
			return nil, errs.Configuration("%s: unknown disease type %q", table, n)
		}
		set[dt] = true
	}
	return set, nil
}

// IsCompatible reports whether the patient may occupy the bed. It is
// false exactly when Evaluate returns at least one reason.
func (c *Checker) IsCompatible(p *patient.Patient, bc *registry.BedContext) bool {
	ok, _ := c.Evaluate(p, bc)
	return ok
}

// Evaluate runs every rule and returns all rejection reasons. A nil
// reason slice means the pair is compatible.
func (c *Checker) Evaluate(p *patient.Patient, bc *registry.BedContext) (bool, []string) {
	var reasons []string
	ward := bc.Ward.Type
	room := bc.Room

	// Rule 1: complexity tier must map to the ward type.
	tier := p.ComplexityTier()
	if allowed := c.complexityWards[tier]; !allowed[ward] {
		reasons = append(reasons, fmt.Sprintf("complexity tier %s not admitted in %s ward", tier, ward))
	}

	// Rule 2: pediatric wards and pediatric patients are exclusive to
	// each other.
	pediatric := p.AgeCategory() == patient.AgePediatric
	if pediatric && ward != registry.WardPediatrics {
		reasons = append(reasons, "pediatric patient requires pediatrics ward")
	}
	if !pediatric && ward == registry.WardPediatrics {
		reasons = append(reasons, "pediatrics ward admits pediatric patients only")
	}

	// Rule 3: obstetrics sex requirement and room sex pinning.
	if ward == registry.WardObstetrics && p.Sex != registry.SexFemale && !p.Pregnant {
		reasons = append(reasons, "obstetrics ward requires female or pregnant patient")
	}
	if room.AssignedSex != nil && *room.AssignedSex != p.Sex {
		reasons = append(reasons, fmt.Sprintf("room is assigned to %s patients", *room.AssignedSex))
	}

	// Rule 4: strict isolation needs an individual room outside
	// ICU/step-down/isolation wards.
	if c.individualRoom[p.Isolation] && !room.IsIndividual && !wardHandlesIsolation(ward) {
		reasons = append(reasons, fmt.Sprintf("%s isolation requires an individual room", p.Isolation))
	}

	// Rule 5: disease-type tables. ICU, step-down, isolation and
	// pediatrics wards accept any disease type.
	if !diseaseExempt(ward) {
		switch {
		case p.DiseaseType == patient.DiseaseObstetric && ward != registry.WardObstetrics:
			reasons = append(reasons, "obstetric disease requires obstetrics ward")
		case ward == registry.WardObstetrics && p.DiseaseType != patient.DiseaseObstetric && !p.Pregnant:
			reasons = append(reasons, "obstetrics ward accepts obstetric disease or pregnant patients only")
		case ward == registry.WardGeneralMedicine && !c.generalMedicine[p.DiseaseType]:
			reasons = append(reasons, fmt.Sprintf("%s disease not accepted in general medicine ward", p.DiseaseType))
		case ward == registry.WardSurgery && !c.surgery[p.DiseaseType]:
			reasons = append(reasons, fmt.Sprintf("%s disease not accepted in surgery ward", p.DiseaseType))
		case ward == registry.WardMedSurg && p.DiseaseType == patient.DiseaseObstetric:
			reasons = append(reasons, "obstetric disease not accepted in combined med-surg ward")
		}
	}

	return len(reasons) == 0, reasons
}

func wardHandlesIsolation(w registry.WardType) bool {
	return w == registry.WardICU || w == registry.WardStepDown || w == registry.WardIsolation
}

func diseaseExempt(w registry.WardType) bool {
	return w == registry.WardICU || w == registry.WardStepDown ||
		w == registry.WardIsolation || w == registry.WardPediatrics
}
