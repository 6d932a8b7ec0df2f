package domain

// SectionCode identifies one of the five compliance assessment sections.
// The scoring engine that fills these in is a separate service; this is
// the shared wire contract only.
type SectionCode string

const (
	SectionLabor       SectionCode = "LABOR"
	SectionHealthSafe  SectionCode = "HEALTH_SAFETY"
	SectionEnvironment SectionCode = "ENVIRONMENT"
	SectionEthics      SectionCode = "ETHICS"
	SectionManagement  SectionCode = "MANAGEMENT"
)

// Sections lists all assessment sections in report order.
var Sections = []SectionCode{
	SectionLabor,
	SectionHealthSafe,
	SectionEnvironment,
	SectionEthics,
	SectionManagement,
}

// Grade is the banded result of a scored section.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// gradeThresholds maps each grade to its minimum score, in percent.
// A section scoring below every threshold is graded D.
var gradeThresholds = []struct {
	grade Grade
	min   float64
}{
	{GradeA, 90},
	{GradeB, 75},
	{GradeC, 60},
}

// GradeForScore returns the grade band for a section score.
func GradeForScore(score float64) Grade {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return GradeD
}
