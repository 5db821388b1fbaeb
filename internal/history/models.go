package history

import (
	"time"

	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// Run is one drained batch
type Run struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Capacity  int       `json:"capacity" gorm:"not null"`
	StartedAt time.Time `json:"startedAt" gorm:"not null;index"`
	EndedAt   time.Time `json:"endedAt" gorm:"not null"`
	Outcomes  []Outcome `json:"outcomes" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (Run) TableName() string {
	return "runs"
}

// Outcome is the stored result of one session of a run
type Outcome struct {
	ID        uint                 `json:"-" gorm:"primaryKey"`
	RunID     string               `json:"-" gorm:"not null;index"`
	Position  int                  `json:"-" gorm:"not null"`
	Name      string               `json:"name" gorm:"not null"`
	Status    models.OutcomeStatus `json:"status" gorm:"not null;index"`
	Error     string               `json:"error,omitempty"`
	StartedAt *time.Time           `json:"startedAt,omitempty"`
	EndedAt   time.Time            `json:"endedAt"`
}

func (Outcome) TableName() string {
	return "outcomes"
}

func fromReport(report models.BatchReport) Run {
	run := Run{
		ID:        report.RunID,
		Capacity:  report.Capacity,
		StartedAt: report.StartedAt,
		EndedAt:   report.EndedAt,
		Outcomes:  make([]Outcome, 0, len(report.Outcomes)),
	}
	for i, o := range report.Outcomes {
		out := Outcome{
			RunID:    report.RunID,
			Position: i,
			Name:     o.Name,
			Status:   o.Status,
			Error:    o.Error,
			EndedAt:  o.EndedAt,
		}
		if !o.StartedAt.IsZero() {
			started := o.StartedAt
			out.StartedAt = &started
		}
		run.Outcomes = append(run.Outcomes, out)
	}
	return run
}

// Report converts the stored run back into a batch report
func (r Run) Report() models.BatchReport {
	report := models.BatchReport{
		RunID:     r.ID,
		Capacity:  r.Capacity,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Outcomes:  make([]models.SessionOutcome, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		out := models.SessionOutcome{
			Name:    o.Name,
			Status:  o.Status,
			Error:   o.Error,
			EndedAt: o.EndedAt,
		}
		if o.StartedAt != nil {
			out.StartedAt = *o.StartedAt
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report
}
