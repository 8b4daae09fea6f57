package model

// Funnel stages a tracking event can report.
const (
	StageOpened    = "opened"
	StageClicked   = "clicked"
	StageSubmitted = "submitted"
	StageReported  = "reported"
)

// Stage describes where a funnel stage is stored.
type Stage struct {
	Name           string
	TimestampField string
	CounterField   string
	// Rank orders stages that advance the target status; zero means the stage never does.
	Rank int
}

var stages = map[string]Stage{
	StageOpened:    {Name: StageOpened, TimestampField: "opened_at", CounterField: "emails_opened", Rank: 2},
	StageClicked:   {Name: StageClicked, TimestampField: "clicked_at", CounterField: "links_clicked", Rank: 3},
	StageSubmitted: {Name: StageSubmitted, TimestampField: "submitted_at", CounterField: "credentials_submitted", Rank: 4},
	StageReported:  {Name: StageReported, TimestampField: "reported_at", CounterField: "emails_reported"},
}

var statusRank = map[string]int{
	TargetPending:   0,
	TargetFailed:    0,
	TargetSent:      1,
	TargetOpened:    2,
	TargetClicked:   3,
	TargetSubmitted: 4,
}

func LookupStage(name string) (Stage, bool) {
	s, ok := stages[name]
	return s, ok
}

// StatusesBehind returns the target statuses a stage moves forward from.
// It is empty for stages that do not touch the status.
func (s Stage) StatusesBehind() []string {
	if s.Rank == 0 {
		return []string{}
	}
	var out []string
	for _, status := range []string{TargetPending, TargetFailed, TargetSent, TargetOpened, TargetClicked, TargetSubmitted} {
		if statusRank[status] < s.Rank {
			out = append(out, status)
		}
	}
	return out
}
