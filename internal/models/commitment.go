package models

import "time"

type CommitmentKind string

const (
	CommitmentHiredService  CommitmentKind = "hired_service"
	CommitmentOwnedProject  CommitmentKind = "owned_project"
	CommitmentCollaboration CommitmentKind = "collaboration"
)

type Commitment struct {
	Domain       Domain         `bson:"domain" json:"domain"`
	Kind         CommitmentKind `bson:"kind" json:"kind"`
	ID           string         `bson:"id" json:"id"`
	Title        string         `bson:"title" json:"title"`
	Counterparty string         `bson:"counterparty,omitempty" json:"counterparty,omitempty"`
}

// CommitmentSnapshot records a user's active engagements at sanction time.
type CommitmentSnapshot struct {
	HiredServices  []Commitment `bson:"hired_services" json:"hired_services"`
	OwnedProjects  []Commitment `bson:"owned_projects" json:"owned_projects"`
	Collaborations []Commitment `bson:"collaborations" json:"collaborations"`
	CapturedAt     time.Time    `bson:"captured_at" json:"captured_at"`
}

func NewCommitmentSnapshot(items []Commitment, at time.Time) CommitmentSnapshot {
	s := CommitmentSnapshot{
		HiredServices:  []Commitment{},
		OwnedProjects:  []Commitment{},
		Collaborations: []Commitment{},
		CapturedAt:     at,
	}
	for _, c := range items {
		switch c.Kind {
		case CommitmentHiredService:
			s.HiredServices = append(s.HiredServices, c)
		case CommitmentOwnedProject:
			s.OwnedProjects = append(s.OwnedProjects, c)
		default:
			s.Collaborations = append(s.Collaborations, c)
		}
	}
	return s
}

func (s CommitmentSnapshot) Total() int {
	return len(s.HiredServices) + len(s.OwnedProjects) + len(s.Collaborations)
}

func (s CommitmentSnapshot) All() []Commitment {
	out := make([]Commitment, 0, s.Total())
	out = append(out, s.HiredServices...)
	out = append(out, s.OwnedProjects...)
	return append(out, s.Collaborations...)
}
