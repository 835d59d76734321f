package model

import "time"

// Stage is a position on the sales board.
type Stage string

const (
	StageNew                 Stage = "New Lead"
	StageContacted           Stage = "Contacted"
	StageInspectionScheduled Stage = "Inspection Scheduled"
	StageProposalSent        Stage = "Proposal Sent"
	StageClosedWon           Stage = "Closed - Won"
	StageClosedLost          Stage = "Closed - Lost"
)

// Stages lists every stage in board order.
var Stages = []Stage{
	StageNew,
	StageContacted,
	StageInspectionScheduled,
	StageProposalSent,
	StageClosedWon,
	StageClosedLost,
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// Sentinel values stored in place of a missing field so consumers never see
// an empty value.
const (
	AddressNotSpecified      = "Address not specified"
	PhoneNotSpecified        = "Phone not specified"
	ClaimNumberNotSpecified  = "Claim number not specified"
	ClaimCompanyNotSpecified = "Insurance company not specified"
	FirstNameUnspecified     = "Unspecified"
	LastNameUnspecified      = "Unspecified"
)

// Lead is a prospective customer inquiry tracked on the sales board.
type Lead struct {
	ID                       string     `json:"id" yaml:"id"`
	Timestamp                time.Time  `json:"timestamp" yaml:"timestamp"`
	Stage                    Stage      `json:"stage" yaml:"stage"`
	LastStageUpdateTimestamp time.Time  `json:"lastStageUpdateTimestamp" yaml:"last_stage_update_timestamp"`
	FirstName                string     `json:"firstName" yaml:"first_name"`
	LastName                 string     `json:"lastName" yaml:"last_name"`
	Address                  string     `json:"address" yaml:"address"`
	Sender                   string     `json:"sender" yaml:"sender"`
	PhoneNumber              string     `json:"phoneNumber,omitempty" yaml:"phone_number,omitempty"`
	ClaimNumber              string     `json:"claimNumber,omitempty" yaml:"claim_number,omitempty"`
	ClaimCompany             string     `json:"claimCompany,omitempty" yaml:"claim_company,omitempty"`
	NextFollowUpDate         string     `json:"nextFollowUpDate,omitempty" yaml:"next_follow_up_date,omitempty"`
	ClaimInfo                string     `json:"claimInfo,omitempty" yaml:"claim_info,omitempty"`
	OriginalMessage          string     `json:"originalMessage,omitempty" yaml:"original_message,omitempty"`
	LastModifiedTimestamp    *time.Time `json:"lastModifiedTimestamp,omitempty" yaml:"last_modified_timestamp,omitempty"`
}

// Identity returns the deduplication key of the lead.
func (l Lead) Identity() IdentityKey {
	return NewIdentityKey(l.FirstName, l.LastName, l.Address)
}

// InboundMessage is one chat message received from the messaging provider.
// It lives only for the duration of a pipeline run.
type InboundMessage struct {
	ID         string    `json:"id,omitempty"`
	SenderName string    `json:"name"`
	Text       string    `json:"text"`
	GroupID    string    `json:"group_id,omitempty"`
	SenderType string    `json:"sender_type,omitempty"`
	System     bool      `json:"system,omitempty"`
	ReceivedAt time.Time `json:"-"`
}
