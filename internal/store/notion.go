package store

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/notion"
)

// Notion database property names.
const (
	propName            = "Name"
	propLeadID          = "Lead ID"
	propStage           = "Stage"
	propCreated         = "Created"
	propStageUpdated    = "Stage Updated"
	propLastModified    = "Last Modified"
	propFirstName       = "First Name"
	propLastName        = "Last Name"
	propAddress         = "Address"
	propSender          = "Sender"
	propPhone           = "Phone"
	propClaimNumber     = "Claim Number"
	propClaimCompany    = "Insurance Company"
	propNextFollowUp    = "Next Follow Up"
	propClaimInfo       = "Claim Info"
	propOriginalMessage = "Original Message"
)

// NotionStore keeps leads as pages of a Notion database so the sales team can
// work the board directly in Notion.
type NotionStore struct {
	client notion.Client
	dbID   string
}

// NewNotion creates a NotionStore over the given database.
func NewNotion(client notion.Client, dbID string) *NotionStore {
	return &NotionStore{client: client, dbID: dbID}
}

// Migrate is a no-op; the database schema is managed in Notion.
func (s *NotionStore) Migrate(context.Context) error { return nil }

func (s *NotionStore) Close() error { return nil }

func (s *NotionStore) Ping(ctx context.Context) error {
	_, err := s.client.GetDatabase(ctx, s.dbID)
	return eris.Wrap(err, "notion store: ping")
}

func (s *NotionStore) Save(ctx context.Context, lead model.Lead) (model.Lead, error) {
	if err := validateForSave(lead); err != nil {
		return model.Lead{}, err
	}
	props := leadProperties(lead)
	props[propLeadID] = notion.RichText(lead.ID)
	props[propCreated] = notion.Date(&lead.Timestamp)

	_, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: props,
	})
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "notion store: save lead %s", lead.ID)
	}
	return lead, nil
}

func (s *NotionStore) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	page, err := notion.FindPageByText(ctx, s.client, s.dbID, propLeadID, lead.ID)
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "notion store: update lead %s", lead.ID)
	}
	if page == nil {
		return model.Lead{}, eris.Wrapf(ErrNotFound, "notion store: update lead %s", lead.ID)
	}
	_, err = s.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{
		Properties: leadProperties(lead),
	})
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "notion store: update lead %s", lead.ID)
	}
	return lead, nil
}

func (s *NotionStore) List(ctx context.Context) ([]model.Lead, error) {
	pages, err := notion.QueryAll(ctx, s.client, s.dbID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: propCreated, Direction: notionapi.SortOrderDESC},
		},
		PageSize: 100,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion store: list leads")
	}
	leads := make([]model.Lead, 0, len(pages))
	for _, p := range pages {
		l := leadFromPage(p)
		if l.ID == "" {
			// Rows added by hand in Notion carry no lead id.
			continue
		}
		leads = append(leads, l)
	}
	sortNewestFirst(leads)
	return leads, nil
}

func (s *NotionStore) FindByIdentity(ctx context.Context, firstName, lastName, address string) (*model.Lead, error) {
	return findByIdentity(ctx, s.List, firstName, lastName, address)
}

// leadProperties maps the mutable columns of a lead to page properties.
func leadProperties(l model.Lead) notionapi.Properties {
	return notionapi.Properties{
		propName:            notion.Title(displayName(l)),
		propStage:           notion.Status(string(l.Stage)),
		propStageUpdated:    notion.Date(&l.LastStageUpdateTimestamp),
		propLastModified:    notion.Date(l.LastModifiedTimestamp),
		propFirstName:       notion.RichText(l.FirstName),
		propLastName:        notion.RichText(l.LastName),
		propAddress:         notion.RichText(l.Address),
		propSender:          notion.RichText(l.Sender),
		propPhone:           notion.RichText(l.PhoneNumber),
		propClaimNumber:     notion.RichText(l.ClaimNumber),
		propClaimCompany:    notion.RichText(l.ClaimCompany),
		propNextFollowUp:    notion.RichText(l.NextFollowUpDate),
		propClaimInfo:       notion.RichText(l.ClaimInfo),
		propOriginalMessage: notion.RichText(l.OriginalMessage),
	}
}

func leadFromPage(p notionapi.Page) model.Lead {
	props := p.Properties
	l := model.Lead{
		ID:                    notion.PlainText(props, propLeadID),
		Stage:                 model.Stage(notion.StatusName(props, propStage)),
		FirstName:             notion.PlainText(props, propFirstName),
		LastName:              notion.PlainText(props, propLastName),
		Address:               notion.PlainText(props, propAddress),
		Sender:                notion.PlainText(props, propSender),
		PhoneNumber:           notion.PlainText(props, propPhone),
		ClaimNumber:           notion.PlainText(props, propClaimNumber),
		ClaimCompany:          notion.PlainText(props, propClaimCompany),
		NextFollowUpDate:      notion.PlainText(props, propNextFollowUp),
		ClaimInfo:             notion.PlainText(props, propClaimInfo),
		OriginalMessage:       notion.PlainText(props, propOriginalMessage),
		LastModifiedTimestamp: notion.DateValue(props, propLastModified),
	}
	if t := notion.DateValue(props, propCreated); t != nil {
		l.Timestamp = *t
	} else {
		l.Timestamp = p.CreatedTime
	}
	if t := notion.DateValue(props, propStageUpdated); t != nil {
		l.LastStageUpdateTimestamp = *t
	} else {
		l.LastStageUpdateTimestamp = l.Timestamp
	}
	if !l.Stage.Valid() {
		l.Stage = model.StageNew
	}
	return l
}

func displayName(l model.Lead) string {
	first, last := l.FirstName, l.LastName
	if first == model.FirstNameUnspecified {
		first = ""
	}
	if last == model.LastNameUnspecified {
		last = ""
	}
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return model.LastNameUnspecified
}

