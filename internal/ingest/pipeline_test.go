package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/assemble"
	"github.com/sells-group/lead-intake/internal/dedup"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/monitoring"
	"github.com/sells-group/lead-intake/internal/resolve"
	"github.com/sells-group/lead-intake/internal/store"
)

type stubResolver struct {
	fields model.ExtractedFields
	path   model.ParsePath
}

func (s stubResolver) Resolve(_ context.Context, text string) resolve.Result {
	f := s.fields
	f.RawMessage = model.Some(text)
	return resolve.Result{Fields: f, Path: s.path}
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Save(ctx context.Context, lead model.Lead) (model.Lead, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(model.Lead), args.Error(1)
}

func (m *mockWriter) Update(ctx context.Context, lead model.Lead) (model.Lead, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(model.Lead), args.Error(1)
}

type noDuplicate struct{}

func (noDuplicate) FindDuplicate(context.Context, string, string, string) *model.Lead { return nil }

type fixedDuplicate struct{ lead model.Lead }

func (d fixedDuplicate) FindDuplicate(context.Context, string, string, string) *model.Lead {
	l := d.lead
	return &l
}

var received = time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)

func seqIDs(ids ...string) assemble.Option {
	i := 0
	return assemble.WithIDFunc(func() string {
		id := ids[i%len(ids)]
		i++
		return id
	})
}

// newIntakePipeline wires the real extractor-only resolver, dedup and a
// memory store.
func newIntakePipeline(t *testing.T, events *monitoring.EventLog) (*Pipeline, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	p := NewPipeline(
		resolve.New(nil, resolve.Config{Timeout: time.Second}),
		dedup.New(mem, time.Second),
		assemble.New(seqIDs("lead-1", "lead-2", "lead-3")),
		mem,
		PipelineConfig{Events: events},
	)
	return p, mem
}

func TestPipeline_CreatesLeadFromExtractor(t *testing.T) {
	events := monitoring.NewEventLog(10)
	p, mem := newIntakePipeline(t, events)

	rep := p.Run(context.Background(), model.InboundMessage{
		SenderName: "Mike",
		Text:       "John Smith at 123 Main St, storm damage to roof",
		ReceivedAt: received,
	})

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeCreated, rep.Outcome)
	assert.Equal(t, model.ParsePathExtractor, rep.Path)

	leads, err := mem.List(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)
	l := leads[0]
	assert.Equal(t, "lead-1", l.ID)
	assert.Equal(t, "John", l.FirstName)
	assert.Equal(t, "Smith", l.LastName)
	assert.Contains(t, l.Address, "123 Main St")
	assert.Contains(t, l.ClaimInfo, "storm")
	assert.Equal(t, "Mike", l.Sender)
	assert.Equal(t, model.StageNew, l.Stage)
	assert.Equal(t, received, l.Timestamp)
	assert.Equal(t, model.PhoneNotSpecified, l.PhoneNumber)

	counts := events.Counts(time.Time{})
	assert.Equal(t, 1, counts[monitoring.EventParsed])
	assert.Equal(t, 1, counts[monitoring.EventCreated])
}

func TestPipeline_DuplicateUpdatesExistingLead(t *testing.T) {
	p, mem := newIntakePipeline(t, nil)
	ctx := context.Background()

	first := p.Run(ctx, model.InboundMessage{
		SenderName: "Mike",
		Text:       "John Smith at 123 Main St, storm damage to roof",
		ReceivedAt: received,
	})
	require.Equal(t, OutcomeCreated, first.Outcome)

	second := p.Run(ctx, model.InboundMessage{
		SenderName: "Dana",
		Text:       "John Smith at 123  MAIN ST, phone 555-123-4567",
		ReceivedAt: received.Add(time.Hour),
	})
	require.NoError(t, second.Err)
	assert.Equal(t, OutcomeUpdated, second.Outcome)

	leads, err := mem.List(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 1, "duplicate must not create a second lead")

	l := leads[0]
	assert.Equal(t, "lead-1", l.ID)
	assert.Equal(t, received, l.Timestamp)
	assert.Equal(t, "555-123-4567", l.PhoneNumber)
	assert.Contains(t, l.ClaimInfo, "storm", "earlier optional field is kept")
	assert.Contains(t, l.OriginalMessage, "storm damage to roof")
	assert.Contains(t, l.OriginalMessage, "Update from Dana")
	require.NotNil(t, l.LastModifiedTimestamp)
	assert.Equal(t, received.Add(time.Hour), *l.LastModifiedTimestamp)
}

func TestPipeline_DifferentAddressCreatesSecondLead(t *testing.T) {
	p, mem := newIntakePipeline(t, nil)
	ctx := context.Background()

	p.Run(ctx, model.InboundMessage{SenderName: "Mike", Text: "John Smith at 123 Main St", ReceivedAt: received})
	rep := p.Run(ctx, model.InboundMessage{SenderName: "Mike", Text: "John Smith at 77 Oak Ave", ReceivedAt: received.Add(time.Minute)})

	assert.Equal(t, OutcomeCreated, rep.Outcome)
	assert.Equal(t, "lead-2", rep.Lead.ID)
	leads, err := mem.List(ctx)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestPipeline_NoNameCreatesNothing(t *testing.T) {
	events := monitoring.NewEventLog(10)
	w := new(mockWriter)
	p := NewPipeline(stubResolver{path: model.ParsePathExtractor}, noDuplicate{}, assemble.New(), w, PipelineConfig{Events: events})

	rep := p.Run(context.Background(), model.InboundMessage{SenderName: "Mike", Text: "storm damage, call back", ReceivedAt: received})

	assert.Equal(t, OutcomeNoName, rep.Outcome)
	assert.Empty(t, rep.Lead.ID)
	w.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 1, events.Counts(time.Time{})[monitoring.EventNoName])
}

func TestPipeline_SaveFailureIsReportedNotRetried(t *testing.T) {
	events := monitoring.NewEventLog(10)
	w := new(mockWriter)
	w.On("Save", mock.Anything, mock.Anything).Return(model.Lead{}, errors.New("db down")).Once()

	fields := model.ExtractedFields{FirstName: model.Some("Ann"), LastName: model.Some("Lee")}
	p := NewPipeline(stubResolver{fields: fields, path: model.ParsePathAI}, noDuplicate{}, assemble.New(seqIDs("x1")), w, PipelineConfig{Events: events})

	rep := p.Run(context.Background(), model.InboundMessage{SenderName: "Mike", Text: "Ann Lee", ReceivedAt: received})

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	require.Error(t, rep.Err)
	assert.Equal(t, "x1", rep.Lead.ID)
	w.AssertNumberOfCalls(t, "Save", 1)

	recent := events.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, monitoring.EventFailed, recent[0].Type)
	assert.Equal(t, "db down", recent[0].Detail)
}

func TestPipeline_UpdateUsesExistingLead(t *testing.T) {
	existing := model.Lead{
		ID:              "old",
		Timestamp:       received.Add(-24 * time.Hour),
		Stage:           model.StageContacted,
		FirstName:       "Ann",
		LastName:        "Lee",
		Address:         model.AddressNotSpecified,
		PhoneNumber:     model.PhoneNotSpecified,
		OriginalMessage: "Ann Lee",
	}
	w := new(mockWriter)
	w.On("Update", mock.Anything, mock.MatchedBy(func(l model.Lead) bool {
		return l.ID == "old" && l.Stage == model.StageContacted && l.PhoneNumber == "555-000-1111"
	})).Return(model.Lead{ID: "old"}, nil).Once()

	fields := model.ExtractedFields{
		FirstName:   model.Some("Ann"),
		LastName:    model.Some("Lee"),
		PhoneNumber: model.Some("555-000-1111"),
	}
	p := NewPipeline(stubResolver{fields: fields, path: model.ParsePathAI}, fixedDuplicate{existing}, assemble.New(), w, PipelineConfig{})

	rep := p.Run(context.Background(), model.InboundMessage{SenderName: "Dana", Text: "Ann Lee 555-000-1111", ReceivedAt: received})

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeUpdated, rep.Outcome)
	w.AssertExpectations(t)
	w.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPipeline_SkipDuplicatesLeavesLeadAlone(t *testing.T) {
	existing := model.Lead{ID: "old", FirstName: "Ann", LastName: "Lee", OriginalMessage: "Ann Lee"}
	w := new(mockWriter)
	events := monitoring.NewEventLog(10)
	fields := model.ExtractedFields{
		FirstName:   model.Some("Ann"),
		LastName:    model.Some("Lee"),
		PhoneNumber: model.Some("555-000-1111"),
	}
	p := NewPipeline(stubResolver{fields: fields, path: model.ParsePathExtractor}, fixedDuplicate{existing}, assemble.New(), w,
		PipelineConfig{Events: events, SkipDuplicates: true})

	rep := p.Run(context.Background(), model.InboundMessage{SenderName: "Dana", Text: "Ann Lee 555-000-1111", ReceivedAt: received})

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeDuplicate, rep.Outcome)
	assert.Equal(t, existing, rep.Lead)
	w.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	w.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)

	recent := events.Recent(10)
	require.NotEmpty(t, recent)
	assert.Equal(t, monitoring.EventDropped, recent[0].Type)
	assert.Equal(t, "duplicate", recent[0].Detail)
	assert.Equal(t, "old", recent[0].LeadID)
}

func TestPipeline_PersistTimeoutApplied(t *testing.T) {
	w := new(mockWriter)
	w.On("Save", mock.Anything, mock.Anything).Return(model.Lead{}, nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
	})

	fields := model.ExtractedFields{FirstName: model.Some("Ann"), LastName: model.Some("Lee")}
	p := NewPipeline(stubResolver{fields: fields}, noDuplicate{}, assemble.New(), w, PipelineConfig{PersistTimeout: 50 * time.Millisecond})
	p.Run(context.Background(), model.InboundMessage{Text: "Ann Lee"})

	w.AssertExpectations(t)
}

func TestNewPipeline_DefaultPersistTimeout(t *testing.T) {
	p := NewPipeline(stubResolver{}, noDuplicate{}, assemble.New(), new(mockWriter), PipelineConfig{})
	assert.Equal(t, 10*time.Second, p.persistTimeout)
}
