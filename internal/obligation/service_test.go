package obligation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hearthledger/hearthledger/internal/calendar"
	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/shared"
)

type memoryRepo struct {
	obligations map[string]*Obligation
	creates     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{obligations: map[string]*Obligation{}}
}

func (r *memoryRepo) Create(ctx context.Context, ob *Obligation) error {
	if _, ok := r.obligations[ob.ID]; ok {
		return fmt.Errorf("obligation: %s: %w", ob.ID, shared.ErrConflict)
	}
	r.creates++
	ob.IsActive = true
	copied := *ob
	r.obligations[ob.ID] = &copied
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, ownerID, id string) (*Obligation, error) {
	ob, ok := r.obligations[id]
	if !ok || ob.OwnerID != ownerID {
		return nil, fmt.Errorf("obligation: %s: %w", id, shared.ErrNotFound)
	}
	copied := *ob
	return &copied, nil
}

func (r *memoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]Obligation, error) {
	var out []Obligation
	for _, ob := range r.obligations {
		if ob.OwnerID == ownerID && ob.IsActive {
			out = append(out, *ob)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListNeedingExtension(ctx context.Context, generatedBefore time.Time) ([]Obligation, error) {
	var out []Obligation
	for _, ob := range r.obligations {
		if ob.IsActive && ob.NeedsExtension && ob.GeneratedUntil.Before(generatedBefore) {
			out = append(out, *ob)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateBookkeeping(ctx context.Context, id string, result period.GenerationResult) error {
	ob, ok := r.obligations[id]
	if !ok {
		return fmt.Errorf("obligation: %s: %w", id, shared.ErrNotFound)
	}
	if result.FirstPeriodID != "" && ob.FirstGeneratedPeriodID == "" {
		ob.FirstGeneratedPeriodID = result.FirstPeriodID
	}
	ob.LastGeneratedPeriodID = result.LastPeriodID
	ob.GeneratedUntil = result.GeneratedUntil
	ob.NeedsExtension = result.NeedsExtension
	return nil
}

func (r *memoryRepo) Deactivate(ctx context.Context, ownerID, id string) error {
	ob, ok := r.obligations[id]
	if !ok || ob.OwnerID != ownerID {
		return fmt.Errorf("obligation: %s: %w", id, shared.ErrNotFound)
	}
	ob.IsActive = false
	return nil
}

type instanceStore struct {
	upserted    []period.PeriodInstance
	deactivated []string
}

func (s *instanceStore) GetByID(ctx context.Context, kind period.Kind, id string) (*period.PeriodInstance, error) {
	return nil, shared.ErrNotFound
}

func (s *instanceStore) FindContaining(ctx context.Context, kind period.Kind, obligationID string, date time.Time) ([]period.PeriodInstance, error) {
	return nil, nil
}

func (s *instanceStore) FindOverlapping(ctx context.Context, kind period.Kind, obligationID string, start, end time.Time) ([]period.PeriodInstance, error) {
	return nil, nil
}

func (s *instanceStore) ListByObligation(ctx context.Context, kind period.Kind, obligationID string) ([]period.PeriodInstance, error) {
	return nil, nil
}

func (s *instanceStore) ListActiveForOwnerPeriod(ctx context.Context, kind period.Kind, ownerID string, periodType calendar.PeriodType, sourcePeriodID string) ([]period.PeriodInstance, error) {
	return nil, nil
}

func (s *instanceStore) UpsertAllocations(ctx context.Context, instances []period.PeriodInstance) (int, error) {
	s.upserted = append(s.upserted, instances...)
	return len(instances), nil
}

func (s *instanceStore) SaveMutable(ctx context.Context, instances []period.PeriodInstance) (int, error) {
	return len(instances), nil
}

func (s *instanceStore) Deactivate(ctx context.Context, kind period.Kind, obligationID string) error {
	s.deactivated = append(s.deactivated, obligationID)
	return nil
}

// syntheticCalendar fabricates covering periods for any requested range, so
// tests stay independent of the wall clock the generation horizon is
// anchored to.
type syntheticCalendar struct{}

func (syntheticCalendar) GetByID(ctx context.Context, id string) (calendar.SourcePeriod, error) {
	return calendar.SourcePeriod{}, shared.ErrNotFound
}

func (syntheticCalendar) Current(ctx context.Context, periodType calendar.PeriodType) (calendar.SourcePeriod, error) {
	return calendar.SourcePeriod{}, shared.ErrNotFound
}

func (syntheticCalendar) ByIndexRange(ctx context.Context, periodType calendar.PeriodType, fromIndex, toIndex int64) ([]calendar.SourcePeriod, error) {
	return nil, nil
}

func (syntheticCalendar) OverlappingRange(ctx context.Context, periodType calendar.PeriodType, start, end time.Time) ([]calendar.SourcePeriod, error) {
	var out []calendar.SourcePeriod
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		periodEnd := cursor.AddDate(0, 1, -1)
		out = append(out, calendar.SourcePeriod{
			ID:        fmt.Sprintf("%s-%s", cursor.Format("2006-M01"), periodType),
			Type:      periodType,
			StartDate: cursor,
			EndDate:   periodEnd,
		})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out, nil
}

func (syntheticCalendar) ContainingDate(ctx context.Context, periodType calendar.PeriodType, date time.Time) (calendar.SourcePeriod, error) {
	return calendar.SourcePeriod{}, shared.ErrNotFound
}

type recordingNotifier struct {
	created []string
	err     error
}

func (n *recordingNotifier) ObligationCreated(ctx context.Context, ob *Obligation) error {
	if n.err != nil {
		return n.err
	}
	n.created = append(n.created, ob.ID)
	return nil
}

func newFixture(notifier Notifier) (*Service, *memoryRepo, *instanceStore) {
	repo := newMemoryRepo()
	store := &instanceStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	periods := period.NewService(calendar.NewService(syntheticCalendar{}), store, logger, nil, 0)
	return NewService(repo, periods, notifier, logger, 90*24*time.Hour), repo, store
}

func mortgage() *Obligation {
	return &Obligation{
		OwnerID:   "owner-1",
		Kind:      period.KindOutflow,
		Name:      "Mortgage",
		Amount:    1500,
		Frequency: period.FrequencyMonthly,
		FirstDate: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateGeneratesAndRecordsBookkeeping(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, repo, store := newFixture(notifier)

	created, err := svc.Create(context.Background(), mortgage())
	require.NoError(t, err)

	require.NotEmpty(t, created.ID)
	require.True(t, created.NeedsExtension)
	require.NotEmpty(t, created.FirstGeneratedPeriodID)
	require.NotEmpty(t, created.LastGeneratedPeriodID)
	require.False(t, created.GeneratedUntil.IsZero())
	require.NotEmpty(t, store.upserted)

	stored, err := repo.GetByID(context.Background(), "owner-1", created.ID)
	require.NoError(t, err)
	require.Equal(t, created.LastGeneratedPeriodID, stored.LastGeneratedPeriodID)

	require.Equal(t, []string{created.ID}, notifier.created)
}

func TestCreateRejectsInvalidSpec(t *testing.T) {
	svc, repo, _ := newFixture(&recordingNotifier{})

	ob := mortgage()
	ob.Amount = -5
	_, err := svc.Create(context.Background(), ob)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 0, repo.creates)
}

func TestCreateSurvivesNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc, _, _ := newFixture(notifier)

	created, err := svc.Create(context.Background(), mortgage())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
}

func TestNameIndex(t *testing.T) {
	svc, repo, _ := newFixture(&recordingNotifier{})
	repo.obligations["ob-1"] = &Obligation{ID: "ob-1", OwnerID: "owner-1", Name: "Mortgage", IsActive: true}
	repo.obligations["ob-2"] = &Obligation{ID: "ob-2", OwnerID: "owner-1", Name: "Salary", IsActive: true}
	repo.obligations["ob-3"] = &Obligation{ID: "ob-3", OwnerID: "owner-2", Name: "Other", IsActive: true}

	names, err := svc.NameIndex(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ob-1": "Mortgage", "ob-2": "Salary"}, names)
}

func TestDeactivateCascades(t *testing.T) {
	svc, repo, store := newFixture(&recordingNotifier{})
	repo.obligations["ob-1"] = &Obligation{ID: "ob-1", OwnerID: "owner-1", Kind: period.KindOutflow, IsActive: true}

	require.NoError(t, svc.Deactivate(context.Background(), "owner-1", "ob-1"))
	require.False(t, repo.obligations["ob-1"].IsActive)
	require.Equal(t, []string{"ob-1"}, store.deactivated)
}

func TestExtendGenerations(t *testing.T) {
	svc, repo, store := newFixture(&recordingNotifier{})
	repo.obligations["ob-1"] = &Obligation{
		ID: "ob-1", OwnerID: "owner-1", Kind: period.KindOutflow,
		Name: "Mortgage", Amount: 1500, Frequency: period.FrequencyMonthly,
		FirstDate:      time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		GeneratedUntil: time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		NeedsExtension: true,
		IsActive:       true,
	}

	extended, err := svc.ExtendGenerations(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, extended)
	require.NotEmpty(t, store.upserted)
	require.True(t, repo.obligations["ob-1"].GeneratedUntil.After(
		time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)))
}

var _ Repository = (*memoryRepo)(nil)
var _ period.Repository = (*instanceStore)(nil)
var _ calendar.Repository = syntheticCalendar{}
