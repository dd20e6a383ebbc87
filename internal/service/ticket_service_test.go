package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/maintenance-reporter/internal/domain"
	"github.com/campusworks/maintenance-reporter/internal/repository"
	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

type fakeAnalyzer struct {
	description string
	err         error
	calls       int
}

func (f *fakeAnalyzer) Describe(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

type fakeObjectStore struct {
	putErr  error
	objects map[string][]byte
	removed []string
	nextKey int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.nextKey++
	key := fmt.Sprintf("tickets/%d.jpg", f.nextKey)
	f.objects[key] = data
	return key, nil
}

func (f *fakeObjectStore) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://objects.test/" + key, nil
}

func (f *fakeObjectStore) Ping(_ context.Context) error { return nil }

type fakeTicketRepo struct {
	tickets   map[int64]*domain.Ticket
	nextID    int64
	createErr error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[int64]*domain.Ticket{}}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	ticket.ID = f.nextID
	ticket.CreatedAt = time.Now()
	stored := *ticket
	f.tickets[ticket.ID] = &stored
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if filter.UserID != nil && ticket.UserID != *filter.UserID {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (f *fakeTicketRepo) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	return nil
}

func (f *fakeTicketRepo) UpdateFields(_ context.Context, id int64, patch repository.TicketPatch) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if patch.StudentName != nil {
		ticket.StudentName = *patch.StudentName
	}
	if patch.Location != nil {
		ticket.Location = *patch.Location
	}
	if patch.IssueType != nil {
		ticket.IssueType = *patch.IssueType
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	return nil
}

func (f *fakeTicketRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.tickets, id)
	return nil
}

func newTestService(repo *fakeTicketRepo, analyzer *fakeAnalyzer, store *fakeObjectStore) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Analyzer:   analyzer,
		Images:     store,
	})
}

func student(id int64) *domain.User {
	return &domain.User{ID: id, Email: fmt.Sprintf("s%d@campus.edu", id), Role: domain.RoleStudent}
}

func admin() *domain.User {
	return &domain.User{ID: 1000, Email: "facilities@campus.edu", Role: domain.RoleAdmin}
}

func TestCreateTicketPipeline(t *testing.T) {
	repo := newFakeTicketRepo()
	analyzer := &fakeAnalyzer{description: "Ceiling fan blade is severely bent and broken, wobbling dangerously."}
	store := newFakeObjectStore()
	svc := newTestService(repo, analyzer, store)

	ticket, err := svc.CreateTicket(context.Background(), student(7), TicketCreateInput{
		StudentName: "  Priya N  ",
		Location:    "Hostel B, Room 214",
		Image:       []byte("jpeg-bytes"),
		MimeType:    "image/jpeg",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), ticket.UserID)
	assert.Equal(t, "Priya N", ticket.StudentName)
	assert.Equal(t, domain.IssueTypeFan, ticket.IssueType)
	assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Equal(t, analyzer.description, ticket.Description)
	assert.Contains(t, store.objects, ticket.ImagePath)

	stored, err := svc.GetTicket(context.Background(), student(7), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, stored.ID)
	assert.Equal(t, ticket.Description, stored.Description)
}

func TestCreateTicketAnalysisFailureStoresNothing(t *testing.T) {
	repo := newFakeTicketRepo()
	analyzer := &fakeAnalyzer{err: apperrors.NewAnalysisFailure(errors.New("model unavailable"))}
	store := newFakeObjectStore()
	svc := newTestService(repo, analyzer, store)

	_, err := svc.CreateTicket(context.Background(), student(1), TicketCreateInput{
		Image:    []byte("jpeg-bytes"),
		MimeType: "image/jpeg",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ANALYSIS_FAILED", domainErr.Code)

	assert.Empty(t, repo.tickets)
	assert.Empty(t, store.objects)
}

func TestCreateTicketInsertFailureRemovesImage(t *testing.T) {
	repo := newFakeTicketRepo()
	repo.createErr = errors.New("connection refused")
	analyzer := &fakeAnalyzer{description: "Light tube is not working."}
	store := newFakeObjectStore()
	svc := newTestService(repo, analyzer, store)

	_, err := svc.CreateTicket(context.Background(), student(1), TicketCreateInput{
		Image:    []byte("jpeg-bytes"),
		MimeType: "image/jpeg",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "PERSISTENCE_FAILED", domainErr.Code)

	assert.Empty(t, store.objects, "insert failure must not leave an orphan object")
	assert.Len(t, store.removed, 1)
}

func TestListTicketsVisibility(t *testing.T) {
	repo := newFakeTicketRepo()
	analyzer := &fakeAnalyzer{description: "Chair leg is cracked."}
	store := newFakeObjectStore()
	svc := newTestService(repo, analyzer, store)

	ctx := context.Background()
	for _, owner := range []*domain.User{student(1), student(1), student(2), student(2)} {
		_, err := svc.CreateTicket(ctx, owner, TicketCreateInput{
			Image: []byte("jpeg-bytes"), MimeType: "image/jpeg",
		})
		require.NoError(t, err)
	}

	mine, err := svc.ListTickets(ctx, student(1), 50, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, ticket := range mine {
		assert.Equal(t, int64(1), ticket.UserID)
	}

	all, err := svc.ListTickets(ctx, admin(), 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestGetForeignTicketReadsAsNotFound(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeAnalyzer{description: "Socket is sparking."}, newFakeObjectStore())

	ticket, err := svc.CreateTicket(context.Background(), student(1), TicketCreateInput{
		Image: []byte("jpeg-bytes"), MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	_, err = svc.GetTicket(context.Background(), student(2), ticket.ID)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)

	got, err := svc.GetTicket(context.Background(), admin(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

func TestUpdateStatus(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeAnalyzer{description: "Projector screen is damaged."}, newFakeObjectStore())

	ctx := context.Background()
	ticket, err := svc.CreateTicket(ctx, student(3), TicketCreateInput{
		Image: []byte("jpeg-bytes"), MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	t.Run("student is forbidden", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, student(3), ticket.ID, domain.TicketStatusResolved)
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "FORBIDDEN", domainErr.Code)

		unchanged, err := svc.GetTicket(ctx, admin(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusPending, unchanged.Status)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, admin(), ticket.ID, domain.TicketStatus("archived"))
		var domainErr *apperrors.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	})

	t.Run("admin moves the lifecycle", func(t *testing.T) {
		for _, status := range []domain.TicketStatus{
			domain.TicketStatusInProgress,
			domain.TicketStatusResolved,
			domain.TicketStatusClosed,
		} {
			updated, err := svc.UpdateStatus(ctx, admin(), ticket.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
		}
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, admin(), 9999, domain.TicketStatusResolved)
		assert.ErrorIs(t, err, pgx.ErrNoRows)
	})
}

func TestUpdateFields(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTestService(repo, &fakeAnalyzer{description: "Table surface has a minor scratch."}, newFakeObjectStore())

	ctx := context.Background()
	ticket, err := svc.CreateTicket(ctx, student(4), TicketCreateInput{
		Location: "Library, first floor",
		Image:    []byte("jpeg-bytes"), MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	newLocation := "Library, second floor"
	updated, err := svc.UpdateFields(ctx, student(4), ticket.ID, repository.TicketPatch{Location: &newLocation})
	require.NoError(t, err)
	assert.Equal(t, newLocation, updated.Location)

	_, err = svc.UpdateFields(ctx, student(5), ticket.ID, repository.TicketPatch{Location: &newLocation})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)

	badPriority := domain.TicketPriority("urgent")
	_, err = svc.UpdateFields(ctx, admin(), ticket.ID, repository.TicketPatch{Priority: &badPriority})
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)

	same, err := svc.UpdateFields(ctx, admin(), ticket.ID, repository.TicketPatch{})
	require.NoError(t, err)
	assert.Equal(t, newLocation, same.Location)
}

func TestDeleteTicketCascadesImageRemoval(t *testing.T) {
	repo := newFakeTicketRepo()
	store := newFakeObjectStore()
	svc := newTestService(repo, &fakeAnalyzer{description: "Wire insulation is damaged."}, store)

	ctx := context.Background()
	ticket, err := svc.CreateTicket(ctx, student(6), TicketCreateInput{
		Image: []byte("jpeg-bytes"), MimeType: "image/jpeg",
	})
	require.NoError(t, err)

	err = svc.DeleteTicket(ctx, student(6), ticket.ID)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "FORBIDDEN", domainErr.Code)

	require.NoError(t, svc.DeleteTicket(ctx, admin(), ticket.ID))
	assert.Empty(t, repo.tickets)
	assert.Empty(t, store.objects)
	assert.Contains(t, store.removed, ticket.ImagePath)

	err = svc.DeleteTicket(ctx, admin(), ticket.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
