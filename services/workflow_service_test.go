package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"research-showcase-api/models"
	"research-showcase-api/utils"
)

type workflowFixture struct {
	db       *gorm.DB
	svc      *WorkflowService
	root     string
	faculty  *models.User
	other    *models.User
	admin    *models.User
	inApp    *fakeNotifier
	email    *fakeNotifier
	authorAs Actor
	adminAs  Actor
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := newTestDB(t)
	uploads, root := newTestUploads(t)
	f := &workflowFixture{
		db:      db,
		root:    root,
		faculty: createUser(t, db, "faculty", models.RoleFaculty),
		other:   createUser(t, db, "other", models.RoleFaculty),
		admin:   createUser(t, db, "admin", models.RoleAdmin),
		inApp:   &fakeNotifier{channel: "in_app"},
		email:   &fakeNotifier{channel: "email"},
	}
	f.svc = NewWorkflowService(db, uploads, NewNotificationDispatcher(time.Second, f.inApp, f.email))
	f.svc.now = func() time.Time { return time.Date(2025, time.October, 18, 12, 0, 0, 0, time.UTC) }
	f.authorAs = ActorFromUser(*f.faculty)
	f.adminAs = ActorFromUser(*f.admin)
	return f
}

func (f *workflowFixture) submit(t *testing.T, title string) *models.ResearchProject {
	t.Helper()
	p, err := f.svc.Submit(context.Background(), f.authorAs, validInput(title))
	require.NoError(t, err)
	return p
}

func (f *workflowFixture) reload(t *testing.T, id string) models.ResearchProject {
	t.Helper()
	var p models.ResearchProject
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p
}

func TestSubmitCreatesPendingProjectWithHistory(t *testing.T) {
	f := newWorkflowFixture(t)

	p := f.submit(t, "Machine Learning Analysis")
	require.NotEmpty(t, p.ID)

	stored := f.reload(t, p.ID)
	assert.Equal(t, models.StatusPending, stored.ApprovalStatus)
	assert.Nil(t, stored.AdminFeedback)
	assert.Equal(t, f.faculty.UserID, stored.AuthorID)
	require.NotNil(t, stored.DatePresented)
	assert.Equal(t, "2024-03-03", stored.DatePresented.Format("2006-01-02"))

	history := historyOf(t, f.db, p.ID)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].StatusFrom)
	assert.Equal(t, models.StatusPending, history[0].StatusTo)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, f.faculty.UserID, *history[0].ChangedBy)
	assert.Empty(t, f.inApp.Calls(), "submission does not notify the author")
}

func TestSubmitReportsEveryInvalidField(t *testing.T) {
	f := newWorkflowFixture(t)
	in := validInput("short")
	in.Fields.Abstract = "too short"
	future := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	in.Fields.DatePresented = &future
	in.Attachments.PDF = &Upload{Filename: "paper.pdf", Data: []byte("not a pdf")}

	_, err := f.svc.Submit(context.Background(), f.authorAs, in)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalid))

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "title")
	assert.Contains(t, appErr.Fields, "abstract")
	assert.Contains(t, appErr.Fields, "date_presented")
	assert.Contains(t, appErr.Fields, "pdf_file")

	assert.Zero(t, count(t, f.db, &models.ResearchProject{}))
	assert.Zero(t, count(t, f.db, &models.StatusHistory{}))
	assert.Empty(t, storedFiles(t, f.root))
}

func TestSubmitRequiresFacultyRole(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.svc.Submit(context.Background(), Actor{UserID: 99, Role: models.Role("student")}, validInput("Machine Learning Analysis"))
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
}

func TestSubmitStoresAttachments(t *testing.T) {
	f := newWorkflowFixture(t)
	in := validInput("Coral Reef Monitoring")
	in.Attachments = Attachments{
		PDF:    &Upload{Filename: "paper.pdf", Data: []byte("%PDF-1.7 body")},
		Poster: &Upload{Filename: "poster.png", Data: pngBytes(t, 800, 600)},
		Images: []Upload{{Filename: "lab.png", Data: pngBytes(t, 64, 64), Caption: "  Lab bench "}},
	}

	p, err := f.svc.Submit(context.Background(), f.authorAs, in)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.PdfFile, "research_papers/"))
	assert.True(t, strings.HasPrefix(p.PosterImage, "posters/"))
	assert.True(t, strings.HasPrefix(p.PosterThumbnail, "posters/thumbnails/"))
	require.Len(t, p.Images, 1)
	assert.Equal(t, "Lab bench", p.Images[0].Caption)
	assert.Equal(t, int64(1), count(t, f.db, &models.ProjectImage{}))
	assert.Len(t, storedFiles(t, f.root), 5)
}

func TestSubmitReportsCorruptImageAsValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	in := validInput("Coral Reef Monitoring")
	in.Attachments = Attachments{
		PDF:    &Upload{Filename: "paper.pdf", Data: []byte("%PDF-1.7 body")},
		Poster: &Upload{Filename: "poster.png", Data: pngBytes(t, 64, 64)[:60]},
	}

	_, err := f.svc.Submit(context.Background(), f.authorAs, in)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalid))

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, invalidImageMessage, appErr.Fields["poster_image"])
	assert.Zero(t, count(t, f.db, &models.ResearchProject{}))
	assert.Empty(t, storedFiles(t, f.root))
}

func TestSubmitMergesFormErrors(t *testing.T) {
	f := newWorkflowFixture(t)
	in := validInput("Machine Learning Analysis")
	in.Fields.DatePresented = nil
	in.FormErrors = utils.FieldErrors{"date_presented": "Enter a valid date."}

	_, err := f.svc.Submit(context.Background(), f.authorAs, in)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.CodeInvalid, appErr.Code)
	assert.Equal(t, utils.FieldErrors{"date_presented": "Enter a valid date."}, appErr.Fields)
	assert.Zero(t, count(t, f.db, &models.ResearchProject{}))
}

func TestSubmitRollsBackWhenHistoryInsertFails(t *testing.T) {
	f := newWorkflowFixture(t)
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_history", func(tx *gorm.DB) {
		if tx.Statement.Table == "project_status_history" {
			_ = tx.AddError(errors.New("history table unavailable"))
		}
	}))

	in := validInput("Machine Learning Analysis")
	in.Attachments.PDF = &Upload{Filename: "paper.pdf", Data: []byte("%PDF-1.7 body")}
	in.Attachments.Images = []Upload{{Filename: "lab.png", Data: pngBytes(t, 32, 32)}}

	_, err := f.svc.Submit(context.Background(), f.authorAs, in)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodePersistence))

	assert.Zero(t, count(t, f.db, &models.ResearchProject{}))
	assert.Zero(t, count(t, f.db, &models.ProjectImage{}))
	assert.Zero(t, count(t, f.db, &models.StatusHistory{}))
	assert.Empty(t, storedFiles(t, f.root), "stored files are removed after a failed save")
}

func TestApproveRecordsTransitionAndNotifies(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")

	res, err := f.svc.Approve(context.Background(), f.adminAs, p.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, models.StatusApproved, res.Project.ApprovalStatus)

	stored := f.reload(t, p.ID)
	assert.Equal(t, models.StatusApproved, stored.ApprovalStatus)
	assert.Nil(t, stored.AdminFeedback)

	history := historyOf(t, f.db, p.ID)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].StatusFrom)
	assert.Equal(t, models.StatusPending, *history[1].StatusFrom)
	assert.Equal(t, models.StatusApproved, history[1].StatusTo)
	assert.Equal(t, f.admin.UserID, *history[1].ChangedBy)

	require.Len(t, f.inApp.Calls(), 1)
	assert.Contains(t, f.inApp.Calls()[0], models.EventStatusApproved)
	assert.Contains(t, f.inApp.Calls()[0], "'Machine Learning Analysis' has been approved")
	require.Len(t, f.email.Calls(), 1)
}

func TestRejectAndRevisionUseDefaultMessages(t *testing.T) {
	f := newWorkflowFixture(t)
	rejected := f.submit(t, "Quantum Computing Basics")
	revised := f.submit(t, "Urban Heat Island Study")

	res, err := f.svc.Reject(context.Background(), f.adminAs, rejected.ID, "   ")
	require.NoError(t, err)
	require.NotNil(t, res.Project.AdminFeedback)
	assert.Equal(t, DefaultRejectionReason, *res.Project.AdminFeedback)
	assert.Equal(t, DefaultRejectionReason, *f.reload(t, rejected.ID).AdminFeedback)
	assert.Equal(t, "Project rejected. Reason: "+DefaultRejectionReason, historyOf(t, f.db, rejected.ID)[1].Comment)

	res, err = f.svc.RequestRevision(context.Background(), f.adminAs, revised.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsRevision, res.Project.ApprovalStatus)
	assert.Equal(t, DefaultRevisionNote, *f.reload(t, revised.ID).AdminFeedback)

	res, err = f.svc.RequestRevision(context.Background(), f.adminAs, revised.ID, "Add a methods section.")
	require.NoError(t, err, "needs_revision may be sent back again")
	assert.Equal(t, "Add a methods section.", *f.reload(t, revised.ID).AdminFeedback)
}

func TestReviewAuthorizationAndMissingProjects(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, f.authorAs, p.ID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = f.svc.Reject(ctx, f.adminAs, "00000000-0000-0000-0000-000000000000", "no")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = f.svc.RequestRevision(ctx, f.adminAs, " ", "fix")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	assert.Equal(t, models.StatusPending, f.reload(t, p.ID).ApprovalStatus)
	assert.Len(t, historyOf(t, f.db, p.ID), 1)
}

func TestReviewFromTerminalStateConflicts(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, f.adminAs, p.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, f.adminAs, p.ID, "late")
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
	_, err = f.svc.Approve(ctx, f.adminAs, p.ID)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))

	assert.Equal(t, models.StatusApproved, f.reload(t, p.ID).ApprovalStatus)
	assert.Len(t, historyOf(t, f.db, p.ID), 2)
}

func TestConcurrentReviewsHaveOneWinner(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	f.svc.dispatcher = nil

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.Approve(context.Background(), f.adminAs, p.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.Reject(context.Background(), f.adminAs, p.ID, "duplicate")
	}()
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case utils.IsCode(err, utils.CodeConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, historyOf(t, f.db, p.ID), 2)
}

func TestResubmitReturnsProjectToPending(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	ctx := context.Background()

	_, err := f.svc.RequestRevision(ctx, f.adminAs, p.ID, "Clarify the dataset.")
	require.NoError(t, err)

	in := validInput("Machine Learning Analysis, Revised")
	in.Attachments.Images = []Upload{{Filename: "chart.png", Data: pngBytes(t, 40, 30), Caption: "Results"}}
	res, err := f.svc.Resubmit(ctx, f.authorAs, p.ID, in)
	require.NoError(t, err)

	assert.NotNil(t, res.Warnings)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, models.StatusPending, res.Project.ApprovalStatus)
	assert.Nil(t, res.Project.AdminFeedback)
	assert.Equal(t, "Machine Learning Analysis, Revised", res.Project.Title)
	require.Len(t, res.Project.Images, 1)
	assert.Equal(t, "Results", res.Project.Images[0].Caption)

	history := historyOf(t, f.db, p.ID)
	require.Len(t, history, 3)
	assert.Equal(t, models.StatusNeedsRevision, *history[2].StatusFrom)
	assert.Equal(t, models.StatusPending, history[2].StatusTo)
	assert.Equal(t, commentResubmitted, history[2].Comment)
}

func TestResubmitRejectsOtherUsersAndWrongState(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	ctx := context.Background()

	_, err := f.svc.Resubmit(ctx, f.authorAs, p.ID, validInput("Machine Learning Analysis"))
	assert.True(t, utils.IsCode(err, utils.CodeForbidden), "pending projects are not editable")

	_, err = f.svc.RequestRevision(ctx, f.adminAs, p.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Resubmit(ctx, ActorFromUser(*f.other), p.ID, validInput("Machine Learning Analysis"))
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = f.svc.Resubmit(ctx, f.authorAs, "missing", validInput("Machine Learning Analysis"))
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	malformed := validInput("Machine Learning Analysis")
	malformed.FormErrors = utils.FieldErrors{"pdf_file": "The submitted file is empty or could not be read."}
	_, err = f.svc.Resubmit(ctx, ActorFromUser(*f.other), p.ID, malformed)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden), "ownership is checked before form errors")
	_, err = f.svc.Resubmit(ctx, f.authorAs, p.ID, malformed)
	assert.True(t, utils.IsCode(err, utils.CodeInvalid))

	assert.Equal(t, models.StatusNeedsRevision, f.reload(t, p.ID).ApprovalStatus)
}

func TestHistoryChainMatchesCurrentStatus(t *testing.T) {
	f := newWorkflowFixture(t)
	p := f.submit(t, "Machine Learning Analysis")
	ctx := context.Background()

	_, err := f.svc.RequestRevision(ctx, f.adminAs, p.ID, "More detail.")
	require.NoError(t, err)
	_, err = f.svc.Resubmit(ctx, f.authorAs, p.ID, validInput("Machine Learning Analysis"))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.adminAs, p.ID)
	require.NoError(t, err)

	history := historyOf(t, f.db, p.ID)
	require.Len(t, history, 4)
	for i := 1; i < len(history); i++ {
		require.NotNil(t, history[i].StatusFrom)
		assert.Equal(t, history[i-1].StatusTo, *history[i].StatusFrom)
	}
	assert.Equal(t, f.reload(t, p.ID).ApprovalStatus, history[len(history)-1].StatusTo)

	newestFirst, err := f.svc.History(ctx, f.authorAs, p.ID)
	require.NoError(t, err)
	require.Len(t, newestFirst, 4)
	assert.Equal(t, models.StatusApproved, newestFirst[0].StatusTo)
	assert.Equal(t, "Admin", newestFirst[0].ActorName())
}

func TestTransitionsAlwaysReturnWarningSlice(t *testing.T) {
	f := newWorkflowFixture(t)
	f.svc.dispatcher = nil
	p := f.submit(t, "Machine Learning Analysis")

	res, err := f.svc.RequestRevision(context.Background(), f.adminAs, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Warnings)

	res, err = f.svc.Resubmit(context.Background(), f.authorAs, p.ID, validInput("Machine Learning Analysis"))
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Warnings)
}

func TestReadOnlyViewsLeaveReviewStateUnchanged(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	published := f.submit(t, "Machine Learning Analysis")
	_, err := f.svc.Approve(ctx, f.adminAs, published.ID)
	require.NoError(t, err)
	revised := f.submit(t, "Machine Learning in Health")
	_, err = f.svc.RequestRevision(ctx, f.adminAs, revised.ID, "Add a methods section.")
	require.NoError(t, err)

	type snapshot struct {
		status   models.ApprovalStatus
		feedback *string
		history  []models.StatusHistory
	}
	take := func() map[string]snapshot {
		out := map[string]snapshot{}
		for _, id := range []string{published.ID, revised.ID} {
			p := f.reload(t, id)
			out[id] = snapshot{status: p.ApprovalStatus, feedback: p.AdminFeedback, history: historyOf(t, f.db, id)}
		}
		return out
	}
	before := take()
	require.Equal(t, models.StatusNeedsRevision, before[revised.ID].status)
	require.Len(t, before[revised.ID].history, 2)

	search := NewSearchService(f.db)
	search.now = f.svc.now
	for i := 0; i < 2; i++ {
		found, err := search.Search(ctx, SearchParams{Query: "machine learning", StartSemester: "Spring 2024", EndSemester: "Spring 2024"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Machine Learning Analysis"}, titles(found.Projects))

		_, err = search.DefaultRange(ctx)
		require.NoError(t, err)

		_, err = f.svc.GetPublished(ctx, published.ID)
		require.NoError(t, err)
		_, err = f.svc.GetPublished(ctx, revised.ID)
		assert.True(t, utils.IsCode(err, utils.CodeNotFound))

		_, err = f.svc.History(ctx, f.authorAs, revised.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, before, take())
}

func TestNotificationFailuresBecomeWarnings(t *testing.T) {
	f := newWorkflowFixture(t)
	f.inApp.err = errors.New("insert failed")
	f.email.err = errors.New("smtp: connection refused")
	p := f.submit(t, "Machine Learning Analysis")

	res, err := f.svc.Approve(context.Background(), f.adminAs, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Failed to create in-app notification for the author.",
		"Failed to send email notification to the author.",
	}, res.Warnings)
	assert.Equal(t, models.StatusApproved, f.reload(t, p.ID).ApprovalStatus)
}

func TestReviewQueueAndVisibility(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	pending := f.submit(t, "Machine Learning Analysis")
	approved := f.submit(t, "Quantum Computing Basics")
	_, err := f.svc.Approve(ctx, f.adminAs, approved.ID)
	require.NoError(t, err)

	_, err = f.svc.ReviewQueue(ctx, f.authorAs)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	queue, err := f.svc.ReviewQueue(ctx, f.adminAs)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)

	done, err := f.svc.ReviewQueue(ctx, f.adminAs, models.StatusApproved)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, approved.ID, done[0].ID)

	_, err = f.svc.GetPublished(ctx, pending.ID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound), "unpublished projects are hidden")
	_, err = f.svc.GetPublished(ctx, approved.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetForActor(ctx, ActorFromUser(*f.other), pending.ID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
	_, err = f.svc.GetForActor(ctx, f.adminAs, pending.ID)
	assert.NoError(t, err)

	mine, err := f.svc.MySubmissions(ctx, f.authorAs)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	recent, err := f.svc.RecentPublished(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, approved.ID, recent[0].ID)
}
