package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/monitor"
	"research-showcase-api/utils"
)

const (
	DefaultRejectionReason = "No reason provided."
	DefaultRevisionNote    = "Revisions requested."

	commentSubmitted   = "Project submitted."
	commentApproved    = "Project approved."
	commentResubmitted = "Project edited and resubmitted after revisions."
)

// Frontend paths placed in in-app notifications.
const (
	linkProjectDetail  = "/projects/%s"
	linkMySubmissions  = "/submissions/mine"
	linkEditSubmission = "/submissions/%s/edit"
)

// SubmissionInput is the payload of a new submission or an edit.
// FormErrors holds values the transport could not parse. They are reported
// with the field rules once the actor is authorized.
type SubmissionInput struct {
	Fields      utils.ProjectFields
	Attachments Attachments
	FormErrors  utils.FieldErrors
}

// TransitionResult carries the updated project and any notification warnings.
type TransitionResult struct {
	Project  *models.ResearchProject `json:"project"`
	Warnings []string                `json:"warnings"`
}

// WorkflowService owns submission and review transitions.
type WorkflowService struct {
	db         *gorm.DB
	uploads    *UploadService
	dispatcher *NotificationDispatcher
	now        func() time.Time
}

func NewWorkflowService(db *gorm.DB, uploads *UploadService, dispatcher *NotificationDispatcher) *WorkflowService {
	if db == nil {
		db = config.DB
	}
	return &WorkflowService{db: db, uploads: uploads, dispatcher: dispatcher, now: time.Now}
}

// Submit validates the input and stores a new pending project with its images and first history entry.
func (s *WorkflowService) Submit(ctx context.Context, actor Actor, in SubmissionInput) (*models.ResearchProject, error) {
	if !actor.IsFacultyOrAdmin() {
		return nil, utils.ErrForbidden("only faculty members can submit research projects")
	}
	fields, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploads.Store(ctx, in.Attachments)
	if err != nil {
		return nil, err
	}

	project := &models.ResearchProject{ApprovalStatus: models.StatusPending, AuthorID: actor.UserID}
	applyFields(project, fields)
	applyAttachments(project, stored)

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.uploads.Discard(ctx, stored)
		return nil, utils.ErrPersistence(tx.Error, "failed to start transaction")
	}
	fail := func(err error) (*models.ResearchProject, error) {
		tx.Rollback()
		s.uploads.Discard(ctx, stored)
		config.L().Error("submission failed", zap.Uint("author_id", actor.UserID), zap.Error(err))
		return nil, utils.ErrPersistence(err, "failed to save research project")
	}

	if err := tx.Omit("Author", "Images").Create(project).Error; err != nil {
		return fail(err)
	}
	if err := insertImages(tx, project.ID, stored.Images); err != nil {
		return fail(err)
	}
	if err := tx.Create(newHistory(project.ID, actor, nil, models.StatusPending, commentSubmitted)).Error; err != nil {
		return fail(err)
	}
	if err := tx.Commit().Error; err != nil {
		return fail(err)
	}

	project.Images = stored.Images
	monitor.Transitions.WithLabelValues(string(models.StatusPending)).Inc()
	config.L().Info("research project submitted",
		zap.String("project_id", project.ID),
		zap.Uint("author_id", actor.UserID))
	return project, nil
}

// Approve publishes a pending or needs_revision project.
func (s *WorkflowService) Approve(ctx context.Context, actor Actor, projectID string) (*TransitionResult, error) {
	return s.review(ctx, actor, projectID, reviewAction{
		verb:    "approve",
		to:      models.StatusApproved,
		comment: commentApproved,
		kind:    models.EventStatusApproved,
		message: func(p *models.ResearchProject) string {
			return fmt.Sprintf("Your research project '%s' has been approved and published.", p.Title)
		},
		link: func(p *models.ResearchProject) string { return fmt.Sprintf(linkProjectDetail, p.ID) },
	})
}

// Reject closes a project with reason, or DefaultRejectionReason when blank.
func (s *WorkflowService) Reject(ctx context.Context, actor Actor, projectID, reason string) (*TransitionResult, error) {
	reason = utils.StringOr(utils.SanitizeInput(reason), DefaultRejectionReason)
	return s.review(ctx, actor, projectID, reviewAction{
		verb:     "reject",
		to:       models.StatusRejected,
		feedback: &reason,
		comment:  "Project rejected. Reason: " + reason,
		kind:     models.EventStatusRejected,
		message: func(p *models.ResearchProject) string {
			return fmt.Sprintf("Your research project '%s' was rejected. Reason: %s", p.Title, reason)
		},
		link: func(*models.ResearchProject) string { return linkMySubmissions },
	})
}

// RequestRevision sends a project back to its author with feedback, or DefaultRevisionNote when blank.
func (s *WorkflowService) RequestRevision(ctx context.Context, actor Actor, projectID, feedback string) (*TransitionResult, error) {
	feedback = utils.StringOr(utils.SanitizeInput(feedback), DefaultRevisionNote)
	return s.review(ctx, actor, projectID, reviewAction{
		verb:     "request revisions for",
		to:       models.StatusNeedsRevision,
		feedback: &feedback,
		comment:  "Revisions requested. Feedback: " + feedback,
		kind:     models.EventStatusRevisionRequested,
		message: func(p *models.ResearchProject) string {
			return fmt.Sprintf("Revisions requested for your project '%s'. Feedback: %s", p.Title, feedback)
		},
		link: func(p *models.ResearchProject) string { return fmt.Sprintf(linkEditSubmission, p.ID) },
	})
}

type reviewAction struct {
	verb     string
	to       models.ApprovalStatus
	feedback *string
	comment  string
	kind     string
	message  func(*models.ResearchProject) string
	link     func(*models.ResearchProject) string
}

func (s *WorkflowService) review(ctx context.Context, actor Actor, projectID string, act reviewAction) (*TransitionResult, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, utils.ErrForbidden("only administrators can review research projects")
	}
	from := project.ApprovalStatus
	if !utils.StatusIn(from, models.StatusPending, models.StatusNeedsRevision) {
		return nil, utils.ErrConflict(fmt.Sprintf("cannot %s a project that is %s", act.verb, from))
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, utils.ErrPersistence(tx.Error, "failed to start transaction")
	}
	if err := compareAndSwapStatus(tx, project.ID, from, map[string]interface{}{
		"approval_status": act.to,
		"admin_feedback":  act.feedback,
		"updated_at":      s.now().UTC(),
	}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(newHistory(project.ID, actor, &from, act.to, act.comment)).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrPersistence(err, "failed to record status history")
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.ErrPersistence(err, "failed to commit status change")
	}

	project.ApprovalStatus = act.to
	project.AdminFeedback = act.feedback
	monitor.Transitions.WithLabelValues(string(act.to)).Inc()
	config.L().Info("research project reviewed",
		zap.String("project_id", project.ID),
		zap.String("from", string(from)),
		zap.String("to", string(act.to)),
		zap.Uint("admin_id", actor.UserID))

	link := act.link(project)
	warnings := s.dispatcher.Dispatch(ctx, &project.Author, act.kind, act.message(project), &link)
	return &TransitionResult{Project: project, Warnings: warnings}, nil
}

// Resubmit applies the author's edits to a needs_revision project and returns it to pending.
func (s *WorkflowService) Resubmit(ctx context.Context, actor Actor, projectID string, in SubmissionInput) (*TransitionResult, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !actor.IsFacultyOrAdmin() || !actor.Owns(project) {
		return nil, utils.ErrForbidden("you are not authorized to edit this submission")
	}
	if project.ApprovalStatus != models.StatusNeedsRevision {
		return nil, utils.ErrForbidden("this submission cannot be edited in its current state")
	}
	fields, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	stored, err := s.uploads.Store(ctx, in.Attachments)
	if err != nil {
		return nil, err
	}

	from := project.ApprovalStatus
	updates := map[string]interface{}{
		"title":               fields.Title,
		"abstract":            fields.Abstract,
		"student_author_name": fields.StudentAuthorName,
		"collaborator_names":  fields.CollaboratorNames,
		"project_sponsor":     fields.ProjectSponsor,
		"github_link":         fields.GithubLink,
		"video_link":          fields.VideoLink,
		"date_presented":      fields.DatePresented,
		"approval_status":     models.StatusPending,
		"admin_feedback":      nil,
		"updated_at":          s.now().UTC(),
	}
	if stored.PdfFile != "" {
		updates["pdf_file"] = stored.PdfFile
	}
	if stored.PosterImage != "" {
		updates["poster_image"] = stored.PosterImage
		updates["poster_thumbnail"] = stored.PosterThumbnail
	}
	if stored.PresentationFile != "" {
		updates["presentation_file"] = stored.PresentationFile
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.uploads.Discard(ctx, stored)
		return nil, utils.ErrPersistence(tx.Error, "failed to start transaction")
	}
	fail := func(err error) (*TransitionResult, error) {
		tx.Rollback()
		s.uploads.Discard(ctx, stored)
		if utils.IsCode(err, utils.CodeConflict) {
			return nil, err
		}
		return nil, utils.ErrPersistence(err, "failed to save updated project")
	}

	if err := compareAndSwapStatus(tx, project.ID, from, updates); err != nil {
		return fail(err)
	}
	if err := insertImages(tx, project.ID, stored.Images); err != nil {
		return fail(err)
	}
	if err := tx.Create(newHistory(project.ID, actor, &from, models.StatusPending, commentResubmitted)).Error; err != nil {
		return fail(err)
	}
	if err := tx.Commit().Error; err != nil {
		return fail(err)
	}

	monitor.Transitions.WithLabelValues(string(models.StatusPending)).Inc()
	config.L().Info("research project resubmitted", zap.String("project_id", project.ID), zap.Uint("author_id", actor.UserID))

	updated, err := s.loadProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Project: updated, Warnings: []string{}}, nil
}

// ReviewQueue lists projects for administrators, newest submission first.
// With no statuses it returns the open queue: pending and needs_revision.
func (s *WorkflowService) ReviewQueue(ctx context.Context, actor Actor, statuses ...models.ApprovalStatus) ([]models.ResearchProject, error) {
	if !actor.IsAdmin() {
		return nil, utils.ErrForbidden("only administrators can review research projects")
	}
	if len(statuses) == 0 {
		statuses = []models.ApprovalStatus{models.StatusPending, models.StatusNeedsRevision}
	}
	var rows []models.ResearchProject
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("approval_status IN ?", statuses).
		Order("submission_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load review queue")
	}
	return rows, nil
}

// MySubmissions lists the actor's own projects, newest first.
func (s *WorkflowService) MySubmissions(ctx context.Context, actor Actor) ([]models.ResearchProject, error) {
	if !actor.IsFacultyOrAdmin() {
		return nil, utils.ErrForbidden("only faculty members have submissions")
	}
	var rows []models.ResearchProject
	err := s.db.WithContext(ctx).
		Where("author_id = ?", actor.UserID).
		Order("submission_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load submissions")
	}
	return rows, nil
}

// GetForActor returns a project in any state to its author or an administrator.
func (s *WorkflowService) GetForActor(ctx context.Context, actor Actor, projectID string) (*models.ResearchProject, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(project) {
		return nil, utils.ErrForbidden("you are not authorized to view this submission")
	}
	return project, nil
}

// GetPublished returns an approved project. Other states read as not found.
func (s *WorkflowService) GetPublished(ctx context.Context, projectID string) (*models.ResearchProject, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsPublished() {
		return nil, utils.ErrNotFound("research project")
	}
	return project, nil
}

// RecentPublished returns the latest approved projects by submission date.
func (s *WorkflowService) RecentPublished(ctx context.Context, limit int) ([]models.ResearchProject, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	var rows []models.ResearchProject
	err := s.db.WithContext(ctx).
		Where("approval_status = ?", models.StatusApproved).
		Order("submission_date DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load recent projects")
	}
	return rows, nil
}

// History returns the status log of a project, newest first.
func (s *WorkflowService) History(ctx context.Context, actor Actor, projectID string) ([]models.StatusHistory, error) {
	if _, err := s.GetForActor(ctx, actor, projectID); err != nil {
		return nil, err
	}
	var rows []models.StatusHistory
	err := s.db.WithContext(ctx).
		Preload("Actor").
		Where("project_id = ?", projectID).
		Order("created_at DESC, history_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load status history")
	}
	return rows, nil
}

func (s *WorkflowService) validate(in SubmissionInput) (utils.ProjectFields, error) {
	fields := in.Fields.Normalize()
	errs := utils.FieldErrors{}
	for field, msg := range in.FormErrors {
		errs.Add(field, msg)
	}
	for field, msg := range utils.ValidateProjectFields(fields, s.now()) {
		errs.Add(field, msg)
	}
	for field, msg := range ValidateAttachments(in.Attachments) {
		errs.Add(field, msg)
	}
	return fields, errs.Err()
}

func (s *WorkflowService) loadProject(ctx context.Context, projectID string) (*models.ResearchProject, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, utils.ErrNotFound("research project")
	}
	var project models.ResearchProject
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("image_id ASC") }).
		Where("id = ?", projectID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound("research project")
	}
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load research project")
	}
	return &project, nil
}

// compareAndSwapStatus updates the project only while it is still in status from.
func compareAndSwapStatus(tx *gorm.DB, projectID string, from models.ApprovalStatus, updates map[string]interface{}) error {
	res := tx.Model(&models.ResearchProject{}).
		Where("id = ? AND approval_status = ?", projectID, from).
		Updates(updates)
	if res.Error != nil {
		return utils.ErrPersistence(res.Error, "failed to update research project")
	}
	if res.RowsAffected == 0 {
		return utils.ErrConflict("the project was changed by someone else; reload and try again")
	}
	return nil
}

func insertImages(tx *gorm.DB, projectID string, images []models.ProjectImage) error {
	if len(images) == 0 {
		return nil
	}
	for i := range images {
		images[i].ProjectID = projectID
	}
	return tx.Create(&images).Error
}

func newHistory(projectID string, actor Actor, from *models.ApprovalStatus, to models.ApprovalStatus, comment string) *models.StatusHistory {
	h := &models.StatusHistory{ProjectID: projectID, StatusFrom: from, StatusTo: to, Comment: comment}
	if actor.UserID != 0 {
		id := actor.UserID
		h.ChangedBy = &id
	}
	return h
}

func applyFields(p *models.ResearchProject, f utils.ProjectFields) {
	p.Title = f.Title
	p.Abstract = f.Abstract
	p.StudentAuthorName = f.StudentAuthorName
	p.CollaboratorNames = f.CollaboratorNames
	p.ProjectSponsor = f.ProjectSponsor
	p.GithubLink = f.GithubLink
	p.VideoLink = f.VideoLink
	p.DatePresented = f.DatePresented
}

func applyAttachments(p *models.ResearchProject, a StoredAttachments) {
	p.PdfFile = a.PdfFile
	p.PosterImage = a.PosterImage
	p.PosterThumbnail = a.PosterThumbnail
	p.PresentationFile = a.PresentationFile
}
