package controllers

import (
	"time"

	"research-showcase-api/models"
	"research-showcase-api/utils"
)

type imageView struct {
	ImageID      uint   `json:"image_id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Caption      string `json:"caption"`
}

type projectView struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Abstract            string                `json:"abstract"`
	StudentAuthorName   string                `json:"student_author_name"`
	CollaboratorNames   string                `json:"collaborator_names"`
	ProjectSponsor      string                `json:"project_sponsor"`
	GithubLink          string                `json:"github_link"`
	VideoLink           string                `json:"video_link"`
	PdfURL              string                `json:"pdf_url,omitempty"`
	PosterURL           string                `json:"poster_url,omitempty"`
	PosterThumbnailURL  string                `json:"poster_thumbnail_url,omitempty"`
	PresentationURL     string                `json:"presentation_url,omitempty"`
	ApprovalStatus      models.ApprovalStatus `json:"approval_status"`
	ApprovalStatusLabel string                `json:"approval_status_label"`
	AdminFeedback       *string               `json:"admin_feedback,omitempty"`
	AuthorID            uint                  `json:"author_id"`
	AuthorName          string                `json:"author_name,omitempty"`
	SubmissionDate      time.Time             `json:"submission_date"`
	DatePresented       string                `json:"date_presented,omitempty"`
	DatePresentedLabel  string                `json:"date_presented_label,omitempty"`
	UpdatedAt           time.Time             `json:"updated_at"`
	Images              []imageView           `json:"images,omitempty"`
}

type historyView struct {
	HistoryID  uint                   `json:"history_id"`
	StatusFrom *models.ApprovalStatus `json:"status_from"`
	StatusTo   models.ApprovalStatus  `json:"status_to"`
	Comment    string                 `json:"comment"`
	ChangedBy  *uint                  `json:"changed_by"`
	ActorName  string                 `json:"actor_name"`
	CreatedAt  time.Time              `json:"created_at"`
}

func fileURL(key string) string {
	if key == "" {
		return ""
	}
	return deps.Uploads.URL(key)
}

// presentProject maps storage keys to URLs. includeFeedback is false on public pages.
func presentProject(p *models.ResearchProject, includeFeedback bool) projectView {
	v := projectView{
		ID:                  p.ID,
		Title:               p.Title,
		Abstract:            p.Abstract,
		StudentAuthorName:   p.StudentAuthorName,
		CollaboratorNames:   p.CollaboratorNames,
		ProjectSponsor:      p.ProjectSponsor,
		GithubLink:          p.GithubLink,
		VideoLink:           p.VideoLink,
		PdfURL:              fileURL(p.PdfFile),
		PosterURL:           fileURL(p.PosterImage),
		PosterThumbnailURL:  fileURL(p.PosterThumbnail),
		PresentationURL:     fileURL(p.PresentationFile),
		ApprovalStatus:      p.ApprovalStatus,
		ApprovalStatusLabel: p.ApprovalStatus.Label(),
		AuthorID:            p.AuthorID,
		SubmissionDate:      p.SubmissionDate,
		DatePresentedLabel:  utils.FormatDisplayDatePtr(p.DatePresented),
		UpdatedAt:           p.UpdatedAt,
	}
	if p.Author.UserID != 0 {
		v.AuthorName = p.Author.DisplayName()
	}
	if p.DatePresented != nil {
		v.DatePresented = p.DatePresented.Format("2006-01-02")
	}
	if includeFeedback {
		v.AdminFeedback = p.AdminFeedback
	}
	for _, img := range p.Images {
		v.Images = append(v.Images, imageView{
			ImageID:      img.ImageID,
			URL:          fileURL(img.Image),
			ThumbnailURL: fileURL(img.Thumbnail),
			Caption:      img.Caption,
		})
	}
	return v
}

func presentProjects(rows []models.ResearchProject, includeFeedback bool) []projectView {
	out := make([]projectView, 0, len(rows))
	for i := range rows {
		out = append(out, presentProject(&rows[i], includeFeedback))
	}
	return out
}

func presentHistory(rows []models.StatusHistory) []historyView {
	out := make([]historyView, 0, len(rows))
	for _, h := range rows {
		out = append(out, historyView{
			HistoryID:  h.HistoryID,
			StatusFrom: h.StatusFrom,
			StatusTo:   h.StatusTo,
			Comment:    h.Comment,
			ChangedBy:  h.ChangedBy,
			ActorName:  h.ActorName(),
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}
