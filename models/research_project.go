package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalStatus is the review state of a research project.
type ApprovalStatus string

const (
	StatusPending       ApprovalStatus = "pending"
	StatusApproved      ApprovalStatus = "approved"
	StatusRejected      ApprovalStatus = "rejected"
	StatusNeedsRevision ApprovalStatus = "needs_revision"
)

// Label is the human readable form used in emails and the review queue.
func (s ApprovalStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending Review"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusNeedsRevision:
		return "Needs Revision"
	}
	return string(s)
}

type ResearchProject struct {
	ID                string         `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	Title             string         `gorm:"column:title;size:255;not null" json:"title"`
	Abstract          string         `gorm:"column:abstract;type:text;not null" json:"abstract"`
	StudentAuthorName string         `gorm:"column:student_author_name;size:255;not null" json:"student_author_name"`
	CollaboratorNames string         `gorm:"column:collaborator_names;type:text" json:"collaborator_names"`
	ProjectSponsor    string         `gorm:"column:project_sponsor;size:255" json:"project_sponsor"`
	GithubLink        string         `gorm:"column:github_link;size:500" json:"github_link"`
	VideoLink         string         `gorm:"column:video_link;size:500" json:"video_link"`
	PdfFile           string         `gorm:"column:pdf_file;size:500" json:"pdf_file"`
	PosterImage       string         `gorm:"column:poster_image;size:500" json:"poster_image"`
	PosterThumbnail   string         `gorm:"column:poster_thumbnail;size:500" json:"poster_thumbnail"`
	PresentationFile  string         `gorm:"column:presentation_file;size:500" json:"presentation_file"`
	ApprovalStatus    ApprovalStatus `gorm:"column:approval_status;size:20;not null;default:pending;index" json:"approval_status"`
	AdminFeedback     *string        `gorm:"column:admin_feedback;type:text" json:"admin_feedback"`
	AuthorID          uint           `gorm:"column:author_id;not null;index" json:"author_id"`
	SubmissionDate    time.Time      `gorm:"column:submission_date;autoCreateTime" json:"submission_date"`
	DatePresented     *time.Time     `gorm:"column:date_presented;type:date;index" json:"date_presented"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relations
	Author User           `gorm:"foreignKey:AuthorID;references:UserID" json:"author,omitempty"`
	Images []ProjectImage `gorm:"foreignKey:ProjectID" json:"images,omitempty"`
}

func (ResearchProject) TableName() string {
	return "research_projects"
}

// BeforeCreate assigns the opaque identifier.
func (p *ResearchProject) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsPublished reports whether the project is visible to the public.
func (p ResearchProject) IsPublished() bool {
	return p.ApprovalStatus == StatusApproved
}
