package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"research-showcase-api/services"
	"research-showcase-api/utils"
)

const (
	// maxMultipartMemory bounds the in-memory part of a submission form.
	maxMultipartMemory = 32 << 20
	// maxSubmissionBody bounds a whole submission request.
	maxSubmissionBody = 64 << 20
)

var errBodyTooLarge = utils.NewError(utils.CodeInvalid, fmt.Sprintf("Request body too large (max %dMB)", maxSubmissionBody>>20))

// CreateSubmission stores a new pending research project.
// POST /api/v1/submissions (multipart/form-data)
func CreateSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	in, err := bindSubmission(c)
	if err != nil {
		respondError(c, err)
		return
	}
	project, err := deps.Workflow.Submit(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Your research project has been submitted and is pending approval.",
		"project": presentProject(project, true),
	})
}

// UpdateSubmission applies the author's edits to a project that needs revision.
// PUT /api/v1/submissions/:id (multipart/form-data)
func UpdateSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	in, err := bindSubmission(c)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := deps.Workflow.Resubmit(c.Request.Context(), actor, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Project updated and resubmitted for approval.",
		"project":  presentProject(result.Project, true),
		"warnings": result.Warnings,
	})
}

// GetMySubmissions lists the caller's projects in every state.
func GetMySubmissions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rows, err := deps.Workflow.MySubmissions(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": presentProjects(rows, true), "total": len(rows)})
}

// GetSubmission returns one project to its author or an administrator.
func GetSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	project, err := deps.Workflow.GetForActor(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": presentProject(project, true)})
}

// GetSubmissionHistory returns the status log, newest first.
func GetSubmissionHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	rows, err := deps.Workflow.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": presentHistory(rows)})
}

// bindSubmission reads the form fields and files. Values that cannot be parsed
// travel in FormErrors so the service reports them after authorization.
func bindSubmission(c *gin.Context) (services.SubmissionInput, error) {
	var in services.SubmissionInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if c.Request.ContentLength > maxSubmissionBody {
			return in, errBodyTooLarge
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmissionBody)
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return in, errBodyTooLarge
			}
			return in, utils.NewError(utils.CodeInvalid, "Invalid multipart form")
		}
		defer c.Request.MultipartForm.RemoveAll()
	}

	in.Fields = utils.ProjectFields{
		Title:             c.PostForm("title"),
		Abstract:          c.PostForm("abstract"),
		StudentAuthorName: c.PostForm("student_author_name"),
		CollaboratorNames: c.PostForm("collaborator_names"),
		ProjectSponsor:    c.PostForm("project_sponsor"),
		GithubLink:        c.PostForm("github_link"),
		VideoLink:         c.PostForm("video_link"),
	}

	in.FormErrors = utils.FieldErrors{}
	if raw := strings.TrimSpace(c.PostForm("date_presented")); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			in.FormErrors.Add("date_presented", "Enter a valid date.")
		} else {
			in.Fields.DatePresented = &d
		}
	}

	form := c.Request.MultipartForm
	if form == nil {
		return in, nil
	}
	var err error
	if in.Attachments.PDF, err = readSingle(form, "pdf_file", services.MaxPDFSize); err != nil {
		in.FormErrors.Add("pdf_file", err.Error())
	}
	if in.Attachments.Poster, err = readSingle(form, "poster_image", services.MaxImageSize); err != nil {
		in.FormErrors.Add("poster_image", err.Error())
	}
	if in.Attachments.Presentation, err = readSingle(form, "presentation_file", services.MaxPresentationSize); err != nil {
		in.FormErrors.Add("presentation_file", err.Error())
	}
	captions := form.Value["image_captions"]
	for i, fh := range form.File["project_images"] {
		up, err := readUpload(fh, services.MaxImageSize)
		if err != nil {
			in.FormErrors.Add("project_images", fmt.Sprintf("%s: %s", fh.Filename, err))
			continue
		}
		if i < len(captions) {
			up.Caption = captions[i]
		}
		in.Attachments.Images = append(in.Attachments.Images, *up)
	}
	return in, nil
}

func readSingle(form *multipart.Form, field string, limit int64) (*services.Upload, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	return readUpload(files[0], limit)
}

// readUpload loads one part, refusing anything over limit without buffering it.
func readUpload(fh *multipart.FileHeader, limit int64) (*services.Upload, error) {
	if fh.Size > limit {
		return nil, fmt.Errorf("File too large (max %dMB)", limit>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("The submitted file is empty or could not be read.")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("The submitted file is empty or could not be read.")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("File too large (max %dMB)", limit>>20)
	}
	return &services.Upload{Filename: fh.Filename, Data: data}, nil
}
