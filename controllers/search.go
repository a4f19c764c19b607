package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-showcase-api/services"
	"research-showcase-api/utils"
)

// SearchProjects filters approved projects by keyword and semester range.
// GET /api/v1/projects/search?q=&start_semester=Spring+2024&end_semester=Fall+2024&sort_by=date|title
func SearchProjects(c *gin.Context) {
	result, err := deps.Search.Search(c.Request.Context(), services.SearchParams{
		Query:         c.Query("q"),
		StartSemester: c.Query("start_semester"),
		EndSemester:   c.Query("end_semester"),
		SortBy:        c.Query("sort_by"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           presentProjects(result.Projects, false),
		"total":          len(result.Projects),
		"query":          result.Query,
		"semesters":      result.Semesters,
		"start_semester": result.StartSemester,
		"end_semester":   result.EndSemester,
		"sort_by":        result.SortBy,
		"date_filtered":  result.DateFiltered,
	})
}

// GetRecentProjects returns the latest approved projects for the home page.
// GET /api/v1/projects/recent?limit=5
func GetRecentProjects(c *gin.Context) {
	rows, err := deps.Workflow.RecentPublished(c.Request.Context(), parseIntOrDefault(c.Query("limit"), 5))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": presentProjects(rows, false)})
}

// GetProject returns an approved project. Unpublished projects read as not found.
// GET /api/v1/projects/:id
func GetProject(c *gin.Context) {
	project, err := deps.Workflow.GetPublished(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": presentProject(project, false)})
}

// GetSemesters returns the selectable semesters and the default range.
// GET /api/v1/semesters
func GetSemesters(c *gin.Context) {
	r, err := deps.Search.DefaultRange(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"semesters":      utils.SemesterLabels(r.Semesters),
		"start_semester": r.Start.Label(),
		"end_semester":   r.End.Label(),
	})
}
