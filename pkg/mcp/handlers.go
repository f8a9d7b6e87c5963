package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// refreshJobKind is the only background job kind
const refreshJobKind = "bulk_refresh"

// handleSearchTags handles the search_tags tool
func (s *Server) handleSearchTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term := request.GetString("term", "")
	if term == "" {
		return mcp.NewToolResultError("term parameter is required"), nil
	}

	category := models.Category(strings.ToLower(request.GetString("category", "")))
	if category != models.CategoryUnset && (!category.IsValid() || category.IsBulk()) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown category '%s'. Available categories: %v", category, models.SearchCategories)), nil
	}

	result, err := s.cfg.Search.Search(ctx, term)
	if err != nil {
		s.log.WithField("term", term).Errorf("search_tags failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed (%s)", utils.CategorizeError(err))), nil
	}

	response := map[string]interface{}{
		"term":  term,
		"found": !result.IsEmpty(),
	}
	if category != models.CategoryUnset {
		tags := result.Category(category)
		if tags == nil {
			tags = []models.TagRecord{}
		}
		response["category"] = category
		response["tags"] = tags
		response["total"] = len(tags)
	} else {
		response["result"] = result
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetNewTags handles the get_new_tags tool
func (s *Server) handleGetNewTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listing(ctx, request, models.CategoryNew, s.cfg.Bulk.NewTags)
}

// handleGetBestTags handles the get_best_tags tool
func (s *Server) handleGetBestTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.listing(ctx, request, models.CategoryBestBulk, s.cfg.Bulk.BestTags)
}

func (s *Server) listing(ctx context.Context, request mcp.CallToolRequest, category models.Category,
	get func(context.Context) ([]models.TagRecord, error)) (*mcp.CallToolResult, error) {
	tags, err := get(ctx)
	if err != nil {
		s.log.WithField("category", category).Errorf("Bulk listing failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("listing unavailable (%s)", utils.CategorizeError(err))), nil
	}

	total := len(tags)
	if limit := request.GetInt("limit", 0); limit > 0 && limit < total {
		tags = tags[:limit]
	}
	if tags == nil {
		tags = []models.TagRecord{}
	}

	response := map[string]interface{}{
		"category": category,
		"tags":     tags,
		"returned": len(tags),
		"total":    total,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRefreshBulkTags handles the refresh_bulk_tags tool
func (s *Server) handleRefreshBulkTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, created := s.jobManager.CreateJob(refreshJobKind)
	if !created {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A bulk refresh is already in progress",
			"job_id":  job.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	go s.runRefreshJob(job.ID)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Bulk refresh started successfully",
		"job_id":  job.ID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.Status == JobStatusCompleted {
		result["new_tags_count"] = job.NewTagsCount
		result["best_tags_count"] = job.BestTagsCount
		if !job.LastUpdate.IsZero() {
			result["last_update"] = job.LastUpdate.Format(time.RFC3339)
		}
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runRefreshJob runs a forced bulk refresh in the background
func (s *Server) runRefreshJob(jobID string) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobLog := s.log.WithField("job_id", jobID)
	jobLog.Info("Bulk refresh job started")

	entry, err := s.cfg.Bulk.ForceRefresh(s.jobManager.GetContext(jobID))
	if err != nil {
		jobLog.Errorf("Bulk refresh job failed: %v", err)
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		return
	}

	s.jobManager.SetResult(jobID, len(entry.NewTags), len(entry.BestTags), entry.LastUpdate)
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	jobLog.Infof("Bulk refresh job completed: %d new, %d best", len(entry.NewTags), len(entry.BestTags))
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
