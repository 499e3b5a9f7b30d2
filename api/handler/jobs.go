package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/api/validation"
	"github.com/use-agent/seekjobs/models"
)

// Jobs returns a handler for POST /api/v1/jobs.
//
// Listings are fetched in request order within one session. A listing that
// could not be loaded appears inline with its error; the request still
// succeeds.
func Jobs(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.JobsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}
		req.Defaults()

		records, err := s.Scraper.GetDetailsBatch(c.Request.Context(), req.JobIDs, req.DescriptionFormat)
		if err != nil {
			respondError(c, err)
			return
		}
		s.remember(c.Request.Context(), req.DescriptionFormat, records)

		c.JSON(http.StatusOK, models.JobsResponse{
			Status:      "success",
			JobCount:    len(records),
			ElapsedTime: seconds(time.Since(start)),
			Data:        records,
			OutputFile:  s.save(req.Save, "job_details", records),
		})
	}
}

// Job returns a handler for GET /api/v1/jobs/:id.
//
// Query parameters:
//
//	max_age  serve a cached or stored record younger than this many ms
//	format   "text" (default) or "markdown"
//
// Only a record extracted in the requested format counts as a hit.
//
// A listing that could not be loaded is reported with status "failed" and
// HTTP 200; only errors outside the fetch itself map to an error status.
func Job(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		id := c.Param("id")
		if !validation.ValidListingID(id) {
			invalidInput(c, "job id must be numeric")
			return
		}
		format := c.DefaultQuery("format", "text")
		if format != "text" && format != "markdown" {
			invalidInput(c, "format must be text or markdown")
			return
		}
		maxAge := 0
		if v := c.Query("max_age"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				invalidInput(c, "max_age must be a non-negative integer (milliseconds)")
				return
			}
			maxAge = n
		}

		cacheStatus := ""
		if maxAge > 0 {
			if rec, ok := s.lookup(c, id, format, maxAge); ok {
				c.JSON(http.StatusOK, models.JobsResponse{
					Status:      "success",
					JobCount:    1,
					ElapsedTime: seconds(time.Since(start)),
					Data:        []models.ListingRecord{*rec},
					CacheStatus: "hit",
				})
				return
			}
			cacheStatus = "miss"
		}

		rec, err := s.Scraper.GetDetail(ctx, id, format)
		if err != nil {
			respondError(c, err)
			return
		}
		if rec == nil {
			c.JSON(http.StatusOK, models.JobsResponse{
				Status:      "failed",
				JobCount:    0,
				ElapsedTime: seconds(time.Since(start)),
				Data:        []models.ListingRecord{},
				CacheStatus: cacheStatus,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNavigation,
					Message: "page could not be loaded",
				},
			})
			return
		}
		s.remember(ctx, format, []models.ListingRecord{*rec})

		c.JSON(http.StatusOK, models.JobsResponse{
			Status:      "success",
			JobCount:    1,
			ElapsedTime: seconds(time.Since(start)),
			Data:        []models.ListingRecord{*rec},
			CacheStatus: cacheStatus,
		})
	}
}

// lookup checks the in-memory cache first, then the store.
func (s *Services) lookup(c *gin.Context, id, format string, maxAgeMs int) (*models.ListingRecord, bool) {
	if s.Cache != nil {
		if rec, ok := s.Cache.Get(id, format, maxAgeMs); ok {
			return rec, true
		}
	}
	if s.Store == nil {
		return nil, false
	}
	rec, seen, ok, err := s.Store.GetListing(c.Request.Context(), id, format)
	if err != nil || !ok {
		return nil, false
	}
	if time.Since(seen) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	if s.Cache != nil {
		s.Cache.Set(format, rec)
	}
	return rec, true
}
