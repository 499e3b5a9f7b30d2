package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/models"
)

// Cards returns a handler for POST /api/v1/cards.
//
// Walks the search results from search_url, keeping cards inside the
// posted_date_limit window, and optionally saves them to the output dir.
func Cards(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.CardsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err.Error())
			return
		}

		refs, err := s.Scraper.ListCards(c.Request.Context(), req.SearchURL, req.PostedDateLimit)
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("job cards listed", "search_url", req.SearchURL, "limit", req.PostedDateLimit, "count", len(refs))

		c.JSON(http.StatusOK, models.CardsResponse{
			Status:        "success",
			JobCardCount:  len(refs),
			ExecutionTime: seconds(time.Since(start)),
			Data:          refs,
			OutputFile:    s.save(req.Save, "job_cards", refs),
		})
	}
}
