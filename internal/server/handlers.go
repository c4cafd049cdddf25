package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/storage"
)

const (
	defaultRunsLimit = 50
	defaultTopN      = 10
)

// TradesResponse lists the stored trades of one candidate rank
type TradesResponse struct {
	RunID  string                `json:"run_id"`
	Rank   int                   `json:"rank"`
	Count  int                   `json:"count"`
	Trades []storage.TradeRecord `json:"trades"`
}

func (s *Server) getProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) listRuns(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit, ok := intQuery(c, "limit", defaultRunsLimit)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	top, ok := intQuery(c, "top", defaultTopN)
	if !ok {
		return
	}
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"), top)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// getTrades returns the trades of rank 1 (best) by default; rank 0 is the
// baseline replay
func (s *Server) getTrades(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	rank, ok := intQuery(c, "rank", 1)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, err := s.store.GetRun(c.Request.Context(), id, 1); err != nil {
		s.storageError(c, err)
		return
	}
	trades, err := s.store.GetTrades(c.Request.Context(), id, rank)
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, TradesResponse{RunID: id, Rank: rank, Count: len(trades), Trades: trades})
}

func (s *Server) deleteRun(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	if err := s.store.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		s.storageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results database not configured"})
		return false
	}
	return true
}

func (s *Server) storageError(c *gin.Context, err error) {
	c.Error(err)
	if errors.Is(err, storage.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// intQuery parses a non-negative integer query parameter
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + raw})
		return 0, false
	}
	return v, true
}
