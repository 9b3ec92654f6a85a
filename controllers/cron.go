package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// isoMillis matches the timestamp layout clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FollowUpRunner is the processing pass the trigger endpoint invokes.
type FollowUpRunner interface {
	Process(ctx context.Context) (int, error)
}

// CronController exposes time-triggered jobs over HTTP. Routes must be wrapped
// in utils.TrustedInvocation.
type CronController struct {
	runner FollowUpRunner
	log    zerolog.Logger
	now    func() time.Time
}

func NewCronController(runner FollowUpRunner, log zerolog.Logger) *CronController {
	return &CronController{runner: runner, log: log, now: time.Now}
}

// ProcessFollowUps runs one pass and reports how many executions were attempted.
func (cc *CronController) ProcessFollowUps(c *gin.Context) {
	processed, err := cc.runner.Process(c.Request.Context())
	if err != nil {
		cc.log.Error().Err(err).Msg("follow-up trigger failed")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to process follow-ups")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": processed,
		"timestamp": cc.now().UTC().Format(isoMillis),
	})
}
