package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/msageha/ookd/internal/driver"
	"github.com/msageha/ookd/internal/events"
	"github.com/msageha/ookd/internal/observability"
	"github.com/msageha/ookd/internal/picode"
	"github.com/msageha/ookd/internal/txctl"
)

// handleSend transmits a picode from the ?picode= query or the form field.
func (s *Server) handleSend(c *gin.Context) {
	code := strings.TrimSpace(c.Query("picode"))
	if c.Request.Method == http.MethodPost {
		code = strings.TrimSpace(c.PostForm("picode"))
	}
	if code == "" {
		plain(c, http.StatusBadRequest, "Error(400) Bad Request: no picode data")
		return
	}
	s.transmit(c, code)
}

// handleSendPath transmits a picode given as the path segment.
func (s *Server) handleSendPath(c *gin.Context) {
	code := strings.TrimSpace(c.Param("picode"))
	if code == "" {
		plain(c, http.StatusBadRequest, "Error(400) Bad Request: no picode")
		return
	}
	s.transmit(c, code)
}

func (s *Server) transmit(c *gin.Context, code string) {
	cmd, err := picode.Decode(code)
	if err != nil {
		s.log.Warn().Err(err).Str("picode", code).Msg("picode rejected")
		plain(c, http.StatusUnprocessableEntity, "Error(422) Unprocessable Entity picode string parse")
		return
	}
	train, err := picode.Compile(cmd)
	if err != nil {
		s.log.Warn().Err(err).Str("picode", code).Msg("picode rejected")
		plain(c, http.StatusUnprocessableEntity, "Error(422) Unprocessable Entity picode pulse list")
		return
	}

	req := txctl.Request{
		Channel: s.cfg.TX.Channel,
		Train:   train,
		Repeats: cmd.Repeats,
		Seconds: cmd.Seconds,
	}

	s.locks.Lock(req.Channel)
	res, err := s.sched.Execute(req)
	s.locks.Unlock(req.Channel)

	mode := txMode(cmd)
	if err != nil {
		s.publishTX(code, cmd, train, res, err)
		observability.RecordTX(s.drvName, mode, "failed", 0)
		s.log.Error().Err(err).Str("picode", code).Msg("tx failed")
		if fc, ok := failureCode(err); ok {
			plain(c, http.StatusFailedDependency, "ERROR (%d)", int(fc))
		} else {
			plain(c, http.StatusFailedDependency, "Error(424) %v", err)
		}
		return
	}

	s.stats.RecordTX()
	s.publishTX(code, cmd, train, res, nil)

	if cmd.Seconds > 0 {
		observability.RecordTX(s.drvName, mode, "ok", 0)
		s.log.Info().Str("picode", code).Int("secs", cmd.Seconds).Int("calls", res.Calls).Msg("tx sent")
		plain(c, http.StatusAccepted, "RF TX sent picode for %d secs OK", cmd.Seconds)
		return
	}

	outcome, suffix := "ok", "OK"
	if res.Dropped {
		outcome, suffix = "dropped", "TX dropped!"
	}
	observability.RecordTX(s.drvName, mode, outcome, res.Millis)
	s.log.Info().Str("picode", code).Int("ms", res.Millis).Bool("dropped", res.Dropped).Msg("tx sent")
	plain(c, http.StatusAccepted, "RF TX sent picode in %d ms %s", res.Millis, suffix)
}

func (s *Server) publishTX(code string, cmd picode.Command, train picode.Train, res txctl.Result, err error) {
	ev := events.Event{
		Type:    events.TypeTX,
		Picode:  code,
		Pulses:  len(train),
		Repeats: cmd.Repeats,
		Seconds: cmd.Seconds,
		Millis:  res.Millis,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}

func txMode(cmd picode.Command) string {
	if cmd.Seconds > 0 {
		return "timed"
	}
	return "counted"
}

// failureCode maps a transmit failure to the firmware result code reported
// on the wire. Safety checks refused before the hardware report the same
// code the firmware would have returned.
func failureCode(err error) (driver.Code, bool) {
	var derr *driver.Error
	if errors.As(err, &derr) {
		return derr.Code, true
	}
	switch {
	case errors.Is(err, txctl.ErrPulseCount):
		return driver.CodeInvalidCount, true
	case errors.Is(err, txctl.ErrOddTrain):
		return driver.CodeOddTrain, true
	case errors.Is(err, txctl.ErrPulseLength):
		return driver.CodeInvalidLength, true
	case errors.Is(err, txctl.ErrTxBudget):
		return driver.CodeInvalidTxTime, true
	}
	return 0, false
}
