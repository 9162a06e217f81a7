package handlers

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/pipeline"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Economic news digest</title></head>
<body>
<p>Service running. <a href="/report">Click here</a> to trigger a report manually or wait for the scheduled run.</p>
<ul>
{{- if .Times}}
<li>Schedule: {{range $i, $t := .Times}}{{if $i}}, {{end}}{{$t}}{{end}}</li>
{{- end}}
{{- if not .Next.IsZero}}
<li>Next run: {{.Next.Format "2006-01-02 15:04 MST"}}</li>
{{- end}}
<li>Run in progress: {{if .Status.Running}}yes{{else}}no{{end}}</li>
{{- if .Status.LastOutcome}}
<li>Last run: {{.Status.LastOutcome}} at {{.Status.LastFinished.Format "2006-01-02 15:04:05 MST"}}</li>
{{- end}}
<li>Version: {{.Version}}</li>
</ul>
</body>
</html>
`))

type indexData struct {
	Times   []string
	Next    time.Time
	Status  pipeline.Status
	Version string
}

// indexHandler renders the status page
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Status:  s.runner.Status(),
		Version: s.opts.Version,
	}
	if s.schedule != nil {
		data.Times = s.schedule.Times()
		data.Next = s.schedule.Next()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("Rendering status page failed", zap.Error(err))
	}
}

// reportHandler starts a run. By default it returns 202 at once; with
// wait=true the run executes within the request.
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		s.runner.Trigger(r.Context())
		WriteJSON(w, http.StatusAccepted, Response{
			Status:  "accepted",
			Message: "Report generation initiated. Check logs for status.",
		})
		return
	}

	outcome := s.runner.Run(context.WithoutCancel(r.Context()))
	status := http.StatusOK
	switch outcome {
	case pipeline.OutcomeRejected:
		status = http.StatusConflict
	case pipeline.OutcomeFailed:
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, Response{Status: string(outcome), Data: s.runner.Status()})
}
