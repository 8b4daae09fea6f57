// internal/handler/tracking_handler.go
package handler

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

// TrackingHandler serves the unauthenticated links embedded in simulation emails.
// Responses never reveal whether a token was valid or already used.
type TrackingHandler struct {
	Recorder *service.EventRecorder
	Log      zerolog.Logger
}

func (h *TrackingHandler) Routes(r chi.Router) {
	r.Get("/{token}", h.Click)
	r.Post("/{token}/submit", h.Submit)
	r.Post("/{token}/report", h.Report)
}

// Click records the click and shows the landing page.
func (h *TrackingHandler) Click(w http.ResponseWriter, r *http.Request) {
	h.landing(w, r, model.StageClicked)
}

// Submit records a credential submission. The form body is never read.
func (h *TrackingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.landing(w, r, model.StageSubmitted)
}

// Report records that the recipient reported the email as phishing.
func (h *TrackingHandler) Report(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Recorder.Record(r.Context(), chi.URLParam(r, "token"), model.StageReported); err != nil && !appErrors.IsNotFound(err) {
		h.Log.Error().Err(err).Msg("failed to record report")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrackingHandler) landing(w http.ResponseWriter, r *http.Request, stage string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("X-Robots-Tag", "noindex")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if _, err := h.Recorder.Record(r.Context(), chi.URLParam(r, "token"), stage); err != nil {
		if !appErrors.IsNotFound(err) {
			h.Log.Error().Err(err).Str("stage", stage).Msg("failed to record tracking event")
		}
		w.WriteHeader(http.StatusNotFound)
		notFoundPage.Execute(w, nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	landingPage.Execute(w, struct{ Submitted bool }{stage == model.StageSubmitted})
}

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>This was a phishing simulation</title>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 640px; margin: 40px auto; padding: 0 20px; }
  h1 { color: #c0392b; }
  .box { background: #fdf2e9; border-left: 4px solid #e67e22; padding: 12px 16px; margin: 20px 0; }
  li { margin-bottom: 6px; }
</style>
</head>
<body>
<h1>This was a phishing simulation</h1>
<p>The message you just {{if .Submitted}}entered details into{{else}}opened a link from{{end}} was sent by your organization's security-awareness program. No harm was done{{if .Submitted}} and nothing you typed was stored{{end}}.</p>
<div class="box">
  <strong>Next time, look for:</strong>
  <ul>
    <li>Sender addresses that do not match the brand they claim to be.</li>
    <li>Urgent requests about parcels, payments or account suspensions.</li>
    <li>Links whose destination differs from the text you clicked.</li>
    <li>Requests for passwords or card details outside the official app or website.</li>
  </ul>
</div>
<p>If you are unsure about a message, report it to your IT or security team instead of clicking.</p>
</body>
</html>
`))

var notFoundPage = template.Must(template.New("not_found").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Page not found</title></head>
<body style="font-family: Arial, sans-serif; text-align: center; margin-top: 80px; color: #555;">
<h1>404</h1>
<p>The page you are looking for does not exist.</p>
</body>
</html>
`))
