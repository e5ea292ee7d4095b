package endpoints

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/EasterCompany/dex-voice-rating/cache"
	"github.com/EasterCompany/dex-voice-rating/dialogue"
	"github.com/EasterCompany/dex-voice-rating/form"
	"github.com/EasterCompany/dex-voice-rating/options"
)

type chip struct {
	Label    string
	Selected bool
}

type formView struct {
	Token   string
	Draft   dialogue.Draft
	Chips   []chip
	Enabled bool
}

const (
	ratePath         = "/rate/"
	confirmationPath = "/rate/confirmation/"
	csrfCookie       = "csrftoken"
	csrfField        = "csrfmiddlewaretoken"
)

var formPage = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html><head><title>Rate your ride</title></head>
<body>
<form method="post" action="/rate/">
<input type="hidden" name="csrfmiddlewaretoken" value="{{.Token}}">
<input type="text" name="motor_type" value="{{.Draft.VehicleType}}">
<input type="number" name="score" step="0.5" min="1" max="5"{{if .Draft.HasScore}} value="{{.Draft.ScoreText}}"{{end}}>
<input type="hidden" name="system_comments" value="{{.Draft.SystemComments}}">
{{range .Chips}}<button type="button" class="chip{{if .Selected}} selected{{end}}" data-comment="{{.Label}}">{{.Label}}</button>
{{end}}<textarea name="comment">{{.Draft.FreeTextComment}}</textarea>
<input type="text" name="motor_car_number" value="{{.Draft.PlateNumber}}">
<input type="hidden" name="location">
<input type="hidden" name="voice_mode">
<button type="submit"{{if not .Enabled}} disabled{{end}}>Submit</button>
</form>
</body></html>
`))

var confirmationPage = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html><head><title>Thank you</title></head>
<body>
<h1>Rating #{{.ID}} received</h1>
<p>{{.MotorType}} {{.PlateNumber}}: {{.Score}} stars</p>
{{if .SystemComments}}<p>{{.SystemComments}}</p>{{end}}
{{if .Comment}}<p>{{.Comment}}</p>{{end}}
</body></html>
`))

// RateHandler serves the rating form and accepts its submission.
func (s *Server) RateHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ratePath {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.renderForm(w, r)
	case http.MethodPost:
		s.submitRating(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request) {
	token := uuid.NewString()
	if c, err := r.Cookie(csrfCookie); err == nil && c.Value != "" {
		token = c.Value
	}
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: token, Path: "/", SameSite: http.SameSiteLaxMode})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formPage.Execute(w, newFormView(token, r.URL.Query())); err != nil {
		log.Printf("Error rendering form: %v", err)
	}
}

// newFormView prefills the form from query parameters named like its
// fields. The chips follow the score and the submit button stays disabled
// until the rating is complete.
func newFormView(token string, q url.Values) formView {
	d := dialogue.Draft{
		VehicleType:     strings.TrimSpace(q.Get(form.FieldMotorType)),
		FreeTextComment: strings.TrimSpace(q.Get(form.FieldComment)),
		PlateNumber:     strings.TrimSpace(q.Get(form.FieldPlate)),
	}
	if score, err := strconv.ParseFloat(q.Get(form.FieldScore), 64); err == nil && score >= 1 && score <= 5 {
		d.Score = score
	}
	if d.HasScore() {
		for _, c := range strings.Split(q.Get(form.FieldSystemComments), ", ") {
			if options.Contains(d.Score, c) {
				d.Select(c)
			}
		}
	}

	view := formView{Token: token, Draft: d, Enabled: form.Enabled(d)}
	if d.HasScore() {
		selected := make(map[string]bool, len(d.SelectedComments))
		for _, c := range d.SelectedComments {
			selected[c] = true
		}
		for _, label := range options.Chips(d.Score) {
			view.Chips = append(view.Chips, chip{Label: label, Selected: selected[label] || (label == options.Other && d.FreeTextComment != "")})
		}
	}
	return view
}

func (s *Server) submitRating(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	c, err := r.Cookie(csrfCookie)
	if err != nil || c.Value == "" || c.Value != r.PostForm.Get(csrfField) {
		http.Error(w, "CSRF verification failed", http.StatusForbidden)
		return
	}

	rating, err := parseRating(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rating.CreatedAt = s.now()

	id, err := s.store.SaveRating(r.Context(), rating)
	if err != nil {
		log.Printf("Error saving rating: %v", err)
		http.Error(w, "Could not save rating", http.StatusInternalServerError)
		return
	}
	log.Printf("Rating %d saved (%s, %.1f stars, voice=%t)", id, rating.MotorType, rating.Score, rating.VoiceMode)
	http.Redirect(w, r, fmt.Sprintf("%s%d/", confirmationPath, id), http.StatusSeeOther)
}

func parseRating(r *http.Request) (*cache.Rating, error) {
	f := r.PostForm
	rating := &cache.Rating{
		MotorType:      strings.TrimSpace(f.Get("motor_type")),
		SystemComments: strings.TrimSpace(f.Get("system_comments")),
		Comment:        strings.TrimSpace(f.Get("comment")),
		PlateNumber:    strings.TrimSpace(f.Get("motor_car_number")),
		Location:       strings.TrimSpace(f.Get("location")),
		VoiceMode:      f.Get("voice_mode") == "1",
	}
	if rating.MotorType == "" {
		return nil, errors.New("motor_type is required")
	}
	score, err := strconv.ParseFloat(f.Get("score"), 64)
	if err != nil || score < 1 || score > 5 {
		return nil, errors.New("score must be between 1 and 5")
	}
	rating.Score = score
	if rating.SystemComments == "" && rating.Comment == "" {
		return nil, errors.New("at least one comment is required")
	}
	// Voice submissions may omit the plate.
	if rating.PlateNumber == "" && !rating.VoiceMode {
		return nil, errors.New("motor_car_number is required")
	}
	return rating, nil
}

// ConfirmationHandler renders /rate/confirmation/{id}/.
func (s *Server) ConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, confirmationPath), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rating, err := s.store.LoadRating(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Error loading rating %d: %v", id, err)
		http.Error(w, "Could not load rating", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := confirmationPage.Execute(w, rating); err != nil {
		log.Printf("Error rendering confirmation: %v", err)
	}
}
