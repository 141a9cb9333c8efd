// Package render turns a published state record into the view model drawn by
// the dashboard.
//
// [Render] is a pure function: the same input always yields the same view.
// The page performs no decisions of its own beyond drawing the view and, in
// direct mode, reporting image load results.
package render

import (
	"net/url"
	"strconv"
	"time"

	"github.com/jpalmerr/snapview/internal/netcheck"
	"github.com/jpalmerr/snapview/internal/store"
)

// Mode names used in records.
const (
	ModeRelay  = "relay"
	ModeDirect = "direct"
)

// Stage is what the viewer area shows.
type Stage string

const (
	StagePlaceholder Stage = "placeholder"
	StageLoading     Stage = "loading"
	StageError       Stage = "error"
	StageImage       Stage = "image"
)

// NoticeKind distinguishes the side notices.
type NoticeKind string

const (
	NoticeMixedContent NoticeKind = "mixed_content"
	NoticeInfo         NoticeKind = "info"
)

// Input is everything [Render] depends on.
type Input struct {
	Record store.Record

	// PageSecure is true when the dashboard itself was served over HTTPS.
	PageSecure bool

	// Locale is the configured UI locale. Empty selects from AcceptLanguage.
	Locale         string
	AcceptLanguage string

	// Detection selects the local-address check used for remediation.
	Detection netcheck.Detection

	// Location is the time zone for displayed times. Nil means UTC.
	Location *time.Location

	// Title overrides the catalog's page title when set.
	Title string
}

// View is the dashboard's view model.
type View struct {
	Revision uint64 `json:"revision"`
	Lang     string `json:"lang"`
	Title    string `json:"title"`
	Footer   string `json:"footer"`
	Status   string `json:"status"`
	Mode     string `json:"mode"`
	Stage    Stage  `json:"stage"`

	// Placeholder is the stopped-stream text (StagePlaceholder only).
	Placeholder string `json:"placeholder,omitempty"`

	// Spinner is shown over the image while loading.
	Spinner bool `json:"spinner"`

	Image      *Image      `json:"image,omitempty"`
	ErrorPanel *ErrorPanel `json:"error_panel,omitempty"`
	StatusBar  *StatusBar  `json:"status_bar,omitempty"`
	Notice     Notice      `json:"notice"`
	Form       Form        `json:"form"`
}

// Image is the frame element.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`

	// Report asks the page to post load/error events for this attempt
	// (direct mode).
	Report bool   `json:"report"`
	RunID  string `json:"run_id,omitempty"`
	Token  int64  `json:"token"`
}

// ErrorPanel is the failure overlay.
type ErrorPanel struct {
	Title       string       `json:"title"`
	CausesTitle string       `json:"causes_title"`
	Causes      []string     `json:"causes"`
	Detected    string       `json:"detected,omitempty"`
	VerifyURL   string       `json:"verify_url"`
	VerifyLabel string       `json:"verify_label"`
	VerifyHint  string       `json:"verify_hint"`
	Remediation *Remediation `json:"remediation,omitempty"`
}

// Remediation is the browser-flag advice for Private Network Access blocks.
type Remediation struct {
	Title     string   `json:"title"`
	Intro     string   `json:"intro"`
	CopyLabel string   `json:"copy_label"`
	Flag      string   `json:"flag"`
	Steps     []string `json:"steps"`
}

// StatusBar is the strip under the frame.
type StatusBar struct {
	Online  bool   `json:"online"`
	Label   string `json:"label"`
	Updated string `json:"updated"`
}

// Notice is the side panel under the form.
type Notice struct {
	Kind  NoticeKind `json:"kind"`
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Steps []string   `json:"steps,omitempty"`
}

// Form is the configuration panel state.
type Form struct {
	Title           string  `json:"title"`
	URLLabel        string  `json:"url_label"`
	IntervalLabel   string  `json:"interval_label"`
	URL             string  `json:"url"`
	IntervalSeconds float64 `json:"interval_seconds"`
	Placeholder     string  `json:"placeholder"`
	MinInterval     float64 `json:"min_interval"`
	Disabled        bool    `json:"disabled"`
	Action          string  `json:"action"`
	Button          string  `json:"button"`
}

// formPlaceholder is the example URL shown in an empty URL input.
const formPlaceholder = "http://192.168.0.166/image/jpeg.cgi"

// minInterval mirrors the start-time lower bound for the number input.
const minInterval = 0.1

// Render computes the view for in.
func Render(in Input) View {
	cat := CatalogFor(in.Locale, in.AcceptLanguage)
	rec := in.Record
	direct := rec.Mode == ModeDirect

	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	title := cat.Title
	if in.Title != "" {
		title = in.Title
	}

	v := View{
		Revision: rec.Revision,
		Lang:     cat.Lang(),
		Title:    title,
		Footer:   cat.Footer,
		Status:   rec.Status,
		Mode:     rec.Mode,
		Notice:   notice(cat, direct, in.PageSecure, rec.URL),
		Form:     form(cat, rec),
	}

	if !rec.Running {
		v.Stage = StagePlaceholder
		v.Placeholder = cat.Stopped
		return v
	}

	v.Image = image(title, rec, direct)
	v.StatusBar = statusBar(cat, rec, loc)

	switch {
	case rec.Loading:
		v.Stage = StageLoading
		v.Spinner = true
	case rec.Error:
		v.Stage = StageError
		v.ErrorPanel = errorPanel(cat, rec, direct, in.PageSecure && netcheck.IsLocal(in.Detection, rec.URL))
	default:
		v.Stage = StageImage
	}
	return v
}

// image returns the frame element. Direct mode always points at the latest
// attempt so the browser keeps trying; relay mode shows the stored frame.
func image(alt string, rec store.Record, direct bool) *Image {
	if direct {
		if rec.DisplayURL == "" {
			return nil
		}
		return &Image{Src: rec.DisplayURL, Alt: alt, Report: true, RunID: rec.RunID, Token: rec.Token}
	}
	if rec.FrameToken == 0 {
		return nil
	}
	return &Image{Src: FrameURL(rec.FrameToken), Alt: alt, Token: rec.FrameToken}
}

// FrameURL is the relay endpoint for the frame stored under token.
func FrameURL(token int64) string {
	return "/api/frame?t=" + url.QueryEscape(strconv.FormatInt(token, 10))
}

func errorPanel(cat *Catalog, rec store.Record, direct, remediate bool) *ErrorPanel {
	p := &ErrorPanel{
		Title:       cat.ErrorTitle,
		CausesTitle: cat.CausesTitle,
		Causes:      []string{cat.CauseAuth, cat.CausePNA, cat.CauseWrongURL},
		VerifyURL:   rec.URL,
		VerifyLabel: cat.VerifyLabel,
		VerifyHint:  cat.VerifyHint,
	}

	if !direct {
		// the server fetched the frame, so the browser cannot be blocking it
		p.Causes = []string{cat.CauseAuth, cat.CauseWrongURL}
		if text := cat.CauseText(rec.Cause); text != "" {
			p.Detected = cat.DetectedCause + " " + text
		}
	}

	if direct && remediate {
		p.Remediation = &Remediation{
			Title:     cat.RemedyTitle,
			Intro:     cat.RemedyIntro,
			CopyLabel: cat.RemedyCopy,
			Flag:      PNAFlag,
			Steps:     []string{cat.RemedyPaste, cat.RemedySetDisable},
		}
	}
	return p
}

func statusBar(cat *Catalog, rec store.Record, loc *time.Location) *StatusBar {
	sb := &StatusBar{Online: !rec.Error, Label: cat.Online}
	if rec.Error {
		sb.Label = cat.Offline
	}
	if rec.IssuedAt != nil {
		sb.Updated = cat.Updated + " " + rec.IssuedAt.In(loc).Format(cat.TimeLayout)
	}
	return sb
}

func notice(cat *Catalog, direct, pageSecure bool, rawURL string) Notice {
	if direct && netcheck.ShowMixedContentWarning(pageSecure, rawURL) {
		return Notice{
			Kind:  NoticeMixedContent,
			Title: cat.MixedTitle,
			Body:  cat.MixedBody,
			Steps: append([]string(nil), cat.MixedSteps...),
		}
	}
	return Notice{Kind: NoticeInfo, Title: cat.InfoTitle, Body: cat.InfoBody}
}

func form(cat *Catalog, rec store.Record) Form {
	f := Form{
		Title:           cat.FormTitle,
		URLLabel:        cat.URLLabel,
		IntervalLabel:   cat.IntervalLabel,
		URL:             rec.URL,
		IntervalSeconds: rec.IntervalSeconds,
		Placeholder:     formPlaceholder,
		MinInterval:     minInterval,
		Disabled:        rec.Running,
		Action:          "start",
		Button:          cat.StartButton,
	}
	if rec.Running {
		f.Action = "stop"
		f.Button = cat.StopButton
	}
	return f
}
