package render

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/snapview/internal/netcheck"
	"github.com/jpalmerr/snapview/internal/store"
)

var issued = time.Date(2024, 5, 1, 14, 5, 9, 0, time.UTC)

func running(mode string) store.Record {
	return store.Record{
		Status:          "ACTIVE",
		Phase:           "DISPLAYING",
		Running:         true,
		Mode:            mode,
		URL:             "http://192.168.0.166/image/jpeg.cgi",
		IntervalSeconds: 1,
		RunID:           "run-1",
		Token:           1714572309000,
		DisplayURL:      "http://192.168.0.166/image/jpeg.cgi?t=1714572309000",
		IssuedAt:        &issued,
		Attempts:        3,
		Revision:        12,
	}
}

func TestRender_Idle(t *testing.T) {
	v := Render(Input{Record: store.Record{Status: "IDLE", Phase: "IDLE", Mode: ModeRelay, URL: "http://cam", IntervalSeconds: 2}})

	if v.Stage != StagePlaceholder || v.Placeholder != "Поток остановлен" {
		t.Errorf("Stage = %q, Placeholder = %q", v.Stage, v.Placeholder)
	}
	if v.Image != nil || v.StatusBar != nil || v.ErrorPanel != nil || v.Spinner {
		t.Errorf("idle view has stream elements: %+v", v)
	}
	if v.Form.Disabled || v.Form.Action != "start" || v.Form.Button != "Запустить поток" {
		t.Errorf("Form = %+v, want enabled start form", v.Form)
	}
	if v.Form.URL != "http://cam" || v.Form.IntervalSeconds != 2 || v.Form.MinInterval != 0.1 {
		t.Errorf("Form values = %+v", v.Form)
	}
	if v.Lang != "ru-RU" {
		t.Errorf("Lang = %q, want ru-RU", v.Lang)
	}
}

func TestRender_LoadingShowsSpinner(t *testing.T) {
	rec := running(ModeRelay)
	rec.Phase = "LOADING"
	rec.Loading = true

	v := Render(Input{Record: rec})
	if v.Stage != StageLoading || !v.Spinner {
		t.Errorf("Stage = %q, Spinner = %v", v.Stage, v.Spinner)
	}
	if v.Image != nil {
		t.Errorf("relay view without a frame has image %+v", v.Image)
	}
	if !v.Form.Disabled || v.Form.Action != "stop" {
		t.Errorf("Form = %+v, want disabled stop form", v.Form)
	}
}

func TestRender_DisplayingRelay(t *testing.T) {
	rec := running(ModeRelay)
	rec.FrameToken = 1714572308000

	v := Render(Input{Record: rec, Title: "Porch"})

	if v.Stage != StageImage {
		t.Fatalf("Stage = %q, want image", v.Stage)
	}
	if v.Image == nil || v.Image.Src != "/api/frame?t=1714572308000" || v.Image.Report {
		t.Errorf("Image = %+v, want relay frame", v.Image)
	}
	if v.Title != "Porch" || v.Image.Alt != "Porch" {
		t.Errorf("Title = %q, Alt = %q", v.Title, v.Image.Alt)
	}
	if v.StatusBar == nil || !v.StatusBar.Online || v.StatusBar.Label != "Онлайн" {
		t.Errorf("StatusBar = %+v, want online", v.StatusBar)
	}
	if v.StatusBar.Updated != "Обновлено: 14:05:09" {
		t.Errorf("Updated = %q", v.StatusBar.Updated)
	}
}

func TestRender_DisplayingDirect(t *testing.T) {
	v := Render(Input{Record: running(ModeDirect)})

	if v.Image == nil || v.Image.Src != running(ModeDirect).DisplayURL {
		t.Fatalf("Image = %+v, want display url", v.Image)
	}
	if !v.Image.Report || v.Image.RunID != "run-1" || v.Image.Token != 1714572309000 {
		t.Errorf("Image = %+v, want reporting attempt", v.Image)
	}
}

// TestRender_DirectSecureLocalFailure is the secure-page local-camera failure:
// the error panel carries the browser flag remediation.
func TestRender_DirectSecureLocalFailure(t *testing.T) {
	rec := running(ModeDirect)
	rec.Status = "ERROR"
	rec.Phase = "ERROR"
	rec.Error = true
	rec.Cause = "load_failed"

	v := Render(Input{Record: rec, PageSecure: true})

	if v.Stage != StageError || v.ErrorPanel == nil {
		t.Fatalf("Stage = %q, ErrorPanel = %v", v.Stage, v.ErrorPanel)
	}
	p := v.ErrorPanel
	if len(p.Causes) != 3 {
		t.Errorf("Causes = %v, want login, PNA and URL", p.Causes)
	}
	if p.VerifyURL != rec.URL {
		t.Errorf("VerifyURL = %q, want raw URL %q", p.VerifyURL, rec.URL)
	}
	if p.Remediation == nil || p.Remediation.Flag != PNAFlag {
		t.Errorf("Remediation = %+v, want PNA flag", p.Remediation)
	}
	if v.StatusBar == nil || v.StatusBar.Online || v.StatusBar.Label != "Оффлайн" {
		t.Errorf("StatusBar = %+v, want offline", v.StatusBar)
	}
	if v.Image == nil {
		t.Error("direct error view dropped the image, later attempts could not load")
	}
	if v.Notice.Kind != NoticeMixedContent || len(v.Notice.Steps) != 3 {
		t.Errorf("Notice = %+v, want mixed content warning", v.Notice)
	}
}

func TestRender_RemediationConditions(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		secure    bool
		url       string
		detection netcheck.Detection
		want      bool
	}{
		{name: "insecure page", mode: ModeDirect, secure: false, url: "http://192.168.0.166/x", want: false},
		{name: "public camera", mode: ModeDirect, secure: true, url: "http://8.8.8.8/x", want: false},
		{name: "relay mode", mode: ModeRelay, secure: true, url: "http://192.168.0.166/x", want: false},
		{name: "hostname under cidr", mode: ModeDirect, secure: true, url: "http://10.example.com/x", detection: netcheck.DetectCIDR, want: false},
		{name: "hostname under heuristic", mode: ModeDirect, secure: true, url: "http://10.example.com/x", detection: netcheck.DetectHeuristic, want: true},
		{name: "local camera", mode: ModeDirect, secure: true, url: "http://10.0.0.5/x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := running(tt.mode)
			rec.URL = tt.url
			rec.Error = true
			rec.Status = "ERROR"

			v := Render(Input{Record: rec, PageSecure: tt.secure, Detection: tt.detection})
			if got := v.ErrorPanel.Remediation != nil; got != tt.want {
				t.Errorf("remediation shown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRender_RelayFailureNamesCause(t *testing.T) {
	rec := running(ModeRelay)
	rec.Error = true
	rec.Status = "ERROR"
	rec.Cause = "auth_required"
	rec.FrameToken = 100

	v := Render(Input{Record: rec, Locale: "en-US"})

	p := v.ErrorPanel
	if p.Detected != "Detected: authentication required" {
		t.Errorf("Detected = %q", p.Detected)
	}
	for _, c := range p.Causes {
		if strings.Contains(c, "Private Network") {
			t.Errorf("relay causes mention PNA: %v", p.Causes)
		}
	}
	if p.Remediation != nil {
		t.Errorf("Remediation = %+v in relay mode, want none", p.Remediation)
	}
	if v.Image == nil || v.Image.Src != "/api/frame?t=100" {
		t.Errorf("Image = %+v, want last good frame kept", v.Image)
	}
}

func TestRender_Notice(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		secure bool
		url    string
		want   NoticeKind
	}{
		{name: "direct secure http", mode: ModeDirect, secure: true, url: "HTTP://cam/x", want: NoticeMixedContent},
		{name: "direct secure https", mode: ModeDirect, secure: true, url: "https://cam/x", want: NoticeInfo},
		{name: "direct insecure", mode: ModeDirect, secure: false, url: "http://cam/x", want: NoticeInfo},
		{name: "relay secure http", mode: ModeRelay, secure: true, url: "http://cam/x", want: NoticeInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Render(Input{Record: store.Record{Mode: tt.mode, URL: tt.url}, PageSecure: tt.secure})
			if v.Notice.Kind != tt.want {
				t.Errorf("Notice.Kind = %q, want %q", v.Notice.Kind, tt.want)
			}
		})
	}
}

func TestRender_EnglishTimeFormat(t *testing.T) {
	v := Render(Input{Record: running(ModeRelay), AcceptLanguage: "en-GB,en;q=0.8"})

	if v.Lang != "en-US" {
		t.Errorf("Lang = %q, want en-US", v.Lang)
	}
	if v.StatusBar.Updated != "Updated: 2:05:09 PM" {
		t.Errorf("Updated = %q", v.StatusBar.Updated)
	}
}

func TestRender_Location(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	v := Render(Input{Record: running(ModeRelay), Location: moscow})
	if v.StatusBar.Updated != "Обновлено: 17:05:09" {
		t.Errorf("Updated = %q", v.StatusBar.Updated)
	}
}

func TestCatalogFor(t *testing.T) {
	tests := []struct {
		locale, accept, want string
	}{
		{locale: "", accept: "", want: "ru-RU"},
		{locale: "en", accept: "ru", want: "en-US"},
		{locale: "ru", accept: "en-US", want: "ru-RU"},
		{locale: "", accept: "en-US,en;q=0.9", want: "en-US"},
		{locale: "", accept: "de-DE", want: "ru-RU"},
		{locale: "not a tag!", accept: "en", want: "en-US"},
		{locale: "", accept: ";;;", want: "ru-RU"},
	}

	for _, tt := range tests {
		if got := CatalogFor(tt.locale, tt.accept).Lang(); got != tt.want {
			t.Errorf("CatalogFor(%q, %q) = %q, want %q", tt.locale, tt.accept, got, tt.want)
		}
	}
}

func TestCatalogs_CoverEveryCause(t *testing.T) {
	causes := []string{
		"invalid_url", "timeout", "unreachable", "auth_required", "http_status",
		"not_image", "read_failed", "too_large", "canceled", "load_failed", "loader_panic",
	}
	for _, c := range catalogs {
		for _, cause := range causes {
			if c.CauseText(cause) == "" {
				t.Errorf("catalog %s has no text for %q", c.Lang(), cause)
			}
		}
	}
}
