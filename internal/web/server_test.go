package web

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/urgency"
)

const seizureLetter = "Es droht eine Pfändung Ihres Kontos. Reagieren Sie innerhalb von 3 Tagen."

type testEnv struct {
	server *httptest.Server
	client *http.Client
	store  *history.Store
}

func newTestEnv(t *testing.T, withHistory bool, rate int) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RatePerMinute = rate

	now := time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)
	a := analyzer.New(cfg.Analysis, analyzer.WithClock(func() time.Time { return now }))

	var store *history.Store
	if withHistory {
		var err error
		store, err = history.NewStore(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		t.Cleanup(func() { store.Close() })
	}

	s, err := NewServer(cfg, a, store)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{server: ts, client: &http.Client{Jar: jar}, store: store}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestAPIAnalyzeAndHistory(t *testing.T) {
	env := newTestEnv(t, true, 100)

	resp := env.postJSON(t, "/api/analyze", map[string]any{"text": seizureLetter, "source": "test", "save": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var got struct {
		ID     string                `json:"id"`
		Saved  bool                  `json:"saved"`
		Result urgency.ScoringResult `json:"result"`
	}
	decode(t, resp, &got)
	if !got.Saved || got.ID == "" {
		t.Fatalf("saved=%v id=%q", got.Saved, got.ID)
	}
	if got.Result.Tier != urgency.TierRed || got.Result.Score != 100 || got.Result.Category != urgency.CategoryEnforcement {
		t.Errorf("result: got %s/%d/%s", got.Result.Tier, got.Result.Score, got.Result.Category)
	}

	var records []history.Record
	decode(t, env.do(t, http.MethodGet, "/api/history"), &records)
	if len(records) != 1 || records[0].ID != got.ID || records[0].Source != "test" {
		t.Fatalf("history: got %+v", records)
	}

	var rec history.Record
	resp = env.do(t, http.MethodGet, "/api/history/"+got.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", resp.StatusCode)
	}
	decode(t, resp, &rec)
	if len(rec.Matches) != 1 || rec.Matches[0].Keyword != "pfändung" {
		t.Errorf("matches: got %+v", rec.Matches)
	}

	var stats history.Stats
	decode(t, env.do(t, http.MethodGet, "/api/stats"), &stats)
	if stats != (history.Stats{Total: 1, Red: 1}) {
		t.Errorf("stats: got %+v", stats)
	}

	if resp := env.do(t, http.MethodDelete, "/api/history/"+got.ID); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status: got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/api/history/"+got.ID); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status: got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/history/"+got.ID); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status: got %d", resp.StatusCode)
	}
}

func TestAPIAnalyzeWithoutSave(t *testing.T) {
	env := newTestEnv(t, true, 100)

	resp := env.postJSON(t, "/api/analyze", map[string]any{"text": seizureLetter})
	var got struct {
		Saved bool `json:"saved"`
	}
	decode(t, resp, &got)
	if got.Saved {
		t.Error("saved without being asked")
	}
	st, err := env.store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 0 {
		t.Errorf("store has %d records", st.Total)
	}
}

func TestAPIAnalyzeErrors(t *testing.T) {
	env := newTestEnv(t, true, 100)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		message     string
	}{
		{"too short", "application/json", `{"text":"Mahnung"}`, http.StatusUnprocessableEntity, "Text zu kurz"},
		{"bad json", "application/json", `{"text":`, http.StatusBadRequest, "Ungültige JSON-Anfrage"},
		{"unknown field", "application/json", `{"txt":"Mahnung"}`, http.StatusBadRequest, "Ungültige JSON-Anfrage"},
		{"form content type", "application/x-www-form-urlencoded", `text=Mahnung`, http.StatusUnsupportedMediaType, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.client.Post(env.server.URL+"/api/analyze", tt.contentType, strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.status)
			}
			var e map[string]string
			decode(t, resp, &e)
			if !strings.Contains(e["error"], tt.message) {
				t.Errorf("error: got %q, want it to contain %q", e["error"], tt.message)
			}
		})
	}
}

func TestAPIHighlight(t *testing.T) {
	env := newTestEnv(t, false, 100)

	resp := env.postJSON(t, "/api/highlight", map[string]any{"text": "Es droht eine Pfändung Ihres Kontos."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var got struct {
		Text  string                  `json:"text"`
		Spans []urgency.HighlightSpan `json:"spans"`
	}
	decode(t, resp, &got)
	if len(got.Spans) != 1 {
		t.Fatalf("spans: got %+v", got.Spans)
	}
	sp := got.Spans[0]
	if sp.Start != 14 || sp.End != 23 || got.Text[sp.Start:sp.End] != "Pfändung" {
		t.Errorf("span: got %d..%d", sp.Start, sp.End)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, false, 100)

	for _, path := range []string{"/api/history", "/api/stats", "/api/history/abc"} {
		if resp := env.do(t, http.MethodGet, path); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, resp.StatusCode)
		}
	}

	resp := env.postJSON(t, "/api/analyze", map[string]any{"text": seizureLetter, "save": true})
	var got struct {
		Saved bool `json:"saved"`
	}
	decode(t, resp, &got)
	if got.Saved {
		t.Error("saved without a store")
	}
}

func TestAPIHistoryLimit(t *testing.T) {
	env := newTestEnv(t, true, 100)

	tests := []struct {
		query  string
		status int
	}{
		{"?limit=10", http.StatusOK},
		{"?limit=0", http.StatusBadRequest},
		{"?limit=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if resp := env.do(t, http.MethodGet, "/api/history"+tt.query); resp.StatusCode != tt.status {
			t.Errorf("%s: got %d, want %d", tt.query, resp.StatusCode, tt.status)
		}
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, false, 2)

	for i := 0; i < 2; i++ {
		if resp := env.postJSON(t, "/api/analyze", map[string]any{"text": seizureLetter}); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: got %d", i, resp.StatusCode)
		}
	}
	if resp := env.postJSON(t, "/api/analyze", map[string]any{"text": seizureLetter}); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third request: got %d, want 429", resp.StatusCode)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") {
		t.Fatal("first request denied")
	}
	if rl.Allow("a") {
		t.Error("second request allowed within window")
	}
	if !rl.Allow("b") {
		t.Error("other client denied")
	}
	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Error("request denied after window")
	}
}

var csrfField = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func TestAnalyzeForm(t *testing.T) {
	env := newTestEnv(t, true, 100)

	resp := env.do(t, http.MethodGet, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status: %d", resp.StatusCode)
	}
	m := csrfField.FindStringSubmatch(readBody(t, resp))
	if m == nil {
		t.Fatal("no CSRF field on the form")
	}
	token := html.UnescapeString(m[1])

	t.Run("without token", func(t *testing.T) {
		resp, err := env.client.PostForm(env.server.URL+"/analyze", url.Values{"text": {seizureLetter}})
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status: got %d, want 403", resp.StatusCode)
		}
	})

	t.Run("with token", func(t *testing.T) {
		form := url.Values{"text": {seizureLetter}, "gorilla.csrf.Token": {token}, "save": {"on"}}
		resp, err := env.client.PostForm(env.server.URL+"/analyze", form)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: got %d\n%s", resp.StatusCode, body)
		}
		for _, want := range []string{"Dringend", `<mark class="kw kw-red"`, "Pfändung</mark>", "noch 3 Tage", "Im Verlauf gespeichert"} {
			if !strings.Contains(body, want) {
				t.Errorf("page missing %q", want)
			}
		}
	})

	t.Run("too short", func(t *testing.T) {
		form := url.Values{"text": {"Mahnung"}, "gorilla.csrf.Token": {token}}
		resp, err := env.client.PostForm(env.server.URL+"/analyze", form)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status: got %d, want 422", resp.StatusCode)
		}
		if body := readBody(t, resp); !strings.Contains(body, "Text zu kurz") {
			t.Error("error message missing")
		}
	})

	resp = env.do(t, http.MethodGet, "/history")
	if body := readBody(t, resp); !strings.Contains(body, "1 Analysen") {
		t.Errorf("history page does not list the saved analysis:\n%s", body)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, false, 100)
	resp := env.do(t, http.MethodGet, "/")

	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "no-store, no-cache, must-revalidate, private",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s: got %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'") {
		t.Error("CSP missing frame-ancestors")
	}
}

func TestMarkText(t *testing.T) {
	text := "Die Kontopfändung droht."
	spans := urgency.Highlight(text).Spans
	segs := markText(text, spans)

	var rebuilt strings.Builder
	var marked []string
	for _, s := range segs {
		rebuilt.WriteString(s.Text)
		if s.Span != nil {
			marked = append(marked, s.Text)
		}
	}
	if rebuilt.String() != text {
		t.Errorf("segments do not rebuild the text: %q", rebuilt.String())
	}
	if len(marked) != 1 || marked[0] != "Kontopfändung" {
		t.Errorf("marked: got %q, want the outer keyword only", marked)
	}
}
