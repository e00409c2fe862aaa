package steamhistory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const profilePage = `<!DOCTYPE html>
<html><body>
<img id="userimage" src="https://avatars.example/abc_full.jpg">
<h1>Persona History</h1>
<table>
<tr><th>Name</th><th>Time</th></tr>
<tr><td>shifty</td><td>2024-03-01 10:00:00</td></tr>
<tr><td>shifty_old</td><td>2023-11-20 08:30:00 [Estimated Timestamp]</td></tr>
<tr><td>broken-row</td></tr>
<tr><td>bad-time</td><td>last tuesday</td></tr>
</table>
</body></html>`

const missingPage = `<!DOCTYPE html>
<html><body><p>ID: 7656119</p><p>This profile does not exist!</p></body></html>`

func TestProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/id/76561198000000001" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(profilePage))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	p, err := c.Profile(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.AvatarURL != "https://avatars.example/abc_full.jpg" {
		t.Errorf("AvatarURL = %q", p.AvatarURL)
	}
	if len(p.Personas) != 2 {
		t.Fatalf("expected 2 parseable personas, got %d: %+v", len(p.Personas), p.Personas)
	}
	first := p.Personas[0]
	if first.Name != "shifty" || first.Estimated {
		t.Errorf("first persona = %+v", first)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !first.Seen.Equal(want) {
		t.Errorf("Seen = %v, want %v", first.Seen, want)
	}
	second := p.Personas[1]
	if second.Name != "shifty_old" || !second.Estimated {
		t.Errorf("estimated flag lost: %+v", second)
	}
	if !second.Seen.Equal(time.Date(2023, 11, 20, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("estimated Seen = %v", second.Seen)
	}
}

func TestProfileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(missingPage))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	if _, err := c.Profile(context.Background(), "123"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("error = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	if _, err := c.Profile(context.Background(), "123"); err == nil {
		t.Error("expected error for 503")
	}
}

func TestProfileNoHistoryTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><img id="userimage" src="/a.jpg"><h1>Other</h1></body></html>`))
	}))
	defer server.Close()

	c := &Client{BaseURL: server.URL}
	p, err := c.Profile(context.Background(), "123")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(p.Personas) != 0 {
		t.Errorf("expected no personas, got %+v", p.Personas)
	}
}

func TestProfileEmptyID(t *testing.T) {
	c := &Client{}
	if _, err := c.Profile(context.Background(), ""); err == nil {
		t.Error("expected error for empty id")
	}
}
