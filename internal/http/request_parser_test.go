package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cambi/internal/core"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr bool
	}{
		{"missing", url.Values{}, "", false},
		{"blank", url.Values{"filter": {"  "}}, "", false},
		{"valid", url.Values{"filter": {"2025-January"}}, "2025-January", false},
		{"trimmed", url.Values{"filter": {" 2026-March "}}, "2026-March", false},
		{"abbreviated month", url.Values{"filter": {"2025-Jan"}}, "2025-Jan", true},
		{"lowercase month", url.Values{"filter": {"2025-january"}}, "2025-january", true},
		{"numeric month", url.Values{"filter": {"2025-01"}}, "2025-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.query)
			if got != tt.want {
				t.Errorf("ParseFilter() = %q, want %q", got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidFilter) {
				t.Errorf("ParseFilter() error = %v, want ErrInvalidFilter", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ParseFilter() unexpected error = %v", err)
			}
		})
	}
}

func TestRequestBodyParser_EntryForm(t *testing.T) {
	body := "date=2025-01-05&description=Lunch%00+out&amountPrimary=10%2C50&amountSecondary=230"
	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	form := parser.EntryForm()
	want := core.EntryForm{Date: "2025-01-05", Description: "Lunch out", AmountPrimary: "10,50", AmountSecondary: "230"}
	if form != want {
		t.Errorf("EntryForm() = %+v, want %+v", form, want)
	}
}

func TestRequestBodyParser_EntryFormJSON(t *testing.T) {
	body := `{"date":"2025-01-05","description":"A","amountPrimary":10,"amountSecondary":"40"}`
	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	form := parser.EntryForm()
	if form.AmountPrimary != "10" || form.AmountSecondary != "40" {
		t.Errorf("amounts = %q/%q, want 10/40", form.AmountPrimary, form.AmountSecondary)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(`{"id": `))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() should fail on truncated JSON")
	}
	if err := parser.Parse(); err == nil {
		t.Fatal("second Parse() should return the same error")
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"DELETE allowed with multiple", http.MethodDelete, []string{http.MethodDelete, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestRequireDeleteOrPOST(t *testing.T) {
	tests := []struct {
		method  string
		wantErr bool
	}{
		{http.MethodPost, false},
		{http.MethodDelete, false},
		{http.MethodGet, true},
		{http.MethodPut, true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireDeleteOrPOST(req)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}
