package submission

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"siges/internal/affiliates"
	"siges/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.SigesAPIToken = "test"
	cfg.SigesAPIBaseURL = "https://siges.test/api/v1/"
	cfg.SigesRateLimitRPS = 1000
	cfg.SigesBatchTimeout = 5 * time.Second

	client := NewClient(cfg)
	client.httpClient = &http.Client{Transport: fn}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func TestListRegimesAcceptsBothShapes(t *testing.T) {
	for _, body := range []string{
		`[{"id":1,"name":"SUBSIDIADO"},{"id":2,"name":"CONTRIBUTIVO"}]`,
		`{"data":[{"id":1,"name":"SUBSIDIADO"},{"id":2,"name":"CONTRIBUTIVO"}]}`,
	} {
		client := testClient(t, func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodGet || r.URL.Path != "/api/v1/regimes" {
				t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Fatalf("authorization=%q", got)
			}
			return jsonResponse(http.StatusOK, body), nil
		})

		options, err := client.ListRegimes(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(options) != 2 || options[1].Name != "CONTRIBUTIVO" {
			t.Fatalf("options=%+v", options)
		}

		opt, err := FindRegime(options, "2")
		if err != nil || opt.Name != "CONTRIBUTIVO" {
			t.Fatalf("by id: %+v %v", opt, err)
		}
		opt, err = FindRegime(options, "subsidiado")
		if err != nil || opt.ID != 1 {
			t.Fatalf("by name: %+v %v", opt, err)
		}
	}
}

func TestFindRegimeUnknown(t *testing.T) {
	if _, err := FindRegime([]RegimeOption{{ID: 1, Name: "SUBSIDIADO"}}, "ESPECIAL"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSendBatchPayload(t *testing.T) {
	var got map[string]any
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/affiliates/bulk" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type=%q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		return jsonResponse(http.StatusCreated, `{"created":1}`), nil
	})

	req := BatchRequest{
		Meta: Meta{OrganizationID: 7, UserID: 3, FileName: "MS202509.csv", RegimeID: 1, Period: "202509"},
		Rows: []affiliates.AffiliateRecord{{IdentificationType: "CC", Identification: "12345678"}},
	}
	if err := client.SendBatch(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	for key, want := range map[string]any{
		"organizationId": float64(7),
		"userId":         float64(3),
		"fileName":       "MS202509.csv",
		"regime":         float64(1),
		"period":         "202509",
	} {
		if got[key] != want {
			t.Fatalf("%s=%v want %v", key, got[key], want)
		}
	}
	rows, ok := got["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("rows=%v", got["rows"])
	}
}

func TestSendBatchStructuredError(t *testing.T) {
	body := `{"errors":[
		{"status":422,"title":"Invalid row","detail":"[\"row 4 duplicated\",\"row 9 duplicated\"]",
		 "source":{"pointer":[{"field":"identification","errors":["must be unique"]}]}},
		{"status":"422","title":"Bad period","detail":"period closed"}
	]}`
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, body), nil
	})

	err := client.SendBatch(context.Background(), BatchRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}

	msgs := apiErr.Messages()
	want := []string{
		"[422] Invalid row (identification: must be unique) - row 4 duplicated, row 9 duplicated",
		"[422] Bad period - period closed",
	}
	if len(msgs) != len(want) {
		t.Fatalf("msgs=%v", msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("msg[%d]=%q want %q", i, msgs[i], want[i])
		}
	}
}

func TestSendBatchHTMLGatewayError(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "text/html")
		page := `<html><head><title>502 Bad Gateway</title></head><body><h1>Bad   Gateway</h1><p>upstream down</p></body></html>`
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader(page)), Header: header}, nil
	})

	err := client.SendBatch(context.Background(), BatchRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	msg := apiErr.Messages()[0]
	if !strings.HasPrefix(msg, "[502] Bad Gateway - 502 Bad Gateway: Bad Gateway") || !strings.Contains(msg, "upstream down") {
		t.Fatalf("msg=%q", msg)
	}
	if strings.Contains(msg, "<") {
		t.Fatalf("html leaked into %q", msg)
	}
}

func TestSendBatchTransportError(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	err := client.SendBatch(context.Background(), BatchRequest{})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err=%v", err)
	}
}

func TestListRegimesRetriesTransientStatus(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return jsonResponse(http.StatusServiceUnavailable, `{"errors":[{"status":"503","title":"Unavailable"}]}`), nil
		}
		return jsonResponse(http.StatusOK, `[{"id":1,"name":"SUBSIDIADO"}]`), nil
	})

	options, err := client.ListRegimes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(options) != 1 {
		t.Fatalf("calls=%d options=%v", calls, options)
	}
}

func TestListRegimesDoesNotRetryClientError(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusUnauthorized, `{"errors":[{"status":"401","title":"Unauthenticated"}]}`), nil
	})

	_, err := client.ListRegimes(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestResolveRegimeByName(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":[{"id":1,"name":"SUBSIDIADO"},{"id":2,"name":"CONTRIBUTIVO"}]}`), nil
	})

	opt, err := client.ResolveRegime(context.Background(), " contributivo ")
	if err != nil {
		t.Fatal(err)
	}
	if opt.ID != 2 {
		t.Fatalf("opt=%+v", opt)
	}
}
