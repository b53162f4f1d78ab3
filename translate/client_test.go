package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func chunk(delta string) string {
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"test-model","choices":[{"index":0,"delta":%s,"finish_reason":null}]}`, delta)
}

// sseServer streams the given chunks as a chat completion and records the
// last request body.
func sseServer(t *testing.T, chunks []string, body *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		if body != nil {
			*body = string(data)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body string
	srv := sseServer(t, []string{
		chunk(`{"role":"assistant","reasoning_content":"thinking"}`),
		chunk(`{"content":"` + "```" + `python\n"}`),
		chunk(`{"content":"message0 = '一'\n"}`),
		chunk(`{"content":"` + "```" + `\n"}`),
	}, &body)

	var reasoning, streamed strings.Builder
	c, err := NewOpenAIClient(OpenAIConfig{
		Endpoint:    srv.URL + "/v1/",
		Model:       "test-model",
		Token:       "secret",
		OnReasoning: func(d string) { reasoning.WriteString(d) },
		OnContent:   func(d string) { streamed.WriteString(d) },
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Complete(context.Background(), "translate please")
	if err != nil {
		t.Fatal(err)
	}

	want := "```python\nmessage0 = '一'\n```\n"
	if got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if streamed.String() != want {
		t.Errorf("OnContent saw %q", streamed.String())
	}
	if reasoning.String() != "thinking" {
		t.Errorf("OnReasoning saw %q", reasoning.String())
	}

	if m := gjson.Get(body, "model").String(); m != "test-model" {
		t.Errorf("model = %q", m)
	}
	if !gjson.Get(body, "stream").Bool() {
		t.Error("request is not streaming")
	}
	if n := gjson.Get(body, "messages.#").Int(); n != 1 {
		t.Errorf("%d messages, want 1", n)
	}
	if r := gjson.Get(body, "messages.0.role").String(); r != "user" {
		t.Errorf("role = %q", r)
	}
	if p := gjson.Get(body, "messages.0.content").String(); p != "translate please" {
		t.Errorf("prompt = %q", p)
	}
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{Endpoint: srv.URL + "/v1/", Model: "m", Token: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error from a 500 response")
	}
}

func TestOpenAIClient_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewOpenAIClient(OpenAIConfig{Endpoint: srv.URL + "/v1/", Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, "p"); err == nil {
		t.Fatal("expected error for a canceled context")
	}
}

func TestNewOpenAIClient_RequiresEndpointAndModel(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{Model: "m"}); err == nil {
		t.Error("missing endpoint accepted")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{Endpoint: "http://localhost/v1/"}); err == nil {
		t.Error("missing model accepted")
	}
}

func TestMakeHTTPClient_Proxy(t *testing.T) {
	c := makeHTTPClient("http://proxy.example:3128")
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport is %T", c.Transport)
	}
	req, _ := http.NewRequest("GET", "https://api.example.com/", nil)
	u, err := tr.Proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Host != "proxy.example:3128" {
		t.Errorf("proxy = %v", u)
	}
	if c.Timeout != 0 {
		t.Errorf("client timeout = %s, want none", c.Timeout)
	}
}
