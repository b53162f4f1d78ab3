package translate

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/minios-linux/llvm-i18n/contenthash"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/validate"
)

// ---------------------------------------------------------------------------
// WriteBatchRequests
// ---------------------------------------------------------------------------

func TestWriteBatchRequests(t *testing.T) {
	c, err := corpus.New([]string{"expected '<' & '>'", "cannot convert '%0' to '%1'"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := WriteBatchRequests(&buf, c, testTemplate, "test-model", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("wrote %d requests, want 2", n)
	}
	if strings.Contains(buf.String(), `\u003c`) || strings.Contains(buf.String(), `\u0026`) {
		t.Errorf("output is HTML-escaped:\n%s", buf.String())
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		var req BatchRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		want := BatchRequest{
			CustomID: c.Hash(i),
			Method:   "POST",
			URL:      DefaultBatchURL,
			Body: BatchBody{
				Model: "test-model",
				Messages: []BatchMessage{
					{Role: "user", Content: BuildSinglePrompt(testTemplate, c.Entry(i))},
				},
			},
		}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("line %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestWriteBatchRequests_PendingOnly(t *testing.T) {
	c, err := corpus.New([]string{"a text", "b text", "c text"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := WriteBatchRequests(&buf, c, testTemplate, "m", "/custom", []string{c.Hash(2)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("wrote %d requests, want 1", n)
	}
	if id := gjson.Get(buf.String(), "custom_id").String(); id != c.Hash(2) {
		t.Errorf("custom_id = %q", id)
	}
	if u := gjson.Get(buf.String(), "url").String(); u != "/custom" {
		t.Errorf("url = %q", u)
	}

	if _, err := WriteBatchRequests(&buf, c, testTemplate, "m", "", []string{"H000000000000"}); err == nil {
		t.Error("unknown hash accepted")
	}
}

// ---------------------------------------------------------------------------
// ImportBatchResponses
// ---------------------------------------------------------------------------

func response(id, content string) string {
	line := map[string]any{
		"id":        "batch_req_1",
		"custom_id": id,
		"response": map[string]any{
			"status_code": 200,
			"body": map[string]any{
				"choices": []any{
					map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
				},
			},
		},
	}
	data, _ := json.Marshal(line)
	return string(data)
}

func TestImportBatchResponses(t *testing.T) {
	const conv = "cannot convert '%0' to '%1'"
	c, err := corpus.New([]string{conv, "plain text", "other text"})
	if err != nil {
		t.Fatal(err)
	}
	hConv := contenthash.Hash(conv)
	hPlain := contenthash.Hash("plain text")
	hOther := contenthash.Hash("other text")

	input := strings.Join([]string{
		response(hConv, "```python\nmessage = \"无法将 '%0' 转换为 '%1'\"\n```"),
		response(hPlain, "```python\nmessage = '纯文本'\n```"),
		response(hOther, "```python\nmessage = ''\n```"),
		response(hOther, "no block here"),
		response(hOther, "```python\nimport os\n```"),
		response("H000000000000", "```python\nmessage = 'stale'\n```"),
		response(hConv, "```python\nmessage = '无法转换'\n```"),
		`{"custom_id":"` + hOther + `","error":{"message":"failed"}}`,
		`not json`,
		"",
	}, "\n")

	var out bytes.Buffer
	st, err := ImportBatchResponses(strings.NewReader(input), &out, c, validate.New(nil))
	if err != nil {
		t.Fatal(err)
	}
	want := ImportStats{Lines: 9, Written: 2, Malformed: 1, NoContent: 1, NoBlock: 2, Empty: 1, Unknown: 1, Rejected: 1}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	wantOut := hConv + `: "无法将 '%0' 转换为 '%1'"` + "\n" + hPlain + `: "纯文本"` + "\n"
	if diff := cmp.Diff(wantOut, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestImportBatchResponses_WithoutCorpus(t *testing.T) {
	input := response("H396469E9FC34", "```python\nmessage = '任意'\n```") + "\n" +
		response("not-a-hash", "```python\nmessage = 'x'\n```") + "\n"

	var out bytes.Buffer
	st, err := ImportBatchResponses(strings.NewReader(input), &out, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Written != 1 || st.Unknown != 1 {
		t.Errorf("stats = %+v", st)
	}
	if got := out.String(); got != "H396469E9FC34: \"任意\"\n" {
		t.Errorf("output = %q", got)
	}
}
