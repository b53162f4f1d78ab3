package translate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/minios-linux/llvm-i18n/checkpoint"
	"github.com/minios-linux/llvm-i18n/contenthash"
	"github.com/minios-linux/llvm-i18n/corpus"
	"github.com/minios-linux/llvm-i18n/validate"
)

// DefaultBatchURL is the request path written into batch requests.
const DefaultBatchURL = "/v1/chat/completions"

// ---------------------------------------------------------------------------
// Offline batch requests
// ---------------------------------------------------------------------------

// BatchRequest is one line of a batch submission file.
type BatchRequest struct {
	CustomID string    `json:"custom_id"`
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	Body     BatchBody `json:"body"`
}

// BatchBody is the chat completion request carried by a BatchRequest.
type BatchBody struct {
	Model    string         `json:"model"`
	Messages []BatchMessage `json:"messages"`
}

// BatchMessage is a chat message.
type BatchMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WriteBatchRequests writes one JSON line per entry, each asking for a
// single translation bound to BatchVar. The custom_id is the entry's
// content hash. When hashes is nil every corpus entry is written. It never
// contacts the service and returns the number of lines written.
func WriteBatchRequests(w io.Writer, c *corpus.Corpus, template, model, url string, hashes []string) (int, error) {
	if hashes == nil {
		hashes = c.Hashes()
	}
	if url == "" {
		url = DefaultBatchURL
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	n := 0
	for _, h := range hashes {
		src, ok := c.Lookup(h)
		if !ok {
			return n, fmt.Errorf("hash %s not in corpus", h)
		}
		req := BatchRequest{
			CustomID: h,
			Method:   "POST",
			URL:      url,
			Body: BatchBody{
				Model: model,
				Messages: []BatchMessage{
					{Role: "user", Content: BuildSinglePrompt(template, src)},
				},
			},
		}
		if err := enc.Encode(req); err != nil {
			return n, fmt.Errorf("encoding request for %s: %w", h, err)
		}
		n++
	}
	return n, bw.Flush()
}

// ---------------------------------------------------------------------------
// Offline batch responses
// ---------------------------------------------------------------------------

// ImportStats counts the outcome of every response line.
type ImportStats struct {
	Lines     int // non-blank lines read
	Written   int // records written
	Malformed int // lines that are not JSON
	NoContent int // no assistant message in the response
	NoBlock   int // message without a usable code block
	Empty     int // empty translation
	Unknown   int // custom_id not in the corpus, or not a content hash
	Rejected  int // refused by the validator
}

// ImportBatchResponses reads a batch response file and writes a checkpoint
// record for every usable translation. The output is meant to be appended
// to a checkpoint; the next checkpoint.Load keeps the last valid record per
// hash. With a corpus, hashes outside it are skipped, and with a validator
// too, rejected translations are skipped.
func ImportBatchResponses(r io.Reader, w io.Writer, c *corpus.Corpus, v *validate.Validator) (ImportStats, error) {
	var st ImportStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	bw := bufio.NewWriter(w)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		st.Lines++
		if !gjson.Valid(line) {
			st.Malformed++
			continue
		}

		id := gjson.Get(line, "custom_id").String()
		content := gjson.Get(line, "response.body.choices.0.message.content")
		if !content.Exists() || content.Type != gjson.String {
			st.NoContent++
			continue
		}
		code, err := ExtractCodeBlock(content.String())
		if err != nil {
			st.NoBlock++
			continue
		}
		values, err := ParseAssignments(code, []string{BatchVar})
		if err != nil {
			st.NoBlock++
			continue
		}
		text := values[BatchVar]
		if text == "" {
			st.Empty++
			continue
		}

		if c != nil {
			src, ok := c.Lookup(id)
			if !ok {
				st.Unknown++
				continue
			}
			if v != nil && !v.Accept(src, text) {
				st.Rejected++
				continue
			}
		} else if !contenthash.Valid(id) {
			st.Unknown++
			continue
		}

		if _, err := bw.WriteString(checkpoint.FormatRecord(id, text)); err != nil {
			return st, err
		}
		st.Written++
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("reading responses: %w", err)
	}
	return st, bw.Flush()
}
