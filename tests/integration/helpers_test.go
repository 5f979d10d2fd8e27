//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"
)

// buildPDF renders one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	fontObj := 3 + 2*len(pages)
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> >> >>", 4+2*i, fontObj))
		stream := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// bagOfWords embeds text as word counts hashed into dims buckets, plus a
// constant so no vector is zero.
func bagOfWords(text string, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = 0.01
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}

// upstream serves the PDF, OpenAI-compatible embeddings and Groq chat completions.
type upstream struct {
	*httptest.Server
	pdf        []byte
	dims       int
	pdfFetches atomic.Int32
	chatCalls  atomic.Int32
}

func newUpstream(t *testing.T, dims int, pages ...string) *upstream {
	t.Helper()
	u := &upstream{pdf: buildPDF(pages...), dims: dims}
	mux := http.NewServeMux()
	mux.HandleFunc("/docs/recipes.pdf", func(w http.ResponseWriter, r *http.Request) {
		u.pdfFetches.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(u.pdf)
	})
	mux.HandleFunc("/openai/v1/embeddings", u.embeddings)
	mux.HandleFunc("/groq/v1/chat/completions", u.chat)
	u.Server = httptest.NewServer(mux)
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) embeddings(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	inputs := gjson.GetBytes(body, "input").Array()

	data := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": bagOfWords(in.String(), u.dims)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": "test-embedding", "data": data})
}

// chat asks for a knowledge search first and then answers with the tool output.
func (u *upstream) chat(w http.ResponseWriter, r *http.Request) {
	u.chatCalls.Add(1)
	body, _ := io.ReadAll(r.Body)
	n := gjson.GetBytes(body, "messages.#").Int()
	last := gjson.GetBytes(body, fmt.Sprintf("messages.%d", n-1))

	var message map[string]any
	if last.Get("role").String() == "tool" {
		message = map[string]any{"role": "assistant", "content": "From the knowledge base: " + last.Get("content").String()}
	} else {
		args, _ := json.Marshal(map[string]string{"query": last.Get("content").String()})
		message = map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []map[string]any{{
				"id":       fmt.Sprintf("call_%d", u.chatCalls.Load()),
				"type":     "function",
				"function": map[string]any{"name": "search_knowledge_base", "arguments": string(args)},
			}},
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   gjson.GetBytes(body, "model").String(),
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}
