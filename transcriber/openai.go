package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

type OpenAI struct {
	opts   Options
	client *TracedClient
}

func NewOpenAI(opts Options) *OpenAI {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &OpenAI{
		opts:   opts,
		client: NewTracedClient(),
	}
}

// Endpoint is the transcription URL, or the translation URL when translating to English.
func (o *OpenAI) Endpoint() string {
	if o.opts.Translate {
		return o.opts.APIURL + "/translations"
	}
	return o.opts.APIURL + "/transcriptions"
}

func (o *OpenAI) Warm() {
	o.client.WarmConnection(o.opts.APIURL)
}

// Transcribe uploads path, retrying failed attempts after a fixed delay.
// Once attempts are exhausted it returns an error wrapping ErrRetriesExhausted.
func (o *OpenAI) Transcribe(ctx context.Context, path string) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		res, err := o.attempt(ctx, path)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if ctx.Err() != nil {
			return Result{Attempts: attempt}, ctx.Err()
		}
		lastErr = err
		if o.opts.OnAttemptFailed != nil {
			o.opts.OnAttemptFailed(attempt, err)
		}
		if attempt == o.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(o.opts.RetryDelay):
		case <-ctx.Done():
			return Result{Attempts: attempt}, ctx.Err()
		}
	}
	return Result{Attempts: o.opts.MaxAttempts}, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

func (o *OpenAI) attempt(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	body, contentType := o.body(f, filepath.Base(path))

	req, err := http.NewRequestWithContext(ctx, "POST", o.Endpoint(), body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+o.opts.Token)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	if !resp.OK() {
		return Result{}, fmt.Errorf("openai API error %d: %s", resp.StatusCode, bytes.TrimSpace(resp.Body))
	}

	text, err := o.decode(resp.Body)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Metrics: resp.Metrics}, nil
}

// body streams the multipart form so large files are never held in memory.
func (o *OpenAI) body(audio io.Reader, filename string) (io.Reader, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(o.writeForm(writer, audio, filename))
	}()
	return pr, writer.FormDataContentType()
}

func (o *OpenAI) writeForm(writer *multipart.Writer, audio io.Reader, filename string) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "audio/mpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}

	fields := [][2]string{
		{"model", o.opts.Model},
		{"response_format", "verbose_json"},
	}
	if o.opts.timestamps() {
		fields = append(fields, [2]string{"timestamp_granularities[]", o.opts.Granularity})
	}
	if o.opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", o.opts.Prompt})
	}
	if o.opts.Language != "" {
		fields = append(fields, [2]string{"language", o.opts.Language})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return writer.Close()
}

type verboseResponse struct {
	Text string `json:"text"`
}

func (o *OpenAI) decode(body []byte) (string, error) {
	var vResp verboseResponse
	if err := json.Unmarshal(body, &vResp); err != nil {
		return "", fmt.Errorf("openai response parse error: %w", err)
	}
	if !o.opts.timestamps() {
		return vResp.Text, nil
	}
	// One line per result keeps the scratch transcript line oriented.
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", fmt.Errorf("openai response parse error: %w", err)
	}
	return compact.String(), nil
}
