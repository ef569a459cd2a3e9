package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"hark/audio"
	"hark/encoder"
)

// WhisperX talks to a local inference server that accepts raw float32
// samples and answers with timed segments.
type WhisperX struct {
	client *TracedClient
	apiURL string
	lang   string
}

func NewWhisperX(apiURL, lang string, insecure bool) *WhisperX {
	return &WhisperX{
		client: NewTracedClient(insecure),
		apiURL: apiURL,
		lang:   lang,
	}
}

func (w *WhisperX) Name() string { return "whisperx" }

func (w *WhisperX) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.apiURL, nil)
	if err != nil {
		return err
	}
	if err := w.client.Reach(req); err != nil {
		return fmt.Errorf("whisperx server unreachable at %s: %w", w.apiURL, err)
	}
	return nil
}

type whisperxResponse struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

func (w *WhisperX) Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error) {
	u, err := url.Parse(w.apiURL)
	if err != nil {
		return Result{}, fmt.Errorf("parsing whisperx url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(chunk.SampleRate))
	if w.lang != "" {
		q.Set("language", w.lang)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(encoder.Float32LE(chunk.Samples)))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "audio/f32le")

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisperx request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("whisperx error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var wResp whisperxResponse
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return Result{}, fmt.Errorf("whisperx response parse error: %w", err)
	}
	lang := wResp.Language
	if lang == "" {
		lang = w.lang
	}
	return Result{
		Seq:      chunk.Seq,
		Segments: wResp.Segments,
		Language: lang,
		Metrics:  resp.Metrics,
	}, nil
}
