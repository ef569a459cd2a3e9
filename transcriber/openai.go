package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"hark/audio"
	"hark/encoder"
)

// hosted is an OpenAI-compatible transcription endpoint taking a multipart
// FLAC upload.
type hosted struct {
	name   string
	client *TracedClient
	apiURL string
	apiKey string
	model  string
	lang   string
}

type OpenAI struct{ hosted }

func NewOpenAI(apiKey, lang string) *OpenAI {
	return &OpenAI{hosted{
		name:   "openai",
		client: NewTracedClient(false),
		apiURL: "https://api.openai.com/v1/audio/transcriptions",
		apiKey: apiKey,
		model:  "whisper-1",
		lang:   lang,
	}}
}

func (h *hosted) Name() string { return h.name }

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (h *hosted) Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error) {
	flacData, err := encoder.EncodeFlac(chunk.Samples)
	if err != nil {
		return Result{}, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.flac")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(flacData); err != nil {
		return Result{}, err
	}

	writer.WriteField("model", h.model)
	writer.WriteField("response_format", "verbose_json")
	if h.lang != "" {
		writer.WriteField("language", h.lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiURL, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s request: %w", h.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%s API error %d: %s", h.name, resp.StatusCode, string(resp.Body))
	}

	var vResp verboseResponse
	if err := json.Unmarshal(resp.Body, &vResp); err != nil {
		return Result{}, fmt.Errorf("%s response parse error: %w", h.name, err)
	}

	segments := make([]Segment, 0, len(vResp.Segments))
	for _, s := range vResp.Segments {
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	if len(segments) == 0 && vResp.Text != "" {
		segments = append(segments, Segment{End: vResp.Duration, Text: vResp.Text})
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return Result{
		Seq:       chunk.Seq,
		Segments:  segments,
		Language:  vResp.Language,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
	}, nil
}
