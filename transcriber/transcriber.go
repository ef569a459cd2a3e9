package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hark/audio"
)

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func (m *NetworkMetrics) String() string {
	reused := ""
	if m.ConnReused {
		reused = " (reused)"
	}
	return fmt.Sprintf("conn_wait=%dms%s dns=%dms tcp=%dms tls=%dms ttfb=%dms download=%dms total=%dms",
		m.ConnWait.Milliseconds(), reused, m.DNS.Milliseconds(), m.TCP.Milliseconds(),
		m.TLS.Milliseconds(), m.TTFB.Milliseconds(), m.Download.Milliseconds(), m.Sum().Milliseconds())
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Segment is a timed span of recognized text. Times are seconds from the
// start of the chunk.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the transcription of one chunk. Its JSON form is what remote
// subscribers receive.
type Result struct {
	Seq      uint64    `json:"-"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`

	Metrics   *NetworkMetrics `json:"-"`
	RateLimit string          `json:"-"`
}

// Text joins segment texts with single spaces and trims the ends.
func (r Result) Text() string {
	parts := make([]string, len(r.Segments))
	for i, s := range r.Segments {
		parts[i] = s.Text
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Engine turns one audio chunk into a Result. Implementations must be safe
// to call from a goroutine other than the one that created them.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, chunk audio.Chunk) (Result, error)
}

// Prober is implemented by engines that can check reachability up front.
type Prober interface {
	Probe(ctx context.Context) error
}

type Config struct {
	Engine   string // whisperx, groq, openai or fake
	URL      string // endpoint override; required for whisperx
	APIKey   string
	Language string
	Insecure bool // skip TLS verification for self-signed local servers
}

// New builds the configured engine. Unknown names and missing credentials
// are errors.
func New(cfg Config) (Engine, error) {
	switch cfg.Engine {
	case "whisperx":
		if cfg.URL == "" {
			return nil, fmt.Errorf("whisperx engine needs an engine URL")
		}
		return NewWhisperX(cfg.URL, cfg.Language, cfg.Insecure), nil
	case "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("groq engine needs GROQ_API_KEY")
		}
		g := NewGroq(cfg.APIKey, cfg.Language)
		if cfg.URL != "" {
			g.apiURL = cfg.URL
		}
		return g, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai engine needs OPENAI_API_KEY")
		}
		o := NewOpenAI(cfg.APIKey, cfg.Language)
		if cfg.URL != "" {
			o.apiURL = cfg.URL
		}
		return o, nil
	case "fake":
		return NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
