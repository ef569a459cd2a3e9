package transcriber

type Groq struct{ hosted }

func NewGroq(apiKey, lang string) *Groq {
	return &Groq{hosted{
		name:   "groq",
		client: NewTracedClient(false),
		apiURL: "https://api.groq.com/openai/v1/audio/transcriptions",
		apiKey: apiKey,
		model:  "whisper-large-v3-turbo",
		lang:   lang,
	}}
}
