package dispatch

// DefaultNegativePrompt is applied when an image request leaves the negative
// prompt empty.
const DefaultNegativePrompt = "lowres, bad anatomy, bad hands, text, error, missing fingers, " +
	"extra digit, fewer digits, cropped, worst quality, low quality, normal quality, " +
	"jpeg artifacts, signature, watermark, username, blurry"

// ImageRequest carries the parameters of an image-generation job.
type ImageRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
}

func (r *ImageRequest) applyDefaults() {
	if r.NegativePrompt == "" {
		r.NegativePrompt = DefaultNegativePrompt
	}
	if r.Width <= 0 {
		r.Width = 512
	}
	if r.Height <= 0 {
		r.Height = 512
	}
	if r.GuidanceScale <= 0 {
		r.GuidanceScale = 12.0
	}
	if r.NumInferenceSteps <= 0 {
		r.NumInferenceSteps = 60
	}
}

// TTSRequest carries the parameters of a text-to-speech job.
type TTSRequest struct {
	Text     string  `json:"text"`
	Speaker  string  `json:"speaker"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
}

func (r *TTSRequest) applyDefaults() {
	if r.Speaker == "" {
		r.Speaker = "bingsu"
	}
	r.Language = NormalizeLanguage(r.Language)
	if r.Speed <= 0 {
		r.Speed = 1.0
	}
}

// imageJob is the wire envelope published to the image request queue.
type imageJob struct {
	ID string `json:"id"`
	ImageRequest
}

// ttsJob is the wire envelope published to the TTS request queue.
type ttsJob struct {
	ID string `json:"id"`
	TTSRequest
}

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// resultEnvelope is the wire envelope consumed from a response queue. Both
// kinds share the {id, status, payload|error} shape; image workers that
// predate the status field send {id, image}, which decodes with Status empty
// and is treated as success.
type resultEnvelope struct {
	ID          string `json:"id"`
	Status      string `json:"status,omitempty"`
	Image       string `json:"image,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (e resultEnvelope) failed() bool {
	if e.Status == statusFailure {
		return true
	}
	return e.Status == "" && e.Error != ""
}

// ImageResult is a decoded image-generation outcome.
type ImageResult struct {
	JobID string
	Data  []byte
}

// TTSResult is a decoded TTS outcome. Path points at the audio artifact
// persisted under a key containing the job id.
type TTSResult struct {
	JobID string
	Audio []byte
	Path  string
}
