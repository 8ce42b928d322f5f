package classifier

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chatterjee-sid/voicebot/recorder"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const defaultBudget = time.Second * 60

var (
	ErrUploadFailed     = errors.New("sample upload failed")
	ErrSubmitFailed     = errors.New("job submission failed")
	ErrStreamIncomplete = errors.New("result stream ended without a terminal event")
	ErrTimeout          = errors.New("classification timed out")
)

// ServerError is a failure reported by the classification service
// itself, as opposed to a transport failure. Its text is the server's
// own wording so the user can tell the two apart.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return e.Reason
}

type clientImpl struct {
	fileSys    afero.Fs
	primaryURL string
	sharedURL  string
	language   string
	budget     time.Duration
	httpClient *http.Client
}

type Config struct {
	FileSys    afero.Fs
	PrimaryURL string
	SharedURL  string
	Language   string
	Budget     time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	if cfg.FileSys == nil {
		return nil, errors.New("missing parameter: cfg.FileSys")
	}

	if cfg.PrimaryURL == "" {
		return nil, errors.New("missing parameter: cfg.PrimaryURL")
	}

	if cfg.SharedURL == "" {
		return nil, errors.New("missing parameter: cfg.SharedURL")
	}

	budget := cfg.Budget
	if budget == 0 {
		budget = defaultBudget
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	language := cfg.Language
	if language == "" {
		language = primaryLanguage
	}

	return &clientImpl{
		fileSys:    cfg.FileSys,
		primaryURL: cfg.PrimaryURL,
		sharedURL:  cfg.SharedURL,
		language:   language,
		budget:     budget,
		httpClient: httpClient,
	}, nil
}

// Classify runs the three-phase protocol for one sample: upload the
// bytes, join the job queue under a fresh session hash, then consume
// the event stream until a terminal event lands. Each phase failing is
// terminal for the attempt, there are no automatic retries.
func (client *clientImpl) Classify(ctx context.Context, sample *recorder.Sample) (Label, error) {
	if sample == nil {
		return LabelUnknown, errors.New("missing parameter: sample")
	}

	ctx, cancel := context.WithTimeout(ctx, client.budget)
	defer cancel()

	base := ModelURLForLanguage(client.primaryURL, client.sharedURL, client.language)

	remoteRef, err := client.upload(ctx, base, sample)
	if err != nil {
		return LabelUnknown, client.mapDeadline(ctx, err)
	}

	sessionHash := newSessionHash()

	if err := client.join(ctx, base, sessionHash, sample, remoteRef); err != nil {
		return LabelUnknown, client.mapDeadline(ctx, err)
	}

	label, err := client.consumeStream(ctx, base, sessionHash)
	if err != nil {
		return LabelUnknown, client.mapDeadline(ctx, err)
	}

	return label, nil
}

func (client *clientImpl) upload(ctx context.Context, base string, sample *recorder.Sample) (string, error) {
	sampleFile, err := client.fileSys.Open(sample.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	defer sampleFile.Close()

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("files", filepath.Base(sample.Path))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if _, err := io.Copy(part, sampleFile); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	uploadURL := base + "/upload?upload_id=" + uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	var refs []string
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if len(refs) == 0 {
		return "", fmt.Errorf("%w: empty file reference list", ErrUploadFailed)
	}

	return refs[0], nil
}

type fileMeta struct {
	Type string `json:"_type"`
}

type fileData struct {
	Path     string   `json:"path"`
	Name     string   `json:"name"`
	OrigName string   `json:"orig_name"`
	Size     int64    `json:"size"`
	MIMEType string   `json:"mime_type"`
	URL      string   `json:"url"`
	Meta     fileMeta `json:"meta"`
	Type     string   `json:"_type"`
}

type joinRequest struct {
	FnIndex     int         `json:"fn_index"`
	SessionHash string      `json:"session_hash"`
	EventData   interface{} `json:"event_data"`
	Data        []fileData  `json:"data"`
}

func (client *clientImpl) join(ctx context.Context, base, sessionHash string, sample *recorder.Sample, remoteRef string) error {
	name := filepath.Base(sample.Path)

	payload := joinRequest{
		FnIndex:     2,
		SessionHash: sessionHash,
		EventData:   nil,
		Data: []fileData{{
			Path:     remoteRef,
			Name:     name,
			OrigName: name,
			Size:     sample.Size,
			MIMEType: "audio/wav",
			URL:      base + "/file=" + remoteRef,
			Meta:     fileMeta{Type: "gradio.FileData"},
			Type:     "gradio.FileData",
		}},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/queue/join", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSubmitFailed, resp.StatusCode)
	}

	return nil
}

// consumeStream reads the session's event stream until the first
// terminal event. Later events are never seen: the first resolution
// closes the stream.
func (client *clientImpl) consumeStream(ctx context.Context, base, sessionHash string) (Label, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/queue/data?session_hash="+sessionHash, nil)
	if err != nil {
		return LabelUnknown, fmt.Errorf("%w: %v", ErrStreamIncomplete, err)
	}

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return LabelUnknown, fmt.Errorf("%w: %v", ErrStreamIncomplete, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return LabelUnknown, fmt.Errorf("%w: status %d", ErrStreamIncomplete, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)

	for scanner.Scan() {
		event, ok := DecodeLine(scanner.Text())
		if !ok {
			continue
		}

		switch event.Kind {
		case EventCompleted:
			return MapClassLabel(event.Label), nil
		case EventQueueFull, EventServerError:
			return LabelUnknown, &ServerError{Reason: event.Reason}
		case EventHeartbeat, EventMalformed:
			continue
		}
	}

	if err := scanner.Err(); err != nil {
		return LabelUnknown, fmt.Errorf("%w: %v", ErrStreamIncomplete, err)
	}

	return LabelUnknown, ErrStreamIncomplete
}

// mapDeadline folds a blown overall budget into the timeout outcome so
// callers see one typed failure instead of a raw context error.
func (client *clientImpl) mapDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}

	return err
}
