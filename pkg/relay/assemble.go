package relay

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/a2bot/relay/pkg/chat"
	"github.com/a2bot/relay/pkg/observability"
	"github.com/a2bot/relay/pkg/onebot"
)

// imageFetchTimeout bounds one image download.
const imageFetchTimeout = 10 * time.Second

// Assembler converts OneBot message segments into a single user turn.
// Remote image references are resolved to embedded data URIs before the
// turn leaves the assembler: history must stay replayable without the
// front-end's ephemeral CDN links.
type Assembler struct {
	http   *http.Client
	logger *slog.Logger
}

// NewAssembler creates an assembler downloading images with httpClient.
func NewAssembler(httpClient *http.Client, logger *slog.Logger) *Assembler {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{http: httpClient, logger: logger}
}

// BuildUserTurn scans the segments in order, merging consecutive text
// segments and resolving images. A failed image is skipped rather than
// aborting the whole message. Returns false when nothing usable remains.
func (a *Assembler) BuildUserTurn(ctx context.Context, msg onebot.Message) (chat.Turn, bool) {
	var parts []chat.ContentPart
	var buf strings.Builder

	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text != "" {
			parts = append(parts, chat.TextPart(text))
		}
	}

	for _, seg := range msg {
		switch seg.Type {
		case onebot.SegText:
			buf.WriteString(seg.Data.Text)
		case onebot.SegImage:
			flush()
			if url, ok := a.resolveImage(ctx, seg.Data); ok {
				parts = append(parts, chat.ImagePart(url))
			}
		default:
			// Faces, replies, other people's mentions: not ours.
		}
	}
	flush()

	if len(parts) == 0 {
		return chat.Turn{}, false
	}
	if len(parts) == 1 && parts[0].Type == chat.PartText {
		return chat.TextTurn(chat.RoleUser, parts[0].Text), true
	}
	return chat.PartsTurn(chat.RoleUser, parts), true
}

// resolveImage produces a self-contained data URI for an image segment.
// Inline payloads need no network round trip; remote URLs are fetched
// and embedded.
func (a *Assembler) resolveImage(ctx context.Context, data onebot.SegmentData) (string, bool) {
	if data.Base64 != "" {
		return dataURL(inferImageMime(data.File), data.Base64), true
	}
	if payload, ok := strings.CutPrefix(data.File, "base64://"); ok {
		return dataURL(inferImageMime(""), payload), true
	}
	if strings.HasPrefix(data.File, "data:image/") {
		return data.File, true
	}
	if data.URL != "" {
		payload, mime, err := a.fetchImage(ctx, data.URL)
		if err != nil {
			observability.ImageFetchesTotal.WithLabelValues("error").Inc()
			a.logger.Warn("failed to fetch image, skipping", "url", data.URL, "error", err)
			return "", false
		}
		observability.ImageFetchesTotal.WithLabelValues("ok").Inc()
		if mime == "" {
			mime = inferImageMime(data.File)
		}
		return dataURL(mime, payload), true
	}
	return "", false
}

// fetchImage downloads a remote image and returns its base64 payload
// and the MIME type from the Content-Type header, if any.
func (a *Assembler) fetchImage(ctx context.Context, url string) (payload, mime string, err error) {
	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	mime = resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return base64.StdEncoding.EncodeToString(raw), strings.TrimSpace(mime), nil
}

// inferImageMime guesses the MIME type from a file name extension,
// defaulting to PNG.
func inferImageMime(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func dataURL(mime, payload string) string {
	return "data:" + mime + ";base64," + payload
}
