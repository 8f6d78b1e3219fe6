package harvest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxFilenameNameLen = 80

// Acquirer downloads listing pictures through a live browser session. The
// fetch happens inside the page's execution context because the origin only
// serves images with the session's cookies.
type Acquirer struct {
	session Session
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAcquirer builds an Acquirer pacing attempts at one per delay.
func NewAcquirer(session Session, delay time.Duration, logger *zap.Logger) *Acquirer {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{session: session, limiter: limiter, logger: logger}
}

// Acquire fetches rawURL via the session and writes the decoded payload to
// dest, creating parent directories as needed. The file is written through a
// temporary path so a failure never leaves a partial image behind. Every
// attempt, successful or not, consumes one pacing slot.
func (a *Acquirer) Acquire(ctx context.Context, rawURL, dest string) error {
	defer a.pace(ctx)

	encoded, err := a.session.FetchBase64(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	if encoded == "" {
		return errors.New("empty image payload")
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write image %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace image %s: %w", dest, err)
	}
	return nil
}

func (a *Acquirer) pace(ctx context.Context) {
	if a.limiter == nil {
		return
	}
	if err := a.limiter.Wait(ctx); err != nil {
		a.logger.Debug("image pacing interrupted", zap.Error(err))
	}
}

// ImageFilename computes the local filename for a record's picture:
// `{id}_{sanitized name, at most 80 chars}.{ext}`, with the extension
// sniffed from the source URL (png when present, jpg otherwise).
func ImageFilename(rec Record) string {
	ext := "jpg"
	if strings.Contains(strings.ToLower(rec.PictureURL), ".png") {
		ext = "png"
	}
	name := sanitize.BaseName(rec.Name)
	if name == "" {
		name = "unknown"
	}
	if len(name) > maxFilenameNameLen {
		name = name[:maxFilenameNameLen]
	}
	return fmt.Sprintf("%s_%s.%s", rec.ID, name, ext)
}
