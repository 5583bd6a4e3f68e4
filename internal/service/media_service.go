package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NormalizedMedia points at a sanitized copy of a source media item. Handle
// identifies the temp-storage object and must be cleaned up after the
// publish attempt regardless of its outcome.
type NormalizedMedia struct {
	URL    string
	Handle string
}

type MediaService interface {
	Normalize(ctx context.Context, tenantID int64, sourceURL string) (*NormalizedMedia, error)
	Cleanup(ctx context.Context, handle string)
}

type mediaService struct {
	r2    *R2Service
	httpc *http.Client
}

func NewMediaService(r2 *R2Service) MediaService {
	return &mediaService{
		r2:    r2,
		httpc: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *mediaService) Normalize(ctx context.Context, tenantID int64, sourceURL string) (*NormalizedMedia, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to fetch media source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media source returned status %d", resp.StatusCode)
	}

	fileBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error reading media source: %w", err)
	}

	kind, err := filetype.Match(fileBytes)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("unrecognized media type: %w", err)
	}

	if kind.Extension == "jpg" {
		fileBytes = stripJPEGMetadata(fileBytes)
	}

	key, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	key = fmt.Sprintf("tmp/%d/%s", tenantID, key)

	if err := s.r2.Upload(ctx, key, fileBytes, kind.MIME.Value); err != nil {
		return nil, fmt.Errorf("error staging sanitized media: %w", err)
	}

	return &NormalizedMedia{
		URL:    s.r2.PublicURL(key),
		Handle: key,
	}, nil
}

// Cleanup is best-effort and unconditional; a leaked temp object is a cost
// problem, not a correctness one.
func (s *mediaService) Cleanup(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	if err := s.r2.Delete(ctx, handle); err != nil {
		slog.Info(fmt.Sprintf("failed to delete temp media %s: %v", handle, err))
	}
}

// stripJPEGMetadata drops APP1 (EXIF), APP13 (IPTC) and comment segments
// from a JPEG stream. Everything from the start-of-scan marker on is copied
// verbatim.
func stripJPEGMetadata(data []byte) []byte {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return data
	}

	out := make([]byte, 0, len(data))
	out = append(out, 0xFF, 0xD8)

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			break
		}
		marker := data[i+1]

		// Start of scan: entropy-coded data follows, copy the rest.
		if marker == 0xDA {
			out = append(out, data[i:]...)
			return out
		}

		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(data) {
			break
		}

		switch marker {
		case 0xE1, 0xED, 0xFE:
			// dropped
		default:
			out = append(out, data[i:end]...)
		}
		i = end
	}

	out = append(out, data[i:]...)
	return out
}
