package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"door-audit/pkg/geometry"

	"gocv.io/x/gocv"
)

// RemoteDetector delegates door detection to a pretrained object
// detection model served over HTTP. The page is uploaded as a PNG and
// the service answers with box/confidence pairs. No duplicate
// suppression is applied; the model side is assumed to handle it.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
}

// NewRemoteDetector creates a detector for the given inference endpoint.
func NewRemoteDetector(endpoint string) *RemoteDetector {
	return &RemoteDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 90 * time.Second},
	}
}

// Name implements Detector.
func (d *RemoteDetector) Name() string { return StrategyModel }

// Close implements Detector.
func (d *RemoteDetector) Close() error { return nil }

// Probe checks that the inference service is reachable and healthy.
func (d *RemoteDetector) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

type remoteBox struct {
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}

type remoteResponse struct {
	Detections []remoteBox `json:"detections"`
}

// Detect implements Detector.
func (d *RemoteDetector) Detect(ctx context.Context, page gocv.Mat) ([]Candidate, error) {
	if page.Empty() {
		return nil, fmt.Errorf("detect: empty page image")
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, page)
	if err != nil {
		return nil, fmt.Errorf("encode page for inference: %w", err)
	}
	defer buf.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "page.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(buf.GetBytes())); err != nil {
		return nil, fmt.Errorf("copy page data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status %d", resp.StatusCode)
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	pageW, pageH := page.Cols(), page.Rows()
	candidates := make([]Candidate, 0, len(result.Detections))
	for _, det := range result.Detections {
		box := geometry.RectFromCorners(det.X1, det.Y1, det.X2, det.Y2).ClampTo(pageW, pageH)
		if box.Empty() {
			continue
		}
		candidates = append(candidates, Candidate{
			Box:        box,
			Confidence: clamp01(det.Confidence),
			Strategy:   StrategyModel,
		})
	}
	return candidates, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
