package remote

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/example/gmpsched/internal/ports/secondary"
)

// PerceptionPath is the endpoint for sample inspection.
const PerceptionPath = "/v1/perception"

type perceptionRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

type perceptionResponse struct {
	MaterialName      string  `json:"materialName"`
	DetectedForm      string  `json:"detectedForm"`
	EstimatedMoisture float64 `json:"estimatedMoisture"`
	QualityCheck      string  `json:"qualityCheck"`
	Reasoning         string  `json:"reasoning"`
}

// verdicts maps the service's quality labels onto pass/fail. Unknown labels
// pass through unchanged and are treated as unresolved downstream.
var verdicts = map[string]string{
	"pass":   secondary.VerdictPass,
	"fail":   secondary.VerdictFail,
	"合格":     secondary.VerdictPass,
	"不合格":    secondary.VerdictFail,
	"passed": secondary.VerdictPass,
	"failed": secondary.VerdictFail,
}

// PerceptionClient implements secondary.PerceptionProvider over HTTP.
type PerceptionClient struct {
	client
}

// NewPerceptionClient creates a perception client.
func NewPerceptionClient(cfg Config) *PerceptionClient {
	return &PerceptionClient{client: newClient(cfg)}
}

// Analyze implements secondary.PerceptionProvider.
func (c *PerceptionClient) Analyze(ctx context.Context, image []byte) (*secondary.Analysis, error) {
	req := perceptionRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: http.DetectContentType(image),
	}
	var resp perceptionResponse
	if err := c.postJSON(ctx, PerceptionPath, req, &resp); err != nil {
		return nil, err
	}

	verdict, ok := verdicts[resp.QualityCheck]
	if !ok {
		verdict = resp.QualityCheck
	}
	return &secondary.Analysis{
		MaterialName:      resp.MaterialName,
		DetectedForm:      resp.DetectedForm,
		EstimatedMoisture: resp.EstimatedMoisture,
		Verdict:           verdict,
		Rationale:         resp.Reasoning,
	}, nil
}

var _ secondary.PerceptionProvider = (*PerceptionClient)(nil)
