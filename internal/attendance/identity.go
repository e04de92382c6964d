// Package attendance turns check-in/check-out intents into session
// transitions, gated by the day's attendance log.
package attendance

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
)

// IdentityResolver maps a presented credential (a face image) to an employee id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, sample []byte, filename string) (string, error)
}

// IdentityResponse is the matcher's reply.
type IdentityResponse struct {
	Matched    bool    `json:"matched"`
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// HTTPIdentityResolver posts the image to an external matcher as multipart
// field "image".
type HTTPIdentityResolver struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewHTTPIdentityResolver(url string, timeout time.Duration, logger *zap.Logger) *HTTPIdentityResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPIdentityResolver{httpClient: client, url: url, logger: logger}
}

func (r *HTTPIdentityResolver) ResolveIdentity(ctx context.Context, sample []byte, filename string) (string, error) {
	if len(sample) == 0 {
		return "", models.ValidationError("image is required")
	}
	if filename == "" {
		filename = "capture.jpg"
	}

	var out IdentityResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetFileReader("image", filename, bytes.NewReader(sample)).
		SetResult(&out).
		SetError(&out).
		Post(r.url)
	if err != nil {
		r.logger.Error("Identity matcher call failed", zap.Error(err))
		return "", models.NewError(models.CodeInternal, "identity matcher unavailable", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", models.ErrIdentityNotFound
	case resp.IsError():
		r.logger.Error("Identity matcher returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", out.Error),
		)
		return "", models.NewError(models.CodeInternal,
			fmt.Sprintf("identity matcher returned %d", resp.StatusCode()), nil)
	case !out.Matched || out.EmployeeID == "":
		return "", models.ErrIdentityNotFound
	}

	r.logger.Info("Resolved identity",
		zap.String("employee_id", out.EmployeeID),
		zap.Float64("distance", out.Distance),
	)
	return out.EmployeeID, nil
}
