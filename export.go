package quip

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// ExportStatus is the state of a server-side export job.
type ExportStatus string

const (
	ExportProcessing     ExportStatus = "PROCESSING"
	ExportSuccess        ExportStatus = "SUCCESS"
	ExportPartialSuccess ExportStatus = "PARTIAL_SUCCESS"
)

// Succeeded reports whether s is a terminal success status.
func (s ExportStatus) Succeeded() bool {
	return s == ExportSuccess || s == ExportPartialSuccess
}

// ExportJob tracks one asynchronous PDF export. ID is a client-side
// correlation id used in log lines; RequestID is the server's job id.
type ExportJob struct {
	ID        string
	ThreadID  string
	RequestID string
	Status    ExportStatus
	PDFURL    string
}

type exportJobResponse struct {
	RequestID string       `json:"request_id"`
	Status    ExportStatus `json:"status"`
	PDFURL    string       `json:"pdf_url"`
}

// ExportToPDF runs a full asynchronous PDF export of a thread: it creates the
// export job, polls it until it finishes and downloads the resulting file.
func (c *Client) ExportToPDF(ctx context.Context, threadID string) ([]byte, bool) {
	c.stats.Inc(OpExportToPDF)

	job, ok := c.CreateExportPDF(ctx, threadID)
	if !ok {
		return nil, false
	}

	job, ok = c.PollExportPDF(ctx, job)
	if !ok {
		return nil, false
	}

	if job.PDFURL == "" {
		c.options.requestLogger.Errorf("PDF export [%s] for [%s] (job %s) finished without a download URL", job.RequestID, job.ThreadID, job.ID)
		return nil, false
	}

	c.options.requestLogger.Debugf("PDF export [%s] for [%s] (job %s) is available at %s", job.RequestID, job.ThreadID, job.ID, job.PDFURL)

	return c.download(ctx, job.PDFURL, job.ID)
}

// CreateExportPDF asks the API to start an asynchronous PDF export.
func (c *Client) CreateExportPDF(ctx context.Context, threadID string) (*ExportJob, bool) {
	resp, ok := callJSON[exportJobResponse](ctx, c, http.MethodPost, exportPath(threadID, "pdf/async"))
	if !ok {
		return nil, false
	}

	if resp.RequestID == "" {
		c.options.requestLogger.Errorf("PDF export for [%s] was not accepted: no request id returned", threadID)
		return nil, false
	}

	job := &ExportJob{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		RequestID: resp.RequestID,
		Status:    resp.Status,
	}

	c.options.requestLogger.Debugf("PDF export [%s] requested for [%s] (job %s)", job.RequestID, threadID, job.ID)

	return job, true
}

// PollExportPDF polls the status of job until it reaches a terminal status,
// waiting the configured poll interval between polls. It gives up after the
// configured maximum number of polls. Only SUCCESS and PARTIAL_SUCCESS are
// reported as ok. A job without a correlation id is assigned one.
func (c *Client) PollExportPDF(ctx context.Context, job *ExportJob) (*ExportJob, bool) {
	if job == nil || job.RequestID == "" {
		c.options.requestLogger.Errorf("Cannot poll a PDF export without a request id")
		return nil, false
	}

	polled := *job
	if polled.ID == "" {
		polled.ID = uuid.New().String()
	}

	path := exportPath(job.ThreadID, "pdf/async") + "?request_id=" + url.QueryEscape(job.RequestID)

	for poll := 1; poll <= c.options.maxPolls; poll++ {
		if poll > 1 && c.options.pollInterval > 0 {
			if err := c.sleep(ctx, c.options.pollInterval); err != nil {
				c.options.requestLogger.Errorf("Stopped polling PDF export [%s] for [%s] (job %s): %v", job.RequestID, job.ThreadID, polled.ID, err)
				return nil, false
			}
		}

		resp, ok := getJSON[exportJobResponse](ctx, c, path)
		if !ok {
			c.options.requestLogger.Errorf("Couldn't poll PDF export [%s] for [%s] (job %s)", job.RequestID, job.ThreadID, polled.ID)
			return nil, false
		}

		polled.Status = resp.Status
		polled.PDFURL = resp.PDFURL

		c.options.requestLogger.Infof("PDF exporting request [%s] for [%s] (job %s) is %s", job.RequestID, job.ThreadID, polled.ID, polled.Status)

		switch {
		case polled.Status == ExportProcessing:
			continue
		case polled.Status.Succeeded():
			return &polled, true
		default:
			c.options.requestLogger.Errorf("PDF export [%s] for [%s] (job %s) ended with status %q", job.RequestID, job.ThreadID, polled.ID, polled.Status)
			return nil, false
		}
	}

	c.options.requestLogger.Errorf("PDF export [%s] for [%s] (job %s) still processing after %d polls", job.RequestID, job.ThreadID, polled.ID, c.options.maxPolls)

	return nil, false
}

// Download fetches an export artifact from an absolute URL. Transport errors
// are retried through the retry registry, keyed by the URL; any non-success
// status ends the download.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, bool) {
	return c.download(ctx, rawURL, "")
}

func (c *Client) download(ctx context.Context, rawURL, jobID string) ([]byte, bool) {
	ref := "[" + rawURL + "]"
	if jobID != "" {
		ref += " (job " + jobID + ")"
	}

	for {
		c.options.requestLogger.Debugf("Download %s", ref)

		resp, err := c.rest.R().
			SetContext(ctx).
			Get(rawURL)
		if err != nil {
			if c.options.retryPolicy(nil, err) && c.retries.ShouldRetry(rawURL) {
				c.options.requestLogger.Debugf("Retry download %s after transport error, waiting %s: %v", ref, c.spacing, err)
				if err := c.sleep(ctx, c.spacing); err != nil {
					c.options.requestLogger.Errorf("Gave up downloading %s: %v", ref, err)
					return nil, false
				}
				continue
			}

			c.options.requestLogger.Errorf("Couldn't download %s, tried to get it %d times: %v", ref, c.retries.Ceiling(), err)
			return nil, false
		}

		if !resp.IsSuccess() {
			c.options.requestLogger.Errorf("Couldn't download %s, received %d", ref, resp.StatusCode())
			return nil, false
		}

		return resp.Body(), true
	}
}
