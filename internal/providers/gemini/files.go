package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"mediaqa/internal/core"
)

// PollConfig bounds how long WaitForActive waits for remote processing.
type PollConfig struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Timeout time.Duration
}

// DefaultPollConfig returns the poll settings used when none are configured.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Initial: time.Second,
		Max:     10 * time.Second,
		Factor:  2,
		Timeout: 5 * time.Minute,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	d := DefaultPollConfig()
	if c.Initial <= 0 {
		c.Initial = d.Initial
	}
	if c.Max <= 0 {
		c.Max = d.Max
	}
	if c.Factor < 1 {
		c.Factor = d.Factor
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// UploadFile uploads a local file to the Gemini Files API.
func (p *Provider) UploadFile(ctx context.Context, path, mimeType, displayName string) (*core.RemoteFile, error) {
	f, err := p.files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, mapError("upload file", err)
	}
	return toRemoteFile(f), nil
}

// GetFile fetches the current state of an uploaded file.
func (p *Provider) GetFile(ctx context.Context, name string) (*core.RemoteFile, error) {
	f, err := p.files.Get(ctx, name, nil)
	if err != nil {
		return nil, mapError("get file", err)
	}
	return toRemoteFile(f), nil
}

// DeleteFile removes an uploaded file.
func (p *Provider) DeleteFile(ctx context.Context, name string) error {
	if _, err := p.files.Delete(ctx, name, nil); err != nil {
		return mapError("delete file", err)
	}
	return nil
}

// WaitForActive polls the file until it leaves PROCESSING.
// It fails with a processing timeout once cfg.Timeout elapses and with a
// permanent error when the remote side reports FAILED.
func (p *Provider) WaitForActive(ctx context.Context, file *core.RemoteFile, cfg PollConfig) (*core.RemoteFile, error) {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.Timeout)
	delay := cfg.Initial

	current := file
	for current.Processing() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, core.NewProcessingTimeoutError(providerName,
				fmt.Sprintf("file %s still processing after %s", file.Name, cfg.Timeout), nil)
		}
		wait := delay
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		next, err := p.GetFile(ctx, current.Name)
		if err != nil {
			return nil, err
		}
		current = next

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.Max {
			delay = cfg.Max
		}
	}

	if current.State == core.FileStateFailed {
		msg := "file processing failed"
		if current.Error != "" {
			msg += ": " + current.Error
		}
		return nil, core.NewPermanentError(providerName, 0, msg, nil)
	}
	return current, nil
}

func toRemoteFile(f *genai.File) *core.RemoteFile {
	if f == nil {
		return &core.RemoteFile{State: core.FileStateUnspecified}
	}
	rf := &core.RemoteFile{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		URI:         f.URI,
		MIMEType:    f.MIMEType,
		State:       core.FileState(string(f.State)),
	}
	if rf.State == "" {
		rf.State = core.FileStateUnspecified
	}
	if f.SizeBytes != nil {
		rf.SizeBytes = *f.SizeBytes
	}
	if f.Error != nil {
		rf.Error = f.Error.Message
	}
	return rf
}
