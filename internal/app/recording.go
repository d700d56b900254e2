package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/josephgoksu/voiceboard/internal/audio"
	"github.com/josephgoksu/voiceboard/internal/pipeline"
)

// ProcessRecording loads an audio file and runs it through the pipeline. A
// run whose operations all failed is reported as an error so the caller can
// set the recording aside.
func (a *App) ProcessRecording(ctx context.Context, fs afero.Fs, path string) (*pipeline.Report, error) {
	clip, err := audio.Load(fs, path)
	if err != nil {
		return nil, err
	}
	report, err := a.Pipeline.RunAudio(ctx, clip)
	if err != nil {
		return nil, err
	}
	if report.Attempted > 0 && report.Succeeded == 0 {
		return report, fmt.Errorf("none of %d operation(s) succeeded", report.Attempted)
	}
	a.logger.Info("recording applied", "file", clip.Filename, "run_id", report.RunID, "summary", report.Summary())
	return report, nil
}
