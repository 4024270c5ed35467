package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Record captures d worth of audio from src. The source is started and
// stopped by Record.
func Record(ctx context.Context, src Source, d time.Duration) (AudioChunk, error) {
	cfg := src.Config()
	want := cfg.SamplesFor(d)

	if err := src.Start(ctx); err != nil {
		return AudioChunk{}, fmt.Errorf("start %s source: %w", src.Name(), err)
	}
	defer src.Stop()

	out := AudioChunk{
		Samples:    make([]int16, 0, want),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	for len(out.Samples) < want {
		chunk, err := src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) && len(out.Samples) > 0 {
				break
			}
			return AudioChunk{}, fmt.Errorf("read %s source: %w", src.Name(), err)
		}
		out.Append(chunk)
	}

	if len(out.Samples) > want {
		out.Samples = out.Samples[:want]
	}
	return out, nil
}

// Play writes chunk to sink in buffer-sized pieces and waits for playback
// to finish. The sink is started by Play.
func Play(ctx context.Context, sink Sink, chunk AudioChunk) error {
	if err := sink.Start(ctx); err != nil {
		return fmt.Errorf("start %s sink: %w", sink.Name(), err)
	}

	cfg := sink.Config()
	chunk = Conform(chunk, cfg)
	step := cfg.BufferSize() * chunk.Channels
	if step <= 0 {
		step = len(chunk.Samples)
	}

	for off := 0; off < len(chunk.Samples); off += step {
		end := min(off+step, len(chunk.Samples))
		piece := AudioChunk{
			Samples:    chunk.Samples[off:end],
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		}
		if err := sink.Write(ctx, piece); err != nil {
			sink.Stop()
			return fmt.Errorf("write %s sink: %w", sink.Name(), err)
		}
	}

	return sink.Flush(ctx)
}

// PlayWAV decodes a WAV file and plays it.
func PlayWAV(ctx context.Context, sink Sink, path string) error {
	chunk, err := ReadWAVFile(path)
	if err != nil {
		return err
	}
	return Play(ctx, sink, chunk)
}
