package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsb/numus"
	"github.com/tsb/numus/conductor"
	"github.com/tsb/numus/midi"
	"github.com/tsb/numus/oto"
	"github.com/tsb/numus/rpc"
	"github.com/tsb/numus/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to write .mid, .raw and .wav files. By default, the directory of the performance file.")
	smfOut := flag.Bool("m", false, "Record the performance to a standard MIDI file (.mid).")
	rawOut := flag.Bool("r", false, "Render an audition of the performance to a 16-bit stereo .raw file at 44100 Hz. Ignored with -p.")
	wavOut := flag.Bool("w", false, "Render an audition of the performance to a 16-bit stereo .wav file at 44100 Hz. Ignored with -p.")
	monitor := flag.Bool("p", false, "Play an audition of the performance on the default audio device (default behaviour when no other output is defined).")
	port := flag.String("midi", "", "Play the performance on the first MIDI output whose name starts with this prefix. Use -midi list to list the outputs.")
	sync := flag.String("sync", "", "Send automation frames to a numus-monitor listening on this host:port.")
	logLevel := flag.String("log", "warn", "Log level: debug, info, warn or error.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *port == "list" {
		ports, err := midi.Ports()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not list MIDI outputs: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %v: %v\n", *logLevel, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if !*smfOut && !*rawOut && !*wavOut && *port == "" && *sync == "" {
		*monitor = true // with nothing else to output, just listen to it
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	// only one audio context per process, so every performance shares the
	// same monitor
	var speaker *oto.Monitor
	if *monitor {
		speaker = oto.NewMonitor(0)
		player, err := oto.Play(speaker)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not play audio: %v\n", err)
			os.Exit(1)
		}
		defer player.Close()
	}
	process := func(filename string) error {
		output := func(extension string, write func(path string) error) error {
			dir := *directory
			if dir == "" {
				dir = filepath.Dir(filename)
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)) + extension
			return write(filepath.Join(dir, name))
		}
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		perf, err := numus.ReadPerformance(inputBytes)
		if err != nil {
			return err
		}
		opts := []conductor.Option{conductor.WithLogger(logger.With("performance", filepath.Base(filename)))}
		realtime := false
		var recorder *midi.Recorder
		if *smfOut {
			recorder = midi.NewRecorder(float64(perf.BPM), perf.Meter())
			opts = append(opts, conductor.WithTriggerSink(recorder), conductor.WithAutomationSink(recorder))
		}
		if speaker != nil {
			speaker.Reset(float64(perf.BPM))
			opts = append(opts, conductor.WithTriggerSink(speaker))
			realtime = true
		}
		var score *oto.Score
		if (*rawOut || *wavOut) && !*monitor {
			score = oto.NewScore(float64(perf.BPM))
			opts = append(opts, conductor.WithTriggerSink(score))
		}
		if *port != "" {
			out, err := midi.OpenOutput(*port, float64(perf.BPM))
			if err != nil {
				return err
			}
			defer out.Close()
			opts = append(opts, conductor.WithTriggerSink(out))
			realtime = true
		}
		if *sync != "" {
			sender, err := rpc.NewSender(*sync)
			if err != nil {
				return fmt.Errorf("could not connect to %v: %v", *sync, err)
			}
			defer sender.Close()
			opts = append(opts, conductor.WithAutomationSink(sender))
			realtime = true
		}
		c, err := conductor.New(perf, opts...)
		if err != nil {
			return err
		}
		if realtime {
			err = c.Play(ctx)
		} else {
			err = c.Run(ctx)
		}
		if err != nil {
			return fmt.Errorf("performance failed: %w", err)
		}
		if speaker != nil {
			ringOut(ctx, speaker)
		}
		if recorder != nil {
			if err := output(".mid", recorder.WriteFile); err != nil {
				return fmt.Errorf("error outputting .mid file: %v", err)
			}
		}
		if score != nil {
			ticks := c.Stats().Ticks + perf.Meter() // one bar of tail
			if *rawOut {
				if err := output(".raw", writeAudio(func(f *os.File) error { return score.WriteRaw(f, ticks) })); err != nil {
					return fmt.Errorf("error outputting .raw file: %v", err)
				}
			}
			if *wavOut {
				if err := output(".wav", writeAudio(func(f *os.File) error { return score.WriteWav(f, ticks) })); err != nil {
					return fmt.Errorf("error outputting .wav file: %v", err)
				}
			}
		}
		st := c.Stats()
		logger.Info("done", "file", filename, "ticks", st.Ticks, "triggers", st.Triggers, "sinkErrors", st.SinkErrors)
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files := append(ymlfiles, jsonfiles...)
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			if err := process(param); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}
	os.Exit(retval)
}

// writeAudio returns a function creating the file at path and rendering
// into it.
func writeAudio(render func(f *os.File) error) func(path string) error {
	return func(path string) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create %v: %v", path, err)
		}
		if err := render(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}

// ringOut waits until the last notes of the monitor have decayed, so the
// next performance does not cut them off.
func ringOut(ctx context.Context, m *oto.Monitor) {
	for m.Voices() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "numus-play runs .yml/.json performance files into MIDI files, MIDI ports, audio and automation receivers.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
