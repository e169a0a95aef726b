// Command voiceplan plans trips from spoken requests typed or piped on
// stdin, one utterance per line, and speaks the answer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"voicetransit/internal/app"
	"voicetransit/internal/apperr"
	"voicetransit/internal/config"
	"voicetransit/internal/logger"
	"voicetransit/internal/model"
	"voicetransit/internal/service"
	"voicetransit/internal/utils"
	"voicetransit/internal/voice"
)

func main() {
	var (
		lat     = flag.Float64("lat", 0, "device latitude, used for \"von hier\"")
		lon     = flag.Float64("lon", 0, "device longitude, used for \"von hier\"")
		profile = flag.String("profile", model.ProfileStandard, "accessibility profile: standard, wheelchair or mobility_impaired")
		once    = flag.Bool("once", false, "answer a single utterance and exit")
	)
	flag.Parse()

	hasPosition := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lon" {
			hasPosition = true
		}
	})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithWriter(os.Stderr, logger.Options{
		Level:       cfg.Logging.Level,
		Environment: "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	c := &cli{
		planner: application.Planner,
		speaker: voice.NewSpeaker(voice.NewWriterSynthesizer(os.Stdout)),
		out:     os.Stdout,
		profile: *profile,
	}
	if hasPosition {
		c.lat, c.lon = lat, lon
	}

	session := newSession(voice.NewLineRecognizer(os.Stdin), cfg.Retry, !*once, log)
	events, err := session.Start(ctx)
	if err != nil {
		log.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	c.run(ctx, events)
}

// newSession creates a recognition session retrying network failures
// under the configured policy
func newSession(rec voice.Recognizer, retry config.RetryConfig, continuous bool, log *logger.Logger) *voice.Session {
	return voice.NewSession(rec,
		voice.WithContinuous(continuous),
		voice.WithRetry(retry.MaxAttempts, retry.BaseDelay),
		voice.WithLogger(log),
	)
}

type cli struct {
	planner  *service.Planner
	speaker  *voice.Speaker
	out      io.Writer
	profile  string
	lat, lon *float64
}

func (c *cli) run(ctx context.Context, events <-chan voice.Event) {
	for ev := range events {
		switch ev.Type {
		case voice.EventStart:
			fmt.Fprintln(c.out, "Sag zum Beispiel: 'Von Mainz nach Wiesbaden'")
		case voice.EventTranscript:
			c.handle(ctx, ev.Transcript)
		case voice.EventError:
			display, spoken, ok := service.SpeechErrorMessages(ev.Code)
			if !ok {
				continue
			}
			fmt.Fprintln(c.out, display)
			c.say(ctx, spoken)
		}
	}
}

func (c *cli) handle(ctx context.Context, text string) {
	fmt.Fprintf(c.out, "> %s\n", text)

	req := &model.PlanRequest{Text: text, Profile: c.profile, Lat: c.lat, Lon: c.lon}
	fromHere := false
	resp, err := c.planner.PlanStream(ctx, req, func(_ string, data any) error {
		progress, ok := data.(model.PlanProgress)
		if !ok {
			return nil
		}
		switch progress.Stage {
		case model.StageIntent:
			if intent, ok := progress.Data.(*model.Intent); ok {
				fromHere = intent.FromCurrentLocation()
			}
		case model.StageResolving, model.StageOrigin:
			if fromHere {
				c.say(ctx, progress.Message)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		appErr, ok := apperr.As(err)
		if !ok {
			appErr = apperr.Internal(service.MsgGenericError, err)
		}
		fmt.Fprintln(c.out, appErr.Message)
		c.say(ctx, appErr.Message)
		return
	}

	c.say(ctx, resp.Announcement)
	for i, trip := range resp.Trips {
		fmt.Fprintf(c.out, "%d. %s → %s  %s  %s\n",
			i+1,
			utils.FormatClock(trip.StartTime),
			utils.FormatClock(trip.EndTime),
			utils.FormatISODuration(trip.Duration),
			service.TransportSummary(trip.Legs),
		)
	}
}

func (c *cli) say(ctx context.Context, text string) {
	if err := c.speaker.Say(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "speech output failed: %v\n", err)
	}
}
