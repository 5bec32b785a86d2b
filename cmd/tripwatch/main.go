// tripwatch follows one trip over the live channel and prints the
// reconciled marker, the way the passenger page renders it.
//
// Usage:
//
//	tripwatch --server ws://localhost:8080/ws --link 'https://…/track?token=…&role=passenger&access=…'
//	tripwatch --server ws://localhost:8080/ws --token abc123 --role dispatcher
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/reconciler"
	"github.com/diintechteam9/cab-tracker/pkg/trackclient"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server        string
		link          string
		token         string
		role          string
		access        string
		interpolation time.Duration
		fps           int
		logLevel      string
	)

	flagSet := pflag.NewFlagSet("tripwatch", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "ws://localhost:8080/ws", "websocket endpoint")
	flagSet.StringVar(&link, "link", "", "tracking link; supplies --token, --role and --access")
	flagSet.StringVar(&token, "token", "", "trip token")
	flagSet.StringVar(&role, "role", string(models.RolePassenger), "viewer role (passenger or dispatcher)")
	flagSet.StringVar(&access, "access", "", "signed link token, when the server enforces links")
	flagSet.DurationVar(&interpolation, "interpolation", utils.DefaultInterpolationDuration, "marker interpolation duration")
	flagSet.IntVar(&fps, "fps", 4, "marker lines printed per second")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if link != "" {
		parsed, err := trackclient.ParseLink(link)
		if err != nil {
			return err
		}
		token, access = parsed.Token, parsed.Access
		if parsed.Role != "" {
			role = string(parsed.Role)
		}
	}
	if token == "" {
		return errors.New("--token or --link is required")
	}
	viewerRole := models.Role(role)
	if viewerRole != models.RolePassenger && viewerRole != models.RoleDispatcher {
		return fmt.Errorf("unsupported viewer role %q", role)
	}
	if fps <= 0 {
		fps = 1
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(logLevel),
		Format: "text",
		Output: "stderr",
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	viewer := trackclient.NewViewer(trackclient.Config{
		ServerURL: server,
		Token:     token,
		Access:    access,
		Logger:    log,
	}, viewerRole, interpolation)

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- viewer.Watch(ctx, printEvent)
	}()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case err := <-watchDone:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			if st, ok := viewer.State(); ok && st.HasPosition {
				printState(st)
			}
		}
	}
}

func printEvent(e trackclient.Event) {
	switch e.Kind {
	case trackclient.EventJoined:
		if e.Trip != nil {
			fmt.Printf("joined trip %s (%s) %s -> %s\n", e.Trip.Token, e.Trip.Status,
				e.Trip.Source.Address, e.Trip.Destination.Address)
			if e.Trip.OTP != "" {
				fmt.Printf("start code: %s\n", e.Trip.OTP)
			}
		}
	case trackclient.EventStarted:
		fmt.Println("ride started")
	case trackclient.EventCompleted:
		fmt.Println("ride completed")
	case trackclient.EventServerError:
		fmt.Printf("server error: %v\n", e.Err)
	case trackclient.EventReconnecting:
		fmt.Printf("connection lost (%v), reconnecting\n", e.Err)
	}
}

func printState(st reconciler.RenderState) {
	gps := "gps ok"
	if st.GPSStatus == models.GPSStatusOff {
		gps = "GPS UNAVAILABLE"
	}
	fmt.Printf("%s  heading %5.1f°  %5.1f km/h  %s\n", st.Position, st.HeadingDegrees, st.SpeedKmh, gps)
}
