package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"github.com/omochice/chatanon/internal/client"
	"github.com/omochice/chatanon/internal/config"
	"github.com/omochice/chatanon/internal/identity"
	"github.com/omochice/chatanon/internal/metrics"
	"github.com/omochice/chatanon/internal/session"
	"github.com/omochice/chatanon/internal/transport"
)

const maxMessageLength = 1000

const chatHelp = `Commands:
  /next    start a new chat
  /leave   leave the current chat
  /status  show connection details
  /quit    exit
Anything else is sent to the stranger.`

// controller is the part of client.Controller the prompt drives.
type controller interface {
	StartSession(ctx context.Context) error
	SendChat(ctx context.Context, text string) error
	Leave(ctx context.Context) error
	Status(ctx context.Context) (client.Status, error)
}

func chatCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), !noColor && color.SupportColor())
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
	return cmd
}

func runChat(parent context.Context, in io.Reader, out io.Writer, colors bool) error {
	cfg, err := config.Load()
	if err != nil {
		return configError(err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	store, err := identity.Open(cfg.DataDir, log)
	if err != nil {
		return err
	}
	defer store.Close()
	if !store.HasCompleteUserData() {
		return configError(errors.New(`no profile yet, run "chatanon profile set" first`))
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mt := metrics.New()
	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr, mt, log)
	}

	ctrl := client.New(client.Config{
		WSURL:        cfg.WSURL,
		APIURL:       cfg.APIURL,
		Policy:       transport.Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay},
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PollInterval: cfg.OnlinePollInterval,
		Locale:       identity.DetectLocale(cfg.Language, cfg.Timezone),
	}, store, client.WithLogger(log), client.WithMetrics(mt))

	runCtx, cancelRun := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = ctrl.Run(runCtx)
	}()

	r := newRenderer(out, colors)
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for snap := range ctrl.Updates() {
			r.Render(snap)
		}
	}()

	fmt.Fprintln(out, chatHelp)
	if st, err := ctrl.Status(ctx); err == nil {
		fmt.Fprintf(out, "%d online. Type /next to meet a stranger.\n", st.OnlineCount)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := handleLine(ctx, ctrl, out, line)
			if err != nil {
				fmt.Fprintln(out, r.paint(roleStyles[session.RoleError], "! "+err.Error()))
			}
			if quit {
				break loop
			}
		}
	}

	cancelRun()
	<-runDone
	<-renderDone
	return nil
}

// handleLine runs one line of input. It reports whether the user asked to quit.
func handleLine(ctx context.Context, ctrl controller, out io.Writer, line string) (bool, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return false, nil
	}
	switch strings.ToLower(text) {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
		return false, nil
	case "/next", "/start":
		return false, ctrl.StartSession(ctx)
	case "/leave":
		return false, ctrl.Leave(ctx)
	case "/status":
		st, err := ctrl.Status(ctx)
		if err != nil {
			return false, err
		}
		renderStatus(out, st)
		return false, nil
	}
	if strings.HasPrefix(text, "/") && !strings.Contains(text, " ") {
		return false, fmt.Errorf("unknown command %s, type /help", text)
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return false, fmt.Errorf("message is longer than %d characters", maxMessageLength)
	}
	err := ctrl.SendChat(ctx, text)
	switch {
	case errors.Is(err, session.ErrNotPaired):
		return false, errors.New("no stranger yet, type /next to start a chat")
	case errors.Is(err, transport.ErrNotOpen):
		return false, errors.New("not connected, the message was not sent")
	}
	return false, err
}

func serveMetrics(ctx context.Context, addr string, mt *metrics.Metrics, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mt.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("Serving metrics", "addr", addr)
}
