package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/voicelink/internal/adapters/room"
	"github.com/dkeye/voicelink/internal/adapters/rtc"
	sig "github.com/dkeye/voicelink/internal/adapters/signal"
	"github.com/dkeye/voicelink/internal/config"
	"github.com/dkeye/voicelink/internal/device"
	"github.com/dkeye/voicelink/internal/domain"
	"github.com/dkeye/voicelink/internal/metrics"
	"github.com/dkeye/voicelink/internal/session"
	router "github.com/dkeye/voicelink/internal/transport/http"
)

const playbackBufferMs = 100

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("voicechat", pflag.ExitOnError)
	fs.String("url", "", "signaling websocket URL")
	fs.String("token", "", "room access token")
	fs.String("room", "", "room to join")
	fs.String("name", "", "display name")
	fs.Int("sample-rate", 0, "microphone sample rate")
	fs.String("debug-addr", "", "listen address for /api and /metrics")
	noAudio := fs.Bool("no-audio", false, "run without microphone and speakers")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	connector, err := room.NewConnector(room.Options{
		Signal: sig.Options{
			PingPeriod:   cfg.PingPeriod,
			ReadLimit:    cfg.ReadLimit,
			ChatLimit:    cfg.ChatRateLimit,
			ChatInterval: cfg.ChatRateInterval,
		},
		RTC: rtc.Config{
			ICEServers:         cfg.ICEServers,
			ICETransportPolicy: cfg.ICETransportPolicy,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build room connector")
	}

	mgr := session.NewManager(connector,
		session.WithRoom(domain.RoomName(cfg.Room)),
		session.WithDisplayName(cfg.Name),
		session.WithMetrics(metrics.New(reg)),
	)
	if err := mgr.SetSampleRate(cfg.SampleRate); err != nil {
		log.Fatal().Err(err).Msg("invalid sample rate")
	}

	mixer := device.NewMixer(rtc.PlaybackRate, playbackBufferMs)
	var mic *device.Microphone
	if !*noAudio {
		if mic, err = device.StartMicrophone(cfg.SampleRate); err != nil {
			log.Warn().Err(err).Msg("microphone unavailable, continuing muted")
		}
		spk, err := device.StartSpeaker(rtc.PlaybackRate, mixer, func() {
			log.Warn().Str("module", "device.speaker").Msg("playback device stopped")
		})
		if err != nil {
			log.Warn().Err(err).Msg("speaker unavailable, continuing without playback")
		}
		defer spk.Close()
	}
	defer mic.Close()

	var srv *http.Server
	if cfg.DebugAddr != "" {
		mode := "release"
		if cfg.LogLevel == "debug" {
			mode = "debug"
		}
		srv = &http.Server{
			Addr:    cfg.DebugAddr,
			Handler: router.SetupRouter(mode, mgr, reg),
		}
		go func() {
			log.Info().Str("addr", cfg.DebugAddr).Msg("debug server started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("debug server error")
			}
		}()
	}

	h := &host{mgr: mgr, mixer: mixer, names: make(map[domain.ParticipantID]string)}
	lines := readLines(os.Stdin)

	mgr.Connect(cfg.URL, cfg.Token)

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := h.command(line, cfg); quit {
				break loop
			}
		case <-ticker.C:
			if mic != nil {
				mgr.PushLocalAudio(mic.Read())
			}
			for _, ev := range mgr.Poll() {
				h.handle(ev)
			}
		}
	}

	log.Info().Msg("Shutting down")
	mgr.Close()
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("debug server forced to shutdown")
		}
	}
	log.Info().Msg("Client exited gracefully")
}

// host is the per-tick consumer of session events.
type host struct {
	mgr   *session.Manager
	mixer *device.Mixer
	names map[domain.ParticipantID]string
}

func (h *host) display(id domain.ParticipantID) string {
	if name, ok := h.names[id]; ok {
		return name
	}
	return string(id)
}

func (h *host) handle(ev session.Event) {
	switch e := ev.(type) {
	case session.RoomConnected:
		log.Info().Str("identity", string(h.mgr.LocalIdentity())).Msg("connected to room")
	case session.RoomDisconnected:
		log.Info().Msg("disconnected from room")
	case session.ParticipantJoined:
		log.Info().Str("participant", string(e.ID)).Msg("participant joined")
	case session.ParticipantLeft:
		log.Info().Str("participant", h.display(e.ID)).Msg("participant left")
		h.mixer.Remove(e.ID)
		delete(h.names, e.ID)
	case session.AudioFrame:
		h.mixer.Push(e.ID, e.Samples)
	case session.ChatMessage:
		log.Info().
			Str("from", h.display(e.Sender)).
			Time("at", time.UnixMilli(e.Timestamp)).
			Msg(e.Text)
	case session.MetadataChanged:
		h.names[e.ID] = e.Username
		log.Info().Str("participant", string(e.ID)).Str("username", e.Username).Msg("username changed")
	case session.Error:
		log.Error().Str("op", string(e.Op)).Msg(e.Message)
	}
}

// command handles one line of stdin. It reports whether the user asked to quit.
func (h *host) command(line string, cfg *config.Config) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/leave":
		h.mgr.Disconnect()
	case line == "/join":
		h.mgr.Connect(cfg.URL, cfg.Token)
	case strings.HasPrefix(line, "/name "):
		if err := h.mgr.SetLocalIdentityMetadata(strings.TrimSpace(strings.TrimPrefix(line, "/name "))); err != nil {
			log.Warn().Err(err).Msg("cannot change name")
		}
	case strings.HasPrefix(line, "/vol "):
		fields := strings.Fields(line)
		if len(fields) != 3 {
			log.Warn().Msg("usage: /vol <participant> <dB>")
			break
		}
		db, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			log.Warn().Err(err).Msg("invalid volume")
			break
		}
		h.mixer.SetVolumeDB(domain.ParticipantID(fields[1]), db)
	default:
		if err := h.mgr.SendMessage(line); err != nil {
			log.Warn().Err(err).Msg("cannot send message")
		}
	}
	return false
}

func readLines(f *os.File) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out
}
