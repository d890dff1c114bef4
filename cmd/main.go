package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rtspd/internal/media"
	"rtspd/internal/rtspd"
	"rtspd/pkg/rtsp"
)

func main() {
	config, err := rtspd.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	rtspd.InitLogger(config)

	controller := media.NewController()
	for _, item := range config.Media {
		name := item.Name
		if name == "" {
			name = item.Path
		}
		controller.Publish(item.Path, demoSDP(name), func() rtsp.SourceDelegate {
			return media.DemoSource{PayloadType: 96, ClockRate: 90000, SSRC: 0x4d656f77}
		})
		slog.Info("published presentation", "path", item.Path, "name", name)
	}

	limits := rtsp.Limits{
		MaxBodySize:           config.Limits.MaxBodyBytes,
		MaxInterleavedPayload: config.Limits.MaxInterleavedPayload,
	}

	server := rtspd.NewServer(config.RTSP.Port, controller, limits, config.Limits.OutboundChannelBacklog, config.ReadTimeout())
	if err := server.Start(); err != nil {
		slog.Error("failed to start server", "err", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("received signal, shutting down server", "signal", sig)

	server.Stop()
	slog.Info("server shutdown complete")
}

func demoSDP(name string) []byte {
	return media.BuildSDP(name, []media.Track{
		{
			Media:        "video",
			PayloadType:  96,
			ClockRate:    90000,
			EncodingName: "H264",
			Fmtp:         "packetization-mode=1",
		},
	})
}
