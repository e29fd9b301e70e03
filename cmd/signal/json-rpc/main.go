// Package cmd contains an entrypoint for running an ion-rtp-sfu instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/pion/ion-rtp-sfu/cmd/signal/json-rpc/server"
	log "github.com/pion/ion-rtp-sfu/pkg/logger"
	"github.com/pion/ion-rtp-sfu/pkg/sfu"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/jsonrpc2"
	websocketjsonrpc2 "github.com/sourcegraph/jsonrpc2/websocket"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// Config defines parameters for configuring the sfu instance
type Config struct {
	sfu.Config `mapstructure:",squash"`
	LogConfig  log.GlobalConfig `mapstructure:"log"`
}

var (
	conf           = Config{Config: sfu.DefaultConfig()}
	file           string
	addr           string
	metricsAddr    string
	verbosityLevel int

	logger = log.New()
)

func showHelp() {
	fmt.Printf("Usage:%s {params}\n", os.Args[0])
	fmt.Println("      -c {config file}")
	fmt.Println("      -a {listen addr}")
	fmt.Println("      -m {metrics listen addr}")
	fmt.Println("      -h (show help info)")
	fmt.Println("      -v {0-10} (verbosity level, default 0)")
}

func load() bool {
	_, err := os.Stat(file)
	if err != nil {
		return false
	}

	viper.SetConfigFile(file)
	viper.SetConfigType("toml")

	err = viper.ReadInConfig()
	if err != nil {
		logger.Error(err, "config file read failed", "file", file)
		return false
	}
	err = viper.GetViper().Unmarshal(&conf)
	if err != nil {
		logger.Error(err, "sfu config file loaded failed", "file", file)
		return false
	}

	if err = conf.Validate(); err != nil {
		logger.Error(err, "config file loaded failed", "file", file)
		return false
	}

	logger.V(0).Info("Config file loaded", "file", file)
	return true
}

func parse() bool {
	flag.StringVar(&file, "c", "config.toml", "config file")
	flag.StringVar(&addr, "a", ":7000", "address to use")
	flag.StringVar(&metricsAddr, "m", ":8100", "merics to use")
	flag.IntVar(&verbosityLevel, "v", -1, "verbosity level, higher value - more logs")
	help := flag.Bool("h", false, "help info")
	flag.Parse()
	if !load() {
		return false
	}

	if *help {
		return false
	}
	return true
}

func metricsServer(addr string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: m}
}

func signalServer(addr string, s *sfu.SFU, sender *server.Sender) *http.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	m := http.NewServeMux()
	m.Handle("/ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error(err, "websocket upgrade failed")
			return
		}
		defer c.Close()

		p := server.NewJSONSignal(s, sender, logger)
		defer p.Close()

		jc := jsonrpc2.NewConn(r.Context(), websocketjsonrpc2.NewObjectStream(c), p)
		<-jc.DisconnectNotify()
	}))
	return &http.Server{Addr: addr, Handler: m}
}

func main() {
	if !parse() {
		showHelp()
		os.Exit(-1)
	}

	// Check that the -v is not set (default -1)
	if verbosityLevel < 0 {
		verbosityLevel = conf.LogConfig.Verbosity()
	}

	log.SetGlobalOptions(log.GlobalConfig{V: verbosityLevel})
	logger = log.New()

	logger.Info("--- Starting SFU Node ---")

	// SFU instance needs to be created with logr implementation
	sfu.Logger = logger

	nsfu := sfu.NewSFU(conf.Config)
	sender := server.NewSender(nsfu, logger.WithName("sender"))
	nsfu.OnEvent(sender.HandleEvent)
	nsfu.OnEvent(func(ev sfu.Event) {
		if e, ok := ev.(*sfu.ErrorEvent); ok && e.Kind == sfu.ErrorTransport {
			logger.Error(e.Err, "media transport error")
		}
	})

	if err := nsfu.Listen(); err != nil {
		logger.Error(err, "failed to listen")
		os.Exit(1)
	}
	logger.Info("SFU Listening", "addr", nsfu.Addr().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws := signalServer(addr, nsfu, sender)
	metrics := metricsServer(metricsAddr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(nsfu.Serve)
	g.Go(func() error {
		logger.Info("Signal Listening", "addr", addr)
		if err := ws.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Metrics Listening starter", "addr", metricsAddr)
		lis, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return err
		}
		if err := metrics.Serve(lis); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = ws.Close()
		_ = metrics.Close()
		return nsfu.Close()
	})

	if err := g.Wait(); err != nil {
		logger.Error(err, "sfu stopped")
		os.Exit(1)
	}
	logger.Info("--- SFU Node stopped ---")
}
