package main

import (
	"context"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/CodedInternet/golbis/comms"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"gopkg.in/yaml.v2"
)

// WSDM_VERSION is the device websocket protocol version we speak.
const WSDM_VERSION = 0

type EnvConfig struct {
	// Intiface Engine's Device Websocket Server address. The device
	// websocket server must be enabled in the Intiface settings.
	WSDM_URL string `env:"WSDM_URL" envDefault:"ws://127.0.0.1:54817"`

	// lBIS pump control endpoint.
	PUMP_URL string `env:"PUMP_URL" envDefault:"ws://10.105.23.145:80/ws"`

	// Must match identifier.identifier and the protocol name in the
	// buttplug-user-device-config.json served to Intiface.
	IDENTIFIER string `env:"WSDM_IDENTIFIER" envDefault:"lovense"`

	// Unique address for this shim instance, same UUID as in the UDCF.
	ADDRESS string `env:"WSDM_ADDRESS" envDefault:"6a797313-e431-4b9f-9fd0-3eef4c97df24"`

	STATUS_ADDR string `env:"STATUS_ADDR" envDefault:"127.0.0.1:8188"`
	SRCDIR      string `env:"SRCDIR" envDefault:"."`
	DEBUG       bool   `env:"DEBUG" envDefault:"0"`
}

// ShimConfig is the optional shim_config.yaml override for the env defaults.
type ShimConfig struct {
	WSDMURL    string `yaml:"wsdm_url"`
	PumpURL    string `yaml:"pump_url"`
	Identifier string `yaml:"identifier"`
	Address    string `yaml:"address"`
}

var ENV *EnvConfig

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)
}

// loadConfigFile applies overrides from SRCDIR/shim_config.yaml if present.
func loadConfigFile(cfg *EnvConfig) {
	filename, err := filepath.Abs(filepath.Join(cfg.SRCDIR, "shim_config.yaml"))
	if err != nil {
		return
	}

	yamlFile, err := ioutil.ReadFile(filename)
	if err != nil {
		// the file is optional, env defaults stand
		return
	}

	var file ShimConfig
	if err := yaml.Unmarshal(yamlFile, &file); err != nil {
		log.Printf("unable to unmarshal %s: %v", filename, err)
		return
	}

	if file.WSDMURL != "" {
		cfg.WSDM_URL = file.WSDMURL
	}
	if file.PumpURL != "" {
		cfg.PUMP_URL = file.PumpURL
	}
	if file.Identifier != "" {
		cfg.IDENTIFIER = file.Identifier
	}
	if file.Address != "" {
		cfg.ADDRESS = file.Address
	}
}

func main() {
	log.Print("Starting lBIS Intiface WSDM shim")
	loadConfigFile(ENV)

	queue := comms.NewIntensityQueue()

	wsdm := &comms.WSDMClient{
		URL: ENV.WSDM_URL,
		Handshake: comms.Handshake{
			Identifier: ENV.IDENTIFIER,
			Address:    ENV.ADDRESS,
			Version:    WSDM_VERSION,
		},
		Queue: queue,
	}
	pump := &comms.PumpClient{
		URL:   ENV.PUMP_URL,
		Queue: queue,
	}

	// the two links run independently for the life of the process; a
	// failure on one side never stops the other
	ctx, cancel := context.WithCancel(context.Background())
	go wsdm.Run(ctx)
	go pump.Run(ctx)

	//---
	// Diagnostics API
	//---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", StatusHandler(wsdm, pump, queue))
		r.Get("/health", HealthHandler)
	})

	go func() {
		log.Printf("status api listening on %s", ENV.STATUS_ADDR)
		if err := http.ListenAndServe(ENV.STATUS_ADDR, r); err != nil {
			log.Printf("status api: %v", err)
		}
	}()

	if ENV.DEBUG {
		shell := debugShell(wsdm, pump, queue)
		go shell.Start()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Print("Shim stopped by user")
	cancel()
}
