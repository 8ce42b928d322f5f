package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chatterjee-sid/voicebot/clients/classifier"
	"github.com/chatterjee-sid/voicebot/clients/device"
	"github.com/chatterjee-sid/voicebot/config"
	"github.com/chatterjee-sid/voicebot/discovery"
	"github.com/chatterjee-sid/voicebot/pipeline"
	"github.com/chatterjee-sid/voicebot/recorder"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	configFlag := flag.String("c", "", "path to config file")
	languageFlag := flag.String("l", "", "two-letter language code")

	flag.Parse()

	_ = godotenv.Load()

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("VOICEBOT_CONFIG")
	}

	cfg := config.Default()

	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		cfg = loaded
	}

	if *languageFlag != "" {
		cfg.Classifier.Language = *languageFlag
	}

	fileSys := afero.NewOsFs()

	rec, err := recorder.New(&recorder.Config{
		FileSys:    fileSys,
		Source:     recorder.NewPortAudioSource(cfg.Recorder.SampleRate, cfg.Recorder.BufferSize),
		SampleRate: cfg.Recorder.SampleRate,
		OutputDir:  cfg.Recorder.OutputDir,
	})
	if err != nil {
		log.Fatalf("error with recorder.New: %v", err)
	}

	client, err := classifier.NewClient(&classifier.Config{
		FileSys:    fileSys,
		PrimaryURL: cfg.Classifier.PrimaryURL,
		SharedURL:  cfg.Classifier.SharedURL,
		Language:   cfg.Classifier.Language,
		Budget:     cfg.Classifier.ClassificationBudget(),
	})
	if err != nil {
		log.Fatalf("error with classifier.NewClient: %v", err)
	}

	session, err := device.NewSession(&device.Config{
		Port:    cfg.Device.Port,
		Timeout: time.Duration(cfg.Device.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("error with device.NewSession: %v", err)
	}

	p, err := pipeline.New(&pipeline.Config{
		FileSys:    fileSys,
		Recorder:   rec,
		Classifier: client,
		Session:    session,
	})
	if err != nil {
		log.Fatalf("error with pipeline.New: %v", err)
	}

	go logDeviceMessages(session)

	connectFirstDevice(cfg, session)

	runLoop(p)
}

func connectFirstDevice(cfg *config.Config, session device.Interface) {
	scanner, err := discovery.New(&discovery.Config{
		Port:          cfg.Discovery.Port,
		ProbeTimeout:  time.Duration(cfg.Discovery.ProbeTimeoutSecs) * time.Second,
		MaxConcurrent: cfg.Discovery.MaxConcurrent,
	})
	if err != nil {
		log.Fatalf("error with discovery.New: %v", err)
	}

	log.Printf("scanning for devices")

	found := scanner.Scan(context.Background())
	if len(found) == 0 {
		log.Printf("no devices found, commands will not be dispatched")

		return
	}

	for _, ip := range found {
		if session.Connect(ip) {
			log.Printf("connected to device at %s", ip)

			return
		}
	}

	log.Printf("no device accepted a connection")
}

func logDeviceMessages(session device.Interface) {
	for msg := range session.Subscribe() {
		log.Printf("device %s: %s", msg.Kind, msg.Body)
	}
}

func runLoop(p pipeline.Interface) {
	input := bufio.NewScanner(os.Stdin)

	log.Printf("enter starts a recording, enter again sends it, x aborts, q quits")

	for {
		if !input.Scan() {
			return
		}

		line := strings.TrimSpace(input.Text())

		switch p.Phase() {
		case pipeline.PhaseIdle:
			if line == "q" {
				return
			}

			if err := p.Begin(); err != nil {
				log.Printf("error starting capture: %v", err)

				continue
			}

			log.Printf("recording, enter stops")
		case pipeline.PhaseCapturing:
			if line == "x" {
				if err := p.Abort(); err != nil {
					log.Printf("error aborting: %v", err)
				}

				continue
			}

			outcome := p.Commit(context.Background())

			log.Printf("%s", outcome)
		}
	}
}
