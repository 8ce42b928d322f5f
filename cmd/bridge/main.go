package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/chatterjee-sid/voicebot/bridge"
	"github.com/chatterjee-sid/voicebot/config"
)

func main() {
	configFlag := flag.String("c", "", "path to config file")

	flag.Parse()

	cfg := config.Default()

	if *configFlag != "" {
		loaded, err := config.LoadConfig(*configFlag)
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}

		cfg = loaded
	}

	port, err := bridge.OpenSerial(cfg.Bridge.SerialPort, cfg.Bridge.BaudRate)
	if err != nil {
		log.Fatalf("error opening serial port %s: %v", cfg.Bridge.SerialPort, err)
	}

	b, err := bridge.New(&bridge.Config{Port: port})
	if err != nil {
		log.Fatalf("error with bridge.New: %v", err)
	}

	defer b.Close()

	addr := fmt.Sprintf(":%d", cfg.Bridge.ListenPort)

	log.Printf("bridging %s on %s", cfg.Bridge.SerialPort, addr)

	if err := http.ListenAndServe(addr, b.Handler()); err != nil {
		log.Fatalf("error serving: %v", err)
	}
}
