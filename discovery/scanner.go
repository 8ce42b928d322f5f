package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPort          = 80
	defaultProbeTimeout  = time.Second * 2
	defaultMaxConcurrent = 64
)

type scannerImpl struct {
	port          int
	probeTimeout  time.Duration
	maxConcurrent int
	httpClient    *http.Client
	candidates    []string
}

type Config struct {
	Port          int
	ProbeTimeout  time.Duration
	MaxConcurrent int
	HTTPClient    *http.Client
	// Candidates overrides the default candidate set, mainly for tests.
	Candidates []string
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout == 0 {
		probeTimeout = defaultProbeTimeout
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	candidates := cfg.Candidates
	if candidates == nil {
		candidates = DefaultCandidates()
	}

	return &scannerImpl{
		port:          port,
		probeTimeout:  probeTimeout,
		maxConcurrent: maxConcurrent,
		httpClient:    httpClient,
		candidates:    candidates,
	}, nil
}

// DefaultCandidates lists the addresses a robot is likely to hold on a
// home network: the SoftAP defaults for an isolated setup, the full
// host range of the common router subnet, and the start of the hotspot
// tethering subnet.
func DefaultCandidates() []string {
	candidates := []string{"192.168.4.1", "192.168.4.2"}

	for i := 1; i <= 254; i++ {
		candidates = append(candidates, fmt.Sprintf("192.168.1.%d", i))
	}

	for i := 1; i <= 50; i++ {
		candidates = append(candidates, fmt.Sprintf("192.168.43.%d", i))
	}

	return candidates
}

// Scan probes every candidate once and returns the reachable ones in
// candidate order. It completes only after every probe has resolved;
// all positives are collected, there is no early return.
func (scanner *scannerImpl) Scan(ctx context.Context) []string {
	reachable := make([]bool, len(scanner.candidates))

	group := errgroup.Group{}
	group.SetLimit(scanner.maxConcurrent)

	for i, ip := range scanner.candidates {
		i, ip := i, ip

		group.Go(func() error {
			reachable[i] = scanner.probe(ctx, ip)

			return nil
		})
	}

	_ = group.Wait()

	found := make([]string, 0)
	for i, ok := range reachable {
		if ok {
			found = append(found, scanner.candidates[i])
		}
	}

	return found
}

// probe sends one no-op stop command; a 200 marks the address
// reachable. One shot, no retries within a scan.
func (scanner *scannerImpl) probe(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, scanner.probeTimeout)
	defer cancel()

	probeURL := fmt.Sprintf("http://%s:%d/command?move=S", ip, scanner.port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := scanner.httpClient.Do(req)
	if err != nil {
		return false
	}

	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
