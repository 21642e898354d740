package scan

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type portJob struct {
	port  int
	state PortState
}

// ConnectScanner drives a Prober across a port range. With a single worker the
// ports are probed one at a time in ascending order. With more, up to that many
// probes are in flight at once; every port is still probed exactly once.
type ConnectScanner struct {
	prober      Prober
	maxRoutines int
}

func NewConnectScanner(timeout time.Duration, paralellism int) *ConnectScanner {
	return NewProberScanner(NewConnectProber(timeout), paralellism)
}

func NewProberScanner(prober Prober, paralellism int) *ConnectScanner {
	if paralellism < 1 {
		paralellism = 1
	}
	return &ConnectScanner{
		prober:      prober,
		maxRoutines: paralellism,
	}
}

func (s *ConnectScanner) Scan(ctx context.Context, host net.IP, ports Range) (Result, error) {

	result := NewResult(host)
	startTime := time.Now()

	log.Debugf("Probing %d ports on %s with %d routine(s)...", ports.Size(), host, s.maxRoutines)

	var err error
	if s.maxRoutines == 1 {
		err = s.scanSequential(ctx, host, ports, &result)
	} else {
		err = s.scanParallel(ctx, host, ports, &result)
	}

	result.Duration = time.Since(startTime)
	result.sort()

	return result, err
}

func (s *ConnectScanner) scanSequential(ctx context.Context, host net.IP, ports Range, result *Result) error {
	for port := ports.Start; port <= ports.End; port++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.add(port, s.prober.Probe(ctx, host, port))
	}
	return nil
}

func (s *ConnectScanner) scanParallel(ctx context.Context, host net.IP, ports Range, result *Result) error {

	wg := &sync.WaitGroup{}

	jobChan := make(chan int, s.maxRoutines)
	resultChan := make(chan portJob, s.maxRoutines)
	doneChan := make(chan struct{})

	go func() {
		for job := range resultChan {
			result.add(job.port, job.state)
		}
		close(doneChan)
	}()

	for i := 0; i < s.maxRoutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range jobChan {
				resultChan <- portJob{
					port:  port,
					state: s.prober.Probe(ctx, host, port),
				}
			}
		}()
	}

	var err error

dispatch:
	for port := ports.Start; port <= ports.End; port++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobChan <- port:
		}
	}

	close(jobChan)
	wg.Wait()
	close(resultChan)
	<-doneChan

	return err
}
