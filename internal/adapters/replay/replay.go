// Package replay re-injects a recorded mission log into the pipeline as if
// it were live traffic. Pacing uses the gap between log time elapsed and
// wall time elapsed, so long replays do not drift: when the log runs ahead
// we sleep, when it falls behind we burst to catch up.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rwiren/securingskies-platform/internal/adapters/observability"
	"github.com/rwiren/securingskies-platform/internal/adapters/recorder"
	"github.com/rwiren/securingskies-platform/internal/domain"
	"github.com/rwiren/securingskies-platform/internal/ports"
)

// preRollSeconds of context are kept ahead of the first airborne packet when
// jumping, so fusion sees the controller pairing traffic before takeoff.
const preRollSeconds = 5.0

// Options controls playback.
type Options struct {
	Path string
	// Speed is the time-dilation factor; 1.0 replays in real time, 0 means
	// as fast as possible.
	Speed float64
	// JumpToAirborne skips the idle preamble: playback begins preRollSeconds
	// before the first aerial-link packet. Remote ID beacons are ignored for
	// the scan because they log ground state for hours.
	JumpToAirborne bool
}

type Collector struct {
	opts Options
	obs  ports.Observability

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New(opts Options, obs ports.Observability) *Collector {
	if obs == nil {
		obs = observability.NewLogObs()
	}
	return &Collector{opts: opts, obs: obs, stopCh: make(chan struct{})}
}

// Start begins playback in a background goroutine and returns immediately.
// The out channel is not closed on completion; the caller owns it.
func (c *Collector) Start(out chan<- domain.RawMessage) error {
	if _, err := os.Stat(c.opts.Path); err != nil {
		return fmt.Errorf("mission log: %w", err)
	}

	skipBefore := 0.0
	if c.opts.JumpToAirborne {
		ts, err := c.scanMissionStart()
		if err != nil {
			return err
		}
		skipBefore = ts
	}

	c.wg.Add(1)
	go c.play(out, skipBefore)
	return nil
}

func (c *Collector) Stop() error {
	c.once.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}

// scanMissionStart finds the first aerial-link packet and backs off the
// pre-roll. Returns zero when no such packet exists, meaning play from the
// top.
func (c *Collector) scanMissionStart() (float64, error) {
	f, err := os.Open(c.opts.Path)
	if err != nil {
		return 0, fmt.Errorf("mission log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var e recorder.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if strings.HasPrefix(e.Topic, "thing/product") {
			start := math.Max(0, e.TS-preRollSeconds)
			c.obs.LogInfo("mission start located",
				ports.Field{Key: "ts", Value: e.TS},
				ports.Field{Key: "skip_before", Value: start})
			return start, nil
		}
	}
	c.obs.LogInfo("no aerial-link packet found, playing from start")
	return 0, scanner.Err()
}

func (c *Collector) play(out chan<- domain.RawMessage, skipBefore float64) {
	defer c.wg.Done()

	f, err := os.Open(c.opts.Path)
	if err != nil {
		c.obs.LogError("replay open failed", err)
		return
	}
	defer f.Close()

	speed := c.opts.Speed
	firstTS := -1.0
	var wallStart time.Time
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-c.stopCh:
			return
		default:
		}

		var e recorder.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.TS < skipBefore {
			continue
		}
		if firstTS < 0 {
			firstTS = e.TS
			wallStart = time.Now()
		}

		if speed > 0 {
			logElapsed := e.TS - firstTS
			realElapsed := time.Since(wallStart).Seconds() * speed
			if wait := (logElapsed - realElapsed) / speed; wait > 0 {
				select {
				case <-time.After(time.Duration(wait * float64(time.Second))):
				case <-c.stopCh:
					return
				}
			}
		}

		sec, frac := math.Modf(e.TS)
		msg := domain.RawMessage{
			Topic:       e.Topic,
			Payload:     append([]byte(nil), e.Data...),
			ReceiptTime: time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		}
		select {
		case out <- msg:
			count++
		case <-c.stopCh:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.obs.LogError("replay scan failed", err)
	}
	c.obs.LogInfo("replay finished", ports.Field{Key: "packets", Value: count})
}

var _ ports.Collector = (*Collector)(nil)
