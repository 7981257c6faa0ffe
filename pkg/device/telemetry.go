package device

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Telemetry exposes live device stats: real memory arena usage plus a
// simulated utilization/temperature model driven by in-flight blocks,
// in lieu of an NVML query path the simulated device does not have.
type Telemetry struct {
	dev *Device

	mu          sync.RWMutex
	utilization float64 // percent
	temperature float64 // celsius

	stopCh chan struct{}
}

// Telemetry returns the device's telemetry collector, starting the
// background sampler on first use.
func (d *Device) Telemetry() *Telemetry {
	d.telOnce.Do(func() {
		d.tel = &Telemetry{
			dev:         d,
			temperature: 42.0,
			stopCh:      make(chan struct{}),
		}
		go d.tel.loop()
	})
	return d.tel
}

// Snapshot is a point-in-time view of device state.
type Snapshot struct {
	Device        string  `json:"device"`
	VRAMUsedMB    float64 `json:"vram_used_mb"`
	VRAMTotalMB   float64 `json:"vram_total_mb"`
	Utilization   float64 `json:"gpu_utilization"`
	TemperatureC  float64 `json:"temperature_c"`
	ActiveBlocks  int32   `json:"active_blocks"`
	LaunchesTotal int64   `json:"launches_total"`
	BytesCopied   int64   `json:"bytes_copied"`
}

// Snapshot returns the current device state.
func (t *Telemetry) Snapshot() Snapshot {
	t.mu.RLock()
	util, temp := t.utilization, t.temperature
	t.mu.RUnlock()

	const mb = 1024 * 1024
	return Snapshot{
		Device:        t.dev.name,
		VRAMUsedMB:    float64(t.dev.MemoryUsed()) / mb,
		VRAMTotalMB:   float64(t.dev.total) / mb,
		Utilization:   util,
		TemperatureC:  temp,
		ActiveBlocks:  t.dev.activeBlocks.Load(),
		LaunchesTotal: t.dev.launchesTotal.Load(),
		BytesCopied:   t.dev.bytesCopied.Load(),
	}
}

// loop updates simulated utilization and temperature from actual load.
func (t *Telemetry) loop() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
		}

		active := float64(t.dev.activeBlocks.Load())
		occupancy := math.Min(100, active/float64(t.dev.sms)*100)

		t.mu.Lock()
		// Smooth transition (exponential decay)
		t.utilization = t.utilization*0.7 + occupancy*0.3

		// Temperature rises with utilization, cools at idle: 42°C idle → 80°C full load
		targetTemp := 42.0 + (t.utilization/100.0)*38.0
		t.temperature = t.temperature*0.9 + targetTemp*0.1
		t.temperature += (rand.Float64() - 0.5) * 0.5
		t.mu.Unlock()
	}
}

func (t *Telemetry) stop() {
	close(t.stopCh)
}

// ServePrometheus writes the device stats in Prometheus text format.
func (t *Telemetry) ServePrometheus(w http.ResponseWriter, r *http.Request) {
	s := t.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP gpu_vram_used_mb Device memory in use\n")
	fmt.Fprintf(w, "# TYPE gpu_vram_used_mb gauge\n")
	fmt.Fprintf(w, "gpu_vram_used_mb{device=%q} %.2f\n", s.Device, s.VRAMUsedMB)
	fmt.Fprintf(w, "# HELP gpu_vram_total_mb Device memory budget\n")
	fmt.Fprintf(w, "# TYPE gpu_vram_total_mb gauge\n")
	fmt.Fprintf(w, "gpu_vram_total_mb{device=%q} %.2f\n", s.Device, s.VRAMTotalMB)
	fmt.Fprintf(w, "# HELP gpu_utilization GPU utilization percentage\n")
	fmt.Fprintf(w, "# TYPE gpu_utilization gauge\n")
	fmt.Fprintf(w, "gpu_utilization{device=%q} %.2f\n", s.Device, s.Utilization)
	fmt.Fprintf(w, "# HELP gpu_temperature_celsius GPU temperature\n")
	fmt.Fprintf(w, "# TYPE gpu_temperature_celsius gauge\n")
	fmt.Fprintf(w, "gpu_temperature_celsius{device=%q} %.1f\n", s.Device, s.TemperatureC)
	fmt.Fprintf(w, "# HELP gpu_active_blocks Blocks currently resident on SMs\n")
	fmt.Fprintf(w, "# TYPE gpu_active_blocks gauge\n")
	fmt.Fprintf(w, "gpu_active_blocks{device=%q} %d\n", s.Device, s.ActiveBlocks)
	fmt.Fprintf(w, "# HELP gpu_launches_total Kernel launches since start\n")
	fmt.Fprintf(w, "# TYPE gpu_launches_total counter\n")
	fmt.Fprintf(w, "gpu_launches_total{device=%q} %d\n", s.Device, s.LaunchesTotal)
	fmt.Fprintf(w, "# HELP gpu_bytes_copied_total Bytes moved across the host interface\n")
	fmt.Fprintf(w, "# TYPE gpu_bytes_copied_total counter\n")
	fmt.Fprintf(w, "gpu_bytes_copied_total{device=%q} %d\n", s.Device, s.BytesCopied)
}
