// Command greyscale converts colour images to greyscale on a simulated
// GPU device.
//
// Usage:
//
//	greyscale <input> <output> [mode [block-dim]]                  single image
//	greyscale --input <dir> --output <dir> [--optimized] [--benchmark]   batch
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/batch"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/bench"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/codec"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/config"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/device"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/kernel"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "greyscale [input output [mode [block-dim]]]",
		Short: "GPU-style RGB to greyscale converter",
		Long: `Converts colour images to greyscale using a simulated GPU compute
pipeline: device buffer allocation, host-to-device transfer, a block-grid
kernel launch (naive or shared-memory variant), and transfer back.

With positional arguments one image is processed; with --input/--output a
whole directory is processed as a batch.`,
		Args:          cobra.RangeArgs(0, 4),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runBatch(cfg)
			}
			if cfg.InputPath != "" || cfg.OutputPath != "" {
				return config.Errorf("use either positional arguments or --input/--output, not both")
			}
			if len(args) < 2 {
				return config.Errorf("single-image mode needs <input> and <output>")
			}
			return runSingle(cfg, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.InputPath, "input", "", "input directory (batch mode)")
	f.StringVar(&cfg.OutputPath, "output", "", "output directory (batch mode)")
	f.BoolVar(&cfg.Optimized, "optimized", false, "use the shared-memory kernel variant")
	f.BoolVar(&cfg.Benchmark, "benchmark", false, "measure per-stage timings and print a summary")
	f.BoolVar(&cfg.Pipeline, "pipeline", false, "overlap adjacent images on per-image streams")
	f.IntVar(&cfg.Workers, "depth", cfg.Workers, "in-flight images when pipelining")
	f.IntVar(&cfg.BlockDim, "block-dim", cfg.BlockDim, "kernel block edge length")
	f.IntVar(&cfg.DeviceMemoryMB, "vram-mb", cfg.DeviceMemoryMB, "device memory budget in MiB")
	f.IntVar(&cfg.SMs, "sms", cfg.SMs, "concurrent block workers")
	f.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "write a text performance report to this path")
	f.StringVar(&cfg.WatchAddr, "watch", cfg.WatchAddr, "serve live telemetry on this address (/ws, /metrics)")

	return cmd
}

// newPipeline stands up the device, dispatcher, and harness from cfg.
func newPipeline(cfg *config.Config) (*device.Device, *kernel.Dispatcher, *bench.Harness, error) {
	dev, err := device.New(device.Options{
		MemoryBytes: uint64(cfg.DeviceMemoryMB) << 20,
		SMs:         cfg.SMs,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	variant := kernel.Naive
	if cfg.Optimized {
		variant = kernel.SharedMemory
	}
	disp, err := kernel.NewDispatcher(dev, variant, cfg.BlockDim)
	if err != nil {
		dev.Close()
		return nil, nil, nil, config.Errorf("%v", err)
	}

	var harness *bench.Harness
	if cfg.Benchmark {
		harness = bench.New()
	}
	return dev, disp, harness, nil
}

// runSingle processes one file. Any stage failure is fatal and reported
// with the failing stage's name.
func runSingle(cfg *config.Config, args []string) error {
	input, output := args[0], args[1]
	if len(args) >= 3 {
		v, err := kernel.ParseVariant(args[2])
		if err != nil {
			return config.Errorf("%v", err)
		}
		cfg.Optimized = v == kernel.SharedMemory
	}
	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			return config.Errorf("block dimension %q is not a number", args[3])
		}
		cfg.BlockDim = n
	}

	pixels, w, h, err := codec.Decode(input)
	if err != nil {
		return err
	}

	dev, disp, harness, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	log.Printf("🎨 %s: %dx%d, kernel=%s, block=%dx%d",
		filepath.Base(input), w, h, disp.Name(), disp.BlockDim(), disp.BlockDim())

	orch := batch.New(dev, disp, harness, writerFunc(func(id string, grey []byte, gw, gh int) error {
		return codec.Encode(grey, gw, gh, output)
	}), batch.Options{})

	res := orch.ProcessBatch([]batch.Image{{ID: filepath.Base(input), Pixels: pixels, Width: w, Height: h}})
	if len(res.Failures) > 0 {
		f := res.Failures[0]
		return fmt.Errorf("stage %s failed: %w", f.Stage, f.Err)
	}

	log.Printf("✅ Wrote %s", output)
	finishBenchmark(cfg, disp, harness, res)
	return nil
}

// runBatch processes a whole directory, continuing past per-image
// failures. The exit status is zero unless the batch cannot start.
func runBatch(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := codec.ListImages(cfg.InputPath)
	if err != nil {
		return config.Errorf("%v", err)
	}
	if len(paths) == 0 {
		return config.Errorf("no images found under %s", cfg.InputPath)
	}
	if err := os.MkdirAll(cfg.OutputPath, 0o755); err != nil {
		return config.Errorf("output path %s: %v", cfg.OutputPath, err)
	}

	dev, disp, harness, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	log.Printf("🚀 Batch starting: %d files, kernel=%s, block=%d, pipeline=%v",
		len(paths), disp.Name(), disp.BlockDim(), cfg.Pipeline)

	if cfg.WatchAddr != "" {
		startWatchServer(cfg.WatchAddr, dev, harness)
	}

	// Decode is a per-image concern too: an undecodable file is recorded
	// and skipped, never fatal for the batch.
	var images []batch.Image
	var decodeFailures []batch.Failure
	for _, p := range paths {
		pixels, w, h, err := codec.Decode(p)
		if err != nil {
			log.Printf("❌ %s failed at decode: %v", filepath.Base(p), err)
			decodeFailures = append(decodeFailures, batch.Failure{
				ImageID: filepath.Base(p), Stage: "decode", Kind: "io", Err: err,
			})
			continue
		}
		images = append(images, batch.Image{ID: filepath.Base(p), Pixels: pixels, Width: w, Height: h})
	}

	orch := batch.New(dev, disp, harness, writerFunc(func(id string, grey []byte, w, h int) error {
		return codec.Encode(grey, w, h, outputPathFor(cfg.OutputPath, id))
	}), batch.Options{Pipeline: cfg.Pipeline, Workers: cfg.Workers})

	res := orch.ProcessBatch(images)
	res.Failures = append(decodeFailures, res.Failures...)

	log.Printf("🏁 Batch done: %d succeeded, %d failed in %v",
		res.Successes, len(res.Failures), res.Wall.Round(time.Millisecond))
	for _, f := range res.Failures {
		log.Printf("   %s: %s error at %s: %v", f.ImageID, f.Kind, f.Stage, f.Err)
	}

	finishBenchmark(cfg, disp, harness, res)
	return nil
}

// writerFunc adapts a function to the batch.Writer interface.
type writerFunc func(id string, grey []byte, width, height int) error

func (f writerFunc) Write(id string, grey []byte, width, height int) error {
	return f(id, grey, width, height)
}

// outputPathFor maps an input file name to its greyscale output path,
// swapping extensions the codec cannot encode for .png.
func outputPathFor(outDir, id string) string {
	switch strings.ToLower(filepath.Ext(id)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return filepath.Join(outDir, id)
	default:
		return filepath.Join(outDir, strings.TrimSuffix(id, filepath.Ext(id))+".png")
	}
}

// finishBenchmark prints the timing table and writes the report file when
// benchmarking was on.
func finishBenchmark(cfg *config.Config, disp *kernel.Dispatcher, harness *bench.Harness, res *batch.Result) {
	if harness == nil {
		return
	}
	sum := harness.Summarize(res.Wall)
	bench.WriteTable(os.Stdout, sum)
	if cfg.ReportPath != "" {
		if err := bench.WriteReport(cfg.ReportPath, disp.Name(), sum, res.Samples); err != nil {
			log.Printf("⚠️  Failed to write report: %v", err)
		} else {
			log.Printf("📄 Report written to %s", cfg.ReportPath)
		}
	}
}

// startWatchServer serves live progress over WebSocket plus device
// telemetry in Prometheus format.
func startWatchServer(addr string, dev *device.Device, harness *bench.Harness) {
	broadcaster := bench.NewBroadcaster()
	if harness != nil {
		harness.SetSink(func(s bench.Sample) {
			broadcaster.Broadcast(bench.Frame{Sample: s, Telemetry: dev.Telemetry().Snapshot()})
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", broadcaster.HandleWS)
	mux.HandleFunc("/metrics", dev.Telemetry().ServePrometheus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Printf("📊 Watch endpoint on %s (/ws, /metrics)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("⚠️  Watch server failed: %v", err)
		}
	}()
}
