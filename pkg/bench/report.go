package bench

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
)

// WriteTable renders the per-stage breakdown and throughput to w.
func WriteTable(w io.Writer, sum Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Total", "Mean (ms)", "StdDev (ms)"})
	table.Append([]string{string(StageTransferIn), sum.TransferIn.Total.Round(time.Microsecond).String(),
		fmt.Sprintf("%.3f", sum.TransferIn.MeanMs), fmt.Sprintf("%.3f", sum.TransferIn.StdMs)})
	table.Append([]string{string(StageCompute), sum.Compute.Total.Round(time.Microsecond).String(),
		fmt.Sprintf("%.3f", sum.Compute.MeanMs), fmt.Sprintf("%.3f", sum.Compute.StdMs)})
	table.Append([]string{string(StageTransferOut), sum.TransferOut.Total.Round(time.Microsecond).String(),
		fmt.Sprintf("%.3f", sum.TransferOut.MeanMs), fmt.Sprintf("%.3f", sum.TransferOut.StdMs)})
	table.Render()

	fmt.Fprintf(w, "Images: %d in %v (%.2f images/s, %s/s)\n",
		sum.Images, sum.Wall.Round(time.Millisecond), sum.ImagesPerSec, byteCount(int64(sum.BytesPerSec)))
}

// WriteReport writes a textual performance summary file: the aggregate
// roll-up followed by one line per image.
func WriteReport(path, variant string, sum Summary, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "=== Greyscale Conversion Results ===\n")
	fmt.Fprintf(f, "Timestamp: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "Kernel variant: %s\n", variant)
	fmt.Fprintf(f, "Images processed: %d\n", sum.Images)
	fmt.Fprintf(f, "Bytes processed: %d\n", sum.Bytes)
	fmt.Fprintf(f, "Total execution time: %.3fs\n", sum.Wall.Seconds())
	fmt.Fprintf(f, "Throughput: %.2f images/s, %s/s\n\n", sum.ImagesPerSec, byteCount(int64(sum.BytesPerSec)))

	fmt.Fprintf(f, "Stage breakdown:\n")
	fmt.Fprintf(f, "  transfer-in:  total=%v mean=%.3fms stddev=%.3fms\n",
		sum.TransferIn.Total.Round(time.Microsecond), sum.TransferIn.MeanMs, sum.TransferIn.StdMs)
	fmt.Fprintf(f, "  compute:      total=%v mean=%.3fms stddev=%.3fms\n",
		sum.Compute.Total.Round(time.Microsecond), sum.Compute.MeanMs, sum.Compute.StdMs)
	fmt.Fprintf(f, "  transfer-out: total=%v mean=%.3fms stddev=%.3fms\n\n",
		sum.TransferOut.Total.Round(time.Microsecond), sum.TransferOut.MeanMs, sum.TransferOut.StdMs)

	fmt.Fprintf(f, "Per-image timings:\n")
	for _, s := range samples {
		fmt.Fprintf(f, "  %-40s %8s  in=%v compute=%v out=%v\n",
			s.ImageID, byteCount(s.Bytes),
			s.TransferIn.Round(time.Microsecond),
			s.Compute.Round(time.Microsecond),
			s.TransferOut.Round(time.Microsecond))
	}
	return nil
}

func byteCount(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
