package bench

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"lenet_lib/tensor"
	"lenet_lib/utils"
)

// Header is the CSV header written by RunLayerBenchmarks.
var Header = []string{"model", "layer", "tag", "params", "fwd_us", "bwd_us", "upd_us"}

// Point is the averaged timing of one layer.
type Point struct {
	Net           string
	Layer         int
	Tag           string
	Params        int
	Fwd, Bwd, Upd time.Duration
}

// RunLayerBenchmarks times every layer of net on input, feeding each layer
// the previous layer's output. Each layer gets warmup untimed runs and iters
// timed runs; the per-run average is reported.
func RunLayerBenchmarks(net BuiltNet, input tensor.Vector, iters, warmup int) ([]Point, error) {
	if iters <= 0 {
		return nil, fmt.Errorf("iters must be positive")
	}
	points := make([]Point, 0, len(net.Net.Layers()))
	x := input
	for i, layer := range net.Net.Layers() {
		if _, _, _, _, err := TimeLayer(layer, x, warmup); err != nil {
			return nil, fmt.Errorf("%s layer %d (%s): %w", net.Name, i, layer.Tag(), err)
		}
		fwd, bwd, upd, y, err := TimeLayer(layer, x, iters)
		if err != nil {
			return nil, fmt.Errorf("%s layer %d (%s): %w", net.Name, i, layer.Tag(), err)
		}
		n := time.Duration(iters)
		points = append(points, Point{
			Net:    net.Name,
			Layer:  i,
			Tag:    layer.Tag(),
			Params: layer.NumParams(),
			Fwd:    fwd / n,
			Bwd:    bwd / n,
			Upd:    upd / n,
		})
		x = y
	}
	return points, nil
}

// WriteCSV writes points as CSV rows, preceded by Header when header is set.
func WriteCSV(w io.Writer, points []Point, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(Header); err != nil {
			return err
		}
	}
	for _, p := range points {
		rec := []string{
			p.Net,
			strconv.Itoa(p.Layer),
			p.Tag,
			strconv.Itoa(p.Params),
			toMicro(p.Fwd),
			toMicro(p.Bwd),
			toMicro(p.Upd),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Helper to convert time.Duration to microseconds string
func toMicro(d time.Duration) string {
	return fmt.Sprintf("%.3f", utils.DurationUS(d))
}
