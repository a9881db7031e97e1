// Package main provides the darray demo CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/darray-ml/darray/backend/local"
	"github.com/darray-ml/darray/darray"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("darray %s\n", version)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "demo" {
		if err := demo(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "demo:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("darray - chunk-based distributed arrays")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Shard an array over simulated devices and reduce it")
}

func demo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	devices := fs.Int("devices", 2, "number of simulated devices")
	topology := fs.String("topology", "", "YAML topology file (overrides -devices)")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	var backend *local.Backend
	var err error
	if *topology != "" {
		backend, err = local.FromConfig(*topology, local.WithLogger(logger))
	} else {
		backend = local.New(*devices, local.WithLogger(logger))
	}
	if err != nil {
		return err
	}

	// A 4x4 array split row-wise over the first two devices.
	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = float64(i)
	}
	src, err := darray.HostFromFloat64(darray.Shape{4, 4}, darray.Float64, vals)
	if err != nil {
		return err
	}

	devs := backend.Devices()
	if len(devs) < 2 {
		return fmt.Errorf("demo needs at least 2 devices, have %d", len(devs))
	}
	indexMap := map[darray.DeviceID][]darray.Index{
		devs[0]: {{darray.Span(0, 2)}},
		devs[1]: {{darray.Span(2, 4)}},
	}

	arr, err := darray.MakeDistributed(backend, src, indexMap, darray.WithLogger(logger))
	if err != nil {
		return err
	}

	doubled, err := darray.Elementwise(darray.KernelAdd, arr, arr)
	if err != nil {
		return err
	}
	reduced, err := darray.Reduce(darray.KernelSum, doubled, 0, darray.ReduceOptions{})
	if err != nil {
		return err
	}

	host, err := reduced.(*darray.Array).ToHost()
	if err != nil {
		return err
	}
	fmt.Println("column sums of 2*A:", host.Float64s())
	return nil
}
