package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/fcostin/logsumexp-approx/api"
	"github.com/fcostin/logsumexp-approx/bench"
	"github.com/fcostin/logsumexp-approx/codegen"
	"github.com/fcostin/logsumexp-approx/config"
	"github.com/fcostin/logsumexp-approx/inspect"
	"github.com/fcostin/logsumexp-approx/jit"
	"github.com/fcostin/logsumexp-approx/tools"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	app := cli.NewApp()
	app.Name = "logsumexp-approx"
	app.Usage = "JIT compiler for batched fast log-sum-exp reductions"
	app.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML config file (default: the platform config dir)",
		},
	}
	app.Commands = []*cli.Command{
		benchCommand(),
		dumpCommand(),
		inspectCommand(),
		serveCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig resolves the --config flag against the platform default
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// benchParams maps the config's bench section onto harness parameters,
// applying any per-command flag overrides
func benchParams(c *cli.Context, cfg *config.Config) bench.Params {
	p := bench.Params{
		ArraySize:   cfg.Bench.ArraySize,
		NumRanges:   cfg.Bench.NumRanges,
		MaxWidth:    cfg.Bench.MaxWidth,
		Trials:      cfg.Bench.Trials,
		Seed:        cfg.Bench.Seed,
		SortByWidth: cfg.Bench.SortByWidth,
	}
	if c.IsSet("trials") {
		p.Trials = c.Int("trials")
	}
	if c.IsSet("seed") {
		p.Seed = c.Int64("seed")
	}
	if c.IsSet("sort") {
		p.SortByWidth = c.Bool("sort")
	}
	return p
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Run the batched reduction benchmark in one or more modes",
		ArgsUsage: "[mode ...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "trials", Usage: "batch evaluations per run"},
			&cli.Int64Flag{Name: "seed", Usage: "RNG seed for input and range sampling"},
			&cli.BoolFlag{Name: "sort", Usage: "sort ranges by width before running"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err, 1)
			}

			modes := []bench.Mode{}
			if c.Args().Len() == 0 {
				mode, err := bench.ParseMode(cfg.Bench.Mode)
				if err != nil {
					return cli.Exit(err, 1)
				}
				modes = append(modes, mode)
			}
			for _, arg := range c.Args().Slice() {
				mode, err := bench.ParseMode(arg)
				if err != nil {
					return cli.Exit(err, 1)
				}
				modes = append(modes, mode)
			}

			p := benchParams(c, cfg)
			for _, mode := range modes {
				res, err := bench.Run(c.Context, p, mode, nil)
				if err != nil {
					return cli.Exit(err, 1)
				}
				fmt.Printf("mode=%-8s trials=%d ranges=%d acc=%g elapsed=%s (%.3g reductions/s)\n",
					res.Mode, res.Trials, res.NumRanges, res.Acc, res.Elapsed,
					res.ReductionsPerSecond())
				if mode == bench.ModeJIT {
					fmt.Printf("  compile=%s code=%d bytes\n", res.CompileTime, res.CodeSize)
				}
			}
			return nil
		},
	}
}

// parseBatch reads "offset:width" arguments into a batch
func parseBatch(args []string) ([]codegen.Range, error) {
	batch := make([]codegen.Range, 0, len(args))
	for _, arg := range args {
		offsetStr, widthStr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("range %q: expected offset:width", arg)
		}
		offset, err := strconv.ParseInt(offsetStr, 0, 32)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("range %q: bad offset", arg)
		}
		width, err := strconv.ParseInt(widthStr, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("range %q: bad width", arg)
		}
		batch = append(batch, codegen.Range{Offset: int32(offset), Width: int32(width)})
	}
	return batch, nil
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Emit a batch and print the annotated machine code",
		ArgsUsage: "offset:width [offset:width ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "summary", Usage: "print the per-template byte summary instead"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			batch, err := parseBatch(c.Args().Slice())
			if err != nil {
				return cli.Exit(err, 1)
			}

			prog, err := codegen.NewBuilder(codegen.NewAMD64Catalog()).Build(batch)
			if err != nil {
				return cli.Exit(err, 1)
			}

			if c.Bool("summary") {
				fmt.Print(tools.FormatSummary(tools.SummarizeLayout(prog.Layout)))
				return nil
			}
			opts := tools.DefaultDumpOptions()
			opts.BytesPerLine = cfg.Display.BytesPerLine
			fmt.Print(tools.DumpProgram(prog.Code, prog.Layout, opts))
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Open the interactive inspector on a compiled batch",
		ArgsUsage: "offset:width [offset:width ...]",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			batch, err := parseBatch(c.Args().Slice())
			if err != nil {
				return cli.Exit(err, 1)
			}
			if len(batch) == 0 {
				// A default worth looking at: three overlapping ranges
				// with a backward step.
				batch = []codegen.Range{{Offset: 5, Width: 3}, {Offset: 2, Width: 4}, {Offset: 8, Width: 2}}
			}

			ins, err := inspect.New(batch, cfg.Bench.Seed)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if err := ins.Run(); err != nil {
				return cli.Exit(err, 1)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP/WebSocket API server",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err, 1)
			}
			port := cfg.API.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if !jit.Supported {
				log.Println("warning: emitted code cannot be invoked on this platform; /api/v1/run is disabled")
			}

			server := api.NewServer(port)

			// Shut down cleanly on interrupt so armed regions are released.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return cli.Exit(err, 1)
			case <-sigCh:
				log.Println("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					return cli.Exit(err, 1)
				}
			}
			return nil
		},
	}
}
