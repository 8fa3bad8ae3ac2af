// Command tabsearch runs a randomized hyperparameter search for every model
// family on a training CSV and writes one submission CSV per family.
package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/youta-t/flarc"

	"github.com/YuminosukeSato/tabsearch/config"
	"github.com/YuminosukeSato/tabsearch/dataset"
	"github.com/YuminosukeSato/tabsearch/family"
	"github.com/YuminosukeSato/tabsearch/orchestrator"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

type Flags struct {
	Config   string `flag:"config" help:"YAML configuration file. Flags below override it."`
	NIter    int    `flag:"n-iter" help:"sampled configurations per family (0: from config)"`
	CV       int    `flag:"cv" help:"cross-validation folds (0: from config)"`
	Seed     int    `flag:"seed" help:"run seed (-1: from config)"`
	Workers  int    `flag:"workers" help:"concurrent fold evaluations, <= 0 means one per CPU (-999: from config)"`
	Families string `flag:"families" help:"comma separated families, e.g. LR,RF (empty: from config)"`
	Results  string `flag:"results" help:"directory for submission files (empty: from config)"`
	Plot     string `flag:"plot" help:"write a box plot of trial scores to this path"`
	LogLevel string `flag:"log-level" help:"debug, info, warn or error (empty: from config)"`
	Progress bool   `flag:"progress" help:"show a progress bar per family"`
}

const (
	ARG_TRAIN = "TRAIN"
	ARG_TEST  = "TEST"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	logger := stdlog.Default()

	cmd, err := flarc.NewCommand(
		"randomized hyperparameter search over XGB, LR, RF, KNN and MLP pipelines",
		Flags{Seed: -1, Workers: -999},
		flarc.Args{
			{Name: ARG_TRAIN, Required: true, Help: "training CSV with id and label columns"},
			{Name: ARG_TEST, Required: false, Help: "inference CSV with an id column; no submission is written without it"},
		},
		func(ctx context.Context, c flarc.Commandline[Flags], _ []any) error {
			train := c.Args()[ARG_TRAIN][0]
			test := ""
			if t := c.Args()[ARG_TEST]; len(t) > 0 {
				test = t[0]
			}
			return run(ctx, c.Flags(), train, test, c.Stdout(), c.Stderr())
		},
	)
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(flarc.Run(ctx, cmd))
}

func run(ctx context.Context, flags Flags, trainPath, testPath string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("%w: %s", flarc.ErrUsage, err)
	}
	if err := setupLogging(cfg, stderr); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("cmd")

	csvOpts := []dataset.CSVOption{dataset.WithStringColumns(cfg.IDColumn)}
	train, err := dataset.LoadCSVFile(trainPath, csvOpts...)
	if err != nil {
		return err
	}
	var test *dataset.Table
	if testPath != "" {
		testOpts := append(csvOpts, dataset.WithSchema(train.Schema()))
		if test, err = dataset.LoadCSVFile(testPath, testOpts...); err != nil {
			return err
		}
	}

	var opts []orchestrator.Option
	if flags.Progress {
		bars := &progressBars{out: stderr, bars: map[family.Name]*pb.ProgressBar{}}
		defer bars.finish()
		opts = append(opts, orchestrator.WithProgress(bars.update))
	}
	o, err := orchestrator.New(cfg, opts...)
	if err != nil {
		return err
	}
	rep, err := o.Run(ctx, train, test)
	if err != nil {
		return err
	}

	if err := rep.WriteSummary(stdout); err != nil {
		return err
	}
	if cfg.Report.Plot != "" {
		if err := rep.SavePlot(cfg.Report.Plot); err != nil {
			logger.Warn("plot not written", log.OutputPathKey, cfg.Report.Plot, err)
		}
	}
	if !rep.OK() {
		return fmt.Errorf("no family produced a submission")
	}
	return nil
}

func setupLogging(cfg config.Config, w io.Writer) error {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	switch cfg.Log.Format {
	case config.FormatJSON:
		p := log.NewSlogProvider(w, level)
		p.InstallWarningHandler()
		log.SetProvider(p)
	default:
		p := log.NewZerologProviderWithWriter(w, level, true)
		p.InstallWarningHandler()
		log.SetProvider(p)
	}
	return nil
}

// progressBars keeps one bar per family; families run one after another so
// only the current bar is live.
type progressBars struct {
	out     io.Writer
	mu      sync.Mutex
	current family.Name
	bars    map[family.Name]*pb.ProgressBar
}

const barTemplate pb.ProgressBarTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{etime . }}`

func (p *progressBars) update(name family.Name, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bar, ok := p.bars[name]
	if !ok {
		if prev, ok := p.bars[p.current]; ok {
			prev.Finish()
		}
		bar = barTemplate.New(total)
		bar.SetWriter(p.out)
		bar.Set("prefix", fmt.Sprintf("%-4s", name))
		bar.Start()
		p.bars[name] = bar
		p.current = name
	}
	bar.SetCurrent(int64(done))
}

func (p *progressBars) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar, ok := p.bars[p.current]; ok {
		bar.Finish()
	}
}
