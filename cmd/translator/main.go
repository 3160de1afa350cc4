// Command translator trains the attention translation model for one
// language pair and periodically asks the serving process to reload the
// refreshed checkpoint.
//
// Usage:
//
//	translator [flags] [lang-pair] [epochs]
//
// lang-pair defaults to "eng-fra" and epochs to 10.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"k8s.io/klog/v2"

	"github.com/nmtgo/translator/corpus"
	"github.com/nmtgo/translator/model"
	"github.com/nmtgo/translator/service"
	"github.com/nmtgo/translator/tokenizers/words"
	"github.com/nmtgo/translator/training"
)

var (
	flagDataDir     = flag.String("data", "/code/data", "Directory holding (or receiving) the corpus files.")
	flagCheckpoints = flag.String("checkpoints", "/checkpoints", "Base directory for per-language-pair checkpoints.")
	flagNotifyURL   = flag.String("notify", "http://translator:5000/reload", "Reload endpoint of the serving process.")
	flagExamples    = flag.Int("examples", 30000, "Maximum corpus pairs to load; 0 loads all.")
	flagSeed        = flag.Int64("seed", 1, "Seed for dataset shuffling.")
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Exitf("translator: %+v", err)
	}
}

func run() error {
	langPair := "eng-fra"
	epochs := 10
	if args := flag.Args(); len(args) > 0 {
		langPair = args[0]
		if len(args) > 1 {
			parsed, err := strconv.Atoi(args[1])
			if err != nil || parsed <= 0 {
				return fmt.Errorf("invalid epoch count %q", args[1])
			}
			epochs = parsed
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(bannerStyle.Render("attention translator"))
	fmt.Println(summaryStyle.Render(fmt.Sprintf("pair=%s epochs/round=%d data=%s", langPair, epochs, *flagDataDir)))

	backend, err := backends.New()
	if err != nil {
		return err
	}

	loader := corpus.NewLoader(*flagDataDir)
	loader.Limit = *flagExamples
	source, target, err := loader.Load(ctx, langPair)
	if err != nil {
		return err
	}
	klog.Infof("Loaded %d sentence pairs for %s", len(source), langPair)

	sourceVocab := words.Build(source)
	targetVocab := words.Build(target)
	klog.Infof("Vocabulary sizes: source=%d target=%d; max lengths: source=%d target=%d",
		sourceVocab.Size(), targetVocab.Size(), sourceVocab.MaxLen(), targetVocab.MaxLen())

	session := model.NewSession(backend, langPair, sourceVocab, targetVocab)

	sourceRows, err := sourceVocab.EncodeBatch(source)
	if err != nil {
		return err
	}
	targetRows, err := targetVocab.EncodeBatch(target)
	if err != nil {
		return err
	}
	dataset, err := training.NewDataset(sourceRows, targetRows, session.BatchSize(), *flagSeed)
	if err != nil {
		return err
	}

	loop, err := training.NewLoop(session, dataset, training.Config{
		Epochs:        epochs,
		CheckpointDir: filepath.Join(*flagCheckpoints, langPair),
	})
	if err != nil {
		return err
	}

	notifier := &service.Notifier{URL: *flagNotifyURL}
	klog.Infof("Translator service will be asked to reload the model every %d epochs.", epochs)
	return service.Loop(ctx, loop, notifier, langPair)
}
