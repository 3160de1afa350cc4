package training

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"time"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	mlcontext "github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nmtgo/translator/model"
)

// Config controls one training loop.
type Config struct {
	// Epochs to train for each Run call.
	Epochs int

	// CheckpointDir persists parameters every CheckpointEvery epochs and
	// restores them when the loop is created. Empty disables checkpointing.
	CheckpointDir string

	// CheckpointEvery defaults to 2 epochs.
	CheckpointEvery int

	// ReportEvery defaults to every 100 batches.
	ReportEvery int
}

func (c Config) withDefaults() Config {
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 2
	}
	if c.ReportEvery <= 0 {
		c.ReportEvery = 100
	}
	return c
}

// Loop owns a compiled trainer over the teacher-forced graph for one
// session and dataset.
type Loop struct {
	cfg        Config
	session    *model.Session
	dataset    *Dataset
	trainer    *train.Trainer
	checkpoint *checkpoints.Handler
	runID      string
}

// NewLoop builds the trainer (Adam over the masked cross-entropy loss) and,
// when configured, attaches the checkpoint handler, restoring the latest
// snapshot into the session's context before any variable is created.
func NewLoop(session *model.Session, dataset *Dataset, cfg Config) (*Loop, error) {
	cfg = cfg.withDefaults()
	l := &Loop{
		cfg:     cfg,
		session: session,
		dataset: dataset,
		runID:   uuid.NewString(),
	}

	if cfg.CheckpointDir != "" {
		handler, err := checkpoints.Build(session.Ctx).Dir(cfg.CheckpointDir).Keep(3).Done()
		if err != nil {
			return nil, errors.Wrapf(err, "attaching checkpoints in %q", cfg.CheckpointDir)
		}
		l.checkpoint = handler
		if err := l.writeRunMetadata(); err != nil {
			return nil, err
		}
	}

	l.trainer = train.NewTrainer(session.Backend, session.Ctx, teacherForcedGraph,
		model.MaskedSparseCategoricalCrossEntropy,
		optimizers.Adam().Done(),
		nil, nil)
	return l, nil
}

// RunID identifies this training run in logs and reports.
func (l *Loop) RunID() string { return l.runID }

// RunMetadataFile is the file inside the checkpoint directory that records
// which training run produced the snapshots.
const RunMetadataFile = "run.id"

// writeRunMetadata stamps the run id into the checkpoint directory, so a
// snapshot can be traced back to the run that produced it.
func (l *Loop) writeRunMetadata() error {
	if err := os.MkdirAll(l.cfg.CheckpointDir, 0755); err != nil {
		return errors.Wrapf(err, "creating checkpoint directory %q", l.cfg.CheckpointDir)
	}
	path := filepath.Join(l.cfg.CheckpointDir, RunMetadataFile)
	if err := os.WriteFile(path, []byte(l.runID+"\n"), 0644); err != nil {
		return errors.Wrapf(err, "writing run metadata %q", path)
	}
	return nil
}

// teacherForcedGraph unrolls the full training step as one graph: the
// encoder over the source batch, then the decoder across every target
// timestep with the true previous token as each step's input (teacher
// forcing). inputs[0] is the source ids [batch, sourceSteps], inputs[1] the
// decoder inputs [batch, targetSteps-1]. It returns the stacked logits
// [batch, targetSteps-1, targetVocab].
func teacherForcedGraph(ctx *mlcontext.Context, _ any, inputs []*Node) []*Node {
	source, decoderInputs := inputs[0], inputs[1]

	encOutputs, encState := model.Encode(ctx.In(model.EncoderScope), source)
	hidden := encState

	steps := decoderInputs.Shape().Dimensions[1]
	decCtx := ctx.In(model.DecoderScope)
	logitsPerStep := make([]*Node, 0, steps)
	for t := 0; t < steps; t++ {
		prevToken := Slice(decoderInputs, AxisRange(), AxisRange(t, t+1))
		logits, newHidden, _ := model.DecodeStep(decCtx, prevToken, hidden, encOutputs)
		hidden = newHidden
		logitsPerStep = append(logitsPerStep, ExpandDims(logits, 1))
	}
	return []*Node{Concatenate(logitsPerStep, 1)}
}

// Run trains for the configured epoch count, reporting per-batch and
// per-epoch losses and saving a checkpoint every CheckpointEvery completed
// epochs. A NaN batch loss aborts with an error rather than training on.
func (l *Loop) Run(ctx context.Context) error {
	klog.Infof("Training run %s: %d epochs, %d steps/epoch, batch size %d (%s)",
		l.runID, l.cfg.Epochs, l.dataset.Steps(), l.session.BatchSize(), l.session.LangPair)

	for epoch := 1; epoch <= l.cfg.Epochs; epoch++ {
		start := time.Now()
		l.dataset.Shuffle()

		var total float64
		steps := l.dataset.Steps()
		for step := 0; step < steps; step++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			source, decoderInputs, labels := l.dataset.Batch(step)
			metrics, err := l.trainer.TrainStep(nil,
				[]*tensors.Tensor{source, decoderInputs},
				[]*tensors.Tensor{labels})
			if err != nil {
				return errors.Wrapf(err, "training step %d of epoch %d", step, epoch)
			}
			loss := float64(metrics[0].Value().(float32))
			if math.IsNaN(loss) {
				return errors.Errorf("NaN loss at step %d of epoch %d, aborting", step, epoch)
			}
			total += loss

			if step%l.cfg.ReportEvery == 0 {
				klog.Infof("Epoch %d Batch %d Loss %.4f", epoch, step, loss)
			}
		}

		if l.checkpoint != nil && epoch%l.cfg.CheckpointEvery == 0 {
			if err := l.checkpoint.Save(); err != nil {
				return errors.Wrapf(err, "saving checkpoint after epoch %d", epoch)
			}
			klog.Infof("Checkpoint saved in %s", l.cfg.CheckpointDir)
		}

		klog.Infof("Epoch %d Loss %.4f", epoch, total/float64(steps))
		klog.Infof("Time taken for 1 epoch: %s", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
