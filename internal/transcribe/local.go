package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/audioscribelab/meetscribe/internal/apperr"
	"github.com/audioscribelab/meetscribe/internal/config"
)

const (
	localMaxFileSize       = 500 << 20
	localDefaultConfidence = 0.95
)

// commandRunner abstracts subprocess execution so the whisper plumbing can be
// tested without a python installation.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// transcribeScript is fed to python -c with argv: path, model size, language.
// Greedy decoding keeps runs reproducible and cheap on CPU.
const transcribeScript = `
import sys
import whisper

path, model_size, language = sys.argv[1], sys.argv[2], sys.argv[3]
model = whisper.load_model(model_size)
result = model.transcribe(
    path,
    language=language,
    temperature=0.2,
    best_of=1,
    beam_size=1,
    fp16=False,
)
segments = result.get("segments") or []
if segments:
    avg = sum(s.get("avg_logprob", 0.0) for s in segments) / len(segments)
    print("avg_logprob=%.6f" % avg, file=sys.stderr)
sys.stdout.write(result.get("text", ""))
`

// probeScript forces the model download by decoding one second of silence.
const probeScript = `
import sys
import numpy as np
import whisper

model = whisper.load_model(sys.argv[1])
model.transcribe(np.zeros(16000, dtype=np.float32), language=sys.argv[2], fp16=False)
`

// LocalRecognizer runs openai-whisper as a python subprocess.
type LocalRecognizer struct {
	cfg    config.TranscribeConfig
	runner commandRunner
	log    *zap.SugaredLogger

	python string
}

func NewLocalRecognizer(cfg config.TranscribeConfig, log *zap.SugaredLogger) *LocalRecognizer {
	return &LocalRecognizer{cfg: cfg, runner: execRunner{}, log: log}
}

func (l *LocalRecognizer) Name() string       { return "local" }
func (l *LocalRecognizer) MaxFileSize() int64 { return localMaxFileSize }

// Bootstrap locates a python interpreter, installs openai-whisper if it is
// missing and warms the model cache. librosa is optional and only warned
// about.
func (l *LocalRecognizer) Bootstrap(ctx context.Context) error {
	python, err := l.resolvePython(ctx)
	if err != nil {
		return err
	}
	l.python = python
	l.log.Infow("python interpreter found", "python", python)

	if err := l.ensureModule(ctx, "whisper", "openai-whisper"); err != nil {
		return err
	}

	if _, _, err := l.runner.Run(ctx, l.python, "-c", "import librosa"); err != nil {
		if _, stderr, err := l.runner.Run(ctx, l.python, "-m", "pip", "install", "librosa"); err != nil {
			l.log.Warnw("librosa unavailable, resampling quality may suffer",
				"stderr", tail(stderr))
		}
	}

	probeCtx, cancel := l.boundedContext(ctx)
	defer cancel()
	if _, stderr, err := l.runner.Run(probeCtx, l.python, "-c", probeScript, l.cfg.ModelSize, l.cfg.Language); err != nil {
		return apperr.Wrap(apperr.KindExecution,
			"whisper model "+l.cfg.ModelSize+" could not be loaded: "+tail(stderr), err)
	}
	l.log.Infow("whisper model ready", "model", l.cfg.ModelSize)
	return nil
}

// Transcribe decodes the file with whisper and reports a confidence derived
// from the average segment log probability.
func (l *LocalRecognizer) Transcribe(ctx context.Context, path, language string) (string, float64, error) {
	runCtx, cancel := l.boundedContext(ctx)
	defer cancel()

	stdout, stderr, err := l.runner.Run(runCtx, l.python, "-c", transcribeScript, path, l.cfg.ModelSize, language)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", 0, apperr.Wrap(apperr.KindExecution,
				"whisper timed out after "+l.cfg.Timeout.String(), err)
		}
		return "", 0, apperr.Wrap(apperr.KindExecution,
			"whisper failed: "+tail(stderr), err)
	}

	confidence := localDefaultConfidence
	if avg, ok := parseAvgLogProb(stderr); ok {
		confidence = math.Exp(avg)
	}
	return string(stdout), confidence, nil
}

func (l *LocalRecognizer) resolvePython(ctx context.Context) (string, error) {
	candidates := []string{"python3", "python"}
	if l.cfg.PythonPath != "" {
		candidates = append([]string{l.cfg.PythonPath}, candidates...)
	}
	for _, c := range candidates {
		if _, _, err := l.runner.Run(ctx, c, "--version"); err == nil {
			return c, nil
		}
	}
	return "", apperr.New(apperr.KindResourceUnavailable,
		"no python interpreter found (tried "+strings.Join(candidates, ", ")+")")
}

func (l *LocalRecognizer) ensureModule(ctx context.Context, module, pipPackage string) error {
	if _, _, err := l.runner.Run(ctx, l.python, "-c", "import "+module); err == nil {
		return nil
	}
	l.log.Infow("installing python package", "package", pipPackage)
	if _, stderr, err := l.runner.Run(ctx, l.python, "-m", "pip", "install", "-U", pipPackage); err != nil {
		return apperr.Wrap(apperr.KindExecution,
			"pip install "+pipPackage+" failed: "+tail(stderr), err)
	}
	if _, stderr, err := l.runner.Run(ctx, l.python, "-c", "import "+module); err != nil {
		return apperr.Wrap(apperr.KindExecution,
			module+" still unavailable after install: "+tail(stderr), err)
	}
	return nil
}

func (l *LocalRecognizer) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.cfg.Timeout)
}

func parseAvgLogProb(stderr []byte) (float64, bool) {
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "avg_logprob="); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			return f, true
		}
	}
	return 0, false
}

// tail keeps the last part of subprocess stderr for error messages.
func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	const limit = 500
	if len(s) > limit {
		s = "..." + s[len(s)-limit:]
	}
	return s
}
