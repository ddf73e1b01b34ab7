package qc

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are consulted after the explicit path and QC_CONFIG.
var DefaultFiles = []string{"qc.yml", "qc.yaml"}

// Limits are the plausibility bounds used to flag suspect readings.
type Limits struct {
	IVMin        float64 `yaml:"iv_min"`
	IVMax        float64 `yaml:"iv_max"`
	DeltaMin     float64 `yaml:"delta_min"`
	DeltaMax     float64 `yaml:"delta_max"`
	SpreadRelMax float64 `yaml:"spread_rel_max"` // 0 disables the spread check
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		IVMin:    0.01,
		IVMax:    5.0,
		DeltaMin: -1.0,
		DeltaMax: 1.0,
	}
}

// fileLimits holds the fields present in a qc: section; absent fields stay nil.
type fileLimits struct {
	IVMin        *float64 `yaml:"iv_min"`
	IVMax        *float64 `yaml:"iv_max"`
	DeltaMin     *float64 `yaml:"delta_min"`
	DeltaMax     *float64 `yaml:"delta_max"`
	SpreadRelMax *float64 `yaml:"spread_rel_max"`
}

type qcFile struct {
	QC *fileLimits `yaml:"qc"`
}

// envLimits are read as strings so an unparseable override is skipped, not fatal.
type envLimits struct {
	ConfigPath   string `envconfig:"QC_CONFIG"`
	IVMin        string `envconfig:"QC_IV_MIN"`
	IVMax        string `envconfig:"QC_IV_MAX"`
	DeltaMin     string `envconfig:"QC_DELTA_MIN"`
	DeltaMax     string `envconfig:"QC_DELTA_MAX"`
	SpreadRelMax string `envconfig:"QC_SPREAD_REL_MAX"`
}

// ResolveLimits builds the run's limits from layered sources.
//
// Candidate files are explicitPath, $QC_CONFIG, then DefaultFiles. The first
// one that exists is the only file consulted: its qc: section overrides the
// fields it sets. A file without the section, or one that cannot be read or
// parsed, leaves the defaults in place. Dedicated QC_* environment variables
// are applied last, one field each; values that do not parse as numbers are
// ignored.
func ResolveLimits(explicitPath string, logger *slog.Logger) Limits {
	if logger == nil {
		logger = slog.Default()
	}
	lim := DefaultLimits()

	var env envLimits
	if err := envconfig.Process("", &env); err != nil {
		logger.Warn("qc env overrides unreadable", "err", err)
	}

	var candidates []string
	if explicitPath != "" {
		candidates = append(candidates, explicitPath)
	}
	if env.ConfigPath != "" {
		candidates = append(candidates, env.ConfigPath)
	}
	candidates = append(candidates, DefaultFiles...)

	for _, path := range candidates {
		fl, err := readLimitsFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		switch {
		case err != nil:
			logger.Warn("qc file unusable, keeping defaults", "path", path, "err", err)
		case fl == nil:
			logger.Debug("qc file has no qc section", "path", path)
		default:
			fl.apply(&lim)
			logger.Info("qc limits loaded", "path", path)
		}
		break
	}

	env.apply(&lim, logger)
	return lim
}

func readLimitsFile(path string) (*fileLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f qcFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.QC, nil
}

func (f *fileLimits) apply(lim *Limits) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&lim.IVMin, f.IVMin)
	set(&lim.IVMax, f.IVMax)
	set(&lim.DeltaMin, f.DeltaMin)
	set(&lim.DeltaMax, f.DeltaMax)
	set(&lim.SpreadRelMax, f.SpreadRelMax)
}

func (e envLimits) apply(lim *Limits, logger *slog.Logger) {
	set := func(name string, dst *float64, raw string) {
		if raw == "" {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Warn("qc env override ignored", "var", name, "value", raw)
			return
		}
		*dst = v
	}
	set("QC_IV_MIN", &lim.IVMin, e.IVMin)
	set("QC_IV_MAX", &lim.IVMax, e.IVMax)
	set("QC_DELTA_MIN", &lim.DeltaMin, e.DeltaMin)
	set("QC_DELTA_MAX", &lim.DeltaMax, e.DeltaMax)
	set("QC_SPREAD_REL_MAX", &lim.SpreadRelMax, e.SpreadRelMax)
}
