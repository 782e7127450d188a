// pkg/transform/chain.go
package transform

import (
	"errors"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
)

// Missing-value strategies for numeric columns. Text columns always receive
// the caller's placeholder string.
const (
	StrategyMedian = "median"
	StrategyMean   = "mean"
	StrategyZero   = "zero"
)

// Outlier filtering methods.
const (
	MethodIQR    = "iqr"
	MethodZScore = "zscore"
)

// Chain is a fluent builder over a tabular dataset. It owns its working copy
// exclusively: the input dataset is cloned on construction and never aliased,
// so earlier pipeline stages keep their data intact. Every operation returns
// the chain and appends a description of what it did to the audit log.
type Chain struct {
	ds     *dataset.Dataset
	logger *zap.Logger
	log    []string
}

// New creates a chain over a private copy of the dataset.
func New(ds *dataset.Dataset, logger *zap.Logger) (*Chain, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Chain{ds: ds.Clone(), logger: logger}, nil
}

// Result returns a snapshot of the current dataset. Safe to call at any
// point; the snapshot does not alias the chain's working copy.
func (c *Chain) Result() *dataset.Dataset {
	return c.ds.Clone()
}

// Log returns the ordered descriptions of the operations applied so far.
func (c *Chain) Log() []string {
	out := make([]string, len(c.log))
	copy(out, c.log)
	return out
}

func (c *Chain) record(entry string) {
	c.log = append(c.log, entry)
	c.logger.Debug("Transformation applied", zap.String("entry", entry))
}
