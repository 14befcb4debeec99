package progress

import (
	"context"

	"github.com/ethertulip/tulip-deployer/internal/usecase"
)

// NopSink discards progress, used for --json output and tests
type NopSink struct{}

// NewNopSink creates a new no-op progress sink
func NewNopSink() *NopSink {
	return &NopSink{}
}

func (n *NopSink) OnProgress(context.Context, usecase.ProgressEvent) {}

func (n *NopSink) Info(string) {}

func (n *NopSink) Error(string) {}

var _ usecase.ProgressSink = (*NopSink)(nil)
