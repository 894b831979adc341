package cli

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// progressLogger logs a line each time a transfer crosses another tenth of
// its size.
type progressLogger struct {
	log logrus.FieldLogger

	mu   sync.Mutex
	last int
}

func newProgressLogger(log logrus.FieldLogger) *progressLogger {
	return &progressLogger{log: log}
}

func (p *progressLogger) Update(transferred, total int64) {
	if total <= 0 {
		return
	}
	step := int(transferred * 10 / total)

	p.mu.Lock()
	defer p.mu.Unlock()
	if step <= p.last {
		return
	}
	p.last = step
	p.log.Infof("%d%% (%s of %s)", step*10, humanize.IBytes(uint64(transferred)), humanize.IBytes(uint64(total)))
}

func (p *progressLogger) Complete() {}

func (p *progressLogger) Error(error) {}
