package datasets

import (
	"io"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	gomlxds "github.com/gomlx/gomlx/pkg/ml/datasets"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/Noofbiz/inpaintdata/options"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	// Workers bounds the concurrent Example calls of one batch. 0 means
	// runtime.NumCPU().
	Workers int
	Shuffle bool
	// Infinite loops over epochs instead of returning io.EOF.
	Infinite bool
	// DropIncomplete skips the last batch of an epoch if it is short.
	DropIncomplete bool
	// Seed seeds the shuffle. 0 seeds from the clock.
	Seed int64
}

// LoaderConfigFrom maps the loader options.
func LoaderConfigFrom(opts options.Options) LoaderConfig {
	return LoaderConfig{
		BatchSize: opts.BatchSize,
		Workers:   opts.NThreads,
		Shuffle:   !opts.NoShuffle,
		Seed:      opts.Seed,
	}
}

// Loader batches a Dataset epoch by epoch. Epoch e visits the flat indices
// e*N .. e*N+N-1, N = ds.Len(), so consecutive epochs rotate through the
// captions of every image.
//
// Loader implements train.Dataset and is safe for concurrent use: batches
// are claimed under a lock and assembled outside it.
type Loader struct {
	ds  Dataset
	cfg LoaderConfig

	mu    sync.Mutex
	rng   *rand.Rand
	epoch int
	order []int
	pos   int
	// err is the first fetch error of the epoch.
	err error
}

var _ train.Dataset = (*Loader)(nil)

// NewLoader returns a Loader positioned at the start of epoch 0.
func NewLoader(ds Dataset, cfg LoaderConfig) (*Loader, error) {
	n := ds.Len()
	switch {
	case n <= 0:
		return nil, &ConfigError{Err: errors.Errorf("%s is empty", ds.Name())}
	case cfg.BatchSize <= 0:
		return nil, &ConfigError{Err: errors.Errorf("batch size must be positive, got %d", cfg.BatchSize)}
	case cfg.Workers < 0:
		return nil, &ConfigError{Err: errors.Errorf("workers must not be negative, got %d", cfg.Workers)}
	case cfg.DropIncomplete && cfg.BatchSize > n:
		return nil, &ConfigError{Err: errors.Errorf("batch size %d exceeds the %d examples of %s with incomplete batches dropped",
			cfg.BatchSize, n, ds.Name())}
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	l := &Loader{
		ds:    ds,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		order: make([]int, n),
	}
	l.startEpoch(0)
	return l, nil
}

// startEpoch must be called with mu held (or before l is shared).
func (l *Loader) startEpoch(epoch int) {
	l.epoch = epoch
	l.pos = 0
	l.err = nil
	for i := range l.order {
		l.order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	klog.V(1).Infof("%s: starting epoch %d", l.ds.Name(), epoch)
}

// Name implements train.Dataset.
func (l *Loader) Name() string {
	return l.ds.Name()
}

// Epoch returns the current epoch.
func (l *Loader) Epoch() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	n := len(l.order)
	if l.cfg.DropIncomplete {
		return n / l.cfg.BatchSize
	}
	return (n + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Reset implements train.Dataset: the next batch starts a new, reshuffled
// epoch and a recorded fetch error is cleared. Resetting a loader that has
// not yielded anything in the current epoch is a no-op.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pos > 0 || l.err != nil {
		l.startEpoch(l.epoch + 1)
	}
}

// claim reserves the flat indices of the next batch.
func (l *Loader) claim() ([]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	n := len(l.order)
	remaining := n - l.pos
	if remaining <= 0 || (l.cfg.DropIncomplete && remaining < l.cfg.BatchSize) {
		if !l.cfg.Infinite {
			return nil, io.EOF
		}
		l.startEpoch(l.epoch + 1)
	}
	end := min(l.pos+l.cfg.BatchSize, n)
	base := l.epoch * n
	indices := make([]int, end-l.pos)
	for k := range indices {
		indices[k] = base + l.order[l.pos+k]
	}
	l.pos = end
	return indices, nil
}

// Next assembles the next batch. It returns io.EOF at the end of an epoch
// unless the loader is infinite; call Reset to start the next one. After a
// fetch fails, Next keeps returning that error until Reset.
func (l *Loader) Next() (*Batch, error) {
	indices, err := l.claim()
	if err != nil {
		return nil, err
	}
	samples, err := l.fetch(indices)
	if err != nil {
		l.fail(err)
		return nil, err
	}
	batch, err := MakeBatch(samples)
	if err != nil {
		return nil, err
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: batch of %d (%s)", l.ds.Name(), batch.Size, humanize.Bytes(batch.Memory()))
	}
	return batch, nil
}

// Err returns the fetch error recorded in the current epoch, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loader) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

func (l *Loader) fetch(indices []int) ([]*Sample, error) {
	samples := make([]*Sample, len(indices))
	var g errgroup.Group
	g.SetLimit(l.cfg.Workers)
	for pos, idx := range indices {
		g.Go(func() error {
			s, err := l.ds.Example(idx)
			if err != nil {
				return err
			}
			samples[pos] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Yield implements train.Dataset. It returns the loader as spec, inputs
// images [B, H, W, 3], masks [B, H, W, 1], caption indices [B, L] and caption
// lengths [B], and the images again as labels.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	images, occlusion, captions, lengths := batch.ToGomlxTensors()
	inputs = []*tensors.Tensor{images, occlusion, captions, lengths}
	labels = []*tensors.Tensor{images}
	return l, inputs, labels, nil
}

// Prefetched is a Loader whose batches are assembled ahead of time by
// background goroutines. Batch order is not preserved. Call Done to stop the
// goroutines when the dataset is no longer needed.
type Prefetched struct {
	loader   *Loader
	parallel *gomlxds.ParallelDataset
}

var _ train.Dataset = (*Prefetched)(nil)

// Prefetch starts prefetching batches of l.
func Prefetch(l *Loader) *Prefetched {
	return &Prefetched{loader: l, parallel: gomlxds.Parallel(l)}
}

// Name implements train.Dataset.
func (p *Prefetched) Name() string {
	return p.parallel.Name()
}

// Reset implements train.Dataset.
func (p *Prefetched) Reset() {
	p.parallel.Reset()
}

// Yield implements train.Dataset. A fetch failure in any background
// goroutine is returned as soon as the prefetched batches are exhausted.
func (p *Prefetched) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	spec, inputs, labels, err = p.parallel.Yield()
	if err == io.EOF || (err == nil && inputs == nil) {
		if ferr := p.loader.Err(); ferr != nil {
			return nil, nil, nil, ferr
		}
	}
	if err == nil && inputs == nil {
		return nil, nil, nil, errors.Errorf("%s: prefetch stopped without a batch", p.Name())
	}
	return spec, inputs, labels, err
}

// Done stops the background goroutines.
func (p *Prefetched) Done() {
	p.parallel.Done()
}
