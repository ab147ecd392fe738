// Package runlog keeps the history of pipeline runs in a kv.Store.
//
// A run has one metadata record and one record per committed level:
//
//	run:<id>:meta
//	run:<id>:level:0001
//	run:<id>:level:0002
//
// Records are msgpack-encoded.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nachokelkar/audio-semantics/pkg/kv"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("runlog: run not found")

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is the metadata of one pipeline run.
type Run struct {
	ID       string    `msgpack:"id" json:"id" yaml:"id"`
	Status   string    `msgpack:"status" json:"status" yaml:"status"`
	Output   string    `msgpack:"output" json:"output" yaml:"output"`
	Levels   int       `msgpack:"levels" json:"levels" yaml:"levels"`
	Config   string    `msgpack:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
	Error    string    `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
	Started  time.Time `msgpack:"started" json:"started" yaml:"started"`
	Finished time.Time `msgpack:"finished,omitempty" json:"finished,omitempty" yaml:"finished,omitempty"`
}

// LevelRecord summarizes one committed level.
type LevelRecord struct {
	Run        string `msgpack:"run" json:"run" yaml:"run"`
	Level      int    `msgpack:"level" json:"level" yaml:"level"`
	Dir        string `msgpack:"dir" json:"dir" yaml:"dir"`
	Units      int    `msgpack:"units" json:"units" yaml:"units"`
	Clusters   int    `msgpack:"clusters" json:"clusters" yaml:"clusters"`
	Sentences  int    `msgpack:"sentences" json:"sentences" yaml:"sentences"`
	Utterances int    `msgpack:"utterances" json:"utterances" yaml:"utterances"`
	Truncated  int    `msgpack:"truncated" json:"truncated" yaml:"truncated"`

	// MeanUnits and MaxUnits count utterance units before relabeling.
	MeanUnits float64 `msgpack:"mean_units" json:"mean_units" yaml:"mean_units"`
	MaxUnits  int     `msgpack:"max_units" json:"max_units" yaml:"max_units"`

	// Correlation is test set -> partition -> reduction -> score.
	Correlation map[string]map[string]map[string]float64 `msgpack:"correlation,omitempty" json:"correlation,omitempty" yaml:"correlation,omitempty"`
	SameWord    map[string]float64                       `msgpack:"same_word,omitempty" json:"same_word,omitempty" yaml:"same_word,omitempty"`
	CrossWord   map[string]float64                       `msgpack:"cross_word,omitempty" json:"cross_word,omitempty" yaml:"cross_word,omitempty"`
	Errors      int                                      `msgpack:"errors" json:"errors" yaml:"errors"`
	Trials      int                                      `msgpack:"trials" json:"trials" yaml:"trials"`

	Started  time.Time `msgpack:"started" json:"started" yaml:"started"`
	Finished time.Time `msgpack:"finished" json:"finished" yaml:"finished"`
}

// NewRunID returns a fresh run ID.
func NewRunID() string {
	return uuid.NewString()
}

// Log reads and writes run history.
type Log struct {
	store kv.Store
	now   func() time.Time
}

// New creates a Log on store.
func New(store kv.Store) *Log {
	return &Log{store: store, now: time.Now}
}

func metaKey(id string) kv.Key { return kv.Key{"run", id, "meta"} }

func levelKey(id string, n int) kv.Key {
	return kv.Key{"run", id, "level", fmt.Sprintf("%04d", n)}
}

// Start records a new running run. An empty ID is replaced by NewRunID.
func (l *Log) Start(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	r.Status = StatusRunning
	r.Started = l.now()
	return r, l.put(ctx, metaKey(r.ID), r)
}

// Finish marks a run done, or failed when runErr is not nil.
func (l *Log) Finish(ctx context.Context, id string, runErr error) error {
	r, err := l.Run(ctx, id)
	if err != nil {
		return err
	}
	r.Status = StatusDone
	if runErr != nil {
		r.Status = StatusFailed
		r.Error = runErr.Error()
	}
	r.Finished = l.now()
	return l.put(ctx, metaKey(id), r)
}

// Record stores a level record under its run.
func (l *Log) Record(ctx context.Context, rec LevelRecord) error {
	if rec.Run == "" {
		return errors.New("runlog: level record without run")
	}
	return l.put(ctx, levelKey(rec.Run, rec.Level), rec)
}

// Run returns the metadata of run id.
func (l *Log) Run(ctx context.Context, id string) (Run, error) {
	data, err := l.store.Get(ctx, metaKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	var r Run
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Run{}, fmt.Errorf("runlog: decode run %s: %w", id, err)
	}
	return r, nil
}

// Runs returns every run, most recently started first.
func (l *Log) Runs(ctx context.Context) ([]Run, error) {
	var runs []Run
	for e, err := range l.store.List(ctx, kv.Key{"run"}) {
		if err != nil {
			return nil, err
		}
		if len(e.Key) != 3 || e.Key[2] != "meta" {
			continue
		}
		var r Run
		if err := msgpack.Unmarshal(e.Value, &r); err != nil {
			return nil, fmt.Errorf("runlog: decode %s: %w", e.Key, err)
		}
		runs = append(runs, r)
	}
	slices.SortStableFunc(runs, func(a, b Run) int {
		return b.Started.Compare(a.Started)
	})
	return runs, nil
}

// Levels returns the level records of run id in level order.
func (l *Log) Levels(ctx context.Context, id string) ([]LevelRecord, error) {
	var recs []LevelRecord
	for e, err := range l.store.List(ctx, kv.Key{"run", id, "level"}) {
		if err != nil {
			return nil, err
		}
		var rec LevelRecord
		if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("runlog: decode %s: %w", e.Key, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (l *Log) put(ctx context.Context, key kv.Key, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("runlog: encode %s: %w", key, err)
	}
	return l.store.Set(ctx, key, data)
}
