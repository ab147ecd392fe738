package commands

import (
	"context"
	"path"
	"path/filepath"

	"github.com/nachokelkar/audio-semantics/pkg/levelwise"
	"github.com/nachokelkar/audio-semantics/pkg/runlog"
	"github.com/nachokelkar/audio-semantics/pkg/storage"
)

// historyRecorder writes a record of every committed level to the run
// history.
type historyRecorder struct {
	log *runlog.Log
	run string
}

func (r historyRecorder) RecordLevel(ctx context.Context, l *levelwise.Level) error {
	return r.log.Record(ctx, levelRecord(r.run, l))
}

func levelRecord(run string, l *levelwise.Level) runlog.LevelRecord {
	rec := runlog.LevelRecord{
		Run:       run,
		Level:     l.N,
		Dir:       l.Dir,
		Units:     l.Units,
		Sentences: l.Sentences,
		Truncated: l.Truncated,
		Started:   l.Started,
		Finished:  l.Finished,
	}
	if l.Clusters != nil {
		rec.Clusters = l.Clusters.Len()
	}
	if l.Utterances != nil {
		rec.Utterances = l.Utterances.Count()
	}
	if st := l.UnitStats; st != nil {
		rec.MeanUnits, rec.MaxUnits = st.MeanUnits, st.MaxUnits
	}
	if res := l.Results; res != nil {
		rec.Correlation = make(map[string]map[string]map[string]float64, len(res.Correlation))
		for test, c := range res.Correlation {
			rec.Correlation[test] = c.Score
			rec.Trials += c.Trials
		}
		rec.SameWord = res.SameWord.Accuracy
		rec.CrossWord = res.CrossWord.Accuracy
		rec.Errors = res.Errors()
		rec.Trials += res.SameWord.Trials + res.CrossWord.Trials
	}
	return rec
}

// dirPublisher mirrors level directories into a FileStore under
// <prefix>/<run>/level<n>.
type dirPublisher struct {
	store  storage.FileStore
	prefix string
	run    string
}

func (p dirPublisher) PublishLevel(ctx context.Context, l *levelwise.Level) error {
	_, err := storage.PublishDir(ctx, p.store, l.Dir, path.Join(p.prefix, p.run, filepath.Base(l.Dir)))
	return err
}
