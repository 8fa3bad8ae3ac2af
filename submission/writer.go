package submission

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
	"github.com/YuminosukeSato/tabsearch/pkg/log"
)

// Sink persists one family's records and reports where they went.
type Sink interface {
	Put(family string, header [2]string, records []Record) (location string, err error)
}

// Writer writes submissions through a Sink with a fixed header.
type Writer struct {
	sink      Sink
	idName    string
	labelName string
	logger    log.Logger
}

// NewWriter creates a Writer whose output header is "<idName>,<labelName>".
func NewWriter(sink Sink, idName, labelName string) *Writer {
	return &Writer{
		sink:      sink,
		idName:    idName,
		labelName: labelName,
		logger:    log.GetLoggerWithName("submission"),
	}
}

// Write persists records for family and returns the location.
func (w *Writer) Write(family string, records []Record) (string, error) {
	loc, err := w.sink.Put(family, [2]string{w.idName, w.labelName}, records)
	if err != nil {
		return "", errors.Wrapf(err, "%s: write submission", family)
	}
	w.logger.Info("submission written",
		log.FamilyKey, family,
		log.OutputPathKey, loc,
		log.RowsKey, len(records),
	)
	return loc, nil
}

const submissionFileMode os.FileMode = 0o644

// CSVSink writes <Dir>/<Prefix><family>.csv. The file is written to a
// temporary name first and renamed, so a failed run leaves no partial file.
type CSVSink struct {
	Dir    string
	Prefix string
}

// Path returns the file a family's submission is written to.
func (s CSVSink) Path(family string) string {
	return filepath.Join(s.Dir, s.Prefix+family+".csv")
}

func (s CSVSink) Put(family string, header [2]string, records []Record) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create results dir")
	}
	path := s.Path(family)
	f, err := os.CreateTemp(s.Dir, "."+s.Prefix+family+"-*.csv")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	cw := csv.NewWriter(f)
	if err := cw.Write(header[:]); err != nil {
		f.Close()
		return "", errors.WithStack(err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.ID, strconv.FormatFloat(r.Probability, 'g', -1, 64)}); err != nil {
			f.Close()
			return "", errors.WithStack(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return "", errors.WithStack(err)
	}
	// CreateTemp は 0600 で作るので通常のファイルと同じ権限に戻す
	if err := f.Chmod(submissionFileMode); err != nil {
		f.Close()
		return "", errors.Wrap(err, "chmod submission")
	}
	if err := f.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrap(err, "move submission into place")
	}
	return path, nil
}
