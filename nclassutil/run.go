/*
Copyright © 2024 the nclass authors.
This file is part of nclass.

nclass is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

nclass is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with nclass.  If not, see <http://www.gnu.org/licenses/>.
*/

package nclassutil

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ctessum/requestcache"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/plasmaflow/nclass"
	"github.com/plasmaflow/nclass/internal/hash"
)

// SurfaceResult holds the result table of one flux surface.
type SurfaceResult struct {
	Contour          string
	Rows             []*nclass.Row
	BootstrapCurrent float64 // A T m-2
}

type surfaceRequest struct {
	profile *Profile
	contour *Contour
}

// Batch calculates the flows of plasma profiles on many flux surfaces.
// Surfaces are processed in parallel and identical requests are only
// calculated once. Batch is concurrency-safe.
type Batch struct {
	cfg   nclass.Config
	cache *requestcache.Cache
}

// NewBatch creates a Batch that solves with the given configuration
// and keeps up to cacheSize results in memory.
func NewBatch(cfg nclass.Config, cacheSize int) *Batch {
	b := &Batch{cfg: cfg}
	b.cache = requestcache.NewCache(b.solve, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return b
}

func (b *Batch) solve(ctx context.Context, request interface{}) (interface{}, error) {
	r := request.(surfaceRequest)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	states, err := r.profile.ChargeStates()
	if err != nil {
		return nil, err
	}
	fs, err := r.contour.Surface()
	if err != nil {
		return nil, err
	}
	f, err := nclass.NewFlowSolver(states, fs, b.cfg)
	if err != nil {
		return nil, fmt.Errorf("nclassutil: contour %s: %v", r.contour.Name, err)
	}
	return &SurfaceResult{
		Contour:          r.contour.Name,
		Rows:             f.Table(),
		BootstrapCurrent: f.BootstrapCurrent().Value(),
	}, nil
}

// Solve calculates the flows of profile p on each of the contours. The
// results are in the same order as the contours.
func (b *Batch) Solve(ctx context.Context, p *Profile, contours ...*Contour) ([]*SurfaceResult, error) {
	results := make([]*SurfaceResult, len(contours))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		merr *multierror.Error
	)
	wg.Add(len(contours))
	for i, c := range contours {
		go func(i int, c *Contour) {
			defer wg.Done()
			req := b.cache.NewRequest(ctx, surfaceRequest{profile: p, contour: c}, hash.Hash(p, c.Points))
			res, err := req.Result()
			if err != nil {
				mu.Lock()
				merr = multierror.Append(merr, err)
				mu.Unlock()
				return
			}
			// Deduplicated requests share one result; the name is this
			// contour's own.
			r := *res.(*SurfaceResult)
			r.Contour = c.Name
			results[i] = &r
		}(i, c)
	}
	wg.Wait()
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run calculates the flows of the profile in profileFile on the flux
// surfaces in contourFiles and writes one row per charge state and
// surface to outputFile as CSV.
//
// If outputVariables is not empty, the expressions it holds are evaluated
// for every row and written to a second file next to outputFile with the
// suffix "_derived".
func Run(ctx context.Context, log logrus.FieldLogger, profileFile string, contourFiles []string, outputFile string, outputVariables map[string]string, cfg nclass.Config) error {
	start := time.Now()
	if len(contourFiles) == 0 {
		return fmt.Errorf("nclassutil: no contour files specified")
	}
	if outputFile == "" {
		return fmt.Errorf("nclassutil: no output file specified")
	}
	var o *nclass.Outputter
	if len(outputVariables) > 0 {
		var err error
		if o, err = nclass.NewOutputter(outputVariables, nil); err != nil {
			return err
		}
	}
	p, err := LoadProfile(profileFile)
	if err != nil {
		return err
	}
	contours := make([]*Contour, len(contourFiles))
	for i, cf := range contourFiles {
		if contours[i], err = LoadContour(cf); err != nil {
			return err
		}
	}

	results, err := NewBatch(cfg, len(contours)).Solve(ctx, p, contours...)
	if err != nil {
		return err
	}
	var rows []*nclass.Row
	for _, r := range results {
		log.WithFields(logrus.Fields{
			"contour":           r.Contour,
			"psi":               r.Rows[0].Psi,
			"bootstrap_current": r.BootstrapCurrent,
		}).Info("solved flux surface")
		rows = append(rows, r.Rows...)
	}

	if err := writeRows(outputFile, rows); err != nil {
		return err
	}
	if o != nil {
		f := strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + "_derived.csv"
		if err := writeDerived(f, o, rows); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"surfaces": len(contours),
		"rows":     len(rows),
		"elapsed":  time.Since(start),
	}).Info("run complete")
	return nil
}

func writeRows(file string, rows []*nclass.Row) error {
	w, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("nclassutil: creating output file: %v", err)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		w.Close()
		return fmt.Errorf("nclassutil: writing output file: %v", err)
	}
	return w.Close()
}

func writeDerived(file string, o *nclass.Outputter, rows []*nclass.Row) error {
	w, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("nclassutil: creating output file: %v", err)
	}
	if err := WriteDerived(w, o, rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteDerived evaluates the output expressions of o for rows and writes
// them as CSV with the flux and charge state of each row.
func WriteDerived(w io.Writer, o *nclass.Outputter, rows []*nclass.Row) error {
	res, err := o.Evaluate(rows)
	if err != nil {
		return err
	}
	names := o.Names()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"psi", "charge_state"}, names...)); err != nil {
		return err
	}
	for i, r := range rows {
		rec := make([]string, 0, len(names)+2)
		rec = append(rec, strconv.FormatFloat(r.Psi, 'g', -1, 64), r.ChargeState)
		for _, n := range names {
			rec = append(rec, strconv.FormatFloat(res[n][i], 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
