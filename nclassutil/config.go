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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/unit"
	"github.com/gocarina/gocsv"
	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/plasmaflow/nclass"
	"github.com/plasmaflow/nclass/formulary"
	"github.com/plasmaflow/nclass/particles"
)

// Profile holds the plasma composition read from a TOML profile file.
type Profile struct {
	// TemperatureUnit is the unit of the temperatures and temperature
	// gradients: "eV" (the default), "K" or "J".
	TemperatureUnit string

	States []ProfileState `toml:"State"`
}

// ProfileState is one charge state in a profile file. Gradients that
// are left out are unspecified.
type ProfileState struct {
	// Species is the charge-state symbol, for example "C 2+" or "e-".
	Species string

	// Mass is the particle mass in atomic mass units. If it is zero the
	// mass of the element is used.
	Mass float64

	Density             float64  // m-3
	Temperature         float64  // TemperatureUnit
	DensityGradient     *float64 // m-4
	TemperatureGradient *float64 // TemperatureUnit / m
}

// ReadProfile decodes a TOML profile.
func ReadProfile(r io.Reader) (*Profile, error) {
	p := new(Profile)
	md, err := toml.DecodeReader(r, p)
	if err != nil {
		return nil, fmt.Errorf("nclassutil: reading profile: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("nclassutil: unknown profile keys %v", u)
	}
	if len(p.States) == 0 {
		return nil, errors.Wrap(nclass.ErrEmptySpecies, "nclassutil: profile has no states")
	}
	return p, nil
}

// LoadProfile reads the TOML profile in the named file.
func LoadProfile(file string) (*Profile, error) {
	f, err := os.Open(os.ExpandEnv(file))
	if err != nil {
		return nil, fmt.Errorf("nclassutil: %v", err)
	}
	defer f.Close()
	return ReadProfile(f)
}

// temperatureUnits returns the factor converting profile temperatures
// to the returned dimensions.
func temperatureUnits(u string) (float64, unit.Dimensions, unit.Dimensions, error) {
	switch u {
	case "", "eV":
		return formulary.ElectronVolt, unit.Joule, nclass.JoulePerMeter, nil
	case "J":
		return 1, unit.Joule, nclass.JoulePerMeter, nil
	case "K":
		return 1, unit.Kelvin, nclass.KelvinPerMeter, nil
	}
	return 0, nil, nil, fmt.Errorf("nclassutil: TemperatureUnit must be eV, K or J, but is `%s`", u)
}

// ChargeStates converts the profile into solver input.
func (p *Profile) ChargeStates() ([]nclass.ChargeState, error) {
	scale, tDims, dTDims, err := temperatureUnits(p.TemperatureUnit)
	if err != nil {
		return nil, err
	}
	states := make([]nclass.ChargeState, len(p.States))
	for i, ps := range p.States {
		element, z, err := particles.Parse(ps.Species)
		if err != nil {
			return nil, err
		}
		m := ps.Mass * formulary.AtomicMassUnit
		if ps.Mass == 0 {
			if m, err = particles.Mass(element, z); err != nil {
				return nil, errors.Wrapf(err, "nclassutil: no mass for %s", ps.Species)
			}
		}
		c := nclass.ChargeState{
			Element:      element,
			ChargeNumber: z,
			Mass:         unit.New(m, unit.Kilogram),
			Density:      unit.New(ps.Density, nclass.PerMeter3),
			Temperature:  unit.New(ps.Temperature*scale, tDims),
		}
		if ps.DensityGradient != nil {
			c.DensityGradient = unit.New(*ps.DensityGradient, nclass.PerMeter4)
		}
		if ps.TemperatureGradient != nil {
			c.TemperatureGradient = unit.New(*ps.TemperatureGradient*scale, dTDims)
		}
		states[i] = c
	}
	return states, nil
}

// ContourPoint is one row of a contour file: a sample of the magnetic
// field on the flux surface.
type ContourPoint struct {
	Psi  float64 `csv:"psi"` // Wb
	R    float64 `csv:"R"`   // m
	Z    float64 `csv:"Z"`   // m
	Br   float64 `csv:"Br"`  // T
	Bz   float64 `csv:"Bz"`  // T
	Bphi float64 `csv:"Bphi"`
	DBr  float64 `csv:"dBr"` // T/m
	DBz  float64 `csv:"dBz"` // T/m
}

// Contour is a flux surface read from a contour file.
type Contour struct {
	Name   string
	Points []*ContourPoint
}

// ReadContour decodes a contour CSV. All rows must carry the same psi.
func ReadContour(name string, r io.Reader) (*Contour, error) {
	var pts []*ContourPoint
	if err := gocsv.Unmarshal(r, &pts); err != nil {
		return nil, fmt.Errorf("nclassutil: reading contour %s: %v", name, err)
	}
	if len(pts) == 0 {
		return nil, errors.Wrapf(nclass.ErrGeometry, "contour %s is empty", name)
	}
	for _, p := range pts[1:] {
		if p.Psi != pts[0].Psi {
			return nil, errors.Wrapf(nclass.ErrGeometry, "contour %s has more than one psi value (%g, %g)", name, pts[0].Psi, p.Psi)
		}
	}
	return &Contour{Name: name, Points: pts}, nil
}

// LoadContour reads the contour CSV in the named file.
func LoadContour(file string) (*Contour, error) {
	f, err := os.Open(os.ExpandEnv(file))
	if err != nil {
		return nil, fmt.Errorf("nclassutil: %v", err)
	}
	defer f.Close()
	return ReadContour(file, f)
}

// Psi returns the poloidal flux of the contour.
func (c *Contour) Psi() *unit.Unit { return unit.New(c.Points[0].Psi, nclass.Weber) }

// Geometry returns the contour samples as solver input.
func (c *Contour) Geometry() nclass.Geometry {
	n := len(c.Points)
	col := func(get func(*ContourPoint) float64, d unit.Dimensions) nclass.Array {
		v := make([]float64, n)
		for i, p := range c.Points {
			v[i] = get(p)
		}
		return nclass.NewArray(v, d)
	}
	return nclass.Geometry{
		R:    col(func(p *ContourPoint) float64 { return p.R }, unit.Meter),
		Z:    col(func(p *ContourPoint) float64 { return p.Z }, unit.Meter),
		Br:   col(func(p *ContourPoint) float64 { return p.Br }, nclass.Tesla),
		Bz:   col(func(p *ContourPoint) float64 { return p.Bz }, nclass.Tesla),
		Bphi: col(func(p *ContourPoint) float64 { return p.Bphi }, nclass.Tesla),
		DBr:  col(func(p *ContourPoint) float64 { return p.DBr }, nclass.TeslaPerMeter),
		DBz:  col(func(p *ContourPoint) float64 { return p.DBz }, nclass.TeslaPerMeter),
	}
}

// Surface creates the flux surface of the contour.
func (c *Contour) Surface() (*nclass.FluxSurface, error) {
	fs, err := nclass.NewFluxSurface(c.Psi(), c.Geometry())
	if err != nil {
		return nil, errors.Wrapf(err, "contour %s", c.Name)
	}
	return fs, nil
}

// WriteContour writes the samples of g on the surface with flux psi
// [Wb] as contour CSV.
func WriteContour(w io.Writer, psi float64, g nclass.Geometry) error {
	pts := make([]*ContourPoint, g.R.Len())
	for i := range pts {
		pts[i] = &ContourPoint{
			Psi:  psi,
			R:    g.R.Values[i],
			Z:    g.Z.Values[i],
			Br:   g.Br.Values[i],
			Bz:   g.Bz.Values[i],
			Bphi: g.Bphi.Values[i],
			DBr:  g.DBr.Values[i],
			DBz:  g.DBz.Values[i],
		}
	}
	return gocsv.Marshal(pts, w)
}

// SolverConfig returns the numerical settings of the flow solver held
// in cfg.
func SolverConfig(cfg *viper.Viper) (nclass.Config, error) {
	c := nclass.DefaultConfig()
	var err error
	if c.MuN, err = cast.ToIntE(cfg.Get("MuN")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "MuN: "+err.Error())
	}
	if c.MMax, err = cast.ToIntE(cfg.Get("MMax")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "MMax: "+err.Error())
	}
	if c.XMin, err = cast.ToFloat64E(cfg.Get("XMin")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "XMin: "+err.Error())
	}
	if c.XMax, err = cast.ToFloat64E(cfg.Get("XMax")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "XMax: "+err.Error())
	}
	if c.CoulombLogarithm, err = cast.ToFloat64E(cfg.Get("CoulombLogarithm")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "CoulombLogarithm: "+err.Error())
	}
	if c.OrbitSqueezing, err = cast.ToBoolE(cfg.Get("OrbitSqueezing")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "OrbitSqueezing: "+err.Error())
	}
	if c.StrictGradients, err = cast.ToBoolE(cfg.Get("StrictGradients")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "StrictGradients: "+err.Error())
	}
	if c.Workers, err = cast.ToIntE(cfg.Get("Workers")); err != nil {
		return c, errors.Wrap(nclass.ErrConfig, "Workers: "+err.Error())
	}
	log, err := Logger(cfg.GetString("LogLevel"))
	if err != nil {
		return c, err
	}
	c.Log = log
	return c, nil
}

// Logger returns a logger writing to standard error at the given level.
func Logger(level string) (*logrus.Logger, error) {
	l := logrus.New()
	l.Out = os.Stderr
	if level == "" {
		return l, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(nclass.ErrConfig, err.Error())
	}
	l.SetLevel(lvl)
	return l, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	o := make([]string, len(s))
	for i := range s {
		o[i] = os.ExpandEnv(s[i])
	}
	return o
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("nclassutil: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("nclassutil: invalid type for %s: %#v", varName, i)
	}
}
